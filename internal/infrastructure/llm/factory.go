package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ProspectScanner/internal/config"
	"ProspectScanner/internal/ports"
	"ProspectScanner/pkg/metrics"
)

// ErrDisabled is returned by Disabled for every call.
var ErrDisabled = errors.New("llm disabled: no api key configured")

// Disabled is the ChatClient used when no provider credentials exist. Callers treat its
// error like any other transient LLM failure and fall back to neutral values.
type Disabled struct{}

var _ ports.ChatClient = Disabled{}

// Complete always fails with ErrDisabled.
func (Disabled) Complete(context.Context, ports.ChatRequest) (ports.ChatResponse, error) {
	return ports.ChatResponse{}, ErrDisabled
}

// New selects the provider named in cfg. A missing API key yields Disabled and ErrDisabled
// so the caller can log once and continue.
func New(cfg config.LLMConfig, logger *slog.Logger, m *metrics.Manager) (ports.ChatClient, error) {
	if cfg.APIKey == "" {
		return Disabled{}, ErrDisabled
	}

	opts := Options{
		Provider:          cfg.Provider,
		Endpoint:          cfg.Endpoint,
		APIKey:            cfg.APIKey,
		Model:             cfg.Model,
		Timeout:           cfg.Timeout,
		MaxRetries:        cfg.MaxRetries,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Logger:            logger,
		Metrics:           m,
	}

	switch cfg.Provider {
	case config.ProviderOpenAI, config.ProviderDeepSeek, "":
		return NewOpenAIClient(opts), nil
	case config.ProviderAnthropic:
		return NewAnthropicClient(opts), nil
	default:
		return Disabled{}, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

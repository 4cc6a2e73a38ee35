package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"ProspectScanner/internal/ports"
	"ProspectScanner/pkg/metrics"
)

const (
	anthropicProvider     = "anthropic"
	anthropicDefaultModel = "claude-3-5-haiku-latest"
	anthropicMaxTokens    = 1024
)

// AnthropicClient implements ports.ChatClient on the Anthropic Messages API.
// System-role messages are lifted into the request's system prompt.
type AnthropicClient struct {
	client  anthropic.Client
	model   string
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *metrics.Manager
}

var _ ports.ChatClient = (*AnthropicClient)(nil)

// NewAnthropicClient builds a client; retries are delegated to the SDK.
func NewAnthropicClient(opts Options) *AnthropicClient {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(int(opts.MaxRetries)),
	}
	if opts.Endpoint != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.Endpoint))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	} else if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}

	model := opts.Model
	if !strings.HasPrefix(model, "claude") {
		model = anthropicDefaultModel
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AnthropicClient{
		client:  anthropic.NewClient(reqOpts...),
		model:   model,
		limiter: newLimiter(opts.RequestsPerMinute),
		logger:  logger.With("component", "llm", "provider", anthropicProvider),
		metrics: opts.Metrics,
	}
}

// Complete maps the provider-neutral request onto a single Messages call.
func (c *AnthropicClient) Complete(ctx context.Context, req ports.ChatRequest) (ports.ChatResponse, error) {
	if err := waitLimiter(ctx, c.limiter); err != nil {
		return ports.ChatResponse{}, err
	}

	// OpenAI model names sent by callers do not exist here; keep the configured model.
	model := c.model
	if req.Model != "" && strings.HasPrefix(req.Model, "claude") {
		model = req.Model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case "assistant":
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	started := time.Now()
	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		c.metrics.ObserveLLMRequest(anthropicProvider, metrics.OutcomeError, time.Since(started))
		c.logger.Warn("messages call failed", "model", model, "error", err)
		return ports.ChatResponse{}, fmt.Errorf("anthropic messages: %w", err)
	}
	c.metrics.ObserveLLMRequest(anthropicProvider, metrics.OutcomeSuccess, time.Since(started))

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return ports.ChatResponse{
		ID:           msg.ID,
		Model:        string(msg.Model),
		Text:         strings.TrimSpace(text.String()),
		FinishReason: string(msg.StopReason),
		Usage: ports.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
		},
	}, nil
}

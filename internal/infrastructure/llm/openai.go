package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"ProspectScanner/internal/ports"
	"ProspectScanner/pkg/metrics"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultBackoff     = 500 * time.Millisecond
	maxErrorBody       = 1024
)

// ErrMisconfigured is returned when a client lacks an endpoint, key or model.
var ErrMisconfigured = errors.New("llm client misconfigured")

// Options tune a chat client. Zero values fall back to sensible defaults.
type Options struct {
	Provider          string
	Endpoint          string
	APIKey            string
	Model             string
	Timeout           time.Duration
	MaxRetries        uint64
	Backoff           time.Duration
	RequestsPerMinute int
	HTTPClient        *http.Client
	Logger            *slog.Logger
	Metrics           *metrics.Manager
}

// OpenAIClient implements ports.ChatClient against OpenAI-compatible chat completion APIs
// (OpenAI itself and DeepSeek).
type OpenAIClient struct {
	provider   string
	endpoint   string
	apiKey     string
	model      string
	maxRetries uint64
	backoff    time.Duration
	limiter    *rate.Limiter
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Manager
}

var _ ports.ChatClient = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client; it does not contact the provider.
func NewOpenAIClient(opts Options) *OpenAIClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	provider := opts.Provider
	if provider == "" {
		provider = "openai"
	}

	return &OpenAIClient{
		provider:   provider,
		endpoint:   opts.Endpoint,
		apiKey:     opts.APIKey,
		model:      opts.Model,
		maxRetries: opts.MaxRetries,
		backoff:    backoff,
		limiter:    newLimiter(opts.RequestsPerMinute),
		httpClient: httpClient,
		logger:     logger.With("component", "llm", "provider", provider),
		metrics:    opts.Metrics,
	}
}

// Complete sends req, retrying rate-limit, server and network failures with exponential backoff.
func (c *OpenAIClient) Complete(ctx context.Context, req ports.ChatRequest) (ports.ChatResponse, error) {
	if c == nil {
		return ports.ChatResponse{}, ErrMisconfigured
	}
	model := req.Model
	if model == "" {
		model = c.model
	}
	if c.apiKey == "" || c.endpoint == "" || model == "" {
		return ports.ChatResponse{}, ErrMisconfigured
	}

	body, err := json.Marshal(c.payload(model, req))
	if err != nil {
		return ports.ChatResponse{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	started := time.Now()
	var out ports.ChatResponse
	err = retry.Do(ctx, retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoff)), func(ctx context.Context) error {
		if err := waitLimiter(ctx, c.limiter); err != nil {
			return err
		}
		resp, err := c.send(ctx, body)
		if err != nil {
			return err
		}
		out = resp
		return nil
	})

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
		c.logger.Warn("chat completion failed", "model", model, "error", err)
	}
	c.metrics.ObserveLLMRequest(c.provider, outcome, time.Since(started))
	if err != nil {
		return ports.ChatResponse{}, err
	}
	return out, nil
}

func (c *OpenAIClient) payload(model string, req ports.ChatRequest) map[string]any {
	messages := make([]map[string]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, map[string]string{"role": m.Role, "content": m.Content})
	}
	body := map[string]any{
		"model":       model,
		"messages":    messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	return body
}

func (c *OpenAIClient) send(ctx context.Context, body []byte) (ports.ChatResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.ChatResponse{}, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ports.ChatResponse{}, fmt.Errorf("send completion: %w", err)
		}
		return ports.ChatResponse{}, retry.RetryableError(fmt.Errorf("send completion: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := fmt.Errorf("%s error %s: %s", c.provider, resp.Status, strings.TrimSpace(string(snippet)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return ports.ChatResponse{}, retry.RetryableError(statusErr)
		}
		return ports.ChatResponse{}, statusErr
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ports.ChatResponse{}, retry.RetryableError(fmt.Errorf("read completion: %w", err))
	}
	decoded, err := decodeCompletion(raw)
	if err != nil {
		return ports.ChatResponse{}, err
	}
	return decoded.normalize()
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

func waitLimiter(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	if err := l.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

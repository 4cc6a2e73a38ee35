// Package discovery asks a language model for candidate organisation websites.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"ProspectScanner/internal/ports"
)

const (
	defaultTemperature = 0.3
	defaultMaxTokens   = 300
	defaultSystem      = "You are an expert at finding organizations that would be interested in environmental " +
		"sustainability and beach cleanup initiatives. Return only valid URLs with proper protocols."
)

var urlExpr = regexp.MustCompile(`https?://(?:www\.)?[^\s/$.?#].[^\s]*`)

const trailingPunctuation = `.,;:!?)]}>"'` + "`"

// Config tunes the discovery prompt.
type Config struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Discoverer implements ports.SeedDiscoverer.
type Discoverer struct {
	chat   ports.ChatClient
	cfg    Config
	logger *slog.Logger
}

var _ ports.SeedDiscoverer = (*Discoverer)(nil)

// New wires the chat client; zero config values fall back to the defaults.
func New(chat ports.ChatClient, cfg Config, logger *slog.Logger) *Discoverer {
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = defaultSystem
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{chat: chat, cfg: cfg, logger: logger.With("component", "discovery")}
}

// Discover returns at most limit distinct URLs suggested for the campaign. Any model failure
// yields an empty list.
func (d *Discoverer) Discover(ctx context.Context, description string, limit int) []string {
	if d.chat == nil || limit <= 0 {
		return nil
	}

	resp, err := d.chat.Complete(ctx, ports.ChatRequest{
		Model: d.cfg.Model,
		Messages: []ports.ChatMessage{
			{Role: "system", Content: d.cfg.SystemPrompt},
			{Role: "user", Content: CampaignPrompt(description, limit)},
		},
		Temperature: d.cfg.Temperature,
		MaxTokens:   d.cfg.MaxTokens,
	})
	if err != nil {
		d.logger.Error("discover seeds failed", "error", err)
		return nil
	}

	urls := ExtractURLs(resp.Text, limit)
	d.logger.Info("seeds discovered", "count", len(urls))
	return urls
}

// CampaignPrompt builds the user message asking for count organisations matching description.
func CampaignPrompt(description string, count int) string {
	return fmt.Sprintf(`Find %d organizations that would be interested in supporting environmental initiatives,
specifically beach cleanup and ocean conservation using AI technology.
Focus on: %s

Look for organizations that:
- Have sustainability or environmental programs
- Show corporate social responsibility
- Are mid-sized companies or foundations
- Have public contact information

Return only the URLs with https:// protocol.`, count, strings.TrimSpace(description))
}

// ExtractURLs finds http(s) URLs in free text, trims trailing punctuation, drops anything
// without a scheme and host, and keeps the first limit distinct values (limit <= 0 keeps all).
func ExtractURLs(text string, limit int) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, match := range urlExpr.FindAllString(text, -1) {
		candidate := strings.TrimRight(match, trailingPunctuation)
		if !valid(candidate) {
			continue
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func valid(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

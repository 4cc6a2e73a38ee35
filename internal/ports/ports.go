package ports

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ProspectScanner/internal/domain"
)

// ProspectRepository persists crawled prospects keyed by URL.
type ProspectRepository interface {
	Upsert(ctx context.Context, prospect domain.Prospect) error
	// List returns prospects ordered by final score, highest first. limit <= 0 means all rows.
	List(ctx context.Context, limit int) ([]domain.Prospect, error)
	// Get reports found=false instead of an error when the URL is unknown.
	Get(ctx context.Context, url string) (domain.Prospect, bool, error)
	Stats(ctx context.Context) (domain.Stats, error)
}

// ChatMessage is one role/content pair of a chat completion request.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatRequest describes a single chat completion call.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
}

// TokenUsage reports provider token accounting when available.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
}

// ChatResponse is the provider-neutral completion result.
type ChatResponse struct {
	ID           string
	Model        string
	Text         string
	FinishReason string
	Usage        TokenUsage
}

// ChatClient talks to a language model (OpenAI, DeepSeek, Anthropic).
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// PageFetcher downloads and parses a single HTML page.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*goquery.Document, error)
}

// SiteCrawler crawls one domain from a seed URL into a prospect record.
type SiteCrawler interface {
	Crawl(ctx context.Context, seedURL string) domain.Prospect
}

// SeedDiscoverer proposes organisation URLs for a campaign description.
type SeedDiscoverer interface {
	Discover(ctx context.Context, description string, limit int) []string
}

// RatingCache stores LLM opinion vectors so repeated scoring skips the model call.
type RatingCache interface {
	Get(ctx context.Context, key string) ([]float64, bool, error)
	Set(ctx context.Context, key string, ratings []float64) error
}

// Notifier streams run digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when campaigns execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

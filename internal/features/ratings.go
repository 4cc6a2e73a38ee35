package features

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"ProspectScanner/internal/domain"
	"ProspectScanner/internal/ports"
)

// RatingColumns names the LLM opinion features in vector order.
var RatingColumns = []string{
	"llm_environmental_score",
	"llm_technology_score",
	"llm_capacity_score",
	"llm_partnership_score",
}

const (
	// NeutralRating replaces any rating the model did not provide.
	NeutralRating     = 0.5
	ratingTemperature = 0.1
	ratingMaxTokens   = 50
	ratingSampleRunes = 1000
	ratingScale       = 10.0
	defaultRateModel  = "gpt-3.5-turbo"
)

var errEmptyRatings = errors.New("empty rating response")

// RatingSource yields the four opinion ratings for a prospect. Implementations never fail;
// they substitute NeutralRating instead.
type RatingSource interface {
	Rate(ctx context.Context, p domain.Prospect) []float64
}

// Rater asks a chat model for the ratings and optionally caches successful answers.
type Rater struct {
	chat   ports.ChatClient
	model  string
	cache  ports.RatingCache
	logger *slog.Logger
}

var _ RatingSource = (*Rater)(nil)

// NewRater wires a chat client; cache may be nil.
func NewRater(chat ports.ChatClient, model string, cache ports.RatingCache, logger *slog.Logger) *Rater {
	if model == "" {
		model = defaultRateModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rater{chat: chat, model: model, cache: cache, logger: logger.With("component", "rater")}
}

// Rate returns four values in [0,1]. Call or parse failures produce all-neutral ratings.
func (r *Rater) Rate(ctx context.Context, p domain.Prospect) []float64 {
	key := CacheKey(p)
	if r.cache != nil {
		cached, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			r.logger.Warn("rating cache read failed", "error", err)
		} else if ok && len(cached) == len(RatingColumns) {
			return cached
		}
	}

	if r.chat == nil {
		return NeutralRatings()
	}
	resp, err := r.chat.Complete(ctx, ports.ChatRequest{
		Model:       r.model,
		Messages:    []ports.ChatMessage{{Role: "user", Content: RatingPrompt(p)}},
		Temperature: ratingTemperature,
		MaxTokens:   ratingMaxTokens,
	})
	if err != nil {
		r.logger.Debug("rating call failed", "url", p.URL, "error", err)
		return NeutralRatings()
	}

	ratings, err := ParseRatings(resp.Text)
	if err != nil {
		r.logger.Debug("rating parse failed", "url", p.URL, "text", resp.Text, "error", err)
		return NeutralRatings()
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, ratings); err != nil {
			r.logger.Warn("rating cache write failed", "error", err)
		}
	}
	return ratings
}

// RatingPrompt builds the single user message sent to the model.
func RatingPrompt(p domain.Prospect) string {
	name := p.OrganizationName
	if name == "" {
		name = "Unknown"
	}
	return fmt.Sprintf(`Analyze this organization for potential donation likelihood to an environmental NGO that uses AI for beach cleanup:

Organization: %s
Website: %s
Content sample: %s

Rate from 0-10:
1. Environmental alignment
2. Technology interest
3. Donation capacity
4. Partnership potential

Respond with only numbers separated by commas (e.g., "7,8,6,9").`, name, p.URL, firstRunes(p.ContentText, ratingSampleRunes))
}

// ParseRatings reads a comma-separated list of 0-10 numbers. Every item must parse; positions
// beyond the list default to NeutralRating and extra items are ignored.
func ParseRatings(text string) ([]float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errEmptyRatings
	}

	out := NeutralRatings()
	for i, part := range strings.Split(text, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("parse rating %d: %w", i+1, err)
		}
		if i < len(out) {
			out[i] = domain.Clamp01(v / ratingScale)
		}
	}
	return out, nil
}

// NeutralRatings returns a fresh all-neutral vector.
func NeutralRatings() []float64 {
	out := make([]float64, len(RatingColumns))
	for i := range out {
		out[i] = NeutralRating
	}
	return out
}

// CacheKey identifies a prospect's rating input: URL plus a hash of the prompt content.
func CacheKey(p domain.Prospect) string {
	sum := sha256.Sum256([]byte(p.URL + "\x00" + p.OrganizationName + "\x00" + firstRunes(p.ContentText, ratingSampleRunes)))
	return "ratings:" + hex.EncodeToString(sum[:])
}

// StaticRatings always returns the same vector; used when ratings are disabled and in tests.
type StaticRatings []float64

// Rate implements RatingSource.
func (s StaticRatings) Rate(context.Context, domain.Prospect) []float64 {
	if len(s) != len(RatingColumns) {
		return NeutralRatings()
	}
	return append([]float64(nil), s...)
}

func firstRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Package ensemble trains three independent classifiers on the prospect feature table and
// fuses their probabilities into one score with a confidence and a recommendation band.
package ensemble

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"ProspectScanner/internal/domain"
	"ProspectScanner/internal/features"
)

// NeutralProbability replaces the output of a model that fails during inference.
const NeutralProbability = 0.5

const topImportances = 10

var (
	// ErrSingleClass means the training labels are all positive or all negative.
	ErrSingleClass = errors.New("training set needs both positive and negative rows")
	// ErrNotTrained is returned when scoring with a nil snapshot.
	ErrNotTrained = errors.New("ensemble not trained")
)

// Config tunes training.
type Config struct {
	Trees          int
	BoostingRounds int
	Seed           int64
}

func (c Config) withDefaults() Config {
	if c.Trees <= 0 {
		c.Trees = 100
	}
	if c.BoostingRounds <= 0 {
		c.BoostingRounds = 100
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	return c
}

// FeatureImportance is one named entry of a tree model's importance ranking.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Snapshot is everything needed to score: the fitted transformer and the three models.
// A snapshot is never mutated after Train or Load returns it.
type Snapshot struct {
	ID          string                         `json:"id"`
	TrainedAt   time.Time                      `json:"trained_at"`
	Rows        int                            `json:"rows"`
	Transformer *features.Transformer          `json:"transformer"`
	Forest      *RandomForest                  `json:"random_forest"`
	Boosting    *GradientBoosting              `json:"gradient_boosting"`
	Logistic    *LogisticRegression            `json:"logistic_regression"`
	Importances map[string][]FeatureImportance `json:"feature_importance"`
}

// Train fits the transformer and all three models on samples with binary labels.
func Train(samples []features.Sample, labels []bool, cfg Config) (*Snapshot, error) {
	if len(samples) != len(labels) {
		return nil, fmt.Errorf("train: %d samples but %d labels", len(samples), len(labels))
	}
	cfg = cfg.withDefaults()

	y := make([]float64, len(labels))
	var positives int
	for i, positive := range labels {
		if positive {
			y[i] = 1
			positives++
		}
	}
	if positives == 0 || positives == len(labels) {
		return nil, ErrSingleClass
	}

	transformer, X, err := features.Fit(samples)
	if err != nil {
		return nil, fmt.Errorf("fit features: %w", err)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	forest := FitRandomForest(X, y, cfg.Trees, rng)
	boosting := FitGradientBoosting(X, y, cfg.BoostingRounds, rng)
	logistic := FitLogisticRegression(X, y)

	return &Snapshot{
		ID:          uuid.NewString(),
		TrainedAt:   time.Now().UTC(),
		Rows:        len(samples),
		Transformer: transformer,
		Forest:      forest,
		Boosting:    boosting,
		Logistic:    logistic,
		Importances: map[string][]FeatureImportance{
			RandomForestName:     rankImportances(transformer.Columns, forest.Importances),
			GradientBoostingName: rankImportances(transformer.Columns, boosting.Importances),
		},
	}, nil
}

// Classifiers returns the three models in a fixed order.
func (s *Snapshot) Classifiers() []Classifier {
	return []Classifier{s.Forest, s.Boosting, s.Logistic}
}

// Score transforms sample and combines the three model probabilities. A model that fails
// contributes NeutralProbability; only a missing snapshot or a transform failure is an error.
func (s *Snapshot) Score(sample features.Sample) (domain.ScoringResult, error) {
	if s == nil || s.Transformer == nil {
		return domain.ScoringResult{}, ErrNotTrained
	}
	x, err := s.Transformer.Transform(sample)
	if err != nil {
		return domain.ScoringResult{}, fmt.Errorf("transform sample: %w", err)
	}

	probs := make(map[string]float64, 3)
	for _, c := range s.Classifiers() {
		probs[c.Name()] = safeProbability(c, x)
	}
	return Combine(probs), nil
}

func safeProbability(c Classifier, x []float64) (p float64) {
	defer func() {
		if recover() != nil {
			p = NeutralProbability
		}
	}()
	p, err := c.Probability(x)
	if err != nil || math.IsNaN(p) {
		return NeutralProbability
	}
	return p
}

// Combine averages the individual probabilities; confidence is one minus their population
// standard deviation, clamped to [0,1].
func Combine(probs map[string]float64) domain.ScoringResult {
	if len(probs) == 0 {
		return domain.ScoringResult{
			EnsembleScore:    NeutralProbability,
			IndividualScores: map[string]float64{},
			Recommendation:   domain.Recommend(NeutralProbability, 0),
		}
	}

	var mean float64
	for _, p := range probs {
		mean += p
	}
	mean /= float64(len(probs))

	var variance float64
	for _, p := range probs {
		d := p - mean
		variance += d * d
	}
	confidence := domain.Clamp01(1 - math.Sqrt(variance/float64(len(probs))))

	individual := make(map[string]float64, len(probs))
	for k, v := range probs {
		individual[k] = v
	}
	return domain.ScoringResult{
		EnsembleScore:    mean,
		IndividualScores: individual,
		Confidence:       confidence,
		Recommendation:   domain.Recommend(mean, confidence),
	}
}

func rankImportances(columns []string, values []float64) []FeatureImportance {
	out := make([]FeatureImportance, 0, len(values))
	for i, v := range values {
		if i < len(columns) {
			out = append(out, FeatureImportance{Feature: columns[i], Importance: v})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	if len(out) > topImportances {
		out = out[:topImportances]
	}
	return out
}

// Save writes the snapshot as one JSON document.
func (s *Snapshot) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot written by Save.
func Load(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Transformer == nil || s.Forest == nil || s.Boosting == nil || s.Logistic == nil {
		return nil, fmt.Errorf("decode snapshot: %w", ErrNotTrained)
	}
	width := len(s.Transformer.Columns)
	if s.Forest.Width != width || s.Boosting.Width != width || s.Logistic.Width != width {
		return nil, fmt.Errorf("decode snapshot: %w", features.ErrColumnMismatch)
	}
	return &s, nil
}

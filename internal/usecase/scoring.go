package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ProspectScanner/internal/domain"
	"ProspectScanner/internal/ensemble"
	"ProspectScanner/internal/features"
	"ProspectScanner/internal/ports"
	"ProspectScanner/pkg/metrics"
)

const defaultPositiveThreshold = 0.6

// ScoringConfig tunes training and model persistence.
type ScoringConfig struct {
	Ensemble          ensemble.Config
	PositiveThreshold float64
	// ModelPath, when set, is loaded before the first training and rewritten after every training.
	ModelPath string
}

// ScoringDeps wires the scoring service.
type ScoringDeps struct {
	Repository ports.ProspectRepository
	Builder    *features.Builder
	Logger     *slog.Logger
	Metrics    *metrics.Manager
	Config     ScoringConfig
}

// ScoringService owns the ensemble snapshot. Training is serialised by mu; readers take the
// published snapshot without locking.
type ScoringService struct {
	repo    ports.ProspectRepository
	builder *features.Builder
	logger  *slog.Logger
	metrics *metrics.Manager
	cfg     ScoringConfig

	mu       sync.Mutex
	snapshot atomic.Pointer[ensemble.Snapshot]
}

// NewScoringService builds an untrained service; the model is trained or loaded on first use.
func NewScoringService(deps ScoringDeps) *ScoringService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	builder := deps.Builder
	if builder == nil {
		builder = features.NewBuilder(nil)
	}
	cfg := deps.Config
	if cfg.PositiveThreshold <= 0 || cfg.PositiveThreshold >= 1 {
		cfg.PositiveThreshold = defaultPositiveThreshold
	}
	return &ScoringService{
		repo:    deps.Repository,
		builder: builder,
		logger:  logger.With("component", "scoring"),
		metrics: deps.Metrics,
		cfg:     cfg,
	}
}

// Model returns the current snapshot, loading or training one if none exists yet.
func (s *ScoringService) Model(ctx context.Context) (*ensemble.Snapshot, error) {
	if snap := s.snapshot.Load(); snap != nil {
		return snap, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if snap := s.snapshot.Load(); snap != nil {
		return snap, nil
	}

	if snap, ok := s.loadFromDisk(); ok {
		s.snapshot.Store(snap)
		return snap, nil
	}
	return s.trainLocked(ctx)
}

// Retrain fits a fresh snapshot on the seed examples plus the current store and publishes it.
func (s *ScoringService) Retrain(ctx context.Context) (*ensemble.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trainLocked(ctx)
}

func (s *ScoringService) trainLocked(ctx context.Context) (*ensemble.Snapshot, error) {
	labeled := ensemble.SeedExamples()
	if s.repo != nil {
		stored, err := s.repo.List(ctx, 0)
		if err != nil {
			s.metrics.RecordTraining(metrics.OutcomeError)
			return nil, fmt.Errorf("load training prospects: %w", err)
		}
		labeled = append(labeled, ensemble.LabelStored(stored, s.cfg.PositiveThreshold)...)
	}

	samples := make([]features.Sample, len(labeled))
	labels := make([]bool, len(labeled))
	for i, l := range labeled {
		samples[i] = s.builder.Sample(ctx, l.Prospect)
		labels[i] = l.Positive
	}

	snap, err := ensemble.Train(samples, labels, s.cfg.Ensemble)
	if err != nil {
		s.metrics.RecordTraining(metrics.OutcomeError)
		return nil, fmt.Errorf("train ensemble: %w", err)
	}
	s.metrics.RecordTraining(metrics.OutcomeSuccess)
	s.snapshot.Store(snap)
	s.logger.Info("ensemble trained", "model_id", snap.ID, "rows", snap.Rows, "columns", len(snap.Transformer.Columns))

	if s.cfg.ModelPath != "" {
		if err := writeSnapshot(s.cfg.ModelPath, snap); err != nil {
			s.logger.Warn("persist model failed", "path", s.cfg.ModelPath, "error", err)
		}
	}
	return snap, nil
}

func (s *ScoringService) loadFromDisk() (*ensemble.Snapshot, bool) {
	if s.cfg.ModelPath == "" {
		return nil, false
	}
	f, err := os.Open(s.cfg.ModelPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("open model failed", "path", s.cfg.ModelPath, "error", err)
		}
		return nil, false
	}
	defer f.Close()

	snap, err := ensemble.Load(f)
	if err != nil {
		s.logger.Warn("load model failed, retraining", "path", s.cfg.ModelPath, "error", err)
		return nil, false
	}
	s.logger.Info("ensemble loaded", "model_id", snap.ID, "path", s.cfg.ModelPath)
	return snap, true
}

// Save writes the current snapshot to path.
func (s *ScoringService) Save(ctx context.Context, path string) error {
	snap, err := s.Model(ctx)
	if err != nil {
		return err
	}
	return writeSnapshot(path, snap)
}

func writeSnapshot(path string, snap *ensemble.Snapshot) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".model-*.json")
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := snap.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close model file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace model file: %w", err)
	}
	return nil
}

// Score runs the ensemble on one prospect.
func (s *ScoringService) Score(ctx context.Context, p domain.Prospect) (domain.ScoringResult, error) {
	snap, err := s.Model(ctx)
	if err != nil {
		return domain.ScoringResult{}, err
	}
	started := time.Now()
	result, err := snap.Score(s.builder.Sample(ctx, p))
	s.metrics.ObserveScoring(time.Since(started))
	if err != nil {
		return domain.ScoringResult{}, fmt.Errorf("score prospect: %w", err)
	}
	return result, nil
}

// ScoreURL scores the stored prospect for url; found is false when it is not stored.
func (s *ScoringService) ScoreURL(ctx context.Context, url string) (domain.ScoredProspect, bool, error) {
	if s.repo == nil {
		return domain.ScoredProspect{}, false, nil
	}
	p, found, err := s.repo.Get(ctx, url)
	if err != nil {
		return domain.ScoredProspect{}, false, fmt.Errorf("get prospect: %w", err)
	}
	if !found {
		return domain.ScoredProspect{}, false, nil
	}
	result, err := s.Score(ctx, p)
	if err != nil {
		return domain.ScoredProspect{}, true, err
	}
	return scored(p, result), true, nil
}

// BatchScore scores every stored prospect, highest ensemble score first.
func (s *ScoringService) BatchScore(ctx context.Context) ([]domain.ScoredProspect, error) {
	if s.repo == nil {
		return nil, nil
	}
	stored, err := s.repo.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list prospects: %w", err)
	}

	out := make([]domain.ScoredProspect, 0, len(stored))
	for _, p := range stored {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		result, err := s.Score(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, scored(p, result))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AIScore > out[j].AIScore })
	return out, nil
}

func scored(p domain.Prospect, r domain.ScoringResult) domain.ScoredProspect {
	return domain.ScoredProspect{
		ID:               p.ID,
		URL:              p.URL,
		OrganizationName: p.OrganizationName,
		AIScore:          r.EnsembleScore,
		Confidence:       r.Confidence,
		Recommendation:   r.Recommendation,
		IndividualScores: r.IndividualScores,
	}
}

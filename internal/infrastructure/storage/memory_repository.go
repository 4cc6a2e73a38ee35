package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"ProspectScanner/internal/domain"
	"ProspectScanner/internal/ports"
)

// MemoryRepository keeps prospects in process memory. It is used when no DSN is configured.
type MemoryRepository struct {
	mu     sync.RWMutex
	byURL  map[string]domain.Prospect
	nextID int64
	now    func() time.Time
}

var _ ports.ProspectRepository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byURL: map[string]domain.Prospect{}, now: time.Now}
}

// Upsert replaces any prospect stored under the same URL, keeping its ID.
func (r *MemoryRepository) Upsert(_ context.Context, p domain.Prospect) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byURL[p.URL]; ok {
		p.ID = existing.ID
	} else {
		r.nextID++
		p.ID = r.nextID
	}
	p.CreatedAt = r.now().UTC()
	r.byURL[p.URL] = clone(p)
	return nil
}

// List returns prospects by final score descending, then by ID.
func (r *MemoryRepository) List(_ context.Context, limit int) ([]domain.Prospect, error) {
	r.mu.RLock()
	out := make([]domain.Prospect, 0, len(r.byURL))
	for _, p := range r.byURL {
		out = append(out, clone(p))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Scores.Final != out[j].Scores.Final {
			return out[i].Scores.Final > out[j].Scores.Final
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Get reports found=false for unknown URLs.
func (r *MemoryRepository) Get(_ context.Context, url string) (domain.Prospect, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byURL[url]
	if !ok {
		return domain.Prospect{}, false, nil
	}
	return clone(p), true, nil
}

// Stats aggregates under one read lock.
func (r *MemoryRepository) Stats(_ context.Context) (domain.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats domain.Stats
	var sum float64
	for _, p := range r.byURL {
		stats.TotalProspects++
		sum += p.Scores.Final
		if p.Scores.Final > domain.HighPriorityThreshold {
			stats.HighPriorityProspects++
		}
	}
	if stats.TotalProspects > 0 {
		stats.AverageScore = sum / float64(stats.TotalProspects)
	}
	return stats, nil
}

func clone(p domain.Prospect) domain.Prospect {
	p.Emails = append([]string(nil), p.Emails...)
	p.Phones = append([]string(nil), p.Phones...)
	p.Addresses = append([]string(nil), p.Addresses...)
	return p
}

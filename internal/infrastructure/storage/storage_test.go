package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ProspectScanner/internal/domain"
)

func newMockRepository(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	return NewPostgresRepository(sqlx.NewDb(mockDB, "postgres")), mock
}

func sampleProspect(url string, donation float64) domain.Prospect {
	return domain.Prospect{
		URL:              url,
		OrganizationName: "Reef Trust",
		Emails:           []string{"info@reef.org"},
		ContentText:      "ocean conservation",
		Scores:           domain.NewHeuristicScores(0.5, 0.25, donation),
	}
}

func TestPostgresUpsert(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	p := sampleProspect("https://reef.org", 0.8)

	mock.ExpectExec(`INSERT INTO prospects .* ON CONFLICT \(url\) DO UPDATE`).
		WithArgs(p.URL, p.OrganizationName, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), p.ContentText,
			p.Scores.Sustainability, p.Scores.DonationProbability, p.Scores.Engagement, p.Scores.Final).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Upsert(context.Background(), p))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertWrapsErrors(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectExec(`INSERT INTO prospects`).WillReturnError(errors.New("connection reset"))

	err := repo.Upsert(context.Background(), sampleProspect("https://reef.org", 0.8))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert prospect")
}

func TestPostgresListOrdersByFinalScore(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(prospectColumns).
		AddRow(2, "https://b.org", "B", "{b@b.org}", "{}", "{}", "text b", 0.9, 0.8, 0.1, 0.8, created).
		AddRow(1, "https://a.org", "A", "{}", "{555-123-4567}", "{}", "text a", 0.1, 0.1, 0.1, 0.1, created)

	mock.ExpectQuery(`SELECT .* FROM prospects ORDER BY final_score DESC, id ASC LIMIT 2`).WillReturnRows(rows)

	got, err := repo.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://b.org", got[0].URL)
	assert.Equal(t, []string{"b@b.org"}, got[0].Emails)
	assert.Equal(t, []string{"555-123-4567"}, got[1].Phones)
	assert.Equal(t, 0.8, got[0].Scores.Final)
	assert.Equal(t, created, got[0].CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetNotFound(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`SELECT .* FROM prospects WHERE url = \$1`).
		WithArgs("https://missing.org").
		WillReturnRows(sqlmock.NewRows(prospectColumns))

	_, found, err := repo.Get(context.Background(), "https://missing.org")
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStatsSingleQuery(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) AS total, COUNT\(\*\) FILTER \(WHERE final_score > 0.7\) AS high_priority`).
		WillReturnRows(sqlmock.NewRows([]string{"total", "high_priority", "average_score"}).AddRow(4, 1, 0.45))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{TotalProspects: 4, HighPriorityProspects: 1, AverageScore: 0.45}, stats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryUpsertReplacesByURL(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, sampleProspect("https://reef.org", 0.2)))
	require.NoError(t, repo.Upsert(ctx, sampleProspect("https://kelp.org", 0.5)))
	updated := sampleProspect("https://reef.org", 0.9)
	updated.OrganizationName = "Reef Trust International"
	require.NoError(t, repo.Upsert(ctx, updated))

	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "https://reef.org", all[0].URL)
	assert.Equal(t, "Reef Trust International", all[0].OrganizationName)
	assert.Equal(t, updated.Scores.Final, all[0].Scores.Final)
	assert.Equal(t, int64(1), all[0].ID)

	got, found, err := repo.Get(ctx, "https://reef.org")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, updated.Scores, got.Scores)

	_, found, err = repo.Get(ctx, "https://nowhere.org")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStats(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	ctx := context.Background()

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{}, stats)

	high := domain.Prospect{URL: "https://a.org", Scores: domain.HeuristicScores{Final: 0.8}}
	low := domain.Prospect{URL: "https://b.org", Scores: domain.HeuristicScores{Final: 0.2}}
	require.NoError(t, repo.Upsert(ctx, high))
	require.NoError(t, repo.Upsert(ctx, low))

	stats, err = repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalProspects)
	assert.Equal(t, 1, stats.HighPriorityProspects)
	assert.InDelta(t, 0.5, stats.AverageScore, 1e-12)
}

func TestMemoryListReturnsCopies(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	require.NoError(t, repo.Upsert(context.Background(), sampleProspect("https://reef.org", 0.2)))

	first, _ := repo.List(context.Background(), 1)
	first[0].Emails[0] = "changed@reef.org"

	second, _ := repo.List(context.Background(), 1)
	assert.Equal(t, "info@reef.org", second[0].Emails[0])
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"ProspectScanner/internal/domain"
	"ProspectScanner/internal/ports"
)

const prospectsTable = "prospects"

var prospectColumns = []string{
	"id", "url", "organization_name", "emails", "phones", "addresses", "content_text",
	"sustainability_score", "donation_probability", "engagement_score", "final_score", "created_at",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// prospectRow mirrors the prospects table.
type prospectRow struct {
	ID                  int64          `db:"id"`
	URL                 string         `db:"url"`
	OrganizationName    string         `db:"organization_name"`
	Emails              pq.StringArray `db:"emails"`
	Phones              pq.StringArray `db:"phones"`
	Addresses           pq.StringArray `db:"addresses"`
	ContentText         string         `db:"content_text"`
	SustainabilityScore float64        `db:"sustainability_score"`
	DonationProbability float64        `db:"donation_probability"`
	EngagementScore     float64        `db:"engagement_score"`
	FinalScore          float64        `db:"final_score"`
	CreatedAt           time.Time      `db:"created_at"`
}

func (r prospectRow) toDomain() domain.Prospect {
	return domain.Prospect{
		ID:               r.ID,
		URL:              r.URL,
		OrganizationName: r.OrganizationName,
		Emails:           []string(r.Emails),
		Phones:           []string(r.Phones),
		Addresses:        []string(r.Addresses),
		ContentText:      r.ContentText,
		Scores: domain.HeuristicScores{
			Sustainability:      r.SustainabilityScore,
			Engagement:          r.EngagementScore,
			DonationProbability: r.DonationProbability,
			Final:               r.FinalScore,
		},
		CreatedAt: r.CreatedAt,
	}
}

// PostgresRepository persists prospects into Postgres.
type PostgresRepository struct {
	db *sqlx.DB
}

var _ ports.ProspectRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sqlx.DB implementation.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	return db, nil
}

// Upsert inserts the prospect or replaces every column of the row with the same URL.
func (r *PostgresRepository) Upsert(ctx context.Context, p domain.Prospect) error {
	query, args, err := psql.Insert(prospectsTable).
		Columns("url", "organization_name", "emails", "phones", "addresses", "content_text",
			"sustainability_score", "donation_probability", "engagement_score", "final_score").
		Values(p.URL, p.OrganizationName,
			pq.StringArray(nonNil(p.Emails)), pq.StringArray(nonNil(p.Phones)), pq.StringArray(nonNil(p.Addresses)),
			p.ContentText,
			p.Scores.Sustainability, p.Scores.DonationProbability, p.Scores.Engagement, p.Scores.Final).
		Suffix(`ON CONFLICT (url) DO UPDATE
              SET organization_name = EXCLUDED.organization_name,
                  emails = EXCLUDED.emails,
                  phones = EXCLUDED.phones,
                  addresses = EXCLUDED.addresses,
                  content_text = EXCLUDED.content_text,
                  sustainability_score = EXCLUDED.sustainability_score,
                  donation_probability = EXCLUDED.donation_probability,
                  engagement_score = EXCLUDED.engagement_score,
                  final_score = EXCLUDED.final_score,
                  created_at = NOW()`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert prospect: %w", err)
	}
	return nil
}

// List returns prospects ordered by final score descending; limit <= 0 returns all rows.
func (r *PostgresRepository) List(ctx context.Context, limit int) ([]domain.Prospect, error) {
	builder := psql.Select(prospectColumns...).
		From(prospectsTable).
		OrderBy("final_score DESC", "id ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	var rows []prospectRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list prospects: %w", err)
	}

	out := make([]domain.Prospect, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// Get loads a prospect by URL; an unknown URL is reported through found, not an error.
func (r *PostgresRepository) Get(ctx context.Context, url string) (domain.Prospect, bool, error) {
	query, args, err := psql.Select(prospectColumns...).
		From(prospectsTable).
		Where(sq.Eq{"url": url}).
		ToSql()
	if err != nil {
		return domain.Prospect{}, false, fmt.Errorf("build get: %w", err)
	}

	var row prospectRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Prospect{}, false, nil
		}
		return domain.Prospect{}, false, fmt.Errorf("get prospect: %w", err)
	}
	return row.toDomain(), true, nil
}

// Stats aggregates the table in a single read.
func (r *PostgresRepository) Stats(ctx context.Context) (domain.Stats, error) {
	query, args, err := psql.Select(
		"COUNT(*) AS total",
		fmt.Sprintf("COUNT(*) FILTER (WHERE final_score > %g) AS high_priority", domain.HighPriorityThreshold),
		"COALESCE(AVG(final_score), 0) AS average_score",
	).From(prospectsTable).ToSql()
	if err != nil {
		return domain.Stats{}, fmt.Errorf("build stats: %w", err)
	}

	var row struct {
		Total        int     `db:"total"`
		HighPriority int     `db:"high_priority"`
		AverageScore float64 `db:"average_score"`
	}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return domain.Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return domain.Stats{
		TotalProspects:        row.Total,
		HighPriorityProspects: row.HighPriority,
		AverageScore:          row.AverageScore,
	}, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

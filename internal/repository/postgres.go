// Package repository provides PostgreSQL persistence for timer documents and
// the archive of completed timers.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/nadmax/tempo/internal/repository/models"
)

const Schema = `
CREATE TABLE IF NOT EXISTS tempo_documents (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS timer_completions (
	id           BIGSERIAL PRIMARY KEY,
	timer_id     TEXT NOT NULL,
	name         TEXT NOT NULL,
	category     TEXT NOT NULL,
	duration_s   INTEGER NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_timer_completions_completed_at ON timer_completions (completed_at DESC);
CREATE INDEX IF NOT EXISTS idx_timer_completions_category ON timer_completions (category);
`

type PostgresCompletionRepository struct {
	db *sql.DB
}

// Open connects to PostgreSQL with the pool settings shared by every repository.
func Open(connectionString string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func NewPostgresCompletionRepository(db *sql.DB) *PostgresCompletionRepository {
	return &PostgresCompletionRepository{db: db}
}

func (r *PostgresCompletionRepository) RecordCompletion(ctx context.Context, c models.Completion) error {
	query := `
		INSERT INTO timer_completions (
			timer_id, name, category, duration_s, completed_at
		) VALUES ($1, $2, $3, $4, $5)
	`

	completedAt := c.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	_, err := r.db.ExecContext(
		ctx,
		query,
		c.TimerID,
		c.Name,
		c.Category,
		c.DurationS,
		completedAt,
	)

	return err
}

func (r *PostgresCompletionRepository) GetCompletionStats(ctx context.Context, hours int) ([]models.CompletionStats, error) {
	query := `
		SELECT
			category, COUNT(*) as count,
			COALESCE(SUM(duration_s), 0) as total_duration_s,
			COALESCE(AVG(duration_s), 0) as avg_duration_s,
			MAX(completed_at) as last_completion
		FROM timer_completions
		WHERE completed_at > NOW() - INTERVAL '1 hour' * $1
		GROUP BY category
		ORDER BY category
	`
	rows, err := r.db.QueryContext(ctx, query, hours)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var stats []models.CompletionStats
	for rows.Next() {
		var s models.CompletionStats
		var last sql.NullTime
		if err := rows.Scan(
			&s.Category,
			&s.Count,
			&s.TotalDurationS,
			&s.AvgDurationS,
			&last,
		); err != nil {
			return nil, err
		}
		if last.Valid {
			s.LastCompletion = &last.Time
		}

		stats = append(stats, s)
	}

	return stats, rows.Err()
}

func (r *PostgresCompletionRepository) GetRecentCompletions(ctx context.Context, limit int) ([]models.RecentCompletion, error) {
	query := `
		SELECT
			id, timer_id, name, category, duration_s, completed_at
		FROM timer_completions
		ORDER BY completed_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	return scanCompletions(rows)
}

func (r *PostgresCompletionRepository) GetCompletionsByCategory(ctx context.Context, category string, limit int) ([]models.RecentCompletion, error) {
	query := `
		SELECT
			id, timer_id, name, category, duration_s, completed_at
		FROM timer_completions
		WHERE category = $1
		ORDER BY completed_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, category, limit)
	if err != nil {
		return nil, err
	}

	return scanCompletions(rows)
}

func scanCompletions(rows *sql.Rows) ([]models.RecentCompletion, error) {
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var completions []models.RecentCompletion
	for rows.Next() {
		var c models.RecentCompletion
		if err := rows.Scan(
			&c.ID,
			&c.TimerID,
			&c.Name,
			&c.Category,
			&c.DurationS,
			&c.CompletedAt,
		); err != nil {
			return nil, err
		}

		completions = append(completions, c)
	}

	return completions, rows.Err()
}

func (r *PostgresCompletionRepository) DB() *sql.DB {
	return r.db
}

func (r *PostgresCompletionRepository) Close() error {
	return r.db.Close()
}

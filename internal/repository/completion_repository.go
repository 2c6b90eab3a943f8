package repository

import (
	"context"

	"github.com/nadmax/tempo/internal/repository/models"
)

type CompletionRepository interface {
	RecordCompletion(ctx context.Context, c models.Completion) error
	GetCompletionStats(ctx context.Context, hours int) ([]models.CompletionStats, error)
	GetRecentCompletions(ctx context.Context, limit int) ([]models.RecentCompletion, error)
	GetCompletionsByCategory(ctx context.Context, category string, limit int) ([]models.RecentCompletion, error)
	Close() error
}

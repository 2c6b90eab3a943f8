package notify

import (
	"context"
	"fmt"

	"github.com/nadmax/tempo/internal/repository"
	"github.com/nadmax/tempo/internal/repository/models"
)

// ArchiveNotifier records every completion in the completion repository.
// Halfway notifications are ignored.
type ArchiveNotifier struct {
	repo repository.CompletionRepository
}

func NewArchiveNotifier(repo repository.CompletionRepository) *ArchiveNotifier {
	return &ArchiveNotifier{repo: repo}
}

func (a *ArchiveNotifier) Notify(ctx context.Context, n Notification) error {
	if n.Kind != KindCompletion {
		return nil
	}

	err := a.repo.RecordCompletion(ctx, models.Completion{
		TimerID:     n.TimerID,
		Name:        n.TimerName,
		Category:    n.Category,
		DurationS:   n.Duration,
		CompletedAt: n.At,
	})
	if err != nil {
		return fmt.Errorf("failed to archive completion of %s: %w", n.TimerID, err)
	}

	return nil
}

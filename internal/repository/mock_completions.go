package repository

import (
	"context"
	"sync"

	"github.com/nadmax/tempo/internal/repository/models"
)

type MockCompletionRepository struct {
	mu                     sync.Mutex
	RecordCompletionCalls  []models.Completion
	GetStatsCalls          []int
	Stats                  []models.CompletionStats
	Recent                 []models.RecentCompletion
	RecordCompletionError  error
	GetCompletionStatsErr  error
	GetRecentCompletionErr error
	Closed                 bool
}

var _ CompletionRepository = (*MockCompletionRepository)(nil)

func NewMockCompletionRepository() *MockCompletionRepository {
	return &MockCompletionRepository{
		Stats:  make([]models.CompletionStats, 0),
		Recent: make([]models.RecentCompletion, 0),
	}
}

func (m *MockCompletionRepository) RecordCompletion(ctx context.Context, c models.Completion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RecordCompletionCalls = append(m.RecordCompletionCalls, c)

	if m.RecordCompletionError != nil {
		return m.RecordCompletionError
	}

	m.Recent = append([]models.RecentCompletion{{
		ID:          int64(len(m.RecordCompletionCalls)),
		TimerID:     c.TimerID,
		Name:        c.Name,
		Category:    c.Category,
		DurationS:   c.DurationS,
		CompletedAt: c.CompletedAt,
	}}, m.Recent...)

	return nil
}

func (m *MockCompletionRepository) GetCompletionStats(ctx context.Context, hours int) ([]models.CompletionStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetStatsCalls = append(m.GetStatsCalls, hours)

	if m.GetCompletionStatsErr != nil {
		return nil, m.GetCompletionStatsErr
	}

	return m.Stats, nil
}

func (m *MockCompletionRepository) GetRecentCompletions(ctx context.Context, limit int) ([]models.RecentCompletion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetRecentCompletionErr != nil {
		return nil, m.GetRecentCompletionErr
	}

	if len(m.Recent) > limit {
		return m.Recent[:limit], nil
	}

	return m.Recent, nil
}

func (m *MockCompletionRepository) GetCompletionsByCategory(ctx context.Context, category string, limit int) ([]models.RecentCompletion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetRecentCompletionErr != nil {
		return nil, m.GetRecentCompletionErr
	}

	var matched []models.RecentCompletion
	for _, c := range m.Recent {
		if c.Category == category {
			matched = append(matched, c)
		}
		if len(matched) == limit {
			break
		}
	}

	return matched, nil
}

func (m *MockCompletionRepository) GetRecordCompletionCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.RecordCompletionCalls)
}

func (m *MockCompletionRepository) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Closed = true
	return nil
}

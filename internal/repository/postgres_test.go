package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nadmax/tempo/internal/repository/models"
	"github.com/nadmax/tempo/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresCompletionRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewPostgresCompletionRepository(db)
	return db, mock, repo
}

func TestOpen(t *testing.T) {
	t.Run("successful connection", func(t *testing.T) {
		t.Skip("Integration test - requires real database")
	})

	t.Run("connection failure", func(t *testing.T) {
		_, err := Open("invalid connection string")
		assert.Error(t, err)
	})
}

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	t.Run("applies schema", func(t *testing.T) {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS tempo_documents").
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, EnsureSchema(context.Background(), db))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("schema failure", func(t *testing.T) {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS tempo_documents").
			WillReturnError(errors.New("permission denied"))

		err := EnsureSchema(context.Background(), db)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to apply schema")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRecordCompletion(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	now := time.Now()

	t.Run("successful insert", func(t *testing.T) {
		c := models.Completion{
			TimerID:     "timer-1",
			Name:        "Plank",
			Category:    "Workout",
			DurationS:   60,
			CompletedAt: now,
		}

		mock.ExpectExec("INSERT INTO timer_completions").
			WithArgs(c.TimerID, c.Name, c.Category, c.DurationS, c.CompletedAt).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := repo.RecordCompletion(ctx, c)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero completion time defaults to now", func(t *testing.T) {
		c := models.Completion{TimerID: "timer-2", Name: "Tea", Category: "Kitchen", DurationS: 180}

		mock.ExpectExec("INSERT INTO timer_completions").
			WithArgs(c.TimerID, c.Name, c.Category, c.DurationS, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(2, 1))

		err := repo.RecordCompletion(ctx, c)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO timer_completions").
			WillReturnError(errors.New("connection reset"))

		err := repo.RecordCompletion(ctx, models.Completion{TimerID: "x", CompletedAt: now})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetCompletionStats(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	now := time.Now()

	t.Run("stats for last 24 hours", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{
			"category", "count", "total_duration_s", "avg_duration_s", "last_completion",
		}).
			AddRow("Kitchen", 2, 360, 180.0, now).
			AddRow("Workout", 3, 90, 30.0, now)

		mock.ExpectQuery("SELECT.*FROM timer_completions").
			WithArgs(24).
			WillReturnRows(rows)

		stats, err := repo.GetCompletionStats(ctx, 24)
		require.NoError(t, err)
		require.Len(t, stats, 2)
		assert.Equal(t, "Kitchen", stats[0].Category)
		assert.Equal(t, 2, stats[0].Count)
		assert.Equal(t, 360, stats[0].TotalDurationS)
		assert.Equal(t, 30.0, stats[1].AvgDurationS)
		assert.NotNil(t, stats[1].LastCompletion)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no stats available", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{
			"category", "count", "total_duration_s", "avg_duration_s", "last_completion",
		})

		mock.ExpectQuery("SELECT.*FROM timer_completions").
			WithArgs(1).
			WillReturnRows(rows)

		stats, err := repo.GetCompletionStats(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, stats)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		mock.ExpectQuery("SELECT.*FROM timer_completions").
			WithArgs(24).
			WillReturnError(errors.New("timeout"))

		_, err := repo.GetCompletionStats(ctx, 24)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetRecentCompletions(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	now := time.Now()

	t.Run("recent completions", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{
			"id", "timer_id", "name", "category", "duration_s", "completed_at",
		}).
			AddRow(2, "timer-2", "Rice", "Kitchen", 900, now).
			AddRow(1, "timer-1", "Plank", "Workout", 60, now.Add(-time.Minute))

		mock.ExpectQuery("SELECT.*FROM timer_completions.*ORDER BY completed_at DESC").
			WithArgs(10).
			WillReturnRows(rows)

		completions, err := repo.GetRecentCompletions(ctx, 10)
		require.NoError(t, err)
		require.Len(t, completions, 2)
		assert.Equal(t, int64(2), completions[0].ID)
		assert.Equal(t, "Rice", completions[0].Name)
		assert.Equal(t, "Workout", completions[1].Category)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetCompletionsByCategory(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer func() { _ = db.Close() }()

	ctx := context.Background()

	t.Run("filters by category", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{
			"id", "timer_id", "name", "category", "duration_s", "completed_at",
		}).AddRow(5, "timer-5", "Squats", "Workout", 45, time.Now())

		mock.ExpectQuery("SELECT.*FROM timer_completions.*WHERE category").
			WithArgs("Workout", 5).
			WillReturnRows(rows)

		completions, err := repo.GetCompletionsByCategory(ctx, "Workout", 5)
		require.NoError(t, err)
		require.Len(t, completions, 1)
		assert.Equal(t, "Squats", completions[0].Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDBAndClose(t *testing.T) {
	t.Run("DB returns database instance", func(t *testing.T) {
		db, _, repo := setupMockDB(t)
		defer func() { _ = db.Close() }()

		assert.Equal(t, db, repo.DB())
	})

	t.Run("Close closes database connection", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)
		mock.ExpectClose()

		assert.NoError(t, repo.Close())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresDocumentStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresDocumentStore(db)
	ctx := context.Background()

	t.Run("get existing document", func(t *testing.T) {
		mock.ExpectQuery("SELECT value FROM tempo_documents WHERE key").
			WithArgs(store.TimersKey).
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`[]`)))

		data, err := s.Get(ctx, store.TimersKey)
		require.NoError(t, err)
		assert.Equal(t, []byte(`[]`), data)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get missing document", func(t *testing.T) {
		mock.ExpectQuery("SELECT value FROM tempo_documents WHERE key").
			WithArgs(store.HistoryKey).
			WillReturnError(sql.ErrNoRows)

		_, err := s.Get(ctx, store.HistoryKey)
		assert.True(t, errors.Is(err, store.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("set upserts document", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO tempo_documents.*ON CONFLICT").
			WithArgs(store.TimersKey, []byte(`[{"id":"1"}]`)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := s.Set(ctx, store.TimersKey, []byte(`[{"id":"1"}]`))
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete document", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM tempo_documents WHERE key").
			WithArgs(store.HistoryKey).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, s.Delete(ctx, store.HistoryKey))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("documents round trip through the codec", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO tempo_documents").
			WithArgs(store.HistoryKey, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		docs := store.NewDocuments(s, nil)
		require.NoError(t, docs.Save(ctx, store.HistoryKey, []string{"a"}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMockCompletionRepository(t *testing.T) {
	m := NewMockCompletionRepository()
	ctx := context.Background()

	require.NoError(t, m.RecordCompletion(ctx, models.Completion{TimerID: "1", Category: "A"}))
	require.NoError(t, m.RecordCompletion(ctx, models.Completion{TimerID: "2", Category: "B"}))

	assert.Equal(t, 2, m.GetRecordCompletionCallCount())

	recent, err := m.GetRecentCompletions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "2", recent[0].TimerID)

	byCategory, err := m.GetCompletionsByCategory(ctx, "A", 10)
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "1", byCategory[0].TimerID)
}

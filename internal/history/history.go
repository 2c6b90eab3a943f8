// Package history keeps the newest-first log of completed timers.
package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nadmax/tempo/internal/store"
)

type Entry struct {
	TimerID     string    `json:"timerId,omitempty" cbor:"timerId,omitempty"`
	Name        string    `json:"name" cbor:"name"`
	Category    string    `json:"category,omitempty" cbor:"category,omitempty"`
	CompletedAt time.Time `json:"completedAt" cbor:"completedAt"`
}

type Log struct {
	mu      sync.Mutex
	docs    *store.Documents
	entries []Entry
	logger  *slog.Logger
}

func NewLog(docs *store.Documents, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{
		docs:    docs,
		entries: []Entry{},
		logger:  logger,
	}
}

// Load replaces the in-memory log with the persisted one. A missing document
// yields an empty log.
func (l *Log) Load(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	if _, err := l.docs.Load(ctx, store.HistoryKey, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []Entry{}
	}

	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()

	return copyEntries(entries), nil
}

// Append inserts entry at the front and persists the whole log. The entry is
// kept in memory even when the write fails.
func (l *Log) Append(ctx context.Context, entry Entry) error {
	if entry.CompletedAt.IsZero() {
		entry.CompletedAt = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append([]Entry{entry}, l.entries...)
	return l.persistLocked(ctx)
}

func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = []Entry{}
	return l.persistLocked(ctx)
}

func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	return copyEntries(l.entries)
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}

func (l *Log) persistLocked(ctx context.Context) error {
	if err := l.docs.Save(ctx, store.HistoryKey, l.entries); err != nil {
		l.logger.Error("failed to persist history", "entries", len(l.entries), "error", err)
		return err
	}
	return nil
}

func copyEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

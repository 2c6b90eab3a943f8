// Package registry owns every timer while the engine runs. All mutations, the
// per-timer drivers' ticks included, are serialized by a single lock and written
// through to the store as one document.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/nadmax/tempo/internal/history"
	"github.com/nadmax/tempo/internal/metrics"
	"github.com/nadmax/tempo/internal/notify"
	"github.com/nadmax/tempo/internal/scheduler"
	"github.com/nadmax/tempo/internal/store"
	"github.com/nadmax/tempo/internal/timer"
)

var ErrTimerNotFound = errors.New("timer not found")

// PersistenceError reports a failed document write. The in-memory change that
// triggered the write has already been applied when it is returned.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: failed to persist %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

type Option func(*Registry)

func WithNotifier(n notify.Notifier) Option {
	return func(r *Registry) {
		r.notifier = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithPersistErrorHandler registers a callback used to tell the user that a
// save may not have persisted. It is never called with the lock held.
func WithPersistErrorHandler(fn func(error)) Option {
	return func(r *Registry) {
		r.onPersistError = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

type Registry struct {
	mu             sync.Mutex
	docs           *store.Documents
	scheduler      *scheduler.Scheduler
	history        *history.Log
	notifier       notify.Notifier
	logger         *slog.Logger
	onPersistError func(error)
	now            func() time.Time

	timers []*timer.Timer
	index  map[string]*timer.Timer
	runs   map[string]uint64
}

func New(docs *store.Documents, sched *scheduler.Scheduler, hist *history.Log, opts ...Option) *Registry {
	r := &Registry{
		docs:      docs,
		scheduler: sched,
		history:   hist,
		now:       time.Now,
		index:     make(map[string]*timer.Timer),
		runs:      make(map[string]uint64),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.notifier == nil {
		r.notifier = notify.NewLogNotifier(r.logger)
	}

	return r
}

// Load restores the timer list from the store. Timers saved while running come
// back paused because no driver survives a restart; the repaired list is
// written back so the document matches memory.
func (r *Registry) Load(ctx context.Context) ([]timer.Timer, error) {
	var stored []timer.Timer
	if _, err := r.docs.Load(ctx, store.TimersKey, &stored); err != nil {
		return nil, &PersistenceError{Op: "load", Key: store.TimersKey, Err: err}
	}

	r.mu.Lock()
	for id := range r.runs {
		r.scheduler.Stop(id)
	}
	r.runs = make(map[string]uint64)
	r.timers = nil
	r.index = make(map[string]*timer.Timer)

	repaired := false
	for i := range stored {
		t := stored[i]
		before := t

		if t.ID == "" || r.index[t.ID] != nil {
			r.logger.Warn("reassigning timer id", "name", t.Name, "id", t.ID)
			t.ID = r.freshIDLocked()
		}
		t.Normalize()

		if t != before {
			repaired = true
			if before.Status == timer.StatusRunning {
				r.logger.Info("timer was running at shutdown, loaded as paused",
					"timer_id", t.ID, "remaining", t.Remaining)
			}
		}

		r.timers = append(r.timers, &t)
		r.index[t.ID] = &t
	}

	var err error
	if repaired {
		err = r.persistLocked(ctx, "normalize")
	}
	loaded := r.snapshotLocked()
	r.mu.Unlock()

	r.logger.Info("timers loaded", "count", len(loaded), "repaired", repaired)
	metrics.UpdateTimerGauges(loaded)

	return loaded, r.reportPersistError(err)
}

func (r *Registry) Create(ctx context.Context, name, category string, duration int, halfwayAlert bool) (timer.Timer, error) {
	t, err := timer.New(name, category, duration, halfwayAlert)
	if err != nil {
		return timer.Timer{}, err
	}

	err = r.mutate(ctx, "create", func() (bool, error) {
		for r.index[t.ID] != nil {
			t.ID = timer.NewID()
		}
		r.timers = append(r.timers, t)
		r.index[t.ID] = t
		return true, nil
	})

	metrics.RecordTimerCreated(t.Category)
	r.logger.Info("timer created", "timer_id", t.ID, "name", t.Name, "category", t.Category, "duration", t.Duration)

	return *t, err
}

// CreateFromInput validates a duration typed by the user before creating the timer.
func (r *Registry) CreateFromInput(ctx context.Context, name, category, duration string, halfwayAlert bool) (timer.Timer, error) {
	seconds, err := timer.ParseDuration(duration)
	if err != nil {
		return timer.Timer{}, err
	}

	return r.Create(ctx, name, category, seconds, halfwayAlert)
}

// Start is a no-op for timers that are already running or completed.
func (r *Registry) Start(ctx context.Context, id string) error {
	return r.mutate(ctx, "start", func() (bool, error) {
		t, ok := r.index[id]
		if !ok {
			return false, ErrTimerNotFound
		}
		return r.startLocked(t), nil
	})
}

// Pause is a no-op unless the timer is running.
func (r *Registry) Pause(ctx context.Context, id string) error {
	return r.mutate(ctx, "pause", func() (bool, error) {
		t, ok := r.index[id]
		if !ok {
			return false, ErrTimerNotFound
		}
		return r.pauseLocked(t), nil
	})
}

func (r *Registry) Reset(ctx context.Context, id string) error {
	return r.mutate(ctx, "reset", func() (bool, error) {
		t, ok := r.index[id]
		if !ok {
			return false, ErrTimerNotFound
		}
		r.resetLocked(t)
		return true, nil
	})
}

func (r *Registry) Delete(ctx context.Context, id string) error {
	return r.mutate(ctx, "delete", func() (bool, error) {
		t, ok := r.index[id]
		if !ok {
			return false, ErrTimerNotFound
		}

		r.stopDriverLocked(id)
		delete(r.index, id)
		r.timers = slices.DeleteFunc(r.timers, func(other *timer.Timer) bool {
			return other.ID == id
		})

		metrics.RecordTransition("delete", t.Category)
		r.logger.Info("timer deleted", "timer_id", id, "name", t.Name)
		return true, nil
	})
}

// StartAll starts every paused timer in category and returns how many started.
func (r *Registry) StartAll(ctx context.Context, category string) (int, error) {
	return r.bulk(ctx, "start_all", category, r.startLocked)
}

// PauseAll pauses every running timer in category and returns how many paused.
func (r *Registry) PauseAll(ctx context.Context, category string) (int, error) {
	return r.bulk(ctx, "pause_all", category, r.pauseLocked)
}

// ResetAll resets every timer in category whatever its state.
func (r *Registry) ResetAll(ctx context.Context, category string) (int, error) {
	return r.bulk(ctx, "reset_all", category, func(t *timer.Timer) bool {
		r.resetLocked(t)
		return true
	})
}

func (r *Registry) bulk(ctx context.Context, op, category string, apply func(*timer.Timer) bool) (int, error) {
	affected := 0
	err := r.mutate(ctx, op, func() (bool, error) {
		for _, t := range r.timers {
			if t.Category == category && apply(t) {
				affected++
			}
		}
		return affected > 0, nil
	})

	r.logger.Info("bulk operation applied", "op", op, "category", category, "affected", affected)
	return affected, err
}

func (r *Registry) Get(id string) (timer.Timer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.index[id]
	if !ok {
		return timer.Timer{}, ErrTimerNotFound
	}
	return *t, nil
}

func (r *Registry) List() []timer.Timer {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshotLocked()
}

func (r *Registry) Groups() []timer.Group {
	return timer.GroupByCategory(r.List())
}

func (r *Registry) ActiveDrivers() int {
	return r.scheduler.Len()
}

func (r *Registry) History() *history.Log {
	return r.history
}

// Close stops every driver. Timers left running are restored as paused by the
// next Load.
func (r *Registry) Close() {
	r.mu.Lock()
	r.runs = make(map[string]uint64)
	r.mu.Unlock()

	r.scheduler.StopAll()
	metrics.UpdateActiveDrivers(0)
}

func (r *Registry) startLocked(t *timer.Timer) bool {
	if !t.Status.CanStart() || t.Remaining <= 0 {
		return false
	}

	id := t.ID
	t.Status = timer.StatusRunning
	r.runs[id] = r.scheduler.Start(id, func(run uint64) {
		r.tick(id, run)
	})

	metrics.RecordTransition("start", t.Category)
	metrics.UpdateActiveDrivers(r.scheduler.Len())
	return true
}

func (r *Registry) pauseLocked(t *timer.Timer) bool {
	if !t.Status.CanPause() {
		return false
	}

	r.stopDriverLocked(t.ID)
	t.Status = timer.StatusPaused

	metrics.RecordTransition("pause", t.Category)
	return true
}

func (r *Registry) resetLocked(t *timer.Timer) {
	r.stopDriverLocked(t.ID)
	t.Reset()

	metrics.RecordTransition("reset", t.Category)
}

func (r *Registry) stopDriverLocked(id string) {
	if _, ok := r.runs[id]; !ok {
		return
	}
	delete(r.runs, id)
	r.scheduler.Stop(id)
	metrics.UpdateActiveDrivers(r.scheduler.Len())
}

// tick is the body of every driver. The run token must still be the timer's
// current run; anything else is a tick that raced with pause, reset or delete.
func (r *Registry) tick(id string, run uint64) {
	ctx := context.Background()

	r.mu.Lock()
	t, ok := r.index[id]
	current, running := r.runs[id]
	if !ok || !running || current != run {
		r.mu.Unlock()
		metrics.RecordStaleTick()
		return
	}

	result := t.Tick()
	if !result.Advanced {
		r.mu.Unlock()
		metrics.RecordStaleTick()
		return
	}
	metrics.RecordTick()

	now := r.now()
	var events []notify.Notification
	var completed *history.Entry

	if result.Halfway {
		metrics.RecordHalfwayAlert(t.Category)
		events = append(events, r.notificationLocked(t, notify.KindHalfway, now))
	}

	if result.Completed {
		delete(r.runs, id)
		r.scheduler.StopRun(id, run)
		metrics.UpdateActiveDrivers(r.scheduler.Len())
		metrics.RecordTimerCompleted(t.Category)

		completed = &history.Entry{
			TimerID:     t.ID,
			Name:        t.Name,
			Category:    t.Category,
			CompletedAt: now,
		}
		events = append(events, r.notificationLocked(t, notify.KindCompletion, now))
		r.logger.Info("timer completed", "timer_id", t.ID, "name", t.Name)
	}

	err := r.persistLocked(ctx, "tick")

	// History is appended before unlocking so entries land in completion order.
	var histErr error
	if completed != nil {
		histErr = r.appendHistoryLocked(ctx, *completed)
	}
	r.mu.Unlock()

	_ = r.reportPersistError(err)
	_ = r.reportPersistError(histErr)

	r.dispatch(ctx, events)
}

func (r *Registry) notificationLocked(t *timer.Timer, kind notify.Kind, at time.Time) notify.Notification {
	return notify.Notification{
		Kind:      kind,
		TimerID:   t.ID,
		TimerName: t.Name,
		Category:  t.Category,
		Duration:  t.Duration,
		At:        at,
	}
}

func (r *Registry) appendHistoryLocked(ctx context.Context, entry history.Entry) error {
	start := time.Now()
	err := r.history.Append(ctx, entry)
	metrics.RecordPersist("history", time.Since(start), err)
	metrics.UpdateHistoryEntries(r.history.Len())

	if err != nil {
		return &PersistenceError{Op: "history", Key: store.HistoryKey, Err: err}
	}
	return nil
}

func (r *Registry) dispatch(ctx context.Context, events []notify.Notification) {
	for _, n := range events {
		if err := r.notifier.Notify(ctx, n); err != nil {
			metrics.RecordNotificationFailure(string(n.Kind))
			r.logger.Error("failed to deliver notification", "kind", n.Kind, "timer_id", n.TimerID, "error", err)
		}
	}
}

// mutate runs fn under the lock and persists the list when fn reports a change.
func (r *Registry) mutate(ctx context.Context, op string, fn func() (bool, error)) error {
	r.mu.Lock()
	changed, err := fn()
	if err != nil || !changed {
		r.mu.Unlock()
		return err
	}

	err = r.persistLocked(ctx, op)
	timers := r.snapshotLocked()
	r.mu.Unlock()

	metrics.UpdateTimerGauges(timers)
	return r.reportPersistError(err)
}

func (r *Registry) persistLocked(ctx context.Context, op string) error {
	start := time.Now()
	err := r.docs.Save(ctx, store.TimersKey, r.snapshotLocked())
	metrics.RecordPersist("timers", time.Since(start), err)

	if err != nil {
		return &PersistenceError{Op: op, Key: store.TimersKey, Err: err}
	}
	return nil
}

func (r *Registry) reportPersistError(err error) error {
	if err == nil {
		return nil
	}

	r.logger.Error("save may not have persisted", "error", err)
	if r.onPersistError != nil {
		r.onPersistError(err)
	}
	return err
}

func (r *Registry) snapshotLocked() []timer.Timer {
	out := make([]timer.Timer, len(r.timers))
	for i, t := range r.timers {
		out[i] = *t
	}
	return out
}

func (r *Registry) freshIDLocked() string {
	id := timer.NewID()
	for r.index[id] != nil {
		id = timer.NewID()
	}
	return id
}

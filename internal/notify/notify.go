// Package notify delivers halfway and completion events to the user through
// pluggable sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type Kind string

const (
	KindHalfway    Kind = "halfway"
	KindCompletion Kind = "completion"
)

type Notification struct {
	Kind      Kind      `json:"kind"`
	TimerID   string    `json:"timer_id"`
	TimerName string    `json:"timer_name"`
	Category  string    `json:"category"`
	Duration  int       `json:"duration"`
	At        time.Time `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Title and Message mirror the alerts shown by the mobile client.
func (n Notification) Title() string {
	switch n.Kind {
	case KindHalfway:
		return "Halfway There!"
	case KindCompletion:
		return "Timer Complete!"
	default:
		return "Timer update"
	}
}

func (n Notification) Message() string {
	switch n.Kind {
	case KindHalfway:
		return fmt.Sprintf("%s is 50%% complete.", n.TimerName)
	case KindCompletion:
		return fmt.Sprintf("%s is done!", n.TimerName)
	default:
		return n.TimerName
	}
}

type Func func(ctx context.Context, n Notification) error

func (f Func) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	l.logger.InfoContext(ctx, n.Message(),
		"kind", n.Kind,
		"timer_id", n.TimerID,
		"timer_name", n.TimerName,
		"category", n.Category,
	)
	return nil
}

// Only forwards notifications of the given kinds.
func Only(next Notifier, kinds ...Kind) Notifier {
	allowed := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}

	return Func(func(ctx context.Context, n Notification) error {
		if !allowed[n.Kind] {
			return nil
		}
		return next.Notify(ctx, n)
	})
}

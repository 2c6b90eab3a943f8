// Package timer defines the countdown timer domain model shared by the registry,
// the scheduler and the persistence layers. It contains the status state machine,
// input validation and category grouping.
package timer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type (
	Status string
	Timer  struct {
		ID               string    `json:"id" cbor:"id"`
		Name             string    `json:"name" cbor:"name"`
		Category         string    `json:"category" cbor:"category"`
		Duration         int       `json:"duration" cbor:"duration"`
		Remaining        int       `json:"remaining" cbor:"remaining"`
		Status           Status    `json:"status" cbor:"status"`
		HalfwayAlert     bool      `json:"halfwayAlert" cbor:"halfwayAlert"`
		HalfwayTriggered bool      `json:"halfwayTriggered" cbor:"halfwayTriggered"`
		CreatedAt        time.Time `json:"createdAt" cbor:"createdAt"`
	}
)

const (
	StatusPaused    Status = "Paused"
	StatusRunning   Status = "Running"
	StatusCompleted Status = "Completed"
)

// ValidationError reports user input that cannot become a timer.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TickResult describes the thresholds crossed by a single decrement.
type TickResult struct {
	Advanced  bool
	Halfway   bool
	Completed bool
}

func New(name, category string, duration int, halfwayAlert bool) (*Timer, error) {
	name = strings.TrimSpace(name)
	category = strings.TrimSpace(category)

	if err := Validate(name, category, duration); err != nil {
		return nil, err
	}

	return &Timer{
		ID:           NewID(),
		Name:         name,
		Category:     category,
		Duration:     duration,
		Remaining:    duration,
		Status:       StatusPaused,
		HalfwayAlert: halfwayAlert,
		CreatedAt:    time.Now(),
	}, nil
}

func NewID() string {
	return uuid.New().String()
}

func Validate(name, category string, duration int) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(category) == "" {
		return &ValidationError{Field: "category", Reason: "must not be empty"}
	}
	if duration <= 0 {
		return &ValidationError{Field: "duration", Reason: "must be a positive number of seconds"}
	}

	return nil
}

// ParseDuration converts user-entered seconds into a duration value.
func ParseDuration(input string) (int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, &ValidationError{Field: "duration", Reason: "must not be empty"}
	}

	seconds, err := strconv.Atoi(input)
	if err != nil {
		return 0, &ValidationError{Field: "duration", Reason: fmt.Sprintf("%q is not a whole number of seconds", input)}
	}
	if seconds <= 0 {
		return 0, &ValidationError{Field: "duration", Reason: "must be a positive number of seconds"}
	}

	return seconds, nil
}

func (s Status) CanStart() bool {
	return s == StatusPaused
}

func (s Status) CanPause() bool {
	return s == StatusRunning
}

func (s Status) Valid() bool {
	switch s {
	case StatusPaused, StatusRunning, StatusCompleted:
		return true
	}
	return false
}

// HalfwayMark is the remaining value at which the halfway alert fires.
func (t *Timer) HalfwayMark() int {
	return t.Duration / 2
}

// Tick advances a running timer by one second. It is a no-op for any timer
// that is not running or has nothing left.
func (t *Timer) Tick() TickResult {
	if t.Status != StatusRunning || t.Remaining <= 0 {
		return TickResult{}
	}

	t.Remaining--
	result := TickResult{Advanced: true}

	if t.Remaining == t.HalfwayMark() && !t.HalfwayTriggered && t.HalfwayAlert {
		t.HalfwayTriggered = true
		result.Halfway = true
	}

	if t.Remaining == 0 {
		t.Status = StatusCompleted
		result.Completed = true
	}

	return result
}

func (t *Timer) Reset() {
	t.Remaining = t.Duration
	t.Status = StatusPaused
	t.HalfwayTriggered = false
}

// Normalize repairs a timer read from storage so that the model invariants
// hold and no timer claims to be running without a driver.
func (t *Timer) Normalize() {
	if t.Remaining < 0 {
		t.Remaining = 0
	}
	if t.Remaining > t.Duration {
		t.Remaining = t.Duration
	}
	if !t.HalfwayAlert {
		t.HalfwayTriggered = false
	}

	switch {
	case t.Remaining == 0 && t.Duration > 0:
		t.Status = StatusCompleted
	case t.Status == StatusRunning, t.Status == StatusCompleted, !t.Status.Valid():
		t.Status = StatusPaused
	}
}

// Progress is the fraction of the duration still remaining.
func (t *Timer) Progress() float64 {
	if t.Duration <= 0 {
		return 0
	}
	return float64(t.Remaining) / float64(t.Duration)
}

// Percent is Progress rounded to a whole percentage.
func (t *Timer) Percent() int {
	return int(math.Round(t.Progress() * 100))
}

// FormatClock renders seconds as m:ss.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

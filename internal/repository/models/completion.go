// Package models contains data structures used by the completion repository layer.
package models

import "time"

type Completion struct {
	TimerID     string    `json:"timer_id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	DurationS   int       `json:"duration_s"`
	CompletedAt time.Time `json:"completed_at"`
}

type CompletionStats struct {
	Category       string     `json:"category"`
	Count          int        `json:"count"`
	TotalDurationS int        `json:"total_duration_s"`
	AvgDurationS   float64    `json:"avg_duration_s"`
	LastCompletion *time.Time `json:"last_completion,omitempty"`
}

type RecentCompletion struct {
	ID          int64     `json:"id"`
	TimerID     string    `json:"timer_id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	DurationS   int       `json:"duration_s"`
	CompletedAt time.Time `json:"completed_at"`
}

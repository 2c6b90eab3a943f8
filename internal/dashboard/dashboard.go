// Package dashboard implements the monitoring endpoints for timer state and completions.
package dashboard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nadmax/tempo/internal/httputil"
	"github.com/nadmax/tempo/internal/registry"
	"github.com/nadmax/tempo/internal/repository"
	"github.com/nadmax/tempo/internal/repository/models"
	"github.com/nadmax/tempo/internal/timer"
)

const (
	defaultLimit = 50
	maxLimit     = 500
	defaultHours = 24
)

type Dashboard struct {
	registry    *registry.Registry
	completions repository.CompletionRepository
}

type Stats struct {
	TotalTimers      int            `json:"total_timers"`
	PausedTimers     int            `json:"paused_timers"`
	RunningTimers    int            `json:"running_timers"`
	CompletedTimers  int            `json:"completed_timers"`
	TimersByCategory map[string]int `json:"timers_by_category"`
	ActiveDrivers    int            `json:"active_drivers"`
	SecondsRemaining int            `json:"seconds_remaining"`
	HistoryEntries   int            `json:"history_entries"`
	CompletedToday   int            `json:"completed_today"`
	LastUpdated      time.Time      `json:"last_updated"`
}

// NewDashboard builds the dashboard. completions may be nil, in which case
// completion queries are answered from the in-memory history.
func NewDashboard(reg *registry.Registry, completions repository.CompletionRepository) *Dashboard {
	return &Dashboard{registry: reg, completions: completions}
}

func (d *Dashboard) Compute() Stats {
	timers := d.registry.List()
	now := time.Now()

	stats := Stats{
		TotalTimers:      len(timers),
		TimersByCategory: make(map[string]int),
		ActiveDrivers:    d.registry.ActiveDrivers(),
		LastUpdated:      now,
	}

	for _, t := range timers {
		switch t.Status {
		case timer.StatusPaused:
			stats.PausedTimers++
		case timer.StatusRunning:
			stats.RunningTimers++
			stats.SecondsRemaining += t.Remaining
		case timer.StatusCompleted:
			stats.CompletedTimers++
		}

		stats.TimersByCategory[t.Category]++
	}

	entries := d.registry.History().Entries()
	stats.HistoryEntries = len(entries)

	cutoff := now.Add(-24 * time.Hour)
	for _, e := range entries {
		if e.CompletedAt.After(cutoff) {
			stats.CompletedToday++
		}
	}

	return stats
}

func (d *Dashboard) GetStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, d.Compute())
}

// GetCompletions lists recent completions, newest first, optionally for one category.
func (d *Dashboard) GetCompletions(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultLimit)
	if err != nil || limit <= 0 {
		httputil.WriteJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
		return
	}
	limit = min(limit, maxLimit)
	category := r.URL.Query().Get("category")

	if d.completions == nil {
		httputil.WriteJSON(w, http.StatusOK, d.historyCompletions(category, limit))
		return
	}

	var completions []models.RecentCompletion
	if category != "" {
		completions, err = d.completions.GetCompletionsByCategory(r.Context(), category, limit)
	} else {
		completions, err = d.completions.GetRecentCompletions(r.Context(), limit)
	}
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if completions == nil {
		completions = []models.RecentCompletion{}
	}

	httputil.WriteJSON(w, http.StatusOK, completions)
}

// GetCategoryStats reports archived completion counts and durations per category.
func (d *Dashboard) GetCategoryStats(w http.ResponseWriter, r *http.Request) {
	if d.completions == nil {
		httputil.WriteJSONError(w, "completion archive is not configured", http.StatusServiceUnavailable)
		return
	}

	hours, err := intParam(r, "hours", defaultHours)
	if err != nil || hours <= 0 {
		httputil.WriteJSONError(w, "hours must be a positive integer", http.StatusBadRequest)
		return
	}

	stats, err := d.completions.GetCompletionStats(r.Context(), hours)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if stats == nil {
		stats = []models.CompletionStats{}
	}

	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (d *Dashboard) historyCompletions(category string, limit int) []models.RecentCompletion {
	out := []models.RecentCompletion{}
	for _, e := range d.registry.History().Entries() {
		if category != "" && e.Category != category {
			continue
		}
		out = append(out, models.RecentCompletion{
			TimerID:     e.TimerID,
			Name:        e.Name,
			Category:    e.Category,
			CompletedAt: e.CompletedAt,
		})
		if len(out) == limit {
			break
		}
	}
	return out
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

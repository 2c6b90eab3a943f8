package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nadmax/tempo/internal/dashboard"
	"github.com/nadmax/tempo/internal/httputil"
	"github.com/nadmax/tempo/internal/registry"
	"github.com/nadmax/tempo/internal/report"
	"github.com/nadmax/tempo/internal/repository"
	"github.com/nadmax/tempo/internal/timer"
)

type API struct {
	registry *registry.Registry
	mux      *http.ServeMux
	logger   *slog.Logger
}

// CreateTimerRequest carries the user's input. Duration may be a JSON number
// or the text typed into a form; both go through the same validation.
type CreateTimerRequest struct {
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Duration     json.RawMessage `json:"duration"`
	HalfwayAlert bool            `json:"halfwayAlert"`
}

// TimerResponse adds the display fields to a timer: the percentage of the
// duration remaining and the remaining time as m:ss.
type TimerResponse struct {
	timer.Timer
	Progress int    `json:"progress"`
	Clock    string `json:"clock"`
	Warning  string `json:"warning,omitempty"`
}

func newTimerResponse(t timer.Timer, warning string) TimerResponse {
	return TimerResponse{
		Timer:    t,
		Progress: t.Percent(),
		Clock:    timer.FormatClock(t.Remaining),
		Warning:  warning,
	}
}

type BulkResponse struct {
	Category string `json:"category"`
	Action   string `json:"action"`
	Affected int    `json:"affected"`
	Warning  string `json:"warning,omitempty"`
}

type DeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
	Warning string `json:"warning,omitempty"`
}

type ClearHistoryResponse struct {
	Cleared int    `json:"cleared"`
	Warning string `json:"warning,omitempty"`
}

// NewAPI wires the HTTP routes. completions may be nil when no archive is configured.
func NewAPI(reg *registry.Registry, completions repository.CompletionRepository, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}

	api := &API{
		registry: reg,
		mux:      http.NewServeMux(),
		logger:   logger,
	}

	api.setupRoutes(dashboard.NewDashboard(reg, completions))
	return api
}

func (a *API) setupRoutes(dash *dashboard.Dashboard) {
	a.mux.HandleFunc("POST /api/timers", a.createTimer)
	a.mux.HandleFunc("GET /api/timers", a.listTimers)
	a.mux.HandleFunc("GET /api/timers/{id}", a.getTimer)
	a.mux.HandleFunc("DELETE /api/timers/{id}", a.deleteTimer)
	a.mux.HandleFunc("POST /api/timers/{id}/{action}", a.timerAction)

	a.mux.HandleFunc("GET /api/groups", a.listGroups)
	a.mux.HandleFunc("POST /api/categories/{category}/{action}", a.categoryAction)

	a.mux.HandleFunc("GET /api/history", a.listHistory)
	a.mux.HandleFunc("DELETE /api/history", a.clearHistory)
	a.mux.HandleFunc("GET /api/history/export", a.exportHistory)

	a.mux.HandleFunc("GET /api/dashboard/stats", dash.GetStats)
	a.mux.HandleFunc("GET /api/dashboard/completions", dash.GetCompletions)
	a.mux.HandleFunc("GET /api/dashboard/categories", dash.GetCategoryStats)

	a.mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *API) createTimer(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteJSONError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	defer func() {
		if err := r.Body.Close(); err != nil {
			a.logger.Warn("failed to close request body", "error", err)
		}
	}()

	var req CreateTimerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteJSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	duration, err := durationInput(req.Duration)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	created, err := a.registry.CreateFromInput(r.Context(), req.Name, req.Category, duration, req.HalfwayAlert)
	warning, ok := a.check(w, err)
	if !ok {
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, newTimerResponse(created, warning))
}

func (a *API) listTimers(w http.ResponseWriter, r *http.Request) {
	timers := a.registry.List()

	if category := r.URL.Query().Get("category"); category != "" {
		timers = timer.InCategory(timers, category)
	}

	resp := make([]TimerResponse, len(timers))
	for i, t := range timers {
		resp[i] = newTimerResponse(t, "")
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (a *API) getTimer(w http.ResponseWriter, r *http.Request) {
	t, err := a.registry.Get(r.PathValue("id"))
	if _, ok := a.check(w, err); !ok {
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newTimerResponse(t, ""))
}

func (a *API) deleteTimer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	warning, ok := a.check(w, a.registry.Delete(r.Context(), id))
	if !ok {
		return
	}

	httputil.WriteJSON(w, http.StatusOK, DeleteResponse{ID: id, Deleted: true, Warning: warning})
}

func (a *API) timerAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var err error
	switch action := r.PathValue("action"); action {
	case "start":
		err = a.registry.Start(r.Context(), id)
	case "pause":
		err = a.registry.Pause(r.Context(), id)
	case "reset":
		err = a.registry.Reset(r.Context(), id)
	default:
		httputil.WriteJSONError(w, fmt.Sprintf("unknown action: %s", action), http.StatusNotFound)
		return
	}

	warning, ok := a.check(w, err)
	if !ok {
		return
	}

	t, err := a.registry.Get(id)
	if _, ok := a.check(w, err); !ok {
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newTimerResponse(t, warning))
}

func (a *API) listGroups(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, a.registry.Groups())
}

func (a *API) categoryAction(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	action := r.PathValue("action")

	var (
		affected int
		err      error
	)
	switch action {
	case "start":
		affected, err = a.registry.StartAll(r.Context(), category)
	case "pause":
		affected, err = a.registry.PauseAll(r.Context(), category)
	case "reset":
		affected, err = a.registry.ResetAll(r.Context(), category)
	default:
		httputil.WriteJSONError(w, fmt.Sprintf("unknown action: %s", action), http.StatusNotFound)
		return
	}

	warning, ok := a.check(w, err)
	if !ok {
		return
	}

	httputil.WriteJSON(w, http.StatusOK, BulkResponse{
		Category: category,
		Action:   action,
		Affected: affected,
		Warning:  warning,
	})
}

func (a *API) listHistory(w http.ResponseWriter, r *http.Request) {
	entries := a.registry.History().Entries()

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httputil.WriteJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		entries = entries[:min(limit, len(entries))]
	}

	httputil.WriteJSON(w, http.StatusOK, entries)
}

func (a *API) clearHistory(w http.ResponseWriter, r *http.Request) {
	log := a.registry.History()
	cleared := log.Len()

	resp := ClearHistoryResponse{Cleared: cleared}
	if err := log.Clear(r.Context()); err != nil {
		a.logger.Error("failed to persist cleared history", "error", err)
		resp.Warning = warningText(err)
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (a *API) exportHistory(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = report.FormatCSV
	}
	if format != report.FormatCSV && format != report.FormatJSON {
		httputil.WriteJSONError(w, fmt.Sprintf("unsupported format: %s (available: csv, json)", format), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", report.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="tempo_history.%s"`, format))

	if err := report.Write(w, format, a.registry.History().Entries()); err != nil {
		a.logger.Error("failed to write history export", "format", format, "error", err)
	}
}

// check maps a registry error onto the response. A persistence failure is
// not fatal: the change was applied, so it comes back as a warning.
func (a *API) check(w http.ResponseWriter, err error) (string, bool) {
	if err == nil {
		return "", true
	}

	var verr *timer.ValidationError
	var perr *registry.PersistenceError

	switch {
	case errors.As(err, &perr):
		return warningText(err), true
	case errors.As(err, &verr):
		httputil.WriteJSONError(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, registry.ErrTimerNotFound):
		httputil.WriteJSONError(w, "Timer not found", http.StatusNotFound)
	default:
		a.logger.Error("request failed", "error", err)
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
	}

	return "", false
}

func warningText(err error) string {
	return "change applied but may not have been saved: " + err.Error()
}

func durationInput(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("invalid duration: %w", err)
		}
		return s, nil
	}

	return string(raw), nil
}

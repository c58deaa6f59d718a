package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/equilibrio-app/equilibrio-engine/internal/application/progression"
	"github.com/equilibrio-app/equilibrio-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// HealthChecker reports the readiness of a backing service.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// ProgressionHandler exposes the progression operations over HTTP.
type ProgressionHandler struct {
	facade *progression.Facade
	log    *logger.Logger
}

// NewProgressionHandler creates the handler set.
func NewProgressionHandler(facade *progression.Facade, log *logger.Logger) *ProgressionHandler {
	if log == nil {
		log = logger.Default()
	}
	return &ProgressionHandler{facade: facade, log: log.With(logger.Component("http"))}
}

// ─────────────────────────────────────────────────────────────────────────────
// Request bodies
// ─────────────────────────────────────────────────────────────────────────────

type completeActivityRequest struct {
	UserID        string `json:"user_id"`
	TrackSlug     string `json:"track_slug"`
	DayNumber     int    `json:"day_number"`
	ActivityIndex int    `json:"activity_index"`
}

type completeDayRequest struct {
	UserID    string `json:"user_id"`
	TrackSlug string `json:"track_slug"`
	DayNumber int    `json:"day_number"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Endpoints
// ─────────────────────────────────────────────────────────────────────────────

// CompleteActivity handles POST /api/v1/progression/activities/complete.
func (h *ProgressionHandler) CompleteActivity(w http.ResponseWriter, r *http.Request) {
	var req completeActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}

	resp := h.facade.CompleteActivity(r.Context(), req.UserID, req.TrackSlug, req.DayNumber, req.ActivityIndex)
	writeJSON(w, statusFor(resp.Code), resp)
}

// UncompleteActivity handles POST /api/v1/progression/activities/uncomplete.
func (h *ProgressionHandler) UncompleteActivity(w http.ResponseWriter, r *http.Request) {
	var req completeActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}

	resp := h.facade.UncompleteActivity(r.Context(), req.UserID, req.TrackSlug, req.DayNumber, req.ActivityIndex)
	writeJSON(w, statusFor(resp.Code), resp)
}

// CompleteDay handles POST /api/v1/progression/days/complete.
func (h *ProgressionHandler) CompleteDay(w http.ResponseWriter, r *http.Request) {
	var req completeDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}

	resp := h.facade.CompleteDay(r.Context(), req.UserID, req.TrackSlug, req.DayNumber)
	writeJSON(w, statusFor(resp.Code), resp)
}

// GetDayContent handles GET /api/v1/progression/tracks/{slug}/days/{day}/content.
func (h *ProgressionHandler) GetDayContent(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	slug := r.PathValue("slug")
	day, err := strconv.Atoi(r.PathValue("day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_day", "day must be an integer")
		return
	}

	resp := h.facade.GetDayContent(r.Context(), userID, slug, day)
	writeJSON(w, statusFor(resp.Code), resp)
}

// GetTrackState handles GET /api/v1/progression/tracks/{slug}/state.
func (h *ProgressionHandler) GetTrackState(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	slug := r.PathValue("slug")

	resp := h.facade.GetTrackState(r.Context(), userID, slug)
	writeJSON(w, statusFor(resp.Code), resp)
}

// ─────────────────────────────────────────────────────────────────────────────
// Health
// ─────────────────────────────────────────────────────────────────────────────

// HealthHandler reports process and dependency health.
type HealthHandler struct {
	checkers map[string]HealthChecker
	started  time.Time
}

// NewHealthHandler creates a health endpoint over the given dependency
// checkers. Nil checkers are skipped.
func NewHealthHandler(checkers map[string]HealthChecker) *HealthHandler {
	filtered := make(map[string]HealthChecker, len(checkers))
	for name, c := range checkers {
		if c != nil {
			filtered[name] = c
		}
	}
	return &HealthHandler{checkers: filtered, started: time.Now()}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	type depStatus struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}

	deps := make(map[string]depStatus, len(h.checkers))
	healthy := true
	for name, c := range h.checkers {
		if err := c.Ping(r.Context()); err != nil {
			deps[name] = depStatus{Status: "down", Error: err.Error()}
			healthy = false
		} else {
			deps[name] = depStatus{Status: "up"}
		}
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	writeJSON(w, status, map[string]any{
		"status":       overall,
		"uptime":       time.Since(h.started).Round(time.Second).String(),
		"dependencies": deps,
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Response helpers
// ─────────────────────────────────────────────────────────────────────────────

// statusFor maps a progression result code to an HTTP status.
func statusFor(code progression.Code) int {
	switch code {
	case progression.CodeOK, progression.CodeAlreadyCompleted:
		return http.StatusOK
	case progression.CodeIncompleteDay, progression.CodeConflict:
		return http.StatusConflict
	case progression.CodeInvalidArgument:
		return http.StatusBadRequest
	case progression.CodeNotFound:
		return http.StatusNotFound
	case progression.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

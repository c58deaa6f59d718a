package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equilibrio-app/equilibrio-engine/internal/application/command"
	"github.com/equilibrio-app/equilibrio-engine/internal/application/progression"
	"github.com/equilibrio-app/equilibrio-engine/internal/application/query"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/personalization"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/progress/progresstest"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/shared"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
)

type nopPublisher struct{}

func (nopPublisher) Publish(shared.Event) error { return nil }

type staticContent struct{}

func (staticContent) GetDailyTemplate(_ context.Context, slug track.Slug, day int) (*track.DailyTemplate, error) {
	return &track.DailyTemplate{
		TrackSlug: slug,
		DayNumber: day,
		Title:     "Primer paso",
		MaxPoints: 50,
		Activities: []track.Activity{
			{Title: "Respiración", Points: 20, Required: true},
			{Title: "Diario", Points: 10},
		},
	}, nil
}

func (staticContent) GetRules(context.Context, track.Slug, int) ([]personalization.Rule, error) {
	return nil, nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestServer(t *testing.T, checkers map[string]HealthChecker) *Server {
	t.Helper()
	catalog, err := track.NewCatalog([]track.Definition{
		{Slug: "reinicio", Title: "Reinicio", DurationDays: 7, LevelPointQuantum: 100},
	})
	require.NoError(t, err)

	repo := progresstest.NewRepository()
	content := staticContent{}
	resolver := personalization.NewResolver(catalog, content, content, nil)
	bus := nopPublisher{}

	facade := progression.NewFacade(
		command.NewCompleteActivityHandler(catalog, repo, resolver, bus),
		command.NewCompleteDayHandler(catalog, repo, resolver, nil, bus, nil),
		command.NewUncompleteActivityHandler(catalog, repo, bus),
		query.NewGetDayContentHandler(resolver),
		query.NewGetTrackStateHandler(catalog, repo, resolver),
		nil,
		nil,
	)

	return NewServer(DefaultConfig(), Dependencies{
		Facade:         facade,
		HealthCheckers: checkers,
	})
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

func TestServer_CompleteActivityEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	body := `{"user_id":"user-1","track_slug":"reinicio","day_number":1,"activity_index":0}`

	rec, resp := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/progression/activities/complete", body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp["code"])
	assert.Equal(t, true, resp["accepted"])
	assert.Equal(t, float64(20), resp["points_earned"])

	// Duplicate stays 200 but reports already_completed.
	rec, resp = doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/progression/activities/complete", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "already_completed", resp["code"])
	assert.Equal(t, false, resp["accepted"])
	assert.Equal(t, float64(20), resp["points_earned"])
}

func TestServer_CompleteDayEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	// Required activity missing: 409 incomplete_day.
	rec, resp := doJSON(t, h, http.MethodPost, "/api/v1/progression/days/complete",
		`{"user_id":"user-1","track_slug":"reinicio","day_number":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code) // not enrolled yet
	assert.Equal(t, "not_found", resp["code"])

	_, _ = doJSON(t, h, http.MethodPost, "/api/v1/progression/activities/complete",
		`{"user_id":"user-1","track_slug":"reinicio","day_number":1,"activity_index":1}`)

	rec, resp = doJSON(t, h, http.MethodPost, "/api/v1/progression/days/complete",
		`{"user_id":"user-1","track_slug":"reinicio","day_number":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "incomplete_day", resp["code"])

	_, _ = doJSON(t, h, http.MethodPost, "/api/v1/progression/activities/complete",
		`{"user_id":"user-1","track_slug":"reinicio","day_number":1,"activity_index":0}`)

	rec, resp = doJSON(t, h, http.MethodPost, "/api/v1/progression/days/complete",
		`{"user_id":"user-1","track_slug":"reinicio","day_number":1}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp["code"])
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, float64(2), resp["new_day"])
}

func TestServer_GetDayContentEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, resp := doJSON(t, srv.Handler(), http.MethodGet,
		"/api/v1/progression/tracks/reinicio/days/1/content?user_id=user-1", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	content := resp["content"].(map[string]any)
	assert.Equal(t, "Primer paso", content["title"])
	assert.Equal(t, float64(50), content["max_points"])
}

func TestServer_GetTrackStateEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	rec, resp := doJSON(t, h, http.MethodGet, "/api/v1/progression/tracks/reinicio/state?user_id=user-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", resp["code"])

	_, _ = doJSON(t, h, http.MethodPost, "/api/v1/progression/activities/complete",
		`{"user_id":"user-1","track_slug":"reinicio","day_number":1,"activity_index":0}`)

	rec, resp = doJSON(t, h, http.MethodGet, "/api/v1/progression/tracks/reinicio/state?user_id=user-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	state := resp["state"].(map[string]any)
	assert.Equal(t, float64(1), state["current_day"])
	assert.Equal(t, float64(20), state["total_points"])

	content := state["current_day_content"].(map[string]any)
	assert.Equal(t, "Primer paso", content["title"])
	assert.Equal(t, float64(1), content["day_number"])
}

func TestServer_BadRequests(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	rec, _ := doJSON(t, h, http.MethodPost, "/api/v1/progression/activities/complete", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp := doJSON(t, h, http.MethodPost, "/api/v1/progression/activities/complete",
		`{"user_id":"","track_slug":"reinicio","day_number":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_argument", resp["code"])

	rec, _ = doJSON(t, h, http.MethodGet, "/api/v1/progression/tracks/reinicio/days/uno/content?user_id=u", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_AuthProtectsAPIButNotHealth(t *testing.T) {
	hash, err := HashToken("token-servicio")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.ServiceTokenHashes = []string{hash}

	catalog, err := track.NewCatalog(track.DefaultDefinitions())
	require.NoError(t, err)
	repo := progresstest.NewRepository()
	content := staticContent{}
	resolver := personalization.NewResolver(catalog, content, content, nil)

	facade := progression.NewFacade(
		command.NewCompleteActivityHandler(catalog, repo, resolver, nopPublisher{}),
		command.NewCompleteDayHandler(catalog, repo, resolver, nil, nopPublisher{}, nil),
		command.NewUncompleteActivityHandler(catalog, repo, nopPublisher{}),
		query.NewGetDayContentHandler(resolver),
		query.NewGetTrackStateHandler(catalog, repo, resolver),
		nil,
		nil,
	)
	srv := NewServer(cfg, Dependencies{Facade: facade})
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/progression/tracks/reinicio/state?user_id=u", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set("Authorization", "Bearer token-servicio")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code) // authenticated, user not enrolled

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Health(t *testing.T) {
	t.Run("all dependencies up", func(t *testing.T) {
		srv := newTestServer(t, map[string]HealthChecker{
			"postgres": pingFunc(func(context.Context) error { return nil }),
		})

		rec, resp := doJSON(t, srv.Handler(), http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "healthy", resp["status"])
	})

	t.Run("dependency down degrades", func(t *testing.T) {
		srv := newTestServer(t, map[string]HealthChecker{
			"postgres": pingFunc(func(context.Context) error { return nil }),
			"redis":    pingFunc(func(context.Context) error { return errors.New("refused") }),
		})

		rec, resp := doJSON(t, srv.Handler(), http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "degraded", resp["status"])

		deps := resp["dependencies"].(map[string]any)
		assert.Equal(t, "up", deps["postgres"].(map[string]any)["status"])
		assert.Equal(t, "down", deps["redis"].(map[string]any)["status"])
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code progression.Code
		want int
	}{
		{progression.CodeOK, http.StatusOK},
		{progression.CodeAlreadyCompleted, http.StatusOK},
		{progression.CodeIncompleteDay, http.StatusConflict},
		{progression.CodeConflict, http.StatusConflict},
		{progression.CodeInvalidArgument, http.StatusBadRequest},
		{progression.CodeNotFound, http.StatusNotFound},
		{progression.CodeUnavailable, http.StatusServiceUnavailable},
		{progression.CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.code), fmt.Sprintf("code=%s", tt.code))
	}
}

package impersonation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/atlas-hq/atlas-console/internal/clock"
	"github.com/atlas-hq/atlas-console/internal/shared"
)

func newTestRouter(m *Manager) http.Handler {
	r := chi.NewRouter()
	NewHandler(testLogger(), m).MountRoutes(r)
	return r
}

func requestAs(method, target, body, actorID string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if actorID != "" {
		sess := &shared.Session{}
		sess.SetUser(actorID)
		req = req.WithContext(shared.ContextWithSession(context.Background(), sess))
	}
	return req
}

func TestStartEndpoint(t *testing.T) {
	m := NewManager(testLogger(), &fakeAPI{}, clock.NewFake(time.Now()), DefaultTTL, nil, nil)
	defer m.Close()
	router := newTestRouter(m)

	body := `{"target_user_id":"user-42","reason":"investigating billing discrepancy","acknowledge_risk":true}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(http.MethodPost, "/", body, "op-1"))

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "active", resp["status"])
	require.Equal(t, "user-42", resp["target_user_id"])
}

func TestStartEndpointValidation(t *testing.T) {
	m := NewManager(testLogger(), &fakeAPI{}, clock.NewFake(time.Now()), DefaultTTL, nil, nil)
	router := newTestRouter(m)

	body := `{"target_user_id":"user-42","reason":"short","acknowledge_risk":true}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(http.MethodPost, "/", body, "op-1"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartEndpointConflict(t *testing.T) {
	m := NewManager(testLogger(), &fakeAPI{}, clock.NewFake(time.Now()), DefaultTTL, nil, nil)
	defer m.Close()
	router := newTestRouter(m)

	body := `{"target_user_id":"user-42","reason":"investigating billing discrepancy","acknowledge_risk":true}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(http.MethodPost, "/", body, "op-1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(http.MethodPost, "/", body, "op-1"))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestEndEndpointWithoutSession(t *testing.T) {
	m := NewManager(testLogger(), &fakeAPI{}, clock.NewFake(time.Now()), DefaultTTL, nil, nil)
	router := newTestRouter(m)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(http.MethodPost, "/end", "", "op-1"))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEndpointsRequireActor(t *testing.T) {
	m := NewManager(testLogger(), &fakeAPI{}, clock.NewFake(time.Now()), DefaultTTL, nil, nil)
	router := newTestRouter(m)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(http.MethodGet, "/banner", "", ""))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBannerEndpoint(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)
	m := NewManager(testLogger(), &fakeAPI{}, clk, DefaultTTL, nil, nil)
	defer m.Close()
	router := newTestRouter(m)

	body := `{"target_user_id":"user-42","reason":"investigating billing discrepancy","acknowledge_risk":true}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(http.MethodPost, "/", body, "op-1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(http.MethodGet, "/banner", "", "op-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var banner bannerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &banner))
	require.True(t, banner.Visible)
	require.Equal(t, int(DefaultTTL/time.Second), banner.RemainingSeconds)
}

package audithttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/atlas-hq/atlas-console/internal/audit"
)

type stubTimeline struct {
	lastFilters audit.TimelineFilters
	result      audit.Result
	rows        []audit.TimelineRow
}

func (s *stubTimeline) Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.lastFilters = filters
	return s.result, nil
}

func (s *stubTimeline) Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error) {
	s.lastFilters = filters
	return s.rows, nil
}

func newAuditRouter(service TimelineService, now time.Time) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), service)
	h.now = func() time.Time { return now }
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func TestTimelineDefaultsToLastSevenDays(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &stubTimeline{}
	router := newAuditRouter(svc, now)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, now, svc.lastFilters.To)
	require.Equal(t, now.Add(-7*24*time.Hour), svc.lastFilters.From)
}

func TestTimelineClampsRangeToNinetyDays(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &stubTimeline{}
	router := newAuditRouter(svc, now)

	from := now.Add(-200 * 24 * time.Hour).Format(time.RFC3339)
	to := now.Format(time.RFC3339)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?from="+from+"&to="+to, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, now.Add(-90*24*time.Hour), svc.lastFilters.From)
}

func TestTimelineRejectsMalformedDate(t *testing.T) {
	router := newAuditRouter(&stubTimeline{}, time.Now())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?from=yesterday", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimelinePassesCategoryAndActorType(t *testing.T) {
	svc := &stubTimeline{result: audit.Result{
		Rows:   []audit.TimelineRow{{ID: "log-1", Action: "impersonation_started", ActionLabel: "Impersonation Started"}},
		Paging: audit.PagingInfo{Page: 1, PageSize: 20},
	}}
	router := newAuditRouter(svc, time.Now())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?action_category=impersonation&actor_type=admin&page=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "impersonation", svc.lastFilters.ActionCategory)
	require.Equal(t, "admin", svc.lastFilters.ActorType)
	require.Equal(t, 3, svc.lastFilters.Page)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	entries := resp["entries"].([]any)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	require.Equal(t, "Impersonation Started", entry["action_label"])
}

func TestExportServesCSV(t *testing.T) {
	svc := &stubTimeline{rows: []audit.TimelineRow{{
		Timestamp:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		ActorEmail:  "admin@example.com",
		ActionLabel: "User Suspended",
	}}}
	router := newAuditRouter(svc, time.Now())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "audit-log.csv")
	require.Contains(t, rec.Body.String(), "User Suspended")
}

func TestExportIsRateLimited(t *testing.T) {
	router := newAuditRouter(&stubTimeline{}, time.Now())

	var last int
	for i := 0; i < rateLimit+1; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/export.csv", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(rec, req)
		last = rec.Code
	}
	require.Equal(t, http.StatusTooManyRequests, last)
}

package audit

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atlas-hq/atlas-console/internal/platform/coreapi"
)

type stubRepo struct {
	entries []coreapi.AuditLogEntry
	filters []coreapi.AuditLogFilter
}

func (r *stubRepo) ListAuditLogs(ctx context.Context, filter coreapi.AuditLogFilter) (coreapi.AuditLogPage, error) {
	r.filters = append(r.filters, filter)
	start := filter.Offset
	if start > len(r.entries) {
		start = len(r.entries)
	}
	end := start + filter.Limit
	if end > len(r.entries) {
		end = len(r.entries)
	}
	return coreapi.AuditLogPage{Entries: r.entries[start:end], Total: len(r.entries)}, nil
}

func makeEntries(n int) []coreapi.AuditLogEntry {
	entries := make([]coreapi.AuditLogEntry, 0, n)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		entries = append(entries, coreapi.AuditLogEntry{
			ID:             fmt.Sprintf("log-%d", i),
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
			ActorEmail:     "admin@example.com",
			ActorType:      "admin",
			Action:         "user_suspended",
			ActionCategory: CategoryUserManagement,
		})
	}
	return entries
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubRepo{entries: makeEntries(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, result.Rows, 20)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Zero(t, result.Paging.PrevPage)

	// The service asks for one extra row to detect the next page.
	require.Equal(t, 21, repo.filters[0].Limit)
	require.Equal(t, 0, repo.filters[0].Offset)

	result, err = svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, result.Rows, 5)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.PrevPage)
	require.Equal(t, 20, repo.filters[1].Offset)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubRepo{entries: makeEntries(5)}
	svc := NewService(repo)

	_, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, 51, repo.filters[0].Limit)

	_, err = svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Equal(t, 21, repo.filters[1].Limit)
}

func TestTimelinePassesFilters(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(7 * 24 * time.Hour)
	_, err := svc.Timeline(context.Background(), TimelineFilters{
		ActionCategory: CategoryImpersonation,
		ActorType:      string(ActorAdmin),
		From:           from,
		To:             to,
	})
	require.NoError(t, err)
	require.Equal(t, CategoryImpersonation, repo.filters[0].ActionCategory)
	require.Equal(t, "admin", repo.filters[0].ActorType)
	require.Equal(t, from, repo.filters[0].From)
	require.Equal(t, to, repo.filters[0].To)
}

func TestExportBatches(t *testing.T) {
	repo := &stubRepo{entries: makeEntries(750)}
	svc := NewService(repo)

	rows, err := svc.Export(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Len(t, rows, 750)
	require.Len(t, repo.filters, 2)
	require.Equal(t, 500, repo.filters[1].Offset)
}

func TestActionLabels(t *testing.T) {
	require.Equal(t, "User Suspended", ActionLabel("user_suspended"))
	require.Equal(t, "Invitation Sent", ActionLabel("invitation_created"))
	require.Equal(t, "Login", ActionLabel("login_succeeded"))
	require.Equal(t, "Company Plan Changed", ActionLabel("company_plan_changed"))
}

func TestWriteCSV(t *testing.T) {
	rows := []TimelineRow{
		{
			Timestamp:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
			ActorEmail:     "admin@example.com",
			ActorType:      ActorAdmin,
			ActionLabel:    "User Suspended",
			ActionCategory: CategoryUserManagement,
			ResourceType:   "user",
			ResourceID:     "u1",
		},
	}
	data, err := WriteCSV(rows)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "Timestamp")
	require.Contains(t, lines[1], "2026-03-01T09:00:00Z")
	require.Contains(t, lines[1], "User Suspended")
	require.Contains(t, lines[1], "u1", "resource id is used when the name is empty")
}

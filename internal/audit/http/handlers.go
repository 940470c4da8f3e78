package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/atlas-hq/atlas-console/internal/audit"
	"github.com/atlas-hq/atlas-console/internal/platform/httpx"
	"github.com/atlas-hq/atlas-console/internal/shared"
)

const (
	defaultDateRange = 7 * 24 * time.Hour
	maxDateRange     = 90 * 24 * time.Hour
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error)
}

// Handler serves the audit timeline endpoints.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	now     func() time.Time
}

// NewHandler builds an audit HTTP handler.
func NewHandler(logger *slog.Logger, service TimelineService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

type entryResponse struct {
	ID             string         `json:"id"`
	Timestamp      time.Time      `json:"timestamp"`
	ActorID        string         `json:"actor_id"`
	ActorEmail     string         `json:"actor_email"`
	ActorType      string         `json:"actor_type"`
	Action         string         `json:"action"`
	ActionLabel    string         `json:"action_label"`
	ActionCategory string         `json:"action_category"`
	ResourceType   string         `json:"resource_type"`
	ResourceID     string         `json:"resource_id,omitempty"`
	ResourceName   string         `json:"resource_name,omitempty"`
	IPAddress      string         `json:"ip_address,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

type timelineResponse struct {
	Entries []entryResponse `json:"entries"`
	Page    int             `json:"page"`
	HasNext bool            `json:"has_next"`
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Upstream Error", shared.UserSafeMessage(err))
		return
	}
	resp := timelineResponse{
		Entries: make([]entryResponse, 0, len(result.Rows)),
		Page:    result.Paging.Page,
		HasNext: result.Paging.HasNext,
	}
	for _, row := range result.Rows {
		resp.Entries = append(resp.Entries, toEntryResponse(row))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit export", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Upstream Error", shared.UserSafeMessage(err))
		return
	}
	payload, err := audit.WriteCSV(rows)
	if err != nil {
		h.logger.Error("audit csv", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-log.csv"`)
	_, _ = w.Write(payload)
}

func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	filters := audit.TimelineFilters{
		ActionCategory: q.Get("action_category"),
		ActorType:      q.Get("actor_type"),
	}
	now := h.now()
	filters.To = now
	filters.From = now.Add(-defaultDateRange)
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, err
		}
		filters.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, err
		}
		filters.To = t
	}
	if filters.To.Sub(filters.From) > maxDateRange {
		filters.From = filters.To.Add(-maxDateRange)
	}
	if raw := q.Get("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil {
			filters.Page = page
		}
	}
	if raw := q.Get("page_size"); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil {
			filters.PageSize = size
		}
	}
	return filters, nil
}

func toEntryResponse(row audit.TimelineRow) entryResponse {
	return entryResponse{
		ID:             row.ID,
		Timestamp:      row.Timestamp,
		ActorID:        row.ActorID,
		ActorEmail:     row.ActorEmail,
		ActorType:      string(row.ActorType),
		Action:         row.Action,
		ActionLabel:    row.ActionLabel,
		ActionCategory: row.ActionCategory,
		ResourceType:   row.ResourceType,
		ResourceID:     row.ResourceID,
		ResourceName:   row.ResourceName,
		IPAddress:      row.IPAddress,
		Metadata:       row.Metadata,
	}
}

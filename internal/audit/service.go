package audit

import (
	"context"
	"fmt"

	"github.com/atlas-hq/atlas-console/internal/platform/coreapi"
)

// Repository is the slice of the core API the audit service reads from.
// Audit entries are written exclusively server-side, in the same request
// that performed the audited effect; this service only ever lists them.
type Repository interface {
	ListAuditLogs(ctx context.Context, filter coreapi.AuditLogFilter) (coreapi.AuditLogPage, error)
}

// Service coordinates audit timeline reads.
type Service struct {
	repo Repository
}

// NewService builds an audit timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline fetches audit entries with paging. It requests one row past the
// page size to detect whether a next page exists.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	remote, err := s.repo.ListAuditLogs(ctx, coreapi.AuditLogFilter{
		ActionCategory: filters.ActionCategory,
		ActorType:      filters.ActorType,
		From:           filters.From,
		To:             filters.To,
		Offset:         offset,
		Limit:          pageSize + 1,
	})
	if err != nil {
		return Result{}, err
	}

	entries := remote.Entries
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	rows := make([]TimelineRow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, mapEntry(entry))
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export fetches all matching entries without paging, in batches.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	const batchSize = 500
	var rows []TimelineRow
	offset := 0
	for {
		remote, err := s.repo.ListAuditLogs(ctx, coreapi.AuditLogFilter{
			ActionCategory: filters.ActionCategory,
			ActorType:      filters.ActorType,
			From:           filters.From,
			To:             filters.To,
			Offset:         offset,
			Limit:          batchSize,
		})
		if err != nil {
			return nil, err
		}
		for _, entry := range remote.Entries {
			rows = append(rows, mapEntry(entry))
		}
		if len(remote.Entries) < batchSize {
			return rows, nil
		}
		offset += batchSize
	}
}

func mapEntry(entry coreapi.AuditLogEntry) TimelineRow {
	return TimelineRow{
		ID:             entry.ID,
		Timestamp:      entry.Timestamp,
		ActorID:        entry.ActorID,
		ActorEmail:     entry.ActorEmail,
		ActorType:      ActorType(entry.ActorType),
		Action:         entry.Action,
		ActionLabel:    ActionLabel(entry.Action),
		ActionCategory: entry.ActionCategory,
		ResourceType:   entry.ResourceType,
		ResourceID:     entry.ResourceID,
		ResourceName:   entry.ResourceName,
		CompanyID:      entry.CompanyID,
		IPAddress:      entry.IPAddress,
		Metadata:       entry.Metadata,
	}
}

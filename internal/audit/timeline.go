package audit

import "time"

// ActorType enumerates who performed an audited action.
type ActorType string

const (
	ActorAdmin  ActorType = "admin"
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
	ActorAPI    ActorType = "api"
)

// Action categories used by the console's filter UI.
const (
	CategoryUserManagement = "user_management"
	CategoryImpersonation  = "impersonation"
	CategoryInvitation     = "invitation"
	CategoryAuth           = "auth"
)

// TimelineFilters narrows the audit listing.
type TimelineFilters struct {
	ActionCategory string
	ActorType      string
	From           time.Time
	To             time.Time
	Page           int
	PageSize       int
}

// TimelineRow is one audit entry prepared for display.
type TimelineRow struct {
	ID             string
	Timestamp      time.Time
	ActorID        string
	ActorEmail     string
	ActorType      ActorType
	Action         string
	ActionLabel    string
	ActionCategory string
	ResourceType   string
	ResourceID     string
	ResourceName   string
	CompanyID      string
	IPAddress      string
	Metadata       map[string]any
}

// PagingInfo holds listing pagination metadata.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result bundles timeline rows with paging information.
type Result struct {
	Rows   []TimelineRow
	Paging PagingInfo
}

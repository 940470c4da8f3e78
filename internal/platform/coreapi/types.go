package coreapi

import "time"

// Wire shapes exchanged with the platform core API. Field names follow the
// core API's snake_case JSON contract; domain packages map these into their
// own types.

// UserRecord is a platform user as returned by the core API.
type UserRecord struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	CompanyID string     `json:"company_id"`
	Role      string     `json:"role"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// InvitationRecord is an outstanding invitation as returned by the core API.
type InvitationRecord struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	CompanyID string     `json:"company_id"`
	Role      string     `json:"role"`
	Status    string     `json:"status"`
	InvitedBy string     `json:"invited_by"`
	CreatedAt time.Time  `json:"created_at"`
	ResentAt  *time.Time `json:"resent_at,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// UserPage is one page of users.
type UserPage struct {
	Users []UserRecord `json:"users"`
	Total int          `json:"total"`
}

// InvitationPage is one page of invitations.
type InvitationPage struct {
	Invitations []InvitationRecord `json:"invitations"`
	Total       int                `json:"total"`
}

// UserPatch carries the mutable user fields for updateUser.
type UserPatch struct {
	Status *string `json:"status,omitempty"`
	Name   *string `json:"name,omitempty"`
	Role   *string `json:"role,omitempty"`
}

// CreateInvitationRequest asks the core API to issue an invitation.
type CreateInvitationRequest struct {
	Email     string `json:"email"`
	CompanyID string `json:"company_id"`
	Role      string `json:"role"`
	InvitedBy string `json:"invited_by"`
}

// ImpersonationGrant is the core API's confirmation of a privileged session
// start. A session exists locally only after this arrives.
type ImpersonationGrant struct {
	SessionID       string    `json:"session_id"`
	ActorID         string    `json:"actor_id"`
	TargetUserID    string    `json:"target_user_id"`
	TargetUserEmail string    `json:"target_user_email"`
	Reason          string    `json:"reason"`
	StartedAt       time.Time `json:"started_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// AuditLogEntry is one immutable audit record.
type AuditLogEntry struct {
	ID             string         `json:"id"`
	Timestamp      time.Time      `json:"timestamp"`
	ActorID        string         `json:"actor_id"`
	ActorEmail     string         `json:"actor_email"`
	ActorType      string         `json:"actor_type"`
	Action         string         `json:"action"`
	ActionCategory string         `json:"action_category"`
	ResourceType   string         `json:"resource_type"`
	ResourceID     string         `json:"resource_id,omitempty"`
	ResourceName   string         `json:"resource_name,omitempty"`
	CompanyID      string         `json:"company_id,omitempty"`
	IPAddress      string         `json:"ip_address,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// AuditLogPage is one page of audit entries.
type AuditLogPage struct {
	Entries []AuditLogEntry `json:"entries"`
	Total   int             `json:"total"`
}

// AuditLogFilter constrains audit listing queries.
type AuditLogFilter struct {
	ActionCategory string
	ActorType      string
	From           time.Time
	To             time.Time
	Offset         int
	Limit          int
}

package directory

import "github.com/atlas-hq/atlas-console/internal/directory/model"

// The entity types live in the model leaf package so the cache can share
// them. Aliased here because the rest of the console speaks in terms of the
// directory package.
type (
	User             = model.User
	Invitation       = model.Invitation
	UserStatus       = model.UserStatus
	InvitationStatus = model.InvitationStatus
	RowKind          = model.RowKind
	Row              = model.Row
	Collection       = model.Collection
)

const (
	UserStatusActive    = model.UserStatusActive
	UserStatusSuspended = model.UserStatusSuspended
	UserStatusDeleted   = model.UserStatusDeleted

	InvitationStatusPending   = model.InvitationStatusPending
	InvitationStatusCancelled = model.InvitationStatusCancelled

	KindUser       = model.KindUser
	KindInvitation = model.KindInvitation
)

// UserRow wraps a user as a collection row.
func UserRow(u User) Row { return model.UserRow(u) }

// InvitationRow wraps an invitation as a collection row.
func InvitationRow(inv Invitation) Row { return model.InvitationRow(inv) }

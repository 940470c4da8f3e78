// Package model holds the row and collection types shared between the
// directory service and its mutation cache. It is a leaf package: the cache
// depends on these types without depending on the service that fills them.
package model

import "time"

// UserStatus enumerates the lifecycle states of a platform user.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusDeleted   UserStatus = "deleted"
)

// InvitationStatus enumerates the lifecycle states of an invitation.
type InvitationStatus string

const (
	InvitationStatusPending   InvitationStatus = "pending"
	InvitationStatusCancelled InvitationStatus = "cancelled"
)

// User represents a managed platform account.
type User struct {
	ID        string
	Email     string
	Name      string
	CompanyID string
	Role      string
	Status    UserStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Invitation represents an outstanding invite to join a company.
type Invitation struct {
	ID        string
	Email     string
	CompanyID string
	Role      string
	Status    InvitationStatus
	InvitedBy string
	CreatedAt time.Time
	ResentAt  *time.Time
	ExpiresAt time.Time
}

// RowKind discriminates the variants of Row.
type RowKind string

const (
	KindUser       RowKind = "user"
	KindInvitation RowKind = "invitation"
)

// Row is the tagged union stored in directory collections. Exactly one of
// User or Invitation is non-nil, matching Kind.
type Row struct {
	Kind       RowKind
	User       *User
	Invitation *Invitation
}

// UserRow wraps a user as a collection row.
func UserRow(u User) Row {
	return Row{Kind: KindUser, User: &u}
}

// InvitationRow wraps an invitation as a collection row.
func InvitationRow(inv Invitation) Row {
	return Row{Kind: KindInvitation, Invitation: &inv}
}

// ID returns the identifier of the underlying entity.
func (r Row) ID() string {
	switch r.Kind {
	case KindUser:
		if r.User != nil {
			return r.User.ID
		}
	case KindInvitation:
		if r.Invitation != nil {
			return r.Invitation.ID
		}
	}
	return ""
}

// Collection is a named, parameter-keyed container of directory rows, e.g.
// users filtered by a search term. Owned exclusively by the mutation cache.
type Collection struct {
	Key             string
	Items           []Row
	Total           int
	LastConfirmedAt *time.Time
}

// Clone returns a deep copy of the collection.
func (c Collection) Clone() Collection {
	out := Collection{Key: c.Key, Total: c.Total}
	if c.LastConfirmedAt != nil {
		t := *c.LastConfirmedAt
		out.LastConfirmedAt = &t
	}
	if c.Items != nil {
		out.Items = make([]Row, len(c.Items))
		for i, row := range c.Items {
			out.Items[i] = row.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the row. Rollback snapshots depend on this
// never aliasing the original payload.
func (r Row) Clone() Row {
	out := Row{Kind: r.Kind}
	if r.User != nil {
		u := *r.User
		if r.User.DeletedAt != nil {
			t := *r.User.DeletedAt
			u.DeletedAt = &t
		}
		out.User = &u
	}
	if r.Invitation != nil {
		inv := *r.Invitation
		if r.Invitation.ResentAt != nil {
			t := *r.Invitation.ResentAt
			inv.ResentAt = &t
		}
		out.Invitation = &inv
	}
	return out
}

package directory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/atlas-hq/atlas-console/internal/clock"
	"github.com/atlas-hq/atlas-console/internal/directory/cache"
	"github.com/atlas-hq/atlas-console/internal/directory/mutation"
	"github.com/atlas-hq/atlas-console/internal/platform/coreapi"
)

// CoreAPI is the slice of the platform core API the directory needs. Every
// mutation endpoint is idempotent from the caller's perspective and writes
// its own audit entry server-side.
type CoreAPI interface {
	ListUsers(ctx context.Context, search string, offset, limit int) (coreapi.UserPage, error)
	ListInvitations(ctx context.Context, offset, limit int) (coreapi.InvitationPage, error)
	UpdateUser(ctx context.Context, userID string, patch coreapi.UserPatch, idempotencyKey string) error
	DeleteUser(ctx context.Context, userID, idempotencyKey string) error
	RestoreUser(ctx context.Context, userID, idempotencyKey string) error
	CreateInvitation(ctx context.Context, req coreapi.CreateInvitationRequest) (coreapi.InvitationRecord, error)
	CancelInvitation(ctx context.Context, invitationID, idempotencyKey string) error
	ResendInvitation(ctx context.Context, invitationID, idempotencyKey string) error
	DeleteInvitation(ctx context.Context, invitationID, idempotencyKey string) error
}

// UsersKey builds the collection key for a user search.
func UsersKey(search string) string {
	return fmt.Sprintf("users[search=%s]", search)
}

// InvitationsKey is the collection key for the invitations listing.
const InvitationsKey = "invitations"

const listPageSize = 200

// Service exposes the reversible directory operations. All of them are
// single-entity, reversible by a symmetric inverse and not privilege
// changes, which is what qualifies them for the optimistic path.
type Service struct {
	logger      *slog.Logger
	api         CoreAPI
	store       *cache.Store
	coordinator *mutation.Coordinator
	notifier    mutation.Notifier
	clk         clock.Clock
	loads       singleflight.Group
}

// NewService builds the directory service.
func NewService(logger *slog.Logger, api CoreAPI, store *cache.Store, coordinator *mutation.Coordinator, notifier mutation.Notifier, clk clock.Clock) *Service {
	return &Service{
		logger:      logger,
		api:         api,
		store:       store,
		coordinator: coordinator,
		notifier:    notifier,
		clk:         clk,
	}
}

// Users returns the visible user collection for a search term, loading it
// from the core API when the cache has nothing usable.
func (s *Service) Users(ctx context.Context, search string) (Collection, error) {
	key := UsersKey(search)
	if col, ok := s.store.Read(key); ok && !s.store.Stale(key) {
		return col, nil
	}
	if err := s.loadUsers(ctx, search); err != nil {
		if col, ok := s.store.Read(key); ok {
			// Serve the last known truth over an empty error page.
			return col, nil
		}
		return Collection{Key: key}, err
	}
	col, _ := s.store.Read(key)
	return col, nil
}

// Invitations returns the visible invitations collection.
func (s *Service) Invitations(ctx context.Context) (Collection, error) {
	if col, ok := s.store.Read(InvitationsKey); ok && !s.store.Stale(InvitationsKey) {
		return col, nil
	}
	if err := s.loadInvitations(ctx); err != nil {
		if col, ok := s.store.Read(InvitationsKey); ok {
			return col, nil
		}
		return Collection{Key: InvitationsKey}, err
	}
	col, _ := s.store.Read(InvitationsKey)
	return col, nil
}

// SuspendUser optimistically marks the user suspended, then confirms with
// the core API.
func (s *Service) SuspendUser(ctx context.Context, actorID, search, userID string) error {
	status := string(UserStatusSuspended)
	return s.coordinator.Execute(ctx, mutation.Op{
		ActorID:       actorID,
		Name:          "user.suspend",
		EntityID:      userID,
		CollectionKey: UsersKey(search),
		Transform:     WithUserStatus(userID, UserStatusSuspended),
		Remote: func(ctx context.Context, key string) error {
			return s.api.UpdateUser(ctx, userID, coreapi.UserPatch{Status: &status}, key)
		},
		SuccessMessage: "User suspended",
		FailureMessage: "Could not suspend user",
	})
}

// UnsuspendUser reverses a suspension.
func (s *Service) UnsuspendUser(ctx context.Context, actorID, search, userID string) error {
	status := string(UserStatusActive)
	return s.coordinator.Execute(ctx, mutation.Op{
		ActorID:       actorID,
		Name:          "user.unsuspend",
		EntityID:      userID,
		CollectionKey: UsersKey(search),
		Transform:     WithUserStatus(userID, UserStatusActive),
		Remote: func(ctx context.Context, key string) error {
			return s.api.UpdateUser(ctx, userID, coreapi.UserPatch{Status: &status}, key)
		},
		SuccessMessage: "User unsuspended",
		FailureMessage: "Could not unsuspend user",
	})
}

// DeleteUser soft-deletes a user; RestoreUser is its inverse.
func (s *Service) DeleteUser(ctx context.Context, actorID, search, userID string) error {
	return s.coordinator.Execute(ctx, mutation.Op{
		ActorID:       actorID,
		Name:          "user.delete",
		EntityID:      userID,
		CollectionKey: UsersKey(search),
		Transform:     WithUserDeleted(userID, s.clk.Now()),
		Remote: func(ctx context.Context, key string) error {
			return s.api.DeleteUser(ctx, userID, key)
		},
		SuccessMessage: "User deleted",
		FailureMessage: "Could not delete user",
	})
}

// RestoreUser reverses a soft delete.
func (s *Service) RestoreUser(ctx context.Context, actorID, search, userID string) error {
	return s.coordinator.Execute(ctx, mutation.Op{
		ActorID:       actorID,
		Name:          "user.restore",
		EntityID:      userID,
		CollectionKey: UsersKey(search),
		Transform:     WithUserRestored(userID),
		Remote: func(ctx context.Context, key string) error {
			return s.api.RestoreUser(ctx, userID, key)
		},
		SuccessMessage: "User restored",
		FailureMessage: "Could not restore user",
	})
}

// CancelInvitation optimistically marks the invitation cancelled.
func (s *Service) CancelInvitation(ctx context.Context, actorID, invitationID string) error {
	return s.coordinator.Execute(ctx, mutation.Op{
		ActorID:       actorID,
		Name:          "invitation.cancel",
		EntityID:      invitationID,
		CollectionKey: InvitationsKey,
		Transform:     WithInvitationCancelled(invitationID),
		Remote: func(ctx context.Context, key string) error {
			return s.api.CancelInvitation(ctx, invitationID, key)
		},
		SuccessMessage: "Invitation cancelled",
		FailureMessage: "Could not cancel invitation",
	})
}

// ResendInvitation stamps the resend optimistically and asks the core API
// to send the email again.
func (s *Service) ResendInvitation(ctx context.Context, actorID, invitationID string) error {
	return s.coordinator.Execute(ctx, mutation.Op{
		ActorID:       actorID,
		Name:          "invitation.resend",
		EntityID:      invitationID,
		CollectionKey: InvitationsKey,
		Transform:     WithInvitationResent(invitationID, s.clk.Now()),
		Remote: func(ctx context.Context, key string) error {
			return s.api.ResendInvitation(ctx, invitationID, key)
		},
		SuccessMessage: "Invitation resent",
		FailureMessage: "Could not resend invitation",
	})
}

// DeleteInvitation removes the invitation row optimistically.
func (s *Service) DeleteInvitation(ctx context.Context, actorID, invitationID string) error {
	return s.coordinator.Execute(ctx, mutation.Op{
		ActorID:       actorID,
		Name:          "invitation.delete",
		EntityID:      invitationID,
		CollectionKey: InvitationsKey,
		Transform:     WithoutRow(invitationID),
		Remote: func(ctx context.Context, key string) error {
			return s.api.DeleteInvitation(ctx, invitationID, key)
		},
		SuccessMessage: "Invitation deleted",
		FailureMessage: "Could not delete invitation",
	})
}

// CreateInvitation is the one directory edit that does not go through the
// optimistic path: a brand-new entity carries a server-assigned identity
// that cannot be fabricated locally. The call is pessimistic and, on
// success, only the invitations collection is invalidated and re-read.
func (s *Service) CreateInvitation(ctx context.Context, actorID string, input CreateInvitationInput) (Invitation, error) {
	record, err := s.api.CreateInvitation(ctx, coreapi.CreateInvitationRequest{
		Email:     input.Email,
		CompanyID: input.CompanyID,
		Role:      input.Role,
		InvitedBy: actorID,
	})
	if err != nil {
		return Invitation{}, err
	}
	s.store.Invalidate(InvitationsKey)
	if err := s.loadInvitations(ctx); err != nil {
		s.logger.Warn("refresh invitations after create", slog.Any("error", err))
	}
	s.notifier.Success(actorID, "Invitation sent to "+record.Email)
	return mapInvitation(record), nil
}

// Refresh forces a fresh read of a collection, lifting any quiescence
// window first. Used by the manual refresh affordance.
func (s *Service) Refresh(ctx context.Context, key string) error {
	s.store.Invalidate(key)
	if key == InvitationsKey {
		return s.loadInvitations(ctx)
	}
	search, ok := searchFromKey(key)
	if !ok {
		return fmt.Errorf("directory: unknown collection %q", key)
	}
	return s.loadUsers(ctx, search)
}

// Wait blocks until all in-flight mutations resolve.
func (s *Service) Wait() {
	s.coordinator.Wait()
}

// loadUsers fetches the user collection, coalescing concurrent loads of the
// same key into one upstream call.
func (s *Service) loadUsers(ctx context.Context, search string) error {
	key := UsersKey(search)
	_, err, _ := s.loads.Do(key, func() (any, error) {
		page, err := s.api.ListUsers(ctx, search, 0, listPageSize)
		if err != nil {
			return nil, err
		}
		items := make([]Row, 0, len(page.Users))
		for _, record := range page.Users {
			items = append(items, UserRow(mapUser(record)))
		}
		s.store.Replace(key, Collection{Items: items, Total: page.Total})
		return nil, nil
	})
	return err
}

func (s *Service) loadInvitations(ctx context.Context) error {
	_, err, _ := s.loads.Do(InvitationsKey, func() (any, error) {
		page, err := s.api.ListInvitations(ctx, 0, listPageSize)
		if err != nil {
			return nil, err
		}
		items := make([]Row, 0, len(page.Invitations))
		for _, record := range page.Invitations {
			items = append(items, InvitationRow(mapInvitation(record)))
		}
		s.store.Replace(InvitationsKey, Collection{Items: items, Total: page.Total})
		return nil, nil
	})
	return err
}

func searchFromKey(key string) (string, bool) {
	const prefix = "users[search="
	if strings.HasPrefix(key, prefix) && strings.HasSuffix(key, "]") {
		return key[len(prefix) : len(key)-1], true
	}
	return "", false
}

func mapUser(record coreapi.UserRecord) User {
	return User{
		ID:        record.ID,
		Email:     record.Email,
		Name:      record.Name,
		CompanyID: record.CompanyID,
		Role:      record.Role,
		Status:    UserStatus(record.Status),
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
		DeletedAt: record.DeletedAt,
	}
}

func mapInvitation(record coreapi.InvitationRecord) Invitation {
	return Invitation{
		ID:        record.ID,
		Email:     record.Email,
		CompanyID: record.CompanyID,
		Role:      record.Role,
		Status:    InvitationStatus(record.Status),
		InvitedBy: record.InvitedBy,
		CreatedAt: record.CreatedAt,
		ResentAt:  record.ResentAt,
		ExpiresAt: record.ExpiresAt,
	}
}

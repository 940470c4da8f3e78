package directory

import "time"

// Collection transforms applied optimistically before the remote call
// confirms. Each returns a fresh collection and leaves its input untouched
// so a retained snapshot stays valid.

// WithUserStatus sets the status of one user row.
func WithUserStatus(userID string, status UserStatus) func(Collection) Collection {
	return func(c Collection) Collection {
		out := c.Clone()
		for i, row := range out.Items {
			if row.Kind == KindUser && row.User != nil && row.User.ID == userID {
				out.Items[i].User.Status = status
			}
		}
		return out
	}
}

// WithUserDeleted soft-deletes one user row.
func WithUserDeleted(userID string, at time.Time) func(Collection) Collection {
	return func(c Collection) Collection {
		out := c.Clone()
		for i, row := range out.Items {
			if row.Kind == KindUser && row.User != nil && row.User.ID == userID {
				out.Items[i].User.Status = UserStatusDeleted
				t := at
				out.Items[i].User.DeletedAt = &t
			}
		}
		return out
	}
}

// WithUserRestored reverses a soft delete.
func WithUserRestored(userID string) func(Collection) Collection {
	return func(c Collection) Collection {
		out := c.Clone()
		for i, row := range out.Items {
			if row.Kind == KindUser && row.User != nil && row.User.ID == userID {
				out.Items[i].User.Status = UserStatusActive
				out.Items[i].User.DeletedAt = nil
			}
		}
		return out
	}
}

// WithInvitationCancelled marks one invitation row cancelled.
func WithInvitationCancelled(invitationID string) func(Collection) Collection {
	return func(c Collection) Collection {
		out := c.Clone()
		for i, row := range out.Items {
			if row.Kind == KindInvitation && row.Invitation != nil && row.Invitation.ID == invitationID {
				out.Items[i].Invitation.Status = InvitationStatusCancelled
			}
		}
		return out
	}
}

// WithInvitationResent stamps the resend time on one invitation row.
func WithInvitationResent(invitationID string, at time.Time) func(Collection) Collection {
	return func(c Collection) Collection {
		out := c.Clone()
		for i, row := range out.Items {
			if row.Kind == KindInvitation && row.Invitation != nil && row.Invitation.ID == invitationID {
				t := at
				out.Items[i].Invitation.ResentAt = &t
			}
		}
		return out
	}
}

// WithoutRow removes one row and decrements the total.
func WithoutRow(id string) func(Collection) Collection {
	return func(c Collection) Collection {
		out := c.Clone()
		items := out.Items[:0]
		removed := false
		for _, row := range out.Items {
			if row.ID() == id {
				removed = true
				continue
			}
			items = append(items, row)
		}
		out.Items = items
		if removed && out.Total > 0 {
			out.Total--
		}
		return out
	}
}

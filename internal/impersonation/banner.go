package impersonation

import "time"

// BannerState is the contract consumed by the privileged-session banner.
// While a session is ACTIVE the banner must stay visible above everything
// else with an exit affordance; that is a security requirement, not a
// cosmetic one. ForcedExit signals the no-confirmation exit flow after a
// hard expiry.
type BannerState struct {
	Visible         bool
	TargetUserEmail string
	Remaining       time.Duration
	ExpiresAt       time.Time
	ForcedExit      bool
}

// Banner computes the current banner state for an operator.
func (m *Manager) Banner(actorID string) BannerState {
	sess, ok := m.Session(actorID)
	if !ok {
		return BannerState{}
	}
	switch sess.Status {
	case StatusActive:
		return BannerState{
			Visible:         true,
			TargetUserEmail: sess.TargetUserEmail,
			Remaining:       sess.Remaining(m.clk.Now()),
			ExpiresAt:       sess.ExpiresAt,
		}
	case StatusExpired:
		return BannerState{
			TargetUserEmail: sess.TargetUserEmail,
			ForcedExit:      true,
		}
	default:
		return BannerState{}
	}
}

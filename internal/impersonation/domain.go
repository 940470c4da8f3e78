// Package impersonation owns the single time-boxed privileged session an
// operator may hold. Activation is pessimistic: no session state exists
// before the core API has confirmed the grant, and no session is cleared
// locally while the server may still consider it active.
package impersonation

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a privileged session.
type Status string

const (
	StatusNone    Status = "none"
	StatusActive  Status = "active"
	StatusEnded   Status = "ended"
	StatusExpired Status = "expired"
)

// Ended reasons recorded with the core API when a session closes.
const (
	EndedReasonManual  = "manual"
	EndedReasonExpired = "expired"
)

// DefaultTTL is the absolute session lifetime. The deadline is fixed at
// start; operator activity does not extend it.
const DefaultTTL = 30 * time.Minute

// MinReasonLength is the minimum trimmed length of the justification text.
const MinReasonLength = 10

// Session is one privileged viewing session.
type Session struct {
	ID              string
	ActorID         string
	TargetUserID    string
	TargetUserEmail string
	Reason          string
	StartedAt       time.Time
	ExpiresAt       time.Time
	Status          Status
	EndedReason     string
}

// Remaining reports the time left before the hard deadline.
func (s Session) Remaining(now time.Time) time.Duration {
	if s.Status != StatusActive {
		return 0
	}
	if remaining := s.ExpiresAt.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

var (
	// ErrValidation marks a local precondition failure. It never reaches
	// the network and produces no audit entry.
	ErrValidation = errors.New("validation failed")
	// ErrSessionActive rejects a second concurrent session per operator.
	ErrSessionActive = errors.New("an impersonation session is already active")
	// ErrNoSession is returned when ending without ever having started.
	ErrNoSession = errors.New("no impersonation session")
)

// StartInput is the operator's request to open a session.
type StartInput struct {
	TargetUserID    string `json:"target_user_id" validate:"required"`
	Reason          string `json:"reason" validate:"required"`
	AcknowledgeRisk bool   `json:"acknowledge_risk"`
}

// EventType classifies session transitions observable by the banner.
type EventType string

const (
	EventStarted EventType = "started"
	EventEnded   EventType = "ended"
	EventExpired EventType = "expired"
)

// Event is one observed session transition.
type Event struct {
	Type    EventType
	Session Session
}

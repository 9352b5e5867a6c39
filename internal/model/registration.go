package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTransition is returned when an action is not allowed from the
// registration's current status.
var ErrInvalidTransition = errors.New("invalid registration transition")

// Status is the lifecycle state of a registration.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusWithdrawn Status = "withdrawn"
)

// Active reports whether the status blocks a new request for the same pair.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusAccepted
}

// Action is a student or professor action on a registration.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionWithdraw Action = "withdraw"
)

// ParseAction maps a path segment to an Action.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionAccept, ActionReject, ActionWithdraw:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionAccept:   StatusAccepted,
		ActionReject:   StatusRejected,
		ActionWithdraw: StatusWithdrawn,
	},
	StatusAccepted: {
		ActionWithdraw: StatusWithdrawn,
	},
}

// Apply returns the status reached by applying a to s.
func (s Status) Apply(a Action) (Status, error) {
	if next, ok := transitions[s][a]; ok {
		return next, nil
	}
	return s, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, a, s)
}

// Registration is a student's request to be supervised under a profile.
type Registration struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	ProfileID  string    `json:"profile_id"`
	DocumentID string    `json:"document_id,omitempty"`
	Priority   int       `json:"priority"`
	Status     Status    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RegisterRequest is the payload for POST /registrations.
type RegisterRequest struct {
	ProfileID  string `json:"profile_id"`
	DocumentID string `json:"document_id"`
	Priority   int    `json:"priority"`
	Notes      string `json:"notes"`
}

// TransitionRequest is the optional payload for accept/reject/withdraw.
type TransitionRequest struct {
	Reason string `json:"reason"`
}

package model

import "time"

// NotificationKind identifies what happened to a registration.
type NotificationKind string

const (
	KindRegistrationRequest   NotificationKind = "registration_request"
	KindRegistrationAccepted  NotificationKind = "registration_accepted"
	KindRegistrationRejected  NotificationKind = "registration_rejected"
	KindRegistrationWithdrawn NotificationKind = "registration_withdrawn"
)

// KindForStatus returns the notification kind announcing a move into s.
func KindForStatus(s Status) NotificationKind {
	switch s {
	case StatusAccepted:
		return KindRegistrationAccepted
	case StatusRejected:
		return KindRegistrationRejected
	case StatusWithdrawn:
		return KindRegistrationWithdrawn
	default:
		return KindRegistrationRequest
	}
}

// NotificationEvent is appended to a recipient's inbox. Only the Read flag
// changes after creation, and only at the recipient's request.
type NotificationEvent struct {
	ID             string           `json:"id"`
	RecipientID    string           `json:"recipient_id"`
	Kind           NotificationKind `json:"kind"`
	RegistrationID string           `json:"registration_id"`
	Message        string           `json:"message"`
	Read           bool             `json:"read"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Package service implements business logic, validation and orchestration
// between HTTP handlers, the matching core and the repository layer.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
)

// ErrInvalidInput marks request validation failures.
var ErrInvalidInput = errors.New("invalid input")

// ErrForbidden is returned when the caller does not own the resource or may
// not perform the action.
var ErrForbidden = errors.New("forbidden")

// ProfileStore is the authoritative profile catalog.
type ProfileStore interface {
	Create(ctx context.Context, p *model.Profile) error
	Update(ctx context.Context, p *model.Profile) error
	SetEmbedding(ctx context.Context, id, text string, vec []float32) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*model.Profile, error)
	GetByUserID(ctx context.Context, userID string) (*model.Profile, error)
	List(ctx context.Context) ([]model.Profile, error)
}

// RegistrationStore persists registrations. Transition must apply the
// status change and the accepted-count update atomically per profile.
type RegistrationStore interface {
	Create(ctx context.Context, reg *model.Registration) error
	Transition(ctx context.Context, id string, action model.Action, note string, now time.Time) (*model.Registration, error)
	GetByID(ctx context.Context, id string) (*model.Registration, error)
	ListByStudent(ctx context.Context, studentID string) ([]model.Registration, error)
	ListByProfile(ctx context.Context, profileID string) ([]model.Registration, error)
}

// DocumentStore persists embedded query documents.
type DocumentStore interface {
	Create(ctx context.Context, d *model.QueryDocument) error
	GetByID(ctx context.Context, id string) (*model.QueryDocument, error)
	ListByUser(ctx context.Context, userID string) ([]model.QueryDocument, error)
	Delete(ctx context.Context, id string) error
}

// NotificationStore is the recipient-facing side of the inbox.
type NotificationStore interface {
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]model.NotificationEvent, error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, id, recipientID string) error
	MarkAllRead(ctx context.Context, recipientID string) (int, error)
}

// Dispatcher delivers notification events without failing the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev model.NotificationEvent)
}

func utcNow() time.Time { return time.Now().UTC() }

// isValidEmail does a basic structural check.
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}

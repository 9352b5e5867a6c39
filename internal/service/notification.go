package service

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// NotificationService is the recipient's view of their inbox.
type NotificationService struct {
	store NotificationStore
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(store NotificationStore) *NotificationService {
	return &NotificationService{store: store}
}

// List returns the newest notifications first. A limit of 0 uses the default.
func (s *NotificationService) List(ctx context.Context, userID string, limit int) ([]model.NotificationEvent, error) {
	switch {
	case limit < 0:
		return nil, fmt.Errorf("%w: limit must not be negative", ErrInvalidInput)
	case limit == 0:
		limit = defaultNotificationLimit
	case limit > maxNotificationLimit:
		limit = maxNotificationLimit
	}
	return s.store.ListByRecipient(ctx, userID, limit)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.UnreadCount(ctx, userID)
}

// MarkRead flags one of the caller's notifications.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	return s.store.MarkRead(ctx, id, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.store.MarkAllRead(ctx, userID)
}

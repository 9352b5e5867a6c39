package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
)

// NotificationRepository is the append-only inbox store.
type NotificationRepository struct {
	db *pgxpool.Pool
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Append stores ev. Re-appending an event with the same id is a no-op, so
// retried dispatches never duplicate a notification.
func (r *NotificationRepository) Append(ctx context.Context, ev *model.NotificationEvent) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO notifications (id, recipient_id, kind, registration_id, message, read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.RecipientID, ev.Kind, nullable(ev.RegistrationID), ev.Message, ev.Read, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListByRecipient returns up to limit notifications, newest first.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]model.NotificationEvent, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, recipient_id, kind, registration_id, message, read, created_at
		 FROM notifications
		 WHERE recipient_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		recipientID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var events []model.NotificationEvent
	for rows.Next() {
		var (
			ev    model.NotificationEvent
			regID *string
		)
		if err := rows.Scan(&ev.ID, &ev.RecipientID, &ev.Kind, &regID, &ev.Message, &ev.Read, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if regID != nil {
			ev.RegistrationID = *regID
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// UnreadCount returns how many notifications the recipient has not read.
func (r *NotificationRepository) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND NOT read`,
		recipientID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

// MarkRead flags one notification as read. It returns ErrNotFound when the
// notification does not exist or belongs to someone else.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND recipient_id = $2`,
		id, recipientID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead flags every unread notification of the recipient and returns
// how many changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE recipient_id = $1 AND NOT read`,
		recipientID,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

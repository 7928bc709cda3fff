// Package notification stores per-user in-app event records. Rows are
// insert-only except for the read flag; they cascade-delete with their
// parent agreement.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a notification does not exist or belongs to
// another user.
var ErrNotFound = errors.New("notification: not found")

// Kinds mirror the agreement lifecycle events that produce notifications.
const (
	KindSent     = "sent"
	KindSigned   = "signed"
	KindRejected = "rejected"
	KindPDFReady = "pdf_ready"
)

// Notification is one user-facing event record.
type Notification struct {
	ID          string
	UserID      string
	AgreementID *string
	Kind        string
	Title       string
	Message     string
	Read        bool
	CreatedAt   time.Time
}

// Service provides the emitter used by the workflow engine and the
// read-side operations used by the notifications view.
type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Notify inserts an unread notification. It satisfies the workflow engine's
// Notifier contract.
func (s *Service) Notify(ctx context.Context, userID, agreementID, kind, title, message string) error {
	var agreementRef any
	if agreementID != "" {
		agreementRef = agreementID
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO notifications (user_id, agreement_id, kind, title, message, is_read)
VALUES ($1, $2, $3, $4, $5, false)`,
		userID, agreementRef, kind, title, message)
	if err != nil {
		return fmt.Errorf("notification: insert: %w", err)
	}
	return nil
}

// List returns the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, user_id, agreement_id, kind, title, message, is_read, created_at
FROM notifications
WHERE user_id = $1
ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("notification: list: %w", err)
	}
	defer rows.Close()

	items := []Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.AgreementID, &n.Kind, &n.Title, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notification: scan: %w", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

// UnreadCount returns how many of the user's notifications are unread.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`, userID).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("notification: unread count: %w", err)
	}
	return count, nil
}

// MarkRead flips one notification's read flag, scoped to its owner.
func (s *Service) MarkRead(ctx context.Context, id, userID string) (Notification, error) {
	var n Notification
	err := s.pool.QueryRow(ctx, `
UPDATE notifications SET is_read = true
WHERE id = $1 AND user_id = $2
RETURNING id, user_id, agreement_id, kind, title, message, is_read, created_at`,
		id, userID).
		Scan(&n.ID, &n.UserID, &n.AgreementID, &n.Kind, &n.Title, &n.Message, &n.Read, &n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Notification{}, ErrNotFound
	}
	if err != nil {
		return Notification{}, fmt.Errorf("notification: mark read: %w", err)
	}
	return n, nil
}

// MarkAllRead flips every unread notification for the user and reports how
// many were affected.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE user_id = $1 AND is_read = false`, userID)
	if err != nil {
		return 0, fmt.Errorf("notification: mark all read: %w", err)
	}
	return tag.RowsAffected(), nil
}

package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beetopic/backend/internal/models"
)

// Repository handles notification_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notification logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts a pending log for n.JobID, or resets the existing row of a retried job.
// n.ID and n.CreatedAt are filled from the stored row.
func (r *Repository) Record(ctx context.Context, n *models.NotificationLog) error {
	const q = `INSERT INTO notification_logs (job_id, channel_id, coupon_id, subscriber_id, recipient_email, kind, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		ON CONFLICT (job_id) DO UPDATE SET status = 'pending', error_message = NULL
		RETURNING id, status, created_at`
	err := r.pool.QueryRow(ctx, q, n.JobID, n.ChannelID, n.CouponID, n.SubscriberID, n.RecipientEmail, n.Kind).
		Scan(&n.ID, &n.Status, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}

// UpdateStatus sets the delivery outcome. sent_at is stamped when status is sent.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status, errMsg string) error {
	const q = `UPDATE notification_logs
		SET status = $2,
			error_message = NULLIF($3, ''),
			sent_at = CASE WHEN $2 = 'sent' THEN NOW() ELSE sent_at END
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, status, errMsg)
	if err != nil {
		return fmt.Errorf("update notification %s: %w", id, err)
	}
	return nil
}

// ListByChannel returns notification logs for a channel, newest first.
func (r *Repository) ListByChannel(ctx context.Context, channelID uuid.UUID) ([]models.NotificationLog, error) {
	const q = `SELECT id, job_id, channel_id, coupon_id, subscriber_id, recipient_email, kind, status, error_message, sent_at, created_at
		FROM notification_logs
		WHERE channel_id = $1
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.NotificationLog{}
	for rows.Next() {
		var n models.NotificationLog
		var errMsg *string
		if err := rows.Scan(&n.ID, &n.JobID, &n.ChannelID, &n.CouponID, &n.SubscriberID, &n.RecipientEmail,
			&n.Kind, &n.Status, &errMsg, &n.SentAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		if errMsg != nil {
			n.ErrorMessage = *errMsg
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

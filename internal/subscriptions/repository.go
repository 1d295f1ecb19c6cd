package subscriptions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beetopic/backend/internal/models"
	"github.com/beetopic/backend/pkg/database"
)

const subscriptionColumns = `id, channel_id, subscriber_id, starts_on, ends_on, is_paused, created_at, updated_at`

// Repository is the Postgres entitlement ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a subscriptions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	var s models.Subscription
	if err := row.Scan(&s.ID, &s.ChannelID, &s.SubscriberID, &s.StartsOn, &s.EndsOn, &s.IsPaused, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// HasTransaction reports whether subscriberID has already redeemed couponID.
func (r *Repository) HasTransaction(ctx context.Context, couponID uuid.UUID, subscriberID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE coupon_id = $1 AND subscriber_id = $2)`,
		couponID, subscriberID).Scan(&exists)
	return exists, err
}

// GetSubscription returns the (subscriber, channel) row or ErrSubscriptionNotFound.
func (r *Repository) GetSubscription(ctx context.Context, channelID uuid.UUID, subscriberID string) (*models.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE channel_id = $1 AND subscriber_id = $2`
	s, err := scanSubscription(r.pool.QueryRow(ctx, q, channelID, subscriberID))
	if database.IsNoRows(err) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return s, nil
}

// CreateSubscription inserts a new row. An existing (subscriber, channel) row yields ErrAlreadySubscribed.
func (r *Repository) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	const q = `INSERT INTO subscriptions (id, channel_id, subscriber_id, starts_on, ends_on, is_paused)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, sub.ChannelID, sub.SubscriberID, sub.StartsOn, sub.EndsOn, sub.IsPaused).
		Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	switch {
	case database.IsUniqueViolation(err, "subscriptions_subscriber_channel_key"):
		return ErrAlreadySubscribed
	case database.IsForeignKeyViolation(err):
		return ErrChannelNotFound
	case err != nil:
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

// PauseSubscription sets is_paused on the (subscriber, channel) row.
func (r *Repository) PauseSubscription(ctx context.Context, channelID uuid.UUID, subscriberID string) (*models.Subscription, error) {
	q := `UPDATE subscriptions SET is_paused = TRUE, updated_at = NOW()
		WHERE channel_id = $1 AND subscriber_id = $2
		RETURNING ` + subscriptionColumns
	s, err := scanSubscription(r.pool.QueryRow(ctx, q, channelID, subscriberID))
	if database.IsNoRows(err) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pause subscription: %w", err)
	}
	return s, nil
}

func (r *Repository) listSubscriptions(ctx context.Context, where string, arg any) ([]models.Subscription, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE `+where+` ORDER BY created_at DESC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Subscription{}
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// ListBySubscriber returns all subscriptions of a subscriber.
func (r *Repository) ListBySubscriber(ctx context.Context, subscriberID string) ([]models.Subscription, error) {
	return r.listSubscriptions(ctx, "subscriber_id = $1", subscriberID)
}

// ListByChannel returns all subscriptions to a channel.
func (r *Repository) ListByChannel(ctx context.Context, channelID uuid.UUID) ([]models.Subscription, error) {
	return r.listSubscriptions(ctx, "channel_id = $1", channelID)
}

// ListTransactions returns the channel's redemption ledger, newest first.
func (r *Repository) ListTransactions(ctx context.Context, channelID uuid.UUID) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, channel_id, subscriber_id, coupon_id, created_at
		FROM transactions WHERE channel_id = $1 ORDER BY created_at DESC`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.ChannelID, &t.SubscriberID, &t.CouponID, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// RunInTx runs fn in one database transaction.
func (r *Repository) RunInTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&ledgerTx{tx: tx})
	})
}

type ledgerTx struct {
	tx pgx.Tx
}

func (l *ledgerTx) LockCoupon(ctx context.Context, couponID uuid.UUID) error {
	var id uuid.UUID
	return l.tx.QueryRow(ctx, `SELECT id FROM coupons WHERE id = $1 FOR UPDATE`, couponID).Scan(&id)
}

func (l *ledgerTx) CountRedemptions(ctx context.Context, couponID uuid.UUID) (int, error) {
	var n int
	err := l.tx.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE coupon_id = $1`, couponID).Scan(&n)
	return n, err
}

func (l *ledgerTx) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	const q = `INSERT INTO transactions (id, channel_id, subscriber_id, coupon_id)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at`
	err := l.tx.QueryRow(ctx, q, t.ChannelID, t.SubscriberID, t.CouponID).Scan(&t.ID, &t.CreatedAt)
	if database.IsUniqueViolation(err, "transactions_coupon_subscriber_key") {
		return ErrCouponAlreadyUsed
	}
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (l *ledgerTx) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	const q = `INSERT INTO subscriptions (id, channel_id, subscriber_id, starts_on, ends_on, is_paused)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, FALSE)
		ON CONFLICT (subscriber_id, channel_id) DO UPDATE
			SET starts_on = EXCLUDED.starts_on, ends_on = EXCLUDED.ends_on, is_paused = FALSE, updated_at = NOW()
		RETURNING id, is_paused, created_at, updated_at`
	err := l.tx.QueryRow(ctx, q, sub.ChannelID, sub.SubscriberID, sub.StartsOn, sub.EndsOn).
		Scan(&sub.ID, &sub.IsPaused, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

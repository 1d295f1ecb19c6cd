package coupons

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beetopic/backend/internal/models"
	"github.com/beetopic/backend/pkg/database"
)

// Enum columns are read as text so they scan into the string-backed model types.
const couponColumns = `id, channel_id, code, description, starts_on, ends_on, policy::text, max_users_count_for_open, frequency::text, term_count, created_at`

// Summary is a coupon with its redemption count, for console listings.
type Summary struct {
	models.Coupon
	Redemptions int `json:"redemptions"`
}

// Detail is a coupon with its allow-list and redemption count.
type Detail struct {
	models.Coupon
	Emails      []string `json:"emails"`
	Redemptions int      `json:"redemptions"`
}

// Repository persists coupons and their allow-lists. It is read-only for redemption.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a coupons repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanCoupon(row pgx.Row) (*models.Coupon, error) {
	var c models.Coupon
	err := row.Scan(&c.ID, &c.ChannelID, &c.Code, &c.Description, &c.StartsOn, &c.EndsOn,
		&c.Policy, &c.MaxUsersCountForOpen, &c.Frequency, &c.TermCount, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindCoupon returns the coupon with code in channelID, or ErrNotFound.
// It does not check the validity window.
func (r *Repository) FindCoupon(ctx context.Context, channelID uuid.UUID, code string) (*models.Coupon, error) {
	q := `SELECT ` + couponColumns + ` FROM coupons WHERE channel_id = $1 AND code = $2`
	c, err := scanCoupon(r.pool.QueryRow(ctx, q, channelID, NormalizeCode(code)))
	if database.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find coupon: %w", err)
	}
	return c, nil
}

// CountRedemptions returns the number of ledger transactions that used couponID.
func (r *Repository) CountRedemptions(ctx context.Context, couponID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE coupon_id = $1`, couponID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count redemptions: %w", err)
	}
	return n, nil
}

// FindAllowListEntry returns the allow-list entry for email on couponID, or ErrNotFound.
func (r *Repository) FindAllowListEntry(ctx context.Context, couponID uuid.UUID, email string) (*models.CouponEmail, error) {
	const q = `SELECT id, coupon_id, email, created_at FROM coupon_emails WHERE coupon_id = $1 AND email = $2`
	var e models.CouponEmail
	err := r.pool.QueryRow(ctx, q, couponID, NormalizeEmail(email)).Scan(&e.ID, &e.CouponID, &e.Email, &e.CreatedAt)
	if database.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find allow-list entry: %w", err)
	}
	return &e, nil
}

// Create inserts a validated definition and its allow-list in one transaction.
func (r *Repository) Create(ctx context.Context, def Definition) (*models.Coupon, error) {
	c, emails, err := def.Normalize()
	if err != nil {
		return nil, err
	}
	err = database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const q = `INSERT INTO coupons (id, channel_id, code, description, starts_on, ends_on, policy, max_users_count_for_open, frequency, term_count)
			VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6::coupon_policy, $7, $8::coupon_frequency, $9)
			RETURNING id, created_at`
		err := tx.QueryRow(ctx, q, c.ChannelID, c.Code, c.Description, c.StartsOn, c.EndsOn,
			string(c.Policy), c.MaxUsersCountForOpen, string(c.Frequency), c.TermCount).Scan(&c.ID, &c.CreatedAt)
		if database.IsUniqueViolation(err, "coupons_channel_code_key") {
			return ErrCodeTaken
		}
		if err != nil {
			return fmt.Errorf("insert coupon: %w", err)
		}
		for _, email := range emails {
			if _, err := tx.Exec(ctx, `INSERT INTO coupon_emails (id, coupon_id, email) VALUES (gen_random_uuid(), $1, $2)`, c.ID, email); err != nil {
				return fmt.Errorf("insert coupon email: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListByChannel returns the channel's coupons with redemption counts, newest first.
func (r *Repository) ListByChannel(ctx context.Context, channelID uuid.UUID) ([]Summary, error) {
	const q = `SELECT c.id, c.channel_id, c.code, c.description, c.starts_on, c.ends_on, c.policy::text,
			c.max_users_count_for_open, c.frequency::text, c.term_count, c.created_at, COUNT(t.id)
		FROM coupons c
		LEFT JOIN transactions t ON t.coupon_id = c.id
		WHERE c.channel_id = $1
		GROUP BY c.id
		ORDER BY c.created_at DESC`
	rows, err := r.pool.Query(ctx, q, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.ChannelID, &s.Code, &s.Description, &s.StartsOn, &s.EndsOn, &s.Policy,
			&s.MaxUsersCountForOpen, &s.Frequency, &s.TermCount, &s.CreatedAt, &s.Redemptions); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Get returns one coupon of channelID with allow-list and redemption count, or ErrNotFound.
func (r *Repository) Get(ctx context.Context, channelID, couponID uuid.UUID) (*Detail, error) {
	q := `SELECT ` + couponColumns + ` FROM coupons WHERE channel_id = $1 AND id = $2`
	c, err := scanCoupon(r.pool.QueryRow(ctx, q, channelID, couponID))
	if database.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	d := &Detail{Coupon: *c, Emails: []string{}}
	rows, err := r.pool.Query(ctx, `SELECT email FROM coupon_emails WHERE coupon_id = $1 ORDER BY email`, couponID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		d.Emails = append(d.Emails, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if d.Redemptions, err = r.CountRedemptions(ctx, couponID); err != nil {
		return nil, err
	}
	return d, nil
}

// Delete removes a coupon that has never been redeemed. Ledger rows are never deleted,
// so a redeemed coupon returns ErrHasRedemptions.
func (r *Repository) Delete(ctx context.Context, channelID, couponID uuid.UUID) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var used bool
		err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE coupon_id = $1)`, couponID).Scan(&used)
		if err != nil {
			return fmt.Errorf("check redemptions: %w", err)
		}
		if used {
			return ErrHasRedemptions
		}
		tag, err := tx.Exec(ctx, `DELETE FROM coupons WHERE channel_id = $1 AND id = $2`, channelID, couponID)
		if err != nil {
			return fmt.Errorf("delete coupon: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

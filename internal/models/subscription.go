package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is derived from a subscription row at read time; it is never stored.
type SubscriptionStatus string

const (
	StatusNone    SubscriptionStatus = "none"
	StatusActive  SubscriptionStatus = "active"
	StatusPaused  SubscriptionStatus = "paused"
	StatusExpired SubscriptionStatus = "expired"
)

// Subscription is the entitlement of one subscriber to one channel.
type Subscription struct {
	ID           uuid.UUID `json:"id"`
	ChannelID    uuid.UUID `json:"channel_id"`
	SubscriberID string    `json:"subscriber_id"`
	StartsOn     time.Time `json:"starts_on"`
	EndsOn       time.Time `json:"ends_on"`
	IsPaused     bool      `json:"is_paused"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StatusOf derives the status of sub at now. A nil subscription has status none.
// Expiry wins over the pause flag.
func StatusOf(sub *Subscription, now time.Time) SubscriptionStatus {
	switch {
	case sub == nil:
		return StatusNone
	case !now.Before(sub.EndsOn):
		return StatusExpired
	case sub.IsPaused:
		return StatusPaused
	default:
		return StatusActive
	}
}

// Transaction records one coupon redemption. At most one exists per (coupon, subscriber).
type Transaction struct {
	ID           uuid.UUID `json:"id"`
	ChannelID    uuid.UUID `json:"channel_id"`
	SubscriberID string    `json:"subscriber_id"`
	CouponID     uuid.UUID `json:"coupon_id"`
	CreatedAt    time.Time `json:"created_at"`
}

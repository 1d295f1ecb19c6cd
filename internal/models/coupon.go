package models

import (
	"time"

	"github.com/google/uuid"
)

// CouponPolicy decides who may redeem a coupon.
type CouponPolicy string

const (
	// PolicyOpen lets anyone redeem, up to MaxUsersCountForOpen redemptions.
	PolicyOpen CouponPolicy = "open"
	// PolicyRestricted lets only allow-listed emails redeem.
	PolicyRestricted CouponPolicy = "restricted"
)

// Valid reports whether p is a known policy.
func (p CouponPolicy) Valid() bool {
	return p == PolicyOpen || p == PolicyRestricted
}

// CouponFrequency is the calendar unit of a coupon's subscription term.
type CouponFrequency string

const (
	FrequencyMonthly CouponFrequency = "monthly"
	FrequencyYearly  CouponFrequency = "yearly"
)

// Valid reports whether f is a known frequency.
func (f CouponFrequency) Valid() bool {
	return f == FrequencyMonthly || f == FrequencyYearly
}

// Coupon grants a subscription term on one channel.
type Coupon struct {
	ID                   uuid.UUID       `json:"id"`
	ChannelID            uuid.UUID       `json:"channel_id"`
	Code                 string          `json:"code"`
	Description          *string         `json:"description,omitempty"`
	StartsOn             time.Time       `json:"starts_on"`
	EndsOn               time.Time       `json:"ends_on"`
	Policy               CouponPolicy    `json:"policy"`
	MaxUsersCountForOpen *int            `json:"max_users_count_for_open,omitempty"`
	Frequency            CouponFrequency `json:"frequency"`
	TermCount            int             `json:"term_count"`
	CreatedAt            time.Time       `json:"created_at"`
}

// CouponEmail is one allow-list entry of a restricted coupon.
type CouponEmail struct {
	ID        uuid.UUID `json:"id"`
	CouponID  uuid.UUID `json:"coupon_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

package subscriptions

import "errors"

// Redemption failures. Each message is safe to show to the subscriber.
var (
	ErrInvalidCoupon       = errors.New("invalid coupon code")
	ErrCouponExpired       = errors.New("coupon has expired")
	ErrCouponAlreadyUsed   = errors.New("coupon already used")
	ErrCouponExhausted     = errors.New("coupon usage limit reached")
	ErrCouponNotAuthorized = errors.New("you are not eligible for this coupon")
)

// Subscription lifecycle failures.
var (
	ErrAlreadySubscribed    = errors.New("already subscribed to this channel")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrChannelNotFound      = errors.New("channel not found")
)

package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind for receipts sent after ledger changes.
const (
	NotificationKindRedemptionReceipt = "redemption_receipt"
)

// NotificationStatus for delivery.
const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusSkipped = "skipped"
	NotificationStatusFailed  = "failed"
)

// NotificationLog records the delivery of one receipt job. Retries of the same job share a row.
type NotificationLog struct {
	ID             uuid.UUID  `json:"id"`
	JobID          string     `json:"job_id"`
	ChannelID      uuid.UUID  `json:"channel_id"`
	CouponID       *uuid.UUID `json:"coupon_id,omitempty"`
	SubscriberID   string     `json:"subscriber_id"`
	RecipientEmail string     `json:"recipient_email"`
	Kind           string     `json:"kind"`
	Status         string     `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

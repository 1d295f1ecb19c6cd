package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a creator's publication; it owns coupons and is the scope of every subscription.
type Channel struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

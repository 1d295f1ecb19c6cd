package coupons

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/beetopic/backend/internal/models"
)

var (
	ErrNotFound       = errors.New("coupon not found")
	ErrCodeTaken      = errors.New("coupon code already exists in this channel")
	ErrHasRedemptions = errors.New("coupon has redemptions")
)

// ValidationError describes why a coupon definition was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NormalizeCode trims and upper-cases a coupon code. Codes are case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeEmail trims and lower-cases an email for allow-list comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Definition is a coupon to be created together with its allow-list.
type Definition struct {
	ChannelID            uuid.UUID
	Code                 string
	Description          string
	StartsOn             time.Time
	EndsOn               time.Time
	Policy               models.CouponPolicy
	MaxUsersCountForOpen int
	Frequency            models.CouponFrequency
	TermCount            int
	Emails               []string
}

// Normalize validates d and returns the coupon row and de-duplicated allow-list to store.
func (d Definition) Normalize() (*models.Coupon, []string, error) {
	code := NormalizeCode(d.Code)
	switch {
	case code == "":
		return nil, nil, &ValidationError{"code", "is required"}
	case len(code) > 64:
		return nil, nil, &ValidationError{"code", "must be at most 64 characters"}
	case d.StartsOn.IsZero() || d.EndsOn.IsZero():
		return nil, nil, &ValidationError{"starts_on", "validity window is required"}
	case d.StartsOn.After(d.EndsOn):
		return nil, nil, &ValidationError{"ends_on", "must not be before starts_on"}
	case !d.Policy.Valid():
		return nil, nil, &ValidationError{"policy", "must be open or restricted"}
	case !d.Frequency.Valid():
		return nil, nil, &ValidationError{"frequency", "must be monthly or yearly"}
	case d.TermCount <= 0:
		return nil, nil, &ValidationError{"term_count", "must be a positive integer"}
	}

	c := &models.Coupon{
		ChannelID: d.ChannelID,
		Code:      code,
		StartsOn:  d.StartsOn,
		EndsOn:    d.EndsOn,
		Policy:    d.Policy,
		Frequency: d.Frequency,
		TermCount: d.TermCount,
	}
	if desc := strings.TrimSpace(d.Description); desc != "" {
		c.Description = &desc
	}

	var emails []string
	switch d.Policy {
	case models.PolicyOpen:
		if d.MaxUsersCountForOpen <= 0 {
			return nil, nil, &ValidationError{"max_users_count_for_open", "must be a positive integer for open coupons"}
		}
		if len(d.Emails) > 0 {
			return nil, nil, &ValidationError{"emails", "only restricted coupons take an allow-list"}
		}
		limit := d.MaxUsersCountForOpen
		c.MaxUsersCountForOpen = &limit
	case models.PolicyRestricted:
		seen := make(map[string]struct{}, len(d.Emails))
		for _, raw := range d.Emails {
			e := NormalizeEmail(raw)
			if _, err := mail.ParseAddress(e); err != nil {
				return nil, nil, &ValidationError{"emails", fmt.Sprintf("%q is not a valid email", raw)}
			}
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			emails = append(emails, e)
		}
		if len(emails) == 0 {
			return nil, nil, &ValidationError{"emails", "restricted coupons need at least one email"}
		}
	}
	return c, emails, nil
}

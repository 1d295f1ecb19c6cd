package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Second)

	tests := []struct {
		name string
		sub  *Subscription
		want SubscriptionStatus
	}{
		{"no row", nil, StatusNone},
		{"active", &Subscription{EndsOn: future}, StatusActive},
		{"paused", &Subscription{EndsOn: future, IsPaused: true}, StatusPaused},
		{"expired", &Subscription{EndsOn: past}, StatusExpired},
		{"expired wins over paused", &Subscription{EndsOn: past, IsPaused: true}, StatusExpired},
		{"ends exactly now", &Subscription{EndsOn: now}, StatusExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.sub, now))
		})
	}
}

func TestPolicyAndFrequencyValid(t *testing.T) {
	assert.True(t, PolicyOpen.Valid())
	assert.True(t, PolicyRestricted.Valid())
	assert.False(t, CouponPolicy("public").Valid())
	assert.True(t, FrequencyMonthly.Valid())
	assert.True(t, FrequencyYearly.Valid())
	assert.False(t, CouponFrequency("weekly").Valid())
}

package analytics

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beetopic/backend/internal/channels"
	"github.com/beetopic/backend/internal/coupons"
	"github.com/beetopic/backend/internal/models"
	"github.com/beetopic/backend/pkg/response"
)

// SubscriptionLister lists a channel's subscriptions.
type SubscriptionLister interface {
	ListByChannel(ctx context.Context, channelID uuid.UUID) ([]models.Subscription, error)
}

// CouponLister lists a channel's coupons with redemption counts.
type CouponLister interface {
	ListByChannel(ctx context.Context, channelID uuid.UUID) ([]coupons.Summary, error)
}

// Handler handles GET /channels/:id/analytics.
type Handler struct {
	subs    SubscriptionLister
	coupons CouponLister
	now     func() time.Time
	logger  *zap.Logger
}

// NewHandler creates an analytics handler.
func NewHandler(subs SubscriptionLister, couponList CouponLister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{subs: subs, coupons: couponList, now: time.Now, logger: logger}
}

// CouponUsage is the redemption count of one coupon.
type CouponUsage struct {
	CouponID    uuid.UUID           `json:"coupon_id"`
	Code        string              `json:"code"`
	Policy      models.CouponPolicy `json:"policy"`
	Redemptions int                 `json:"redemptions"`
	Remaining   *int                `json:"remaining,omitempty"`
}

// SummaryResponse is the JSON shape for channel analytics.
type SummaryResponse struct {
	TotalSubscriptions int           `json:"total_subscriptions"`
	Active             int           `json:"active"`
	Paused             int           `json:"paused"`
	Expired            int           `json:"expired"`
	TotalRedemptions   int           `json:"total_redemptions"`
	Coupons            []CouponUsage `json:"coupons"`
}

// Summarize derives the channel summary at now. Status comes from models.StatusOf only.
func Summarize(subs []models.Subscription, list []coupons.Summary, now time.Time) SummaryResponse {
	out := SummaryResponse{TotalSubscriptions: len(subs), Coupons: make([]CouponUsage, 0, len(list))}
	for i := range subs {
		switch models.StatusOf(&subs[i], now) {
		case models.StatusActive:
			out.Active++
		case models.StatusPaused:
			out.Paused++
		case models.StatusExpired:
			out.Expired++
		}
	}
	for _, c := range list {
		u := CouponUsage{CouponID: c.ID, Code: c.Code, Policy: c.Policy, Redemptions: c.Redemptions}
		if c.Policy == models.PolicyOpen && c.MaxUsersCountForOpen != nil {
			left := *c.MaxUsersCountForOpen - c.Redemptions
			if left < 0 {
				left = 0
			}
			u.Remaining = &left
		}
		out.TotalRedemptions += c.Redemptions
		out.Coupons = append(out.Coupons, u)
	}
	return out
}

// GetByChannel handles GET /channels/:id/analytics. Channel ownership is enforced by route middleware.
func (h *Handler) GetByChannel(c *gin.Context) {
	ch := channels.FromContext(c)
	ctx := c.Request.Context()

	subs, err := h.subs.ListByChannel(ctx, ch.ID)
	if err != nil {
		h.logger.Error("load subscriptions failed", zap.Error(err), zap.String("channel_id", ch.ID.String()))
		response.Internal(c, "failed to load subscriptions")
		return
	}
	list, err := h.coupons.ListByChannel(ctx, ch.ID)
	if err != nil {
		h.logger.Error("load coupons failed", zap.Error(err), zap.String("channel_id", ch.ID.String()))
		response.Internal(c, "failed to load coupon usage")
		return
	}

	response.OK(c, Summarize(subs, list, h.now()))
}

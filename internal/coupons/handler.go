package coupons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beetopic/backend/internal/channels"
	"github.com/beetopic/backend/internal/models"
	"github.com/beetopic/backend/pkg/response"
)

// Store is the coupon persistence the creator console needs.
type Store interface {
	Create(ctx context.Context, def Definition) (*models.Coupon, error)
	ListByChannel(ctx context.Context, channelID uuid.UUID) ([]Summary, error)
	Get(ctx context.Context, channelID, couponID uuid.UUID) (*Detail, error)
	Delete(ctx context.Context, channelID, couponID uuid.UUID) error
}

// Handler serves the creator console coupon endpoints. Routes are mounted behind channels.RequireOwner.
type Handler struct {
	store  Store
	loc    *time.Location
	logger *zap.Logger
}

// NewHandler creates a coupons handler. Date-only validity bounds are read in loc (UTC when nil).
func NewHandler(store Store, loc *time.Location, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{store: store, loc: loc, logger: logger}
}

// CreateCouponRequest is the body for POST /channels/:id/coupons.
type CreateCouponRequest struct {
	Code                 string   `json:"code" binding:"required"`
	Description          string   `json:"description"`
	StartsOn             string   `json:"starts_on" binding:"required"` // YYYY-MM-DD in the business timezone, or RFC3339
	EndsOn               string   `json:"ends_on" binding:"required"`
	Policy               string   `json:"policy" binding:"required,oneof=open restricted"`
	MaxUsersCountForOpen int      `json:"max_users_count_for_open"`
	Frequency            string   `json:"frequency" binding:"required,oneof=monthly yearly"`
	TermCount            int      `json:"term_count"`
	Emails               []string `json:"emails"`
}

// Create handles POST /channels/:id/coupons.
func (h *Handler) Create(c *gin.Context) {
	ch := channels.FromContext(c)
	var req CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	startsOn, err := parseDay(req.StartsOn, h.loc)
	if err != nil {
		response.BadRequest(c, "starts_on: "+err.Error())
		return
	}
	endsOn, err := parseDay(req.EndsOn, h.loc)
	if err != nil {
		response.BadRequest(c, "ends_on: "+err.Error())
		return
	}
	coupon, err := h.store.Create(c.Request.Context(), Definition{
		ChannelID:            ch.ID,
		Code:                 req.Code,
		Description:          req.Description,
		StartsOn:             startsOn,
		EndsOn:               endsOn,
		Policy:               models.CouponPolicy(req.Policy),
		MaxUsersCountForOpen: req.MaxUsersCountForOpen,
		Frequency:            models.CouponFrequency(req.Frequency),
		TermCount:            req.TermCount,
		Emails:               req.Emails,
	})
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		response.BadRequest(c, verr.Error())
		return
	case errors.Is(err, ErrCodeTaken):
		response.Conflict(c, "coupon code already exists")
		return
	case err != nil:
		h.logger.Error("create coupon failed", zap.Error(err), zap.String("channel_id", ch.ID.String()))
		response.Internal(c, "failed to create coupon")
		return
	}
	h.logger.Info("coupon created",
		zap.String("channel_id", ch.ID.String()),
		zap.String("coupon_id", coupon.ID.String()),
		zap.String("policy", string(coupon.Policy)),
	)
	response.Created(c, coupon)
}

// List handles GET /channels/:id/coupons.
func (h *Handler) List(c *gin.Context) {
	ch := channels.FromContext(c)
	list, err := h.store.ListByChannel(c.Request.Context(), ch.ID)
	if err != nil {
		h.logger.Error("list coupons failed", zap.Error(err), zap.String("channel_id", ch.ID.String()))
		response.Internal(c, "failed to load coupons")
		return
	}
	response.OK(c, list)
}

// Get handles GET /channels/:id/coupons/:couponId.
func (h *Handler) Get(c *gin.Context) {
	ch := channels.FromContext(c)
	couponID, err := uuid.Parse(c.Param("couponId"))
	if err != nil {
		response.BadRequest(c, "invalid coupon id")
		return
	}
	d, err := h.store.Get(c.Request.Context(), ch.ID, couponID)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "coupon not found")
		return
	}
	if err != nil {
		h.logger.Error("get coupon failed", zap.Error(err), zap.String("coupon_id", couponID.String()))
		response.Internal(c, "failed to load coupon")
		return
	}
	response.OK(c, d)
}

// Delete handles DELETE /channels/:id/coupons/:couponId.
func (h *Handler) Delete(c *gin.Context) {
	ch := channels.FromContext(c)
	couponID, err := uuid.Parse(c.Param("couponId"))
	if err != nil {
		response.BadRequest(c, "invalid coupon id")
		return
	}
	err = h.store.Delete(c.Request.Context(), ch.ID, couponID)
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "coupon not found")
	case errors.Is(err, ErrHasRedemptions):
		response.Conflict(c, "coupon has been redeemed and cannot be deleted")
	case err != nil:
		h.logger.Error("delete coupon failed", zap.Error(err), zap.String("coupon_id", couponID.String()))
		response.Internal(c, "failed to delete coupon")
	default:
		response.NoContent(c)
	}
}

// parseDay reads a calendar date as midnight in loc. Full RFC3339 timestamps keep their own offset.
func parseDay(v string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(time.DateOnly, v, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("want YYYY-MM-DD or RFC3339, got %q", v)
	}
	return t, nil
}

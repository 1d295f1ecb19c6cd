package subscriptions

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beetopic/backend/internal/channels"
	"github.com/beetopic/backend/internal/middleware"
	"github.com/beetopic/backend/pkg/response"
)

// Handler handles subscription HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a subscriptions handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// RedeemRequest is the body for POST /channels/:id/redeem.
type RedeemRequest struct {
	Code string `json:"code" binding:"required"`
}

// Redeem handles POST /channels/:id/redeem.
func (h *Handler) Redeem(c *gin.Context) {
	channelID, ok := channelParam(c)
	if !ok {
		return
	}
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "coupon code required")
		return
	}
	sub := Subscriber{ID: middleware.UserID(c), Email: middleware.UserEmail(c)}
	res, err := h.svc.Redeem(c.Request.Context(), channelID, req.Code, sub)
	if err != nil {
		h.writeError(c, err, "failed to redeem coupon")
		return
	}
	response.OK(c, res)
}

// Subscribe handles POST /channels/:id/subscribe.
func (h *Handler) Subscribe(c *gin.Context) {
	channelID, ok := channelParam(c)
	if !ok {
		return
	}
	sub, err := h.svc.Subscribe(c.Request.Context(), channelID, middleware.UserID(c))
	if err != nil {
		h.writeError(c, err, "failed to subscribe")
		return
	}
	response.Created(c, sub)
}

// Pause handles DELETE /channels/:id/subscription.
func (h *Handler) Pause(c *gin.Context) {
	channelID, ok := channelParam(c)
	if !ok {
		return
	}
	sub, err := h.svc.Pause(c.Request.Context(), channelID, middleware.UserID(c))
	if err != nil {
		h.writeError(c, err, "failed to cancel subscription")
		return
	}
	response.OK(c, sub)
}

// Get handles GET /channels/:id/subscription.
func (h *Handler) Get(c *gin.Context) {
	channelID, ok := channelParam(c)
	if !ok {
		return
	}
	v, err := h.svc.Get(c.Request.Context(), channelID, middleware.UserID(c))
	if err != nil {
		h.writeError(c, err, "failed to load subscription")
		return
	}
	response.OK(c, v)
}

// ListMine handles GET /subscriptions.
func (h *Handler) ListMine(c *gin.Context) {
	list, err := h.svc.ListMine(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.writeError(c, err, "failed to load subscriptions")
		return
	}
	response.OK(c, list)
}

// ListChannel handles GET /channels/:id/subscriptions. Mounted behind channels.RequireOwner.
func (h *Handler) ListChannel(c *gin.Context) {
	list, err := h.svc.ListChannel(c.Request.Context(), channels.FromContext(c).ID)
	if err != nil {
		h.writeError(c, err, "failed to load subscriptions")
		return
	}
	response.OK(c, list)
}

// ListTransactions handles GET /channels/:id/transactions. Mounted behind channels.RequireOwner.
func (h *Handler) ListTransactions(c *gin.Context) {
	list, err := h.svc.ListTransactions(c.Request.Context(), channels.FromContext(c).ID)
	if err != nil {
		h.writeError(c, err, "failed to load transactions")
		return
	}
	response.OK(c, list)
}

func channelParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid channel id")
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps domain errors to client-visible responses. Anything else is logged
// and reported with the generic fallback message.
func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidCoupon):
		response.NotFound(c, ErrInvalidCoupon.Error())
	case errors.Is(err, ErrCouponExpired):
		response.Gone(c, ErrCouponExpired.Error())
	case errors.Is(err, ErrCouponAlreadyUsed):
		response.Conflict(c, ErrCouponAlreadyUsed.Error())
	case errors.Is(err, ErrCouponExhausted):
		response.Conflict(c, ErrCouponExhausted.Error())
	case errors.Is(err, ErrCouponNotAuthorized):
		response.Forbidden(c, ErrCouponNotAuthorized.Error())
	case errors.Is(err, ErrAlreadySubscribed):
		response.Conflict(c, ErrAlreadySubscribed.Error())
	case errors.Is(err, ErrSubscriptionNotFound):
		response.NotFound(c, ErrSubscriptionNotFound.Error())
	case errors.Is(err, ErrChannelNotFound):
		response.NotFound(c, ErrChannelNotFound.Error())
	default:
		h.logger.Error(fallback, zap.Error(err), zap.String("path", c.FullPath()))
		response.Internal(c, fallback)
	}
}

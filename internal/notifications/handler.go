package notifications

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beetopic/backend/internal/channels"
	"github.com/beetopic/backend/internal/models"
	"github.com/beetopic/backend/pkg/response"
)

// Lister reads notification logs.
type Lister interface {
	ListByChannel(ctx context.Context, channelID uuid.UUID) ([]models.NotificationLog, error)
}

// Handler handles notification log HTTP endpoints.
type Handler struct {
	repo   Lister
	logger *zap.Logger
}

// NewHandler creates a notifications handler.
func NewHandler(repo Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListByChannel handles GET /channels/:id/notifications.
// Call after channels.RequireOwner so access is already validated.
func (h *Handler) ListByChannel(c *gin.Context) {
	ch := channels.FromContext(c)
	logs, err := h.repo.ListByChannel(c.Request.Context(), ch.ID)
	if err != nil {
		h.logger.Error("list notifications failed", zap.Error(err), zap.String("channel_id", ch.ID.String()))
		response.Internal(c, "failed to load notifications")
		return
	}
	response.OK(c, logs)
}

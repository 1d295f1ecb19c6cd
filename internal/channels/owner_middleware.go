package channels

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/beetopic/backend/internal/middleware"
	"github.com/beetopic/backend/internal/models"
	"github.com/beetopic/backend/pkg/response"
)

// ContextChannel is the context key for the channel loaded by RequireOwner.
const ContextChannel = "channel"

// Getter loads a channel by id.
type Getter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error)
}

// RequireOwner allows the request only when the authenticated user owns the channel in :id.
// Call after JWT.
func RequireOwner(store Getter) gin.HandlerFunc {
	return func(c *gin.Context) {
		channelID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid channel id")
			return
		}
		ch, err := store.GetByID(c.Request.Context(), channelID)
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "channel not found")
			return
		}
		if err != nil {
			_ = c.Error(err)
			response.Internal(c, "failed to load channel")
			return
		}
		if ch.OwnerID != middleware.UserID(c) {
			response.Forbidden(c, "not authorized for this channel")
			return
		}
		c.Set(ContextChannel, ch)
		c.Next()
	}
}

// FromContext returns the channel set by RequireOwner.
func FromContext(c *gin.Context) *models.Channel {
	v, ok := c.Get(ContextChannel)
	if !ok {
		return nil
	}
	ch, _ := v.(*models.Channel)
	return ch
}

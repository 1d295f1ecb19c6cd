package channels

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beetopic/backend/internal/middleware"
	"github.com/beetopic/backend/internal/models"
	"github.com/beetopic/backend/pkg/response"
)

// Slug must be lowercase alphanumeric and hyphens only, 2–64 chars.
var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

// Store is the channel persistence the HTTP layer needs.
type Store interface {
	Create(ctx context.Context, ch *models.Channel) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Channel, error)
}

// Handler handles channel HTTP endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a channels handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// CreateChannelRequest is the body for POST /channels.
type CreateChannelRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

// Create handles POST /channels. The caller becomes the owner.
func (h *Handler) Create(c *gin.Context) {
	var body CreateChannelRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name and slug required")
		return
	}
	body.Slug = strings.ToLower(strings.TrimSpace(body.Slug))
	if !slugRegex.MatchString(body.Slug) {
		response.BadRequest(c, "slug must be 2–64 chars, lowercase letters, numbers, hyphens only")
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if len(body.Name) < 1 || len(body.Name) > 255 {
		response.BadRequest(c, "name must be 1–255 characters")
		return
	}
	ch := &models.Channel{Name: body.Name, Slug: body.Slug, OwnerID: middleware.UserID(c)}
	if err := h.store.Create(c.Request.Context(), ch); err != nil {
		if errors.Is(err, ErrSlugTaken) {
			response.Conflict(c, "a channel with this slug already exists")
			return
		}
		h.logger.Error("create channel failed", zap.Error(err))
		response.Internal(c, "failed to create channel")
		return
	}
	response.Created(c, ch)
}

// Get handles GET /channels/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid channel id")
		return
	}
	ch, err := h.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "channel not found")
		return
	}
	if err != nil {
		h.logger.Error("get channel failed", zap.Error(err), zap.String("channel_id", id.String()))
		response.Internal(c, "failed to load channel")
		return
	}
	response.OK(c, ch)
}

// ListMine handles GET /channels. Returns the channels the caller owns.
func (h *Handler) ListMine(c *gin.Context) {
	list, err := h.store.ListByOwner(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.logger.Error("list channels failed", zap.Error(err))
		response.Internal(c, "failed to load channels")
		return
	}
	response.OK(c, list)
}

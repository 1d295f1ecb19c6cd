package channels

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beetopic/backend/internal/models"
	"github.com/beetopic/backend/pkg/database"
)

var (
	ErrNotFound  = errors.New("channel not found")
	ErrSlugTaken = errors.New("channel slug already exists")
)

// Repository handles channel persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a channels repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a channel.
func (r *Repository) Create(ctx context.Context, ch *models.Channel) error {
	const q = `INSERT INTO channels (id, name, slug, owner_id)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, ch.Name, ch.Slug, ch.OwnerID).
		Scan(&ch.ID, &ch.CreatedAt, &ch.UpdatedAt)
	if database.IsUniqueViolation(err, "channels_slug_key") {
		return ErrSlugTaken
	}
	return err
}

// GetByID returns a channel by ID, or ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	const q = `SELECT id, name, slug, owner_id, created_at, updated_at FROM channels WHERE id = $1`
	var ch models.Channel
	err := r.pool.QueryRow(ctx, q, id).Scan(&ch.ID, &ch.Name, &ch.Slug, &ch.OwnerID, &ch.CreatedAt, &ch.UpdatedAt)
	if database.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return &ch, nil
}

// ListByOwner returns the channels owned by ownerID, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]models.Channel, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, slug, owner_id, created_at, updated_at
		FROM channels WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Channel{}
	for rows.Next() {
		var ch models.Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Slug, &ch.OwnerID, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, ch)
	}
	return list, rows.Err()
}

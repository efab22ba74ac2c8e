package upload

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/venue/internal/models"
)

// Repository handles stored file metadata.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a stored files repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts file metadata and fills in created_at.
func (r *Repository) Create(ctx context.Context, f *models.StoredFile) error {
	const q = `INSERT INTO stored_files (id, world_id, user_id, filename, type, size, key, url, public)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`
	return r.pool.QueryRow(ctx, q, f.ID, f.WorldID, f.UserID, f.Filename, f.Type, f.Size, f.Key, f.URL, f.Public).
		Scan(&f.CreatedAt)
}

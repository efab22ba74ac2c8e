package worlds

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/venue/internal/models"
)

// ErrWorldNotFound is returned when no world is configured for a host.
var ErrWorldNotFound = errors.New("world not found")

// Repository handles world persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a worlds repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByDomain returns the world served on host. A port suffix is ignored when the
// exact host is not configured.
func (r *Repository) GetByDomain(ctx context.Context, host string) (*models.World, error) {
	w, err := r.getByDomain(ctx, host)
	if errors.Is(err, ErrWorldNotFound) {
		if h, _, splitErr := net.SplitHostPort(host); splitErr == nil {
			return r.getByDomain(ctx, h)
		}
	}
	return w, err
}

func (r *Repository) getByDomain(ctx context.Context, domain string) (*models.World, error) {
	const q = `SELECT id, domain, title, timezone, jwt_secret, jwt_issuer, jwt_audience, default_permissions, created_at
		FROM worlds WHERE domain = $1`
	var w models.World
	err := r.pool.QueryRow(ctx, q, domain).Scan(&w.ID, &w.Domain, &w.Title, &w.Timezone,
		&w.JWTSecret, &w.JWTIssuer, &w.JWTAudience, &w.DefaultPermissions, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorldNotFound
		}
		return nil, err
	}
	return &w, nil
}

package auth

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/blake2b"

	"github.com/aura-webinar/venue/internal/models"
)

// Repository logs users in against Postgres and loads their grants.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// HashClientID returns the digest under which a raw client identifier is stored.
func HashClientID(clientID string) string {
	sum := blake2b.Sum256([]byte(clientID))
	return hex.EncodeToString(sum[:])
}

// LoginWithToken finds or creates the user identified by the token's uid.
func (r *Repository) LoginWithToken(ctx context.Context, world *models.World, claims *Claims) (*LoginResult, error) {
	const q = `INSERT INTO users (world_id, token_id)
		VALUES ($1, $2)
		ON CONFLICT (world_id, token_id) WHERE token_id IS NOT NULL DO UPDATE SET last_login_at = NOW()
		RETURNING id, world_id, COALESCE(token_id,''), display_name, banned, created_at`
	u, banned, err := r.scanUser(ctx, q, world.ID, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("upsert token user: %w", err)
	}
	if banned {
		return nil, ErrLoginRejected
	}
	return r.loadGrants(ctx, world, u, claims.Traits)
}

// LoginWithClient finds or creates the anonymous user behind a client identifier.
func (r *Repository) LoginWithClient(ctx context.Context, world *models.World, clientID string) (*LoginResult, error) {
	if clientID == "" {
		return nil, ErrLoginRejected
	}
	const q = `INSERT INTO users (world_id, client_id_hash)
		VALUES ($1, $2)
		ON CONFLICT (world_id, client_id_hash) WHERE client_id_hash IS NOT NULL DO UPDATE SET last_login_at = NOW()
		RETURNING id, world_id, COALESCE(token_id,''), display_name, banned, created_at`
	u, banned, err := r.scanUser(ctx, q, world.ID, HashClientID(clientID))
	if err != nil {
		return nil, fmt.Errorf("upsert client user: %w", err)
	}
	if banned {
		return nil, ErrLoginRejected
	}
	return r.loadGrants(ctx, world, u, nil)
}

func (r *Repository) scanUser(ctx context.Context, q string, args ...any) (*models.User, bool, error) {
	var u models.User
	var banned bool
	err := r.pool.QueryRow(ctx, q, args...).Scan(&u.ID, &u.WorldID, &u.TokenID, &u.DisplayName, &banned, &u.CreatedAt)
	if err != nil {
		return nil, false, err
	}
	return &u, banned, nil
}

func (r *Repository) loadGrants(ctx context.Context, world *models.World, u *models.User, traits []string) (*LoginResult, error) {
	res := &LoginResult{User: u, RoomPermissions: make(map[uuid.UUID][]string)}

	rows, err := r.pool.Query(ctx, `SELECT permission FROM world_grants WHERE world_id = $1 AND user_id = $2
		UNION
		SELECT permission FROM trait_grants WHERE world_id = $1 AND trait = ANY($3)`,
		world.ID, u.ID, traits)
	if err != nil {
		return nil, fmt.Errorf("query world grants: %w", err)
	}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, err
		}
		res.WorldPermissions = append(res.WorldPermissions, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `SELECT g.room_id, g.permission FROM room_grants g
		JOIN rooms r ON r.id = g.room_id
		WHERE r.world_id = $1 AND g.user_id = $2`, world.ID, u.ID)
	if err != nil {
		return nil, fmt.Errorf("query room grants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var room uuid.UUID
		var p string
		if err := rows.Scan(&room, &p); err != nil {
			return nil, err
		}
		res.RoomPermissions[room] = append(res.RoomPermissions[room], p)
	}
	return res, rows.Err()
}

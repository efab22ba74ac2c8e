// Package testutil starts throwaway infrastructure for integration tests.
package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"github.com/aura-webinar/venue/pkg/database"
)

// DB is a migrated Postgres database running in a container for one test.
type DB struct {
	Pool *pgxpool.Pool
}

// StartPostgres runs postgres:16-alpine, applies the migrations and returns a pool.
// The test is skipped in -short mode or when no container runtime is reachable.
func StartPostgres(t *testing.T) *DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("venue"),
		postgres.WithUsername("venue"),
		postgres.WithPassword("venue"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	pool, err := database.NewPostgresPool(ctx, dsn, database.PoolOptions{}, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := database.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return &DB{Pool: pool}
}

// World inserts a world served on domain.
func (db *DB) World(t *testing.T, domain string, defaults ...string) uuid.UUID {
	t.Helper()
	if defaults == nil {
		defaults = []string{}
	}
	var id uuid.UUID
	err := db.Pool.QueryRow(context.Background(),
		`INSERT INTO worlds (domain, timezone, default_permissions) VALUES ($1, 'Europe/Berlin', $2) RETURNING id`,
		domain, defaults).Scan(&id)
	if err != nil {
		t.Fatalf("insert world: %v", err)
	}
	return id
}

// Room inserts a room in the world.
func (db *DB) Room(t *testing.T, world uuid.UUID) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	if err := db.Pool.QueryRow(context.Background(), `INSERT INTO rooms (world_id) VALUES ($1) RETURNING id`, world).Scan(&id); err != nil {
		t.Fatalf("insert room: %v", err)
	}
	return id
}

// User inserts a token user in the world.
func (db *DB) User(t *testing.T, world uuid.UUID) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := db.Pool.QueryRow(context.Background(),
		`INSERT INTO users (world_id, token_id) VALUES ($1, $2) RETURNING id`, world, uuid.NewString()).Scan(&id)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}

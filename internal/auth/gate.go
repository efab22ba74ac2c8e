package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/venue/internal/models"
)

var (
	// ErrUnauthorized means the credential is missing, malformed or was rejected at login.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the credential is valid but grants none of the required permissions.
	ErrForbidden = errors.New("forbidden")
	// ErrLoginRejected is returned by an Authenticator for credentials it refuses (e.g. banned users).
	ErrLoginRejected = errors.New("login rejected")
)

// LoginResult is what an Authenticator knows about a logged-in user.
type LoginResult struct {
	User             *models.User
	WorldPermissions []string
	RoomPermissions  map[uuid.UUID][]string
}

// Authenticator logs a user into a world. Unknown users are created on first login.
type Authenticator interface {
	LoginWithToken(ctx context.Context, world *models.World, claims *Claims) (*LoginResult, error)
	LoginWithClient(ctx context.Context, world *models.World, clientID string) (*LoginResult, error)
}

// TokenDecoder turns a bearer token into claims.
type TokenDecoder interface {
	Decode(world *models.World, token string) (*Claims, error)
}

// Requirement describes what a request needs: at least one of Permissions,
// granted world-wide or in Room. A nil Room accepts a grant in any room.
type Requirement struct {
	Permissions []models.Permission
	Room        *uuid.UUID
}

// Gate resolves the Authorization header of a request to a Principal.
type Gate struct {
	tokens TokenDecoder
	authn  Authenticator
	logger *zap.Logger
}

// NewGate creates an auth gate.
func NewGate(tokens TokenDecoder, authn Authenticator, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{tokens: tokens, authn: authn, logger: logger}
}

// Authenticate accepts "Bearer <jwt>" or "Client <client id>" and checks the requirement.
// Errors other than ErrUnauthorized/ErrForbidden come from the store and are server errors.
func (g *Gate) Authenticate(ctx context.Context, world *models.World, header string, req Requirement) (*models.Principal, error) {
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return nil, ErrUnauthorized
	}

	var (
		res *LoginResult
		err error
	)
	switch strings.ToLower(parts[0]) {
	case "bearer":
		claims, decErr := g.tokens.Decode(world, parts[1])
		if decErr != nil {
			return nil, ErrUnauthorized
		}
		res, err = g.authn.LoginWithToken(ctx, world, claims)
	case "client":
		res, err = g.authn.LoginWithClient(ctx, world, parts[1])
	default:
		return nil, ErrUnauthorized
	}
	if err != nil {
		if errors.Is(err, ErrLoginRejected) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	principal := buildPrincipal(world, res)
	if !allowed(principal, req) {
		g.logger.Debug("permission denied",
			zap.String("user_id", principal.UserID.String()),
			zap.String("world_id", world.ID.String()),
		)
		return nil, ErrForbidden
	}
	return principal, nil
}

func buildPrincipal(world *models.World, res *LoginResult) *models.Principal {
	perms := models.PermissionSetFromStrings(world.DefaultPermissions)
	for _, p := range res.WorldPermissions {
		perms[models.Permission(p)] = struct{}{}
	}
	rooms := make(map[uuid.UUID]models.PermissionSet, len(res.RoomPermissions))
	for room, granted := range res.RoomPermissions {
		rooms[room] = models.PermissionSetFromStrings(granted)
	}
	return &models.Principal{
		UserID:          res.User.ID,
		WorldID:         world.ID,
		Permissions:     perms,
		RoomPermissions: rooms,
	}
}

func allowed(p *models.Principal, req Requirement) bool {
	if p.Permissions.Intersects(req.Permissions) {
		return true
	}
	if req.Room != nil {
		return p.RoomPermissions[*req.Room].Intersects(req.Permissions)
	}
	for _, perms := range p.RoomPermissions {
		if perms.Intersects(req.Permissions) {
			return true
		}
	}
	return false
}

package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/venue/internal/auth"
	"github.com/aura-webinar/venue/internal/models"
	"github.com/aura-webinar/venue/internal/worlds"
	"github.com/aura-webinar/venue/pkg/response"
)

// ContextPrincipal is the key for the authenticated principal in gin context.
const ContextPrincipal = "principal"

// Authenticator resolves the Authorization header to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, world *models.World, header string, req auth.Requirement) (*models.Principal, error)
}

// RequirePermissions returns a middleware that authenticates the request once and
// requires one of perms. With a non-empty roomParam the grant must be world-wide or
// in that room; otherwise a grant in any room suffices. Must run after worlds.Resolve.
func RequirePermissions(gate Authenticator, logger *zap.Logger, roomParam string, perms ...models.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := auth.Requirement{Permissions: perms}
		if roomParam != "" {
			room, err := uuid.Parse(c.Param(roomParam))
			if err != nil {
				response.BadRequest(c, "invalid room id")
				c.Abort()
				return
			}
			req.Room = &room
		}

		principal, err := gate.Authenticate(c.Request.Context(), worlds.FromContext(c), c.GetHeader("Authorization"), req)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrUnauthorized):
			response.Denied(c, http.StatusUnauthorized)
			return
		case errors.Is(err, auth.ErrForbidden):
			response.Denied(c, http.StatusForbidden)
			return
		default:
			logger.Error("authenticate failed", zap.Error(err))
			response.Internal(c, "failed to authenticate")
			c.Abort()
			return
		}
		c.Set(ContextPrincipal, principal)
		c.Next()
	}
}

// PrincipalFrom returns the principal set by RequirePermissions.
func PrincipalFrom(c *gin.Context) *models.Principal {
	return c.MustGet(ContextPrincipal).(*models.Principal)
}

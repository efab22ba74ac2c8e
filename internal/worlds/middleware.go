package worlds

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/venue/internal/models"
	"github.com/aura-webinar/venue/pkg/response"
)

// ContextWorld is the gin context key for the resolved world.
const ContextWorld = "world"

// Lookup finds the world served on a host.
type Lookup interface {
	GetByDomain(ctx context.Context, host string) (*models.World, error)
}

// Resolve returns a middleware that resolves the request host to a world or responds 404.
func Resolve(lookup Lookup, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := lookup.GetByDomain(c.Request.Context(), c.Request.Host)
		if err != nil {
			if errors.Is(err, ErrWorldNotFound) {
				response.NotFound(c, "world not found")
			} else {
				logger.Error("resolve world failed", zap.Error(err), zap.String("host", c.Request.Host))
				response.Internal(c, "failed to resolve world")
			}
			c.Abort()
			return
		}
		c.Set(ContextWorld, w)
		c.Next()
	}
}

// FromContext returns the world set by Resolve.
func FromContext(c *gin.Context) *models.World {
	return c.MustGet(ContextWorld).(*models.World)
}

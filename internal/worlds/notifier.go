package worlds

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/venue/internal/models"
	"github.com/aura-webinar/venue/internal/realtime"
)

const notifyTimeout = 5 * time.Second

// EventPublisher publishes world-scoped events.
type EventPublisher interface {
	PublishWorldEvent(ctx context.Context, worldID uuid.UUID, event string, payload any) error
}

// Notifier tells connected clients that world-level data changed.
// Notifications are best-effort: they run detached from the request and are never retried.
type Notifier struct {
	pub    EventPublisher
	logger *zap.Logger
}

// NewNotifier creates a notifier. A nil publisher makes every notification a no-op.
func NewNotifier(pub EventPublisher, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{pub: pub, logger: logger}
}

// ScheduleChanged announces a new schedule file for the world.
func (n *Notifier) ScheduleChanged(ctx context.Context, world *models.World, file *models.StoredFile) {
	if n.pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	go func() {
		defer cancel()
		payload := map[string]any{"world_id": world.ID, "url": file.URL}
		if err := n.pub.PublishWorldEvent(ctx, world.ID, realtime.EventScheduleChanged, payload); err != nil {
			n.logger.Warn("schedule change notification failed", zap.Error(err), zap.String("world_id", world.ID.String()))
		}
	}()
}

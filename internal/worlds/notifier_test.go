package worlds

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aura-webinar/venue/internal/models"
	"github.com/aura-webinar/venue/internal/realtime"
)

type recordingPublisher struct {
	events chan string
	err    error
}

func (p *recordingPublisher) PublishWorldEvent(_ context.Context, worldID uuid.UUID, event string, _ any) error {
	p.events <- worldID.String() + " " + event
	return p.err
}

func TestScheduleChangedPublishesAfterRequestEnds(t *testing.T) {
	pub := &recordingPublisher{events: make(chan string, 1), err: errors.New("redis down")}
	n := NewNotifier(pub, nil)
	world := &models.World{ID: uuid.New()}

	ctx, cancel := context.WithCancel(context.Background())
	n.ScheduleChanged(ctx, world, &models.StoredFile{URL: "https://cdn/x.json"})
	cancel()

	select {
	case got := <-pub.events:
		if want := world.ID.String() + " " + realtime.EventScheduleChanged; got != want {
			t.Fatalf("event = %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not published")
	}
}

func TestScheduleChangedWithoutPublisher(t *testing.T) {
	NewNotifier(nil, nil).ScheduleChanged(context.Background(), &models.World{}, &models.StoredFile{})
}

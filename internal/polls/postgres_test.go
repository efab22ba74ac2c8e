package polls

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/aura-webinar/venue/internal/models"
	"github.com/aura-webinar/venue/internal/testutil"
	"github.com/aura-webinar/venue/pkg/database"
)

func TestPostgresStore(t *testing.T) {
	db := testutil.StartPostgres(t)
	if err := database.Migrate(context.Background(), db.Pool); err != nil {
		t.Fatalf("second migrate should be a no-op: %v", err)
	}
	world := db.World(t, "venue.test")
	svc := NewService(NewPostgresStore(db.Pool), nil, nil)
	ctx := context.Background()

	t.Run("create vote update delete", func(t *testing.T) {
		room := db.Room(t, world)
		sender := db.User(t, world)
		p := createPoll(t, svc, room, models.PollOpen, "A", "B", "C")
		if len(p.Options) != 3 || p.Options[1].Content != "B" {
			t.Fatalf("options = %+v", p.Options)
		}
		a, b, c := p.Options[0].ID, p.Options[1].ID, p.Options[2].ID

		if _, err := svc.Vote(ctx, p.ID, room, sender, []uuid.UUID{a, b, uuid.New()}); err != nil {
			t.Fatalf("vote: %v", err)
		}
		got, err := svc.Vote(ctx, p.ID, room, sender, []uuid.UUID{c, c})
		if err != nil {
			t.Fatalf("revote: %v", err)
		}
		if got.VoteCount(a) != 0 || got.VoteCount(b) != 0 || got.VoteCount(c) != 1 {
			t.Fatalf("results = %v", got.Results)
		}

		got, err = svc.Update(ctx, p.ID, room, UpdateRequest{Options: []OptionInput{{ID: &c}, {Content: ptr("D")}}})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if len(got.Options) != 2 || got.Options[0].Content != "C" || got.Options[1].Order != 3 {
			t.Fatalf("options after diff = %+v", got.Options)
		}
		if got.VoteCount(c) != 1 {
			t.Fatalf("vote on kept option lost: %v", got.Results)
		}

		unknown := uuid.New()
		if _, err := svc.Update(ctx, p.ID, room, UpdateRequest{Content: ptr("rolled back"), Options: []OptionInput{{ID: &unknown}}}); !errors.Is(err, ErrOptionNotFound) {
			t.Fatalf("unknown option: err = %v", err)
		}
		after, err := svc.Get(ctx, p.ID, room)
		if err != nil {
			t.Fatal(err)
		}
		if after.Content == "rolled back" {
			t.Fatal("failed update was committed")
		}

		ids, err := svc.VotedPollIDs(ctx, room, sender)
		if err != nil || len(ids) != 1 || ids[0] != p.ID {
			t.Fatalf("voted = %v, err = %v", ids, err)
		}

		if err := svc.Delete(ctx, p.ID, room); err != nil {
			t.Fatalf("delete: %v", err)
		}
		var votes int
		if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM poll_votes WHERE sender_id = $1`, sender).Scan(&votes); err != nil {
			t.Fatal(err)
		}
		if votes != 0 {
			t.Fatalf("%d votes survived delete", votes)
		}
	})

	t.Run("list filters", func(t *testing.T) {
		room := db.Room(t, world)
		createPoll(t, svc, room, models.PollDraft, "A")
		open := createPoll(t, svc, room, models.PollOpen, "A")
		if err := svc.Pin(ctx, open.ID, room); err != nil {
			t.Fatal(err)
		}
		list, err := svc.ListForRoom(ctx, room, ListOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 1 || list[0].ID != open.ID || list[0].Results != nil {
			t.Fatalf("attendee list = %+v", list)
		}
		list, err = svc.ListForRoom(ctx, room, ListOptions{Moderator: true, Filter: Filter{Pinned: ptr(false)}})
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 1 || list[0].State != models.PollDraft {
			t.Fatalf("moderator unpinned list = %+v", list)
		}
	})

	t.Run("concurrent pins", func(t *testing.T) {
		room := db.Room(t, world)
		var ids []uuid.UUID
		for i := 0; i < 8; i++ {
			ids = append(ids, createPoll(t, svc, room, models.PollOpen, "A").ID)
		}
		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(1)
			go func(id uuid.UUID) {
				defer wg.Done()
				if err := svc.Pin(ctx, id, room); err != nil {
					t.Errorf("pin: %v", err)
				}
			}(id)
		}
		wg.Wait()
		var pinned int
		if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM polls WHERE room_id = $1 AND is_pinned`, room).Scan(&pinned); err != nil {
			t.Fatal(err)
		}
		if pinned != 1 {
			t.Fatalf("pinned = %d, want 1", pinned)
		}
	})

	t.Run("concurrent votes", func(t *testing.T) {
		room := db.Room(t, world)
		sender := db.User(t, world)
		p := createPoll(t, svc, room, models.PollOpen, "A", "B")
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := svc.Vote(ctx, p.ID, room, sender, []uuid.UUID{p.Options[i%2].ID}); err != nil {
					t.Errorf("vote: %v", err)
				}
			}(i)
		}
		wg.Wait()
		var votes int
		if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM poll_votes WHERE sender_id = $1`, sender).Scan(&votes); err != nil {
			t.Fatal(err)
		}
		if votes != 1 {
			t.Fatalf("sender holds %d votes, want 1", votes)
		}
	})
}

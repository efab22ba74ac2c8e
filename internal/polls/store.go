package polls

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/aura-webinar/venue/internal/models"
)

var (
	ErrPollNotFound   = errors.New("poll not found")
	ErrOptionNotFound = errors.New("poll option not found")
	ErrInvalidState   = errors.New("invalid poll state")
)

// Query narrows a room listing. Nil fields match everything.
type Query struct {
	States []models.PollState
	Pinned *bool
}

// Store runs a unit of work. Everything done through the Tx commits or rolls back together.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the set of operations available inside a unit of work.
// Polls returned by GetPoll and ListPolls carry their options sorted by order.
type Tx interface {
	GetPoll(ctx context.Context, id, room uuid.UUID) (*models.Poll, error)
	ListPolls(ctx context.Context, room uuid.UUID, q Query) ([]*models.Poll, error)
	InsertPoll(ctx context.Context, p *models.Poll) error
	UpdatePoll(ctx context.Context, p *models.Poll) error
	DeletePoll(ctx context.Context, id uuid.UUID) error

	InsertOption(ctx context.Context, o *models.PollOption) error
	UpdateOption(ctx context.Context, o *models.PollOption) error
	DeleteOptions(ctx context.Context, ids []uuid.UUID) error

	// LockRoom serializes pin changes within a room until the unit of work ends.
	LockRoom(ctx context.Context, room uuid.UUID) error
	UnpinRoom(ctx context.Context, room uuid.UUID) error

	// LockBallot serializes ballot replacement for one sender on one poll.
	LockBallot(ctx context.Context, pollID, sender uuid.UUID) error
	DeleteVotes(ctx context.Context, pollID, sender uuid.UUID) error
	InsertVote(ctx context.Context, v *models.PollVote) error
	// Results returns vote counts keyed by poll id then option id.
	Results(ctx context.Context, pollIDs []uuid.UUID) (map[uuid.UUID]map[string]int, error)
	VotedPollIDs(ctx context.Context, room, user uuid.UUID) ([]uuid.UUID, error)
}

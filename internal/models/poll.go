package models

import (
	"time"

	"github.com/google/uuid"
)

// PollState is the lifecycle state of a poll.
type PollState string

const (
	PollDraft    PollState = "draft"
	PollOpen     PollState = "open"
	PollClosed   PollState = "closed"
	PollArchived PollState = "archived"
)

// Valid reports whether s is a known state.
func (s PollState) Valid() bool {
	switch s {
	case PollDraft, PollOpen, PollClosed, PollArchived:
		return true
	}
	return false
}

// PublicStates are the states visible to non-moderators.
var PublicStates = []PollState{PollOpen, PollClosed}

// Poll is a question asked in a room.
type Poll struct {
	ID        uuid.UUID    `json:"id"`
	RoomID    uuid.UUID    `json:"room_id"`
	Content   string       `json:"content"`
	State     PollState    `json:"state"`
	IsPinned  bool         `json:"is_pinned"`
	Options   []PollOption `json:"options"`
	CreatedAt time.Time    `json:"created_at"`
	// Results maps option id to vote count; only set when aggregates were requested.
	Results map[string]int `json:"results,omitempty"`
}

// PollOption is one answer choice of a poll.
type PollOption struct {
	ID      uuid.UUID `json:"id"`
	PollID  uuid.UUID `json:"poll_id"`
	Content string    `json:"content"`
	Order   int       `json:"order"`
}

// PollVote is one choice in a sender's current ballot.
type PollVote struct {
	ID        uuid.UUID `json:"id"`
	OptionID  uuid.UUID `json:"option_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	CreatedAt time.Time `json:"created_at"`
}

// VoteCount returns the aggregated votes for an option, zero when results are not attached.
func (p *Poll) VoteCount(optionID uuid.UUID) int {
	return p.Results[optionID.String()]
}

package polls

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/venue/internal/models"
	"github.com/aura-webinar/venue/internal/realtime"
)

// Publisher fans poll changes out to the room.
type Publisher interface {
	PublishRoomEvent(ctx context.Context, roomID uuid.UUID, event string, payload any) error
}

// OptionInput describes one option in a create or update request.
// An option without ID is new; Order defaults to the end of the list.
// Nil fields of an existing option keep their stored value.
type OptionInput struct {
	ID      *uuid.UUID `json:"id"`
	Content *string    `json:"content"`
	Order   *int       `json:"order"`
}

func (in OptionInput) content() string {
	if in.Content == nil {
		return ""
	}
	return *in.Content
}

// CreateRequest is the input of Service.Create. An empty State means draft.
type CreateRequest struct {
	Content string           `json:"content" binding:"required"`
	State   models.PollState `json:"state"`
	Options []OptionInput    `json:"options"`
}

// UpdateRequest carries the fields to change. Nil fields are left alone and an empty
// Options list keeps the current options.
type UpdateRequest struct {
	Content  *string           `json:"content"`
	State    *models.PollState `json:"state"`
	IsPinned *bool             `json:"is_pinned"`
	Options  []OptionInput     `json:"options"`
}

// Filter narrows ListForRoom.
type Filter struct {
	State  *models.PollState
	Pinned *bool
}

// ListOptions controls what ListForRoom returns for the caller.
type ListOptions struct {
	Moderator bool
	// ForUser is accepted for marking the caller's own answers but has no effect yet.
	ForUser *uuid.UUID
	Filter  Filter
}

// Service manages polls and ballots in rooms.
type Service struct {
	store  Store
	pub    Publisher
	logger *zap.Logger
}

// NewService creates a poll service. pub may be nil.
func NewService(store Store, pub Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, pub: pub, logger: logger}
}

// Create stores a poll and its options and returns the reloaded poll.
func (s *Service) Create(ctx context.Context, room uuid.UUID, req CreateRequest) (*models.Poll, error) {
	state := req.State
	if state == "" {
		state = models.PollDraft
	}
	if !state.Valid() {
		return nil, ErrInvalidState
	}

	var poll *models.Poll
	err := s.store.InTx(ctx, func(tx Tx) error {
		p := &models.Poll{RoomID: room, Content: req.Content, State: state}
		if err := tx.InsertPoll(ctx, p); err != nil {
			return err
		}
		for i, in := range req.Options {
			o := &models.PollOption{PollID: p.ID, Content: in.content(), Order: i}
			if in.Order != nil {
				o.Order = *in.Order
			}
			if err := tx.InsertOption(ctx, o); err != nil {
				return err
			}
		}
		var err error
		poll, err = s.loadWithResults(ctx, tx, p.ID, room)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create poll: %w", err)
	}
	s.publish(ctx, room, realtime.EventPollCreated, poll.ID)
	return poll, nil
}

// Get returns a poll of the room with its vote counts.
func (s *Service) Get(ctx context.Context, id, room uuid.UUID) (*models.Poll, error) {
	var poll *models.Poll
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		poll, err = s.loadWithResults(ctx, tx, id, room)
		return err
	})
	if err != nil {
		return nil, err
	}
	return poll, nil
}

// Pin makes the poll the only pinned poll of its room.
func (s *Service) Pin(ctx context.Context, id, room uuid.UUID) error {
	var poll *models.Poll
	err := s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.LockRoom(ctx, room); err != nil {
			return err
		}
		p, err := tx.GetPoll(ctx, id, room)
		if err != nil {
			return err
		}
		if err := tx.UnpinRoom(ctx, room); err != nil {
			return err
		}
		p.IsPinned = true
		if err := tx.UpdatePoll(ctx, p); err != nil {
			return err
		}
		poll = p
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, room, realtime.EventPollPinned, poll.ID)
	return nil
}

// ListForRoom returns the room's polls in creation order. Non-moderators only see open
// and closed polls; moderators see every state and get vote counts attached.
func (s *Service) ListForRoom(ctx context.Context, room uuid.UUID, opts ListOptions) ([]*models.Poll, error) {
	q := Query{Pinned: opts.Filter.Pinned}
	if st := opts.Filter.State; st != nil {
		if !st.Valid() {
			return nil, ErrInvalidState
		}
		q.States = []models.PollState{*st}
	}
	if !opts.Moderator {
		q.States = visibleStates(q.States)
		if len(q.States) == 0 {
			return []*models.Poll{}, nil
		}
	}

	var list []*models.Poll
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		list, err = tx.ListPolls(ctx, room, q)
		if err != nil || !opts.Moderator {
			return err
		}
		return attachResults(ctx, tx, list)
	})
	if err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	if list == nil {
		list = []*models.Poll{}
	}
	return list, nil
}

// Update applies the set fields of req. Any valid state may be assigned. Pinning a poll
// unpins the rest of the room in the same transaction. A non-empty option list replaces
// the poll's options by id: missing ids are deleted with their votes, known ids are
// rewritten and id-less entries are appended.
func (s *Service) Update(ctx context.Context, id, room uuid.UUID, req UpdateRequest) (*models.Poll, error) {
	if req.State != nil && !req.State.Valid() {
		return nil, ErrInvalidState
	}
	pinning := req.IsPinned != nil && *req.IsPinned

	var poll *models.Poll
	err := s.store.InTx(ctx, func(tx Tx) error {
		if pinning {
			if err := tx.LockRoom(ctx, room); err != nil {
				return err
			}
		}
		p, err := tx.GetPoll(ctx, id, room)
		if err != nil {
			return err
		}
		if req.Content != nil {
			p.Content = *req.Content
		}
		if req.State != nil {
			p.State = *req.State
		}
		if req.IsPinned != nil {
			if pinning {
				if err := tx.UnpinRoom(ctx, room); err != nil {
					return err
				}
			}
			p.IsPinned = *req.IsPinned
		}
		if err := tx.UpdatePoll(ctx, p); err != nil {
			return err
		}
		if len(req.Options) > 0 {
			if err := syncOptions(ctx, tx, p, req.Options); err != nil {
				return err
			}
		}
		poll, err = s.loadWithResults(ctx, tx, id, room)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, room, realtime.EventPollUpdated, poll.ID)
	return poll, nil
}

// Delete removes the poll together with its options and votes.
func (s *Service) Delete(ctx context.Context, id, room uuid.UUID) error {
	err := s.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.GetPoll(ctx, id, room); err != nil {
			return err
		}
		return tx.DeletePoll(ctx, id)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, room, realtime.EventPollDeleted, id)
	return nil
}

// Vote replaces the sender's ballot on the poll with optionIDs. Ids that are not options
// of the poll are dropped and duplicates count once; an empty set withdraws the ballot.
func (s *Service) Vote(ctx context.Context, id, room, sender uuid.UUID, optionIDs []uuid.UUID) (*models.Poll, error) {
	var poll *models.Poll
	err := s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.LockBallot(ctx, id, sender); err != nil {
			return err
		}
		p, err := tx.GetPoll(ctx, id, room)
		if err != nil {
			return err
		}
		valid := make(map[uuid.UUID]bool, len(p.Options))
		for _, o := range p.Options {
			valid[o.ID] = true
		}
		if err := tx.DeleteVotes(ctx, id, sender); err != nil {
			return err
		}
		chosen := make(map[uuid.UUID]bool, len(optionIDs))
		for _, oid := range optionIDs {
			if !valid[oid] || chosen[oid] {
				continue
			}
			chosen[oid] = true
			if err := tx.InsertVote(ctx, &models.PollVote{OptionID: oid, SenderID: sender}); err != nil {
				return err
			}
		}
		poll, err = s.loadWithResults(ctx, tx, id, room)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, room, realtime.EventPollVoted, id)
	return poll, nil
}

// VotedPollIDs returns the polls of the room the user currently has a ballot on.
func (s *Service) VotedPollIDs(ctx context.Context, room, user uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		ids, err = tx.VotedPollIDs(ctx, room, user)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("voted polls: %w", err)
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return ids, nil
}

func (s *Service) loadWithResults(ctx context.Context, tx Tx, id, room uuid.UUID) (*models.Poll, error) {
	p, err := tx.GetPoll(ctx, id, room)
	if err != nil {
		return nil, err
	}
	if err := attachResults(ctx, tx, []*models.Poll{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// PollEvent is the payload of every poll event. Room channels reach attendees, so events
// carry only the poll id.
type PollEvent struct {
	ID uuid.UUID `json:"id"`
}

func (s *Service) publish(ctx context.Context, room uuid.UUID, event string, pollID uuid.UUID) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishRoomEvent(context.WithoutCancel(ctx), room, event, PollEvent{ID: pollID}); err != nil {
		s.logger.Warn("publish poll event failed",
			zap.String("event", event),
			zap.String("room_id", room.String()),
			zap.Error(err),
		)
	}
}

func attachResults(ctx context.Context, tx Tx, list []*models.Poll) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(list))
	for i, p := range list {
		ids[i] = p.ID
	}
	results, err := tx.Results(ctx, ids)
	if err != nil {
		return err
	}
	for _, p := range list {
		p.Results = results[p.ID]
		if p.Results == nil {
			p.Results = map[string]int{}
		}
	}
	return nil
}

func syncOptions(ctx context.Context, tx Tx, p *models.Poll, inputs []OptionInput) error {
	existing := make(map[uuid.UUID]models.PollOption, len(p.Options))
	for _, o := range p.Options {
		existing[o.ID] = o
	}
	keep := make(map[uuid.UUID]bool, len(inputs))
	for _, in := range inputs {
		if in.ID == nil {
			continue
		}
		if _, ok := existing[*in.ID]; !ok {
			return fmt.Errorf("%w: %s", ErrOptionNotFound, *in.ID)
		}
		keep[*in.ID] = true
	}

	var drop []uuid.UUID
	for _, o := range p.Options {
		if !keep[o.ID] {
			drop = append(drop, o.ID)
		}
	}
	if err := tx.DeleteOptions(ctx, drop); err != nil {
		return err
	}

	next := -1
	for _, in := range inputs {
		if in.ID == nil {
			continue
		}
		o := existing[*in.ID]
		if in.Content != nil {
			o.Content = *in.Content
		}
		if in.Order != nil {
			o.Order = *in.Order
		}
		if err := tx.UpdateOption(ctx, &o); err != nil {
			return err
		}
		next = max(next, o.Order)
	}
	for _, in := range inputs {
		if in.ID != nil {
			continue
		}
		o := &models.PollOption{PollID: p.ID, Content: in.content()}
		if in.Order != nil {
			o.Order = *in.Order
		} else {
			next++
			o.Order = next
		}
		if err := tx.InsertOption(ctx, o); err != nil {
			return err
		}
		next = max(next, o.Order)
	}
	return nil
}

func visibleStates(requested []models.PollState) []models.PollState {
	if requested == nil {
		return models.PublicStates
	}
	out := make([]models.PollState, 0, len(requested))
	for _, st := range requested {
		if hasState(models.PublicStates, st) {
			out = append(out, st)
		}
	}
	return out
}


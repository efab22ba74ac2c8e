package polls

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-webinar/venue/internal/models"
)

type memPoll struct {
	poll models.Poll
	seq  int64
}

type memState struct {
	polls   map[uuid.UUID]memPoll
	options map[uuid.UUID]models.PollOption
	votes   map[uuid.UUID]models.PollVote
	seq     int64
}

func (s *memState) clone() *memState {
	c := &memState{
		polls:   make(map[uuid.UUID]memPoll, len(s.polls)),
		options: make(map[uuid.UUID]models.PollOption, len(s.options)),
		votes:   make(map[uuid.UUID]models.PollVote, len(s.votes)),
		seq:     s.seq,
	}
	for k, v := range s.polls {
		c.polls[k] = v
	}
	for k, v := range s.options {
		c.options[k] = v
	}
	for k, v := range s.votes {
		c.votes[k] = v
	}
	return c
}

// MemoryStore keeps polls in process memory. Units of work run one at a time against a
// copy of the state that replaces the live state only on success, so room and ballot
// locks are implied.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			polls:   make(map[uuid.UUID]memPoll),
			options: make(map[uuid.UUID]models.PollOption),
			votes:   make(map[uuid.UUID]models.PollVote),
		},
		now: time.Now,
	}
}

// InTx implements Store.
func (m *MemoryStore) InTx(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(&memTx{s: work, now: m.now}); err != nil {
		return err
	}
	m.state = work
	return nil
}

type memTx struct {
	s   *memState
	now func() time.Time
}

func (t *memTx) load(mp memPoll) *models.Poll {
	p := mp.poll
	p.Options = []models.PollOption{}
	for _, o := range t.s.options {
		if o.PollID == p.ID {
			p.Options = append(p.Options, o)
		}
	}
	sortOptions(p.Options)
	return &p
}

func (t *memTx) GetPoll(_ context.Context, id, room uuid.UUID) (*models.Poll, error) {
	mp, ok := t.s.polls[id]
	if !ok || mp.poll.RoomID != room {
		return nil, ErrPollNotFound
	}
	return t.load(mp), nil
}

func (t *memTx) ListPolls(_ context.Context, room uuid.UUID, q Query) ([]*models.Poll, error) {
	var matched []memPoll
	for _, mp := range t.s.polls {
		if mp.poll.RoomID != room {
			continue
		}
		if q.Pinned != nil && mp.poll.IsPinned != *q.Pinned {
			continue
		}
		if q.States != nil && !hasState(q.States, mp.poll.State) {
			continue
		}
		matched = append(matched, mp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })
	out := make([]*models.Poll, 0, len(matched))
	for _, mp := range matched {
		out = append(out, t.load(mp))
	}
	return out, nil
}

func (t *memTx) InsertPoll(_ context.Context, p *models.Poll) error {
	p.ID = uuid.New()
	p.CreatedAt = t.now()
	t.s.seq++
	stored := *p
	stored.Options = nil
	stored.Results = nil
	t.s.polls[p.ID] = memPoll{poll: stored, seq: t.s.seq}
	return nil
}

func (t *memTx) UpdatePoll(_ context.Context, p *models.Poll) error {
	mp, ok := t.s.polls[p.ID]
	if !ok {
		return ErrPollNotFound
	}
	mp.poll.Content = p.Content
	mp.poll.State = p.State
	mp.poll.IsPinned = p.IsPinned
	t.s.polls[p.ID] = mp
	return nil
}

func (t *memTx) DeletePoll(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.s.polls[id]; !ok {
		return ErrPollNotFound
	}
	delete(t.s.polls, id)
	var optionIDs []uuid.UUID
	for oid, o := range t.s.options {
		if o.PollID == id {
			optionIDs = append(optionIDs, oid)
		}
	}
	return t.DeleteOptions(ctx, optionIDs)
}

func (t *memTx) InsertOption(_ context.Context, o *models.PollOption) error {
	if _, ok := t.s.polls[o.PollID]; !ok {
		return ErrPollNotFound
	}
	o.ID = uuid.New()
	t.s.options[o.ID] = *o
	return nil
}

func (t *memTx) UpdateOption(_ context.Context, o *models.PollOption) error {
	cur, ok := t.s.options[o.ID]
	if !ok || cur.PollID != o.PollID {
		return ErrOptionNotFound
	}
	t.s.options[o.ID] = *o
	return nil
}

func (t *memTx) DeleteOptions(_ context.Context, ids []uuid.UUID) error {
	drop := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		delete(t.s.options, id)
		drop[id] = true
	}
	for vid, v := range t.s.votes {
		if drop[v.OptionID] {
			delete(t.s.votes, vid)
		}
	}
	return nil
}

func (t *memTx) LockRoom(context.Context, uuid.UUID) error { return nil }

func (t *memTx) UnpinRoom(_ context.Context, room uuid.UUID) error {
	for id, mp := range t.s.polls {
		if mp.poll.RoomID == room && mp.poll.IsPinned {
			mp.poll.IsPinned = false
			t.s.polls[id] = mp
		}
	}
	return nil
}

func (t *memTx) LockBallot(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (t *memTx) DeleteVotes(_ context.Context, pollID, sender uuid.UUID) error {
	for vid, v := range t.s.votes {
		if v.SenderID != sender {
			continue
		}
		if o, ok := t.s.options[v.OptionID]; ok && o.PollID == pollID {
			delete(t.s.votes, vid)
		}
	}
	return nil
}

func (t *memTx) InsertVote(_ context.Context, v *models.PollVote) error {
	if _, ok := t.s.options[v.OptionID]; !ok {
		return ErrOptionNotFound
	}
	for _, existing := range t.s.votes {
		if existing.OptionID == v.OptionID && existing.SenderID == v.SenderID {
			return nil
		}
	}
	v.ID = uuid.New()
	v.CreatedAt = t.now()
	t.s.votes[v.ID] = *v
	return nil
}

func (t *memTx) Results(_ context.Context, pollIDs []uuid.UUID) (map[uuid.UUID]map[string]int, error) {
	out := make(map[uuid.UUID]map[string]int, len(pollIDs))
	for _, id := range pollIDs {
		out[id] = make(map[string]int)
	}
	for _, o := range t.s.options {
		if counts, ok := out[o.PollID]; ok {
			counts[o.ID.String()] = 0
		}
	}
	for _, v := range t.s.votes {
		o, ok := t.s.options[v.OptionID]
		if !ok {
			continue
		}
		if counts, ok := out[o.PollID]; ok {
			counts[o.ID.String()]++
		}
	}
	return out, nil
}

func (t *memTx) VotedPollIDs(_ context.Context, room, user uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, v := range t.s.votes {
		if v.SenderID != user {
			continue
		}
		o, ok := t.s.options[v.OptionID]
		if !ok || seen[o.PollID] {
			continue
		}
		if mp, ok := t.s.polls[o.PollID]; ok && mp.poll.RoomID == room {
			seen[o.PollID] = true
			out = append(out, o.PollID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func hasState(states []models.PollState, s models.PollState) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}

func sortOptions(opts []models.PollOption) {
	sort.SliceStable(opts, func(i, j int) bool {
		if opts[i].Order != opts[j].Order {
			return opts[i].Order < opts[j].Order
		}
		return opts[i].ID.String() < opts[j].ID.String()
	})
}

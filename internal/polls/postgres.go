package polls

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/venue/internal/models"
)

// PostgresStore keeps polls in PostgreSQL. Each unit of work is one database transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store on the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// InTx implements Store.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

const pollColumns = `id, room_id, content, state, is_pinned, created_at`

func scanPoll(row pgx.Row) (*models.Poll, error) {
	var p models.Poll
	var state string
	if err := row.Scan(&p.ID, &p.RoomID, &p.Content, &state, &p.IsPinned, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.State = models.PollState(state)
	return &p, nil
}

func (t *pgTx) GetPoll(ctx context.Context, id, room uuid.UUID) (*models.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE id = $1 AND room_id = $2`
	p, err := scanPoll(t.tx.QueryRow(ctx, query, id, room))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPollNotFound
		}
		return nil, fmt.Errorf("get poll: %w", err)
	}
	if err := t.attachOptions(ctx, []*models.Poll{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (t *pgTx) ListPolls(ctx context.Context, room uuid.UUID, q Query) ([]*models.Poll, error) {
	var states []string
	if q.States != nil {
		states = make([]string, 0, len(q.States))
		for _, s := range q.States {
			states = append(states, string(s))
		}
	}
	query := `SELECT ` + pollColumns + ` FROM polls
		WHERE room_id = $1
		  AND ($2::text[] IS NULL OR state = ANY($2))
		  AND ($3::boolean IS NULL OR is_pinned = $3)
		ORDER BY created_at, id`
	rows, err := t.tx.Query(ctx, query, room, states, q.Pinned)
	if err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	defer rows.Close()
	var list []*models.Poll
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, fmt.Errorf("scan poll: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	if err := t.attachOptions(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (t *pgTx) attachOptions(ctx context.Context, list []*models.Poll) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Poll, len(list))
	ids := make([]uuid.UUID, 0, len(list))
	for _, p := range list {
		p.Options = []models.PollOption{}
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	const query = `SELECT id, poll_id, content, "order" FROM poll_options
		WHERE poll_id = ANY($1) ORDER BY "order", id`
	rows, err := t.tx.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("load options: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var o models.PollOption
		if err := rows.Scan(&o.ID, &o.PollID, &o.Content, &o.Order); err != nil {
			return fmt.Errorf("scan option: %w", err)
		}
		if p := byID[o.PollID]; p != nil {
			p.Options = append(p.Options, o)
		}
	}
	return rows.Err()
}

func (t *pgTx) InsertPoll(ctx context.Context, p *models.Poll) error {
	const query = `INSERT INTO polls (room_id, content, state, is_pinned)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	if err := t.tx.QueryRow(ctx, query, p.RoomID, p.Content, string(p.State), p.IsPinned).Scan(&p.ID, &p.CreatedAt); err != nil {
		return fmt.Errorf("insert poll: %w", err)
	}
	return nil
}

func (t *pgTx) UpdatePoll(ctx context.Context, p *models.Poll) error {
	const query = `UPDATE polls SET content = $2, state = $3, is_pinned = $4 WHERE id = $1`
	tag, err := t.tx.Exec(ctx, query, p.ID, p.Content, string(p.State), p.IsPinned)
	if err != nil {
		return fmt.Errorf("update poll: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPollNotFound
	}
	return nil
}

// DeletePoll removes the poll; options and votes go with it through ON DELETE CASCADE.
func (t *pgTx) DeletePoll(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM polls WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete poll: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPollNotFound
	}
	return nil
}

func (t *pgTx) InsertOption(ctx context.Context, o *models.PollOption) error {
	const query = `INSERT INTO poll_options (poll_id, content, "order") VALUES ($1, $2, $3) RETURNING id`
	if err := t.tx.QueryRow(ctx, query, o.PollID, o.Content, o.Order).Scan(&o.ID); err != nil {
		return fmt.Errorf("insert option: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateOption(ctx context.Context, o *models.PollOption) error {
	const query = `UPDATE poll_options SET content = $3, "order" = $4 WHERE id = $1 AND poll_id = $2`
	tag, err := t.tx.Exec(ctx, query, o.ID, o.PollID, o.Content, o.Order)
	if err != nil {
		return fmt.Errorf("update option: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOptionNotFound
	}
	return nil
}

func (t *pgTx) DeleteOptions(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM poll_options WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("delete options: %w", err)
	}
	return nil
}

func (t *pgTx) LockRoom(ctx context.Context, room uuid.UUID) error {
	rows, err := t.tx.Query(ctx, `SELECT id FROM polls WHERE room_id = $1 FOR UPDATE`, room)
	if err != nil {
		return fmt.Errorf("lock room polls: %w", err)
	}
	rows.Close()
	return rows.Err()
}

func (t *pgTx) UnpinRoom(ctx context.Context, room uuid.UUID) error {
	if _, err := t.tx.Exec(ctx, `UPDATE polls SET is_pinned = FALSE WHERE room_id = $1 AND is_pinned`, room); err != nil {
		return fmt.Errorf("unpin room: %w", err)
	}
	return nil
}

func (t *pgTx) LockBallot(ctx context.Context, pollID, sender uuid.UUID) error {
	key := "poll-ballot:" + pollID.String() + ":" + sender.String()
	if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("lock ballot: %w", err)
	}
	return nil
}

func (t *pgTx) DeleteVotes(ctx context.Context, pollID, sender uuid.UUID) error {
	const query = `DELETE FROM poll_votes v USING poll_options o
		WHERE v.option_id = o.id AND o.poll_id = $1 AND v.sender_id = $2`
	if _, err := t.tx.Exec(ctx, query, pollID, sender); err != nil {
		return fmt.Errorf("delete votes: %w", err)
	}
	return nil
}

func (t *pgTx) InsertVote(ctx context.Context, v *models.PollVote) error {
	const query = `INSERT INTO poll_votes (option_id, sender_id) VALUES ($1, $2) RETURNING id, created_at`
	if err := t.tx.QueryRow(ctx, query, v.OptionID, v.SenderID).Scan(&v.ID, &v.CreatedAt); err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

func (t *pgTx) Results(ctx context.Context, pollIDs []uuid.UUID) (map[uuid.UUID]map[string]int, error) {
	out := make(map[uuid.UUID]map[string]int, len(pollIDs))
	for _, id := range pollIDs {
		out[id] = make(map[string]int)
	}
	if len(pollIDs) == 0 {
		return out, nil
	}
	const query = `SELECT o.poll_id, o.id, COUNT(v.id)
		FROM poll_options o
		LEFT JOIN poll_votes v ON v.option_id = o.id
		WHERE o.poll_id = ANY($1)
		GROUP BY o.poll_id, o.id`
	rows, err := t.tx.Query(ctx, query, pollIDs)
	if err != nil {
		return nil, fmt.Errorf("results: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pollID, optionID uuid.UUID
		var n int
		if err := rows.Scan(&pollID, &optionID, &n); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out[pollID][optionID.String()] = n
	}
	return out, rows.Err()
}

func (t *pgTx) VotedPollIDs(ctx context.Context, room, user uuid.UUID) ([]uuid.UUID, error) {
	const query = `SELECT DISTINCT o.poll_id
		FROM poll_votes v
		JOIN poll_options o ON o.id = v.option_id
		JOIN polls p ON p.id = o.poll_id
		WHERE p.room_id = $1 AND v.sender_id = $2
		ORDER BY o.poll_id`
	rows, err := t.tx.Query(ctx, query, room, user)
	if err != nil {
		return nil, fmt.Errorf("voted polls: %w", err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

package followup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/slashgate/internal/interaction"
)

const (
	defaultMaxAttempts = 4
	// maxContentLength is the platform's message content limit.
	maxContentLength = 2000
)

// Queue persists follow-up jobs in the followup_queue table.
type Queue struct {
	db          *sql.DB
	maxAttempts int
	now         func() time.Time
}

// Option customises a Queue.
type Option func(*Queue)

// WithMaxAttempts sets the default attempt budget for new jobs.
func WithMaxAttempts(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.maxAttempts = n
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func NewQueue(db *sql.DB, opts ...Option) *Queue {
	q := &Queue{db: db, maxAttempts: defaultMaxAttempts, now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, bool) {
	t, err := time.Parse(timeLayout, s)
	return t, err == nil
}

// Enqueue stores a job and returns its id.
func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (string, error) {
	if req.ApplicationID == "" {
		return "", fmt.Errorf("application_id is empty")
	}
	if req.Token == "" {
		return "", fmt.Errorf("interaction token is empty")
	}
	if req.Content == "" {
		return "", fmt.Errorf("content is empty")
	}
	if len([]rune(req.Content)) > maxContentLength {
		return "", fmt.Errorf("content exceeds %d characters", maxContentLength)
	}

	id := uuid.NewString()
	now := q.now()
	deliverAt := req.DeliverAt
	if deliverAt.IsZero() || deliverAt.Before(now) {
		deliverAt = now
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = q.maxAttempts
	}

	_, err := q.db.ExecContext(ctx, `
INSERT INTO followup_queue(
  id, application_id, token, interaction_id, user_id, channel_id, guild_id,
  content, ephemeral, status, attempt, max_attempts, created_at, deliver_at
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?);
`, id, req.ApplicationID, req.Token, req.InteractionID, req.UserID, req.ChannelID, req.GuildID,
		req.Content, req.Ephemeral, StatusQueued, maxAttempts, formatTime(now), formatTime(deliverAt))
	if err != nil {
		return "", fmt.Errorf("enqueue follow-up: %w", err)
	}
	return id, nil
}

// Schedule enqueues a follow-up for inv after delay. It satisfies the
// scheduler interface command handlers depend on.
func (q *Queue) Schedule(ctx context.Context, inv interaction.Invoker, content string, ephemeral bool, delay time.Duration) (string, error) {
	return q.Enqueue(ctx, EnqueueRequest{
		ApplicationID: inv.ApplicationID,
		Token:         inv.Token,
		InteractionID: inv.InteractionID,
		UserID:        inv.UserID,
		ChannelID:     inv.ChannelID,
		GuildID:       inv.GuildID,
		Content:       content,
		Ephemeral:     ephemeral,
		DeliverAt:     q.now().Add(delay),
	})
}

const jobColumns = `
  id, application_id, token, interaction_id, user_id, channel_id, guild_id,
  content, ephemeral, status, attempt, max_attempts, created_at, deliver_at,
  started_at, completed_at, last_error`

// Dequeue claims the oldest due job and marks it running. Returns (nil, nil)
// if nothing is due.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	nowS := formatTime(q.now())

	row := q.db.QueryRowContext(ctx, `
WITH next AS (
  SELECT id
  FROM followup_queue
  WHERE status = ? AND deliver_at <= ?
  ORDER BY deliver_at ASC, rowid ASC
  LIMIT 1
)
UPDATE followup_queue
SET status = ?, started_at = ?
WHERE id IN (SELECT id FROM next)
RETURNING`+jobColumns+`;
`, StatusQueued, nowS, StatusRunning, nowS)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue follow-up: %w", err)
	}
	return job, nil
}

// Get loads a job by id.
func (q *Queue) Get(ctx context.Context, id string) (*Job, error) {
	row := q.db.QueryRowContext(ctx, `SELECT`+jobColumns+` FROM followup_queue WHERE id = ?;`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get follow-up: %w", err)
	}
	return job, nil
}

// MarkSent records a successful delivery.
func (q *Queue) MarkSent(ctx context.Context, id string) error {
	return q.finish(ctx, id, StatusSent, nil)
}

// MarkDead gives up on a job.
func (q *Queue) MarkDead(ctx context.Context, id string, lastError string) error {
	return q.finish(ctx, id, StatusDead, &lastError)
}

func (q *Queue) finish(ctx context.Context, id string, status Status, lastError *string) error {
	res, err := q.db.ExecContext(ctx, `
UPDATE followup_queue
SET status = ?, completed_at = ?, last_error = ?
WHERE id = ?;
`, status, formatTime(q.now()), lastError, id)
	if err != nil {
		return fmt.Errorf("complete follow-up: %w", err)
	}
	return requireRow(res)
}

// Retry requeues a job for another attempt at nextAt.
func (q *Queue) Retry(ctx context.Context, id string, attempt int, nextAt time.Time, lastError string) error {
	res, err := q.db.ExecContext(ctx, `
UPDATE followup_queue
SET status = ?, attempt = ?, deliver_at = ?, last_error = ?, started_at = NULL
WHERE id = ?;
`, StatusQueued, attempt, formatTime(nextAt), lastError, id)
	if err != nil {
		return fmt.Errorf("retry follow-up: %w", err)
	}
	return requireRow(res)
}

// RecoverRunning requeues jobs left running by a previous process. Returns
// how many were recovered.
func (q *Queue) RecoverRunning(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
UPDATE followup_queue
SET status = ?, started_at = NULL
WHERE status = ?;
`, StatusQueued, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("recover follow-ups: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("recover follow-ups: %w", err)
	}
	return n, nil
}

// Depth counts queued jobs, due or not.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM followup_queue WHERE status = ?;`, StatusQueued).Scan(&n); err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		j             Job
		interactionID sql.NullString
		userID        sql.NullString
		channelID     sql.NullString
		guildID       sql.NullString
		ephemeral     int
		statusS       string
		createdAtS    string
		deliverAtS    string
		startedAtS    sql.NullString
		completedAtS  sql.NullString
		lastError     sql.NullString
	)
	err := row.Scan(
		&j.ID, &j.ApplicationID, &j.Token, &interactionID, &userID, &channelID, &guildID,
		&j.Content, &ephemeral, &statusS, &j.Attempt, &j.MaxAttempts, &createdAtS, &deliverAtS,
		&startedAtS, &completedAtS, &lastError,
	)
	if err != nil {
		return nil, err
	}

	j.InteractionID = interactionID.String
	j.UserID = userID.String
	j.ChannelID = channelID.String
	j.GuildID = guildID.String
	j.Ephemeral = ephemeral != 0
	j.Status = Status(statusS)
	if t, ok := parseTime(createdAtS); ok {
		j.CreatedAt = t
	}
	if t, ok := parseTime(deliverAtS); ok {
		j.DeliverAt = t
	}
	if startedAtS.Valid {
		if t, ok := parseTime(startedAtS.String); ok {
			j.StartedAt = &t
		}
	}
	if completedAtS.Valid {
		if t, ok := parseTime(completedAtS.String); ok {
			j.CompletedAt = &t
		}
	}
	if lastError.Valid {
		j.LastError = &lastError.String
	}
	return &j, nil
}

// Invoker rebuilds the addressing needed to deliver j.
func (j *Job) Invoker() interaction.Invoker {
	return interaction.Invoker{
		UserID:        j.UserID,
		ChannelID:     j.ChannelID,
		GuildID:       j.GuildID,
		InteractionID: j.InteractionID,
		ApplicationID: j.ApplicationID,
		Token:         j.Token,
	}
}

package followup

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/slashgate/internal/interaction"
	"github.com/mattjoyce/slashgate/internal/storage"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func openQueueDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestQueue(t *testing.T, clock *fakeClock, opts ...Option) *Queue {
	t.Helper()
	return NewQueue(openQueueDB(t), append([]Option{WithClock(clock.now)}, opts...)...)
}

func validRequest() EnqueueRequest {
	return EnqueueRequest{
		ApplicationID: "app-1",
		Token:         "tok-1",
		InteractionID: "int-1",
		UserID:        "u-1",
		ChannelID:     "c-1",
		Content:       "hi",
	}
}

func TestEnqueueValidation(t *testing.T) {
	q := newTestQueue(t, newClock())

	tests := []struct {
		name   string
		mutate func(*EnqueueRequest)
		errSub string
	}{
		{"missing application", func(r *EnqueueRequest) { r.ApplicationID = "" }, "application_id"},
		{"missing token", func(r *EnqueueRequest) { r.Token = "" }, "token"},
		{"empty content", func(r *EnqueueRequest) { r.Content = "" }, "content is empty"},
		{"too long", func(r *EnqueueRequest) { r.Content = strings.Repeat("x", maxContentLength+1) }, "exceeds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := q.Enqueue(context.Background(), req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestEnqueueDefaults(t *testing.T) {
	clock := newClock()
	q := newTestQueue(t, clock, WithMaxAttempts(6))
	ctx := context.Background()

	req := validRequest()
	req.DeliverAt = clock.now().Add(-time.Hour)
	id, err := q.Enqueue(ctx, req)
	require.NoError(t, err)

	job, err := q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, job.Status)
	assert.Equal(t, 1, job.Attempt)
	assert.Equal(t, 6, job.MaxAttempts)
	assert.True(t, job.DeliverAt.Equal(clock.now()), "past deliver_at should clamp to now")
	assert.True(t, job.CreatedAt.Equal(clock.now()))
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.LastError)
}

func TestDequeueHonoursDeliverAt(t *testing.T) {
	clock := newClock()
	q := newTestQueue(t, clock)
	ctx := context.Background()

	late := validRequest()
	late.Content = "late"
	late.DeliverAt = clock.now().Add(2 * time.Minute)
	_, err := q.Enqueue(ctx, late)
	require.NoError(t, err)

	early := validRequest()
	early.Content = "early"
	early.DeliverAt = clock.now().Add(time.Minute)
	_, err = q.Enqueue(ctx, early)
	require.NoError(t, err)

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, job, "nothing is due yet")

	clock.advance(3 * time.Minute)

	first, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "early", first.Content)
	assert.Equal(t, StatusRunning, first.Status)
	require.NotNil(t, first.StartedAt)

	second, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "late", second.Content)

	none, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestDequeueSubSecondOrdering(t *testing.T) {
	clock := newClock()
	q := newTestQueue(t, clock)
	ctx := context.Background()

	req := validRequest()
	req.DeliverAt = clock.now().Add(500 * time.Millisecond)
	_, err := q.Enqueue(ctx, req)
	require.NoError(t, err)

	clock.advance(400 * time.Millisecond)
	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, job)

	clock.advance(100 * time.Millisecond)
	job, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.NotNil(t, job)
}

func TestJobLifecycle(t *testing.T) {
	clock := newClock()
	q := newTestQueue(t, clock)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, validRequest())
	require.NoError(t, err)

	_, err = q.Dequeue(ctx)
	require.NoError(t, err)

	next := clock.now().Add(time.Minute)
	require.NoError(t, q.Retry(ctx, id, 2, next, "HTTP 502"))

	job, err := q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, job.Status)
	assert.Equal(t, 2, job.Attempt)
	assert.True(t, job.DeliverAt.Equal(next))
	require.NotNil(t, job.LastError)
	assert.Equal(t, "HTTP 502", *job.LastError)
	assert.Nil(t, job.StartedAt)

	clock.advance(time.Minute)
	_, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.MarkSent(ctx, id))

	job, err = q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, job.Status)
	assert.NotNil(t, job.CompletedAt)
	assert.Nil(t, job.LastError)
}

func TestMarkDead(t *testing.T) {
	q := newTestQueue(t, newClock())
	ctx := context.Background()

	id, err := q.Enqueue(ctx, validRequest())
	require.NoError(t, err)
	require.NoError(t, q.MarkDead(ctx, id, "HTTP 404"))

	job, err := q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusDead, job.Status)
	require.NotNil(t, job.LastError)
	assert.Equal(t, "HTTP 404", *job.LastError)

	n, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUnknownJob(t *testing.T) {
	q := newTestQueue(t, newClock())
	ctx := context.Background()

	_, err := q.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrJobNotFound))
	assert.ErrorIs(t, q.MarkSent(ctx, "missing"), ErrJobNotFound)
	assert.ErrorIs(t, q.Retry(ctx, "missing", 2, time.Now(), "x"), ErrJobNotFound)
}

func TestRecoverRunning(t *testing.T) {
	q := newTestQueue(t, newClock())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(ctx, validRequest())
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := q.Dequeue(ctx)
		require.NoError(t, err)
	}

	n, err := q.RecoverRunning(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, depth)
}

func TestScheduleCarriesInvoker(t *testing.T) {
	clock := newClock()
	q := newTestQueue(t, clock)
	ctx := context.Background()

	inv := interaction.Invoker{
		UserID:        "u-9",
		ChannelID:     "c-9",
		GuildID:       "g-9",
		InteractionID: "i-9",
		ApplicationID: "a-9",
		Token:         "t-9",
	}
	id, err := q.Schedule(ctx, inv, "Reminder: stretch", true, 5*time.Minute)
	require.NoError(t, err)

	job, err := q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, inv, job.Invoker())
	assert.True(t, job.Ephemeral)
	assert.Equal(t, "Reminder: stretch", job.Content)
	assert.True(t, job.DeliverAt.Equal(clock.now().Add(5*time.Minute)))
}

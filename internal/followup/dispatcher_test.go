package followup

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/slashgate/internal/followup/mocks"
	"github.com/mattjoyce/slashgate/internal/interaction"
	"github.com/mattjoyce/slashgate/internal/log"
	"github.com/mattjoyce/slashgate/internal/metrics"
)

type dispatchFixture struct {
	clock    *fakeClock
	queue    *Queue
	notifier *mocks.MockNotifier
	metrics  *metrics.Metrics
	d        *Dispatcher
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	clock := newClock()
	q := newTestQueue(t, clock)
	n := mocks.NewMockNotifier(ctrl)
	m := metrics.New()
	d := NewDispatcher(q, n, DispatcherConfig{
		PollInterval: 10 * time.Millisecond,
		BackoffBase:  time.Second,
	}, m, log.Discard())
	return &dispatchFixture{clock: clock, queue: q, notifier: n, metrics: m, d: d}
}

func (f *dispatchFixture) enqueue(t *testing.T, mutate func(*EnqueueRequest)) string {
	t.Helper()
	req := validRequest()
	if mutate != nil {
		mutate(&req)
	}
	id, err := f.queue.Enqueue(context.Background(), req)
	require.NoError(t, err)
	return id
}

func (f *dispatchFixture) job(t *testing.T, id string) *Job {
	t.Helper()
	job, err := f.queue.Get(context.Background(), id)
	require.NoError(t, err)
	return job
}

func TestDispatcherDeliversDueJobs(t *testing.T) {
	f := newDispatchFixture(t)
	first := f.enqueue(t, nil)
	second := f.enqueue(t, func(r *EnqueueRequest) {
		r.Content = "secret"
		r.Ephemeral = true
	})

	gomock.InOrder(
		f.notifier.EXPECT().SendFollowUp(gomock.Any(), f.job(t, first).Invoker(), "hi", false).Return(nil),
		f.notifier.EXPECT().SendFollowUp(gomock.Any(), f.job(t, second).Invoker(), "secret", true).Return(nil),
	)

	f.d.drain(context.Background())

	assert.Equal(t, StatusSent, f.job(t, first).Status)
	assert.Equal(t, StatusSent, f.job(t, second).Status)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.FollowUps.WithLabelValues("sent")))
}

func TestDispatcherRetriesTemporaryFailures(t *testing.T) {
	f := newDispatchFixture(t)
	id := f.enqueue(t, nil)

	f.notifier.EXPECT().SendFollowUp(gomock.Any(), gomock.Any(), "hi", false).
		Return(&StatusError{StatusCode: http.StatusBadGateway})

	processed, err := f.d.processNext(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	job := f.job(t, id)
	assert.Equal(t, StatusQueued, job.Status)
	assert.Equal(t, 2, job.Attempt)
	assert.True(t, job.DeliverAt.Equal(f.clock.now().Add(time.Second)))
	require.NotNil(t, job.LastError)
	assert.Contains(t, *job.LastError, "502")

	// Not due again until the backoff elapses.
	processed, err = f.d.processNext(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
	f.d.drain(context.Background())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.QueueDepth))

	f.clock.advance(time.Second)
	f.notifier.EXPECT().SendFollowUp(gomock.Any(), gomock.Any(), "hi", false).Return(nil)
	f.d.drain(context.Background())
	assert.Equal(t, StatusSent, f.job(t, id).Status)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.QueueDepth))
}

func TestDispatcherHonoursRetryAfter(t *testing.T) {
	f := newDispatchFixture(t)
	id := f.enqueue(t, nil)

	f.notifier.EXPECT().SendFollowUp(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&StatusError{StatusCode: http.StatusTooManyRequests, RetryAfter: 30 * time.Second})

	f.d.drain(context.Background())

	job := f.job(t, id)
	assert.Equal(t, StatusQueued, job.Status)
	assert.True(t, job.DeliverAt.Equal(f.clock.now().Add(30*time.Second)))
}

func TestDispatcherDeadLetters(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*EnqueueRequest)
		sendErr error
	}{
		{
			name:    "permanent rejection",
			sendErr: &StatusError{StatusCode: http.StatusNotFound, Body: "Unknown Webhook"},
		},
		{
			name:    "attempts exhausted",
			mutate:  func(r *EnqueueRequest) { r.MaxAttempts = 1 },
			sendErr: errors.New("connection reset"),
		},
		{
			name:    "retry would outlive token",
			sendErr: &StatusError{StatusCode: http.StatusTooManyRequests, RetryAfter: time.Hour},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatchFixture(t)
			id := f.enqueue(t, tt.mutate)

			f.notifier.EXPECT().SendFollowUp(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(tt.sendErr)
			f.d.drain(context.Background())

			job := f.job(t, id)
			assert.Equal(t, StatusDead, job.Status)
			require.NotNil(t, job.LastError)
			assert.Equal(t, tt.sendErr.Error(), *job.LastError)
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FollowUps.WithLabelValues("dead")))
		})
	}
}

func TestDispatcherDropsExpiredTokens(t *testing.T) {
	f := newDispatchFixture(t)
	id := f.enqueue(t, nil)
	f.clock.advance(tokenLifetime)

	// No EXPECT: the notifier must not be called.
	f.d.drain(context.Background())

	job := f.job(t, id)
	assert.Equal(t, StatusDead, job.Status)
	require.NotNil(t, job.LastError)
	assert.Equal(t, "interaction token expired", *job.LastError)
}

func TestDispatcherBackoff(t *testing.T) {
	d := NewDispatcher(nil, nil, DispatcherConfig{BackoffBase: 2 * time.Second}, nil, nil)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{10, maxBackoff},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestDispatcherStartRecoversAndStops(t *testing.T) {
	f := newDispatchFixture(t)
	id := f.enqueue(t, nil)

	// Simulate a crash mid-delivery.
	_, err := f.queue.Dequeue(context.Background())
	require.NoError(t, err)

	sent := make(chan struct{})
	f.notifier.EXPECT().SendFollowUp(gomock.Any(), gomock.Any(), "hi", false).
		DoAndReturn(func(context.Context, interaction.Invoker, string, bool) error {
			close(sent)
			return nil
		})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.d.Start(ctx) }()

	select {
	case <-sent:
	case <-time.After(5 * time.Second):
		t.Fatal("follow-up was not delivered")
	}

	require.Eventually(t, func() bool {
		return f.job(t, id).Status == StatusSent
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestDispatcherFinishesInFlightSendOnCancel(t *testing.T) {
	f := newDispatchFixture(t)
	id := f.enqueue(t, nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.notifier.EXPECT().SendFollowUp(gomock.Any(), gomock.Any(), "hi", false).
		DoAndReturn(func(ctx context.Context, _ interaction.Invoker, _ string, _ bool) error {
			close(entered)
			<-release
			if ctx.Err() != nil {
				t.Errorf("send context cancelled: %v", ctx.Err())
			}
			return nil
		})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.d.Start(ctx) }()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("follow-up was not attempted")
	}
	cancel()
	close(release)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
	assert.Equal(t, StatusSent, f.job(t, id).Status)
}

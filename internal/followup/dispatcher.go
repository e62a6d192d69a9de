package followup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/mattjoyce/slashgate/internal/metrics"
)

const (
	// tokenLifetime is how long an interaction token accepts follow-ups.
	tokenLifetime = 15 * time.Minute

	maxBackoff = 2 * time.Minute

	defaultPollInterval = time.Second
	defaultBackoffBase  = 2 * time.Second
	defaultSendTimeout  = 10 * time.Second
)

// DispatcherConfig tunes the delivery loop. Zero values pick defaults;
// RatePerSecond <= 0 disables throttling.
type DispatcherConfig struct {
	PollInterval  time.Duration
	BackoffBase   time.Duration
	SendTimeout   time.Duration
	RatePerSecond float64
	Burst         int
}

// Dispatcher claims due jobs and delivers them through a Notifier.
type Dispatcher struct {
	queue    *Queue
	notifier Notifier
	limiter  *rate.Limiter
	cfg      DispatcherConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewDispatcher(q *Queue, n Notifier, cfg DispatcherConfig, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		queue:    q,
		notifier: n,
		limiter:  rate.NewLimiter(limit, cfg.Burst),
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
	}
}

// Start runs the delivery loop until ctx is cancelled. Jobs left running by
// a previous process are requeued first.
func (d *Dispatcher) Start(ctx context.Context) error {
	recovered, err := d.queue.RecoverRunning(ctx)
	if err != nil {
		return fmt.Errorf("recover follow-ups: %w", err)
	}
	if recovered > 0 {
		d.logger.Warn("requeued interrupted follow-ups", "count", recovered)
	}

	d.logger.Info("follow-up dispatcher started", "poll_interval", d.cfg.PollInterval.String())
	defer d.logger.Info("follow-up dispatcher stopped")

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

// drain delivers every job that is due now, then records the queue depth.
func (d *Dispatcher) drain(ctx context.Context) {
	defer d.recordDepth(context.WithoutCancel(ctx))
	for ctx.Err() == nil {
		processed, err := d.processNext(ctx)
		if err != nil {
			d.logger.Error("failed to process follow-up", "error", err)
			return
		}
		if !processed {
			return
		}
	}
}

func (d *Dispatcher) recordDepth(ctx context.Context) {
	if d.metrics == nil {
		return
	}
	n, err := d.queue.Depth(ctx)
	if err != nil {
		d.logger.Warn("failed to read follow-up queue depth", "error", err)
		return
	}
	d.metrics.SetQueueDepth(n)
}

// processNext claims and delivers one job. It reports false when nothing is due.
func (d *Dispatcher) processNext(ctx context.Context) (bool, error) {
	job, err := d.queue.Dequeue(ctx)
	if err != nil {
		return false, fmt.Errorf("dequeue: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := d.limiter.Wait(ctx); err != nil {
		// Shutting down; hand the job back without spending an attempt.
		if rerr := d.queue.Retry(context.WithoutCancel(ctx), job.ID, job.Attempt, d.queue.now(), "interrupted before delivery"); rerr != nil {
			return false, fmt.Errorf("requeue %s: %w", job.ID, rerr)
		}
		return false, nil
	}

	return true, d.deliver(ctx, job)
}

func (d *Dispatcher) deliver(ctx context.Context, job *Job) error {
	logger := d.logger.With("job_id", job.ID, "attempt", job.Attempt, "interaction_id", job.InteractionID)
	// A claimed job finishes its send and bookkeeping even if ctx is
	// cancelled; SendTimeout still bounds it.
	bg := context.WithoutCancel(ctx)
	expiresAt := job.CreatedAt.Add(tokenLifetime)

	if !d.queue.now().Before(expiresAt) {
		logger.Warn("dropping follow-up with expired token")
		d.metrics.CountFollowUp("dead", job.Attempt)
		return d.queue.MarkDead(bg, job.ID, "interaction token expired")
	}

	sendCtx, cancel := context.WithTimeout(bg, d.cfg.SendTimeout)
	err := d.notifier.SendFollowUp(sendCtx, job.Invoker(), job.Content, job.Ephemeral)
	cancel()

	if err == nil {
		logger.Info("follow-up sent")
		d.metrics.CountFollowUp("sent", job.Attempt)
		return d.queue.MarkSent(bg, job.ID)
	}

	if IsPermanent(err) || job.Attempt >= job.MaxAttempts {
		logger.Error("follow-up failed permanently", "error", err)
		d.metrics.CountFollowUp("dead", job.Attempt)
		return d.queue.MarkDead(bg, job.ID, err.Error())
	}

	delay := d.backoff(job.Attempt)
	var se *StatusError
	if errors.As(err, &se) && se.RetryAfter > delay {
		delay = se.RetryAfter
	}
	nextAt := d.queue.now().Add(delay)
	if !nextAt.Before(expiresAt) {
		logger.Error("follow-up cannot be retried before its token expires", "error", err)
		d.metrics.CountFollowUp("dead", job.Attempt)
		return d.queue.MarkDead(bg, job.ID, err.Error())
	}

	logger.Warn("follow-up failed, will retry", "error", err, "retry_in", delay.String())
	d.metrics.CountFollowUp("retry", job.Attempt)
	return d.queue.Retry(bg, job.ID, job.Attempt+1, nextAt, err.Error())
}

// backoff doubles BackoffBase per prior attempt, capped at maxBackoff.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

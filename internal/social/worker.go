package social

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bissquit/contentq/internal/domain"
)

// WorkerConfig contains worker configuration.
type WorkerConfig struct {
	BatchSize         int
	PollInterval      time.Duration
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultWorkerConfig returns default worker configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		BatchSize:         20,
		PollInterval:      time.Minute,
		MaxAttempts:       5,
		InitialBackoff:    time.Minute,
		MaxBackoff:        time.Hour,
		BackoffMultiplier: 2.0,
	}
}

// ItemSource provides published items awaiting social posts.
// ListSocialQueued returns only items whose next attempt is due.
type ItemSource interface {
	ListSocialQueued(ctx context.Context, limit int) ([]*domain.QueueItem, error)
	UpdateSocialStatus(ctx context.Context, id string, status domain.SocialStatus) (*domain.QueueItem, error)
	RetrySocial(ctx context.Context, id string, next time.Time) (*domain.QueueItem, error)
}

// Worker polls for social-queued items and dispatches them.
type Worker struct {
	config     WorkerConfig
	source     ItemSource
	dispatcher *Dispatcher

	now func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorker creates a new social worker.
func NewWorker(config WorkerConfig, source ItemSource, dispatcher *Dispatcher) *Worker {
	defaults := DefaultWorkerConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.BackoffMultiplier < 1 {
		config.BackoffMultiplier = defaults.BackoffMultiplier
	}
	return &Worker{
		config:     config,
		source:     source,
		dispatcher: dispatcher,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("starting social worker",
		"batch_size", w.config.BatchSize,
		"poll_interval", w.config.PollInterval,
		"max_attempts", w.config.MaxAttempts,
		"platforms", w.dispatcher.Platforms(),
	)

	w.wg.Add(1)
	go w.run(ctx)
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	slog.Info("social worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce dispatches one batch and returns the number of items handled.
func (w *Worker) RunOnce(ctx context.Context) int {
	items, err := w.source.ListSocialQueued(ctx, w.config.BatchSize)
	if err != nil {
		slog.Error("failed to fetch social queue", "error", err)
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	slog.Debug("processing social queue", "count", len(items))
	recordItemsFetched(len(items))

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}

		status := w.dispatcher.Dispatch(ctx, item)
		if status == domain.SocialStatusQueued {
			if !w.scheduleRetry(ctx, item) {
				continue
			}
			status = domain.SocialStatusSkipped
		}

		if _, err := w.source.UpdateSocialStatus(ctx, item.ID, status); err != nil {
			slog.Error("failed to update social status",
				"item_id", item.ID,
				"status", status,
				"error", err,
			)
			continue
		}

		slog.Info("social status updated", "item_id", item.ID, "slug", item.Slug, "status", status)
	}

	return len(items)
}

// scheduleRetry backs off a retryable failure. It returns true when the
// attempt limit is reached and the item should be skipped instead.
func (w *Worker) scheduleRetry(ctx context.Context, item *domain.QueueItem) bool {
	attempt := item.SocialAttempts + 1
	if attempt >= w.config.MaxAttempts {
		slog.Warn("social post max attempts exceeded, skipping",
			"item_id", item.ID,
			"slug", item.Slug,
			"attempts", attempt,
		)
		recordRetry("exhausted")
		return true
	}

	next := w.calculateNextAttempt(attempt)
	if _, err := w.source.RetrySocial(ctx, item.ID, next); err != nil {
		slog.Error("failed to schedule social retry", "item_id", item.ID, "error", err)
		return false
	}
	recordRetry("scheduled")

	slog.Info("social post scheduled for retry",
		"item_id", item.ID,
		"attempt", attempt,
		"next_attempt", next,
	)
	return false
}

func (w *Worker) calculateNextAttempt(attempt int) time.Time {
	backoff := float64(w.config.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= w.config.BackoffMultiplier
	}

	if backoff > float64(w.config.MaxBackoff) {
		backoff = float64(w.config.MaxBackoff)
	}

	return w.now().Add(time.Duration(backoff))
}

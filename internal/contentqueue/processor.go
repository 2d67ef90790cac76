package contentqueue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ProcessorConfig contains processor configuration.
type ProcessorConfig struct {
	PollInterval  time.Duration
	StatsInterval time.Duration
}

// DefaultProcessorConfig returns default processor configuration.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:  time.Minute,
		StatsInterval: 15 * time.Second,
	}
}

// QueueProcessor is the part of Service the processor drives.
type QueueProcessor interface {
	ProcessQueue(ctx context.Context) (*ProcessResult, error)
	GetQueueStats(ctx context.Context) (*QueueStats, error)
}

// Processor periodically publishes due items and refreshes queue metrics.
// A single goroutine runs the publish pass so one process never races itself
// for the same slot.
type Processor struct {
	config  ProcessorConfig
	service QueueProcessor

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewProcessor creates a new queue processor.
func NewProcessor(config ProcessorConfig, service QueueProcessor) *Processor {
	defaults := DefaultProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.StatsInterval <= 0 {
		config.StatsInterval = defaults.StatsInterval
	}
	return &Processor{
		config:  config,
		service: service,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the processor goroutines.
func (p *Processor) Start(ctx context.Context) {
	slog.Info("starting queue processor",
		"poll_interval", p.config.PollInterval,
		"stats_interval", p.config.StatsInterval,
	)

	p.wg.Add(2)
	go p.loop(ctx, p.config.PollInterval, p.RunOnce)
	go p.loop(ctx, p.config.StatsInterval, p.refreshStats)
}

// Stop gracefully stops the processor.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	slog.Info("queue processor stopped")
}

func (p *Processor) loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer p.wg.Done()

	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// RunOnce performs a single publish pass.
func (p *Processor) RunOnce(ctx context.Context) {
	result, err := p.service.ProcessQueue(ctx)
	if err != nil {
		slog.Error("failed to process queue", "error", err)
		return
	}

	if len(result.Published) > 0 || len(result.Failed) > 0 {
		slog.Info("queue processed",
			"published", len(result.Published),
			"failed", len(result.Failed),
		)
	}
}

func (p *Processor) refreshStats(ctx context.Context) {
	stats, err := p.service.GetQueueStats(ctx)
	if err != nil {
		slog.Error("failed to get queue stats", "error", err)
		return
	}
	RecordQueueStats(stats)
}

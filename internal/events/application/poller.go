package application

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Poller periodically re-fetches every algorithmic enrollment's
// monitored value. Failed fetches are reported by the engine as fault
// samples, so the poller itself never stops on error.
type Poller struct {
	engine   *Engine
	fetcher  ValueFetcher
	interval time.Duration
	logger   *zap.Logger
}

// NewPoller constructs a poller. A non-positive interval defaults to
// one second.
func NewPoller(engine *Engine, fetcher ValueFetcher, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{engine: engine, fetcher: fetcher, interval: interval, logger: logger}
}

// Start runs the polling loop until the context ends. One immediate
// cycle runs before the first tick.
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("enrollment poller started", zap.Duration("interval", p.interval))
	p.engine.PollEnrollments(ctx, p.fetcher)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("enrollment poller stopped")
			return
		case <-ticker.C:
			p.engine.PollEnrollments(ctx, p.fetcher)
		}
	}
}

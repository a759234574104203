package indexer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sellerdesk/indexd/internal/logging"
	"github.com/sellerdesk/indexd/internal/source"
)

// Scheduler enqueues periodic incremental runs for every known tenant.
// Manual triggers through the HTTP API share the same queue, so the
// coalescing in the status tracker applies to both.
type Scheduler struct {
	source   source.Reader
	queue    *Queue
	logger   *logging.Logger
	interval time.Duration
}

// NewScheduler creates a scheduler ticking at the given interval.
func NewScheduler(src source.Reader, queue *Queue, logger *logging.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		source:   src,
		queue:    queue,
		logger:   logger,
		interval: interval,
	}
}

// Run ticks until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info(ctx, "scheduler started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	tenants, err := s.source.Tenants(ctx)
	if err != nil {
		s.logger.Error(ctx, "enumerating tenants", zap.Error(err))
		return
	}

	for _, tenantID := range tenants {
		if err := s.queue.Enqueue(Trigger{TenantID: tenantID}); err != nil {
			s.logger.Warn(ctx, "skipping scheduled run",
				zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}
}

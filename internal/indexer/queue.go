package indexer

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/sellerdesk/indexd/internal/logging"
)

// ErrQueueFull is returned when a trigger cannot be accepted because the
// queue is at capacity. Callers surface this as backpressure.
var ErrQueueFull = errors.New("indexing queue full")

// errSuperseded cancels an in-flight incremental run when a full rebuild
// arrives for the same tenant.
var errSuperseded = errors.New("superseded by full rebuild")

// Trigger requests an indexing run for one tenant.
type Trigger struct {
	TenantID string
	Full     bool
}

// runHandle tracks an in-flight run so a full rebuild can supersede it.
type runHandle struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
	full   bool
}

// Queue accepts indexing triggers and dispatches them to a worker pool.
//
// Enqueue never blocks: a full queue is reported as ErrQueueFull. A full
// rebuild trigger cancels an in-flight incremental run for the same tenant
// and waits for it to release the tenant's indexing slot before starting.
type Queue struct {
	triggers chan Trigger
	service  *Service
	logger   *logging.Logger
	wg       sync.WaitGroup

	mu      sync.Mutex
	running map[string]*runHandle
}

// NewQueue creates a trigger queue with the given capacity.
func NewQueue(service *Service, logger *logging.Logger, size int) *Queue {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Queue{
		triggers: make(chan Trigger, size),
		service:  service,
		logger:   logger,
		running:  make(map[string]*runHandle),
	}
}

// Enqueue adds a trigger without blocking.
func (q *Queue) Enqueue(trigger Trigger) error {
	select {
	case q.triggers <- trigger:
		QueueDepth.Inc()
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the worker pool. Workers exit when ctx is canceled; call
// Wait to block until they have drained.
func (q *Queue) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 2
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// Wait blocks until all workers have exited.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case trigger := <-q.triggers:
			QueueDepth.Dec()
			q.process(ctx, trigger)
		}
	}
}

func (q *Queue) process(ctx context.Context, trigger Trigger) {
	runCtx, cancel := context.WithCancelCause(ctx)
	handle := &runHandle{cancel: cancel, done: make(chan struct{}), full: trigger.Full}

	if !q.claim(trigger.TenantID, handle) {
		cancel(nil)
		RunsTotal.WithLabelValues("none", "coalesced").Inc()
		q.logger.Debug(ctx, "run already in flight, trigger coalesced",
			zap.String("tenant_id", trigger.TenantID),
			zap.Bool("full", trigger.Full),
		)
		return
	}

	defer func() {
		cancel(nil)
		q.mu.Lock()
		delete(q.running, trigger.TenantID)
		q.mu.Unlock()
		// Closed after the slot is released so a superseding claimer
		// waiting on done finds the slot free when it retries.
		close(handle.done)
	}()

	if _, err := q.service.Run(runCtx, trigger.TenantID, trigger.Full); err != nil {
		q.logger.Error(runCtx, "indexing trigger failed",
			zap.String("tenant_id", trigger.TenantID),
			zap.Bool("full", trigger.Full),
			zap.Error(err),
		)
	}
}

// claim takes the tenant's run slot, making the slot owner the only worker
// that invokes Run for the tenant. A full rebuild preempts an in-flight
// incremental run and retries once it has drained: rebuilding everything
// anyway makes the partial run worthless. Any other collision leaves the
// slot with the current holder and reports false, coalescing the trigger
// without touching the holder's registration.
func (q *Queue) claim(tenantID string, handle *runHandle) bool {
	for {
		q.mu.Lock()
		existing := q.running[tenantID]
		if existing == nil {
			q.running[tenantID] = handle
			q.mu.Unlock()
			return true
		}
		if handle.full && !existing.full {
			existing.cancel(errSuperseded)
			q.mu.Unlock()
			<-existing.done
			continue
		}
		q.mu.Unlock()
		return false
	}
}

package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerdesk/indexd/internal/logging"
	"github.com/sellerdesk/indexd/internal/source"
	"github.com/sellerdesk/indexd/internal/status"
)

func TestQueueEnqueueBackpressure(t *testing.T) {
	env := newTestEnv(t)
	queue := NewQueue(env.service, logging.NewNop(), 1)

	// No workers started, so the single slot fills immediately.
	require.NoError(t, queue.Enqueue(Trigger{TenantID: "42"}))
	assert.ErrorIs(t, queue.Enqueue(Trigger{TenantID: "43"}), ErrQueueFull)
}

func TestQueueProcessesTriggers(t *testing.T) {
	env := newTestEnv(t)
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	env.reader.setRows("42", []source.Row{orderRow(1, "42", "Ceramic Mug", base)})

	queue := NewQueue(env.service, logging.NewNop(), 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx, 2)

	require.NoError(t, queue.Enqueue(Trigger{TenantID: "42"}))

	require.Eventually(t, func() bool {
		return env.tracker.state("42") == status.StateIndexed
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	queue.Wait()
}

func TestQueueFullRebuildSupersedesInflightRun(t *testing.T) {
	env := newTestEnv(t)
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	env.reader.setRows("42", []source.Row{orderRow(1, "42", "Ceramic Mug", base)})

	// The first embedding call hangs until its context is canceled, pinning
	// the first trigger in flight.
	env.embedder.blockFirst = true

	queue := NewQueue(env.service, logging.NewNop(), 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx, 2)

	require.NoError(t, queue.Enqueue(Trigger{TenantID: "42"}))
	require.Eventually(t, func() bool {
		return env.tracker.state("42") == status.StateIndexing
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, queue.Enqueue(Trigger{TenantID: "42", Full: true}))

	require.Eventually(t, func() bool {
		return env.tracker.state("42") == status.StateIndexed
	}, 5*time.Second, 10*time.Millisecond)

	env.tracker.mu.Lock()
	failures := append([]string(nil), env.tracker.failures...)
	env.tracker.mu.Unlock()
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "superseded")

	cancel()
	queue.Wait()
}

func TestQueueCoalescedTriggerKeepsRunTracked(t *testing.T) {
	env := newTestEnv(t)
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	env.reader.setRows("42", []source.Row{orderRow(1, "42", "Ceramic Mug", base)})

	env.embedder.blockFirst = true

	queue := NewQueue(env.service, logging.NewNop(), 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx, 2)

	require.NoError(t, queue.Enqueue(Trigger{TenantID: "42"}))
	require.Eventually(t, func() bool {
		return env.tracker.state("42") == status.StateIndexing
	}, 5*time.Second, 10*time.Millisecond)

	// A coalesced trigger arriving mid-run must not disturb the tracking of
	// the pinned run: the rebuild after it still has to find and cancel it.
	require.NoError(t, queue.Enqueue(Trigger{TenantID: "42"}))
	require.NoError(t, queue.Enqueue(Trigger{TenantID: "42", Full: true}))

	require.Eventually(t, func() bool {
		return env.tracker.state("42") == status.StateIndexed
	}, 5*time.Second, 10*time.Millisecond)

	st, err := env.tracker.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, st.HasCompletedFullRun(), "the full rebuild must run, not be dropped")

	env.tracker.mu.Lock()
	failures := append([]string(nil), env.tracker.failures...)
	env.tracker.mu.Unlock()
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "superseded")

	cancel()
	queue.Wait()
}

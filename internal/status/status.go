// Package status tracks per-tenant indexing state.
//
// One persisted row per tenant records the run state machine
// (pending → indexing → indexed|failed) and the watermarks incremental
// runs select against. The transition into indexing is an atomic
// compare-and-set, which gives single-flight semantics per tenant without
// an external lock service: a trigger arriving while a run is active is
// coalesced as a no-op.
package status

import (
	"context"
	"time"
)

// State is the run state of a tenant's index.
type State string

const (
	StatePending  State = "pending"
	StateIndexing State = "indexing"
	StateIndexed  State = "indexed"
	StateFailed   State = "failed"
)

// Mode identifies the kind of indexing run.
type Mode string

const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
)

// Status is the persisted index state for one tenant. Created lazily on
// the first trigger, never deleted, only transitioned.
type Status struct {
	TenantID             string     `json:"tenant_id"`
	State                State      `json:"status"`
	LastFullIndexAt      *time.Time `json:"last_full_index_at,omitempty"`
	LastIncrementalAt    *time.Time `json:"last_incremental_index_at,omitempty"`
	TotalChunks          int        `json:"total_chunks"`
	LastError            string     `json:"last_error,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// HasCompletedFullRun reports whether any full run ever succeeded.
// Until it has, every trigger runs in full mode.
func (s *Status) HasCompletedFullRun() bool {
	return s.LastFullIndexAt != nil
}

// Watermark returns the boundary incremental runs select changes against.
func (s *Status) Watermark() time.Time {
	if s.LastIncrementalAt != nil {
		return *s.LastIncrementalAt
	}
	if s.LastFullIndexAt != nil {
		return *s.LastFullIndexAt
	}
	return time.Time{}
}

// Tracker persists tenant index status.
type Tracker interface {
	// Begin atomically transitions the tenant into StateIndexing, creating
	// the row lazily. Returns false without error when the tenant is
	// already indexing (the caller coalesces the trigger).
	Begin(ctx context.Context, tenantID string) (bool, error)

	// Complete records a successful run: state indexed, total chunk count,
	// and the watermark for the given mode set to startedAt.
	Complete(ctx context.Context, tenantID string, mode Mode, totalChunks int, startedAt time.Time) error

	// Fail records a failed run with its reason.
	Fail(ctx context.Context, tenantID string, reason string) error

	// Get returns the tenant's status, creating a pending row lazily.
	Get(ctx context.Context, tenantID string) (*Status, error)
}

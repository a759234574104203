// Package chunk renders business records into deterministic text chunks
// and detects content-level changes via hashing.
//
// A chunk is the normalized text rendering of exactly one source row; it is
// the unit of embedding and retrieval. Rendering is pure: identical row
// state always yields byte-identical text, which is what makes hash-based
// change detection sound.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type tags the source category of a chunk.
type Type string

const (
	TypeOrder   Type = "order"
	TypeProduct Type = "product"
	TypeStock   Type = "stock"
	TypeReview  Type = "review"
	TypeSale    Type = "sale"
)

// Sentinel errors for chunk operations.
var (
	// ErrNotFound is returned when no chunk record exists for a source row.
	ErrNotFound = errors.New("chunk record not found")

	// ErrUnknownTable is returned when no renderer covers a source table.
	ErrUnknownTable = errors.New("no renderer registered for source table")
)

// pointNamespace is the UUIDv5 namespace for vector point IDs.
var pointNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Record is the persisted chunk state for one source row.
//
// Exactly one Record exists per (TenantID, SourceTable, SourceID). Text and
// Hash are overwritten only when a re-render produces a different hash.
// EmbeddedAt is nil while embedding generation for the current hash has not
// succeeded; such rows stay candidates for the next run.
type Record struct {
	TenantID    string
	SourceTable string
	SourceID    int64
	Type        Type
	Text        string
	Hash        string
	EmbeddedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Embedded reports whether an embedding exists for the current hash.
func (r *Record) Embedded() bool {
	return r.EmbeddedAt != nil
}

// PointID returns the deterministic vector point ID for this record.
// Re-upserts overwrite in place and deletes address the point directly.
func (r *Record) PointID() string {
	return PointID(r.TenantID, r.SourceTable, r.SourceID)
}

// PointID derives the vector point UUID for a source row.
func PointID(tenantID, sourceTable string, sourceID int64) string {
	name := fmt.Sprintf("%s/%s/%d", tenantID, sourceTable, sourceID)
	return uuid.NewSHA1(pointNamespace, []byte(name)).String()
}

// Key identifies a source row within a tenant.
type Key struct {
	SourceTable string
	SourceID    int64
}

// Store persists chunk records.
type Store interface {
	// Get returns the record for a source row, or ErrNotFound.
	Get(ctx context.Context, tenantID, sourceTable string, sourceID int64) (*Record, error)

	// Upsert inserts the record or overwrites its text, hash and type.
	// The write is atomic per row; EmbeddedAt is cleared because the
	// stored vector (if any) no longer matches the new hash.
	Upsert(ctx context.Context, rec *Record) error

	// Touch updates only the bookkeeping timestamp of an unchanged row.
	Touch(ctx context.Context, tenantID, sourceTable string, sourceID int64, at time.Time) error

	// MarkEmbedded records that embedding generation succeeded for the
	// row's current hash.
	MarkEmbedded(ctx context.Context, tenantID, sourceTable string, sourceID int64, at time.Time) error

	// Pending returns every record for the tenant whose current hash has
	// no stored embedding yet. Runs embed exactly this set, which makes
	// rows that failed embedding in an earlier run self-healing.
	Pending(ctx context.Context, tenantID string) ([]*Record, error)

	// Keys returns the identifying keys of every record for the tenant.
	// Used by full runs to reconcile deletions.
	Keys(ctx context.Context, tenantID string) ([]Key, error)

	// Delete removes the record for a source row.
	Delete(ctx context.Context, tenantID, sourceTable string, sourceID int64) error

	// Count returns the number of records for the tenant.
	Count(ctx context.Context, tenantID string) (int, error)
}

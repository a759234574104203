package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sellerdesk/indexd/internal/status"
)

// statusTracker implements status.Tracker.
type statusTracker struct {
	store *Store
}

// Begin atomically transitions the tenant into indexing. The guard is a
// single UPDATE conditioned on status != 'indexing'; RowsAffected tells us
// whether we won the transition, which is the entire single-flight
// mechanism — no external lock service involved.
func (t *statusTracker) Begin(ctx context.Context, tenantID string) (bool, error) {
	if err := t.ensureRow(ctx, tenantID); err != nil {
		return false, err
	}

	res, err := t.store.db.ExecContext(ctx, `
		UPDATE index_status SET status = ?, updated_at = ?
		WHERE tenant_id = ? AND status != ?`,
		status.StateIndexing, time.Now().UTC(), tenantID, status.StateIndexing)
	if err != nil {
		return false, fmt.Errorf("beginning index run: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("beginning index run: %w", err)
	}
	return affected == 1, nil
}

func (t *statusTracker) Complete(ctx context.Context, tenantID string, mode status.Mode, totalChunks int, startedAt time.Time) error {
	watermarkCol := "last_incremental_index_at"
	if mode == status.ModeFull {
		watermarkCol = "last_full_index_at"
	}

	// A full run also establishes the incremental watermark: rows changed
	// after the full scan started are picked up by the next incremental run.
	query := fmt.Sprintf(`
		UPDATE index_status
		SET status = ?, %s = ?, last_incremental_index_at = ?,
		    total_chunks = ?, last_error = '', updated_at = ?
		WHERE tenant_id = ?`, watermarkCol)

	_, err := t.store.db.ExecContext(ctx, query,
		status.StateIndexed, startedAt.UTC(), startedAt.UTC(),
		totalChunks, time.Now().UTC(), tenantID)
	if err != nil {
		return fmt.Errorf("completing index run: %w", err)
	}
	return nil
}

func (t *statusTracker) Fail(ctx context.Context, tenantID string, reason string) error {
	_, err := t.store.db.ExecContext(ctx, `
		UPDATE index_status SET status = ?, last_error = ?, updated_at = ?
		WHERE tenant_id = ?`,
		status.StateFailed, reason, time.Now().UTC(), tenantID)
	if err != nil {
		return fmt.Errorf("failing index run: %w", err)
	}
	return nil
}

func (t *statusTracker) Get(ctx context.Context, tenantID string) (*status.Status, error) {
	if err := t.ensureRow(ctx, tenantID); err != nil {
		return nil, err
	}

	row := t.store.db.QueryRowContext(ctx, `
		SELECT tenant_id, status, last_full_index_at, last_incremental_index_at,
		       total_chunks, last_error, updated_at
		FROM index_status WHERE tenant_id = ?`, tenantID)

	var st status.Status
	var lastFull, lastIncr sql.NullTime
	err := row.Scan(&st.TenantID, &st.State, &lastFull, &lastIncr,
		&st.TotalChunks, &st.LastError, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// ensureRow raced with nothing that deletes; treat as pending.
		return &status.Status{TenantID: tenantID, State: status.StatePending}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting index status: %w", err)
	}
	if lastFull.Valid {
		st.LastFullIndexAt = &lastFull.Time
	}
	if lastIncr.Valid {
		st.LastIncrementalAt = &lastIncr.Time
	}
	return &st, nil
}

// ensureRow lazily creates the tenant's status row in pending state.
func (t *statusTracker) ensureRow(ctx context.Context, tenantID string) error {
	_, err := t.store.db.ExecContext(ctx, `
		INSERT INTO index_status (tenant_id, status, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(tenant_id) DO NOTHING`,
		tenantID, status.StatePending, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("ensuring status row: %w", err)
	}
	return nil
}

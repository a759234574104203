package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sellerdesk/indexd/internal/chunk"
)

// chunkStore implements chunk.Store.
type chunkStore struct {
	store *Store
}

func (c *chunkStore) Get(ctx context.Context, tenantID, sourceTable string, sourceID int64) (*chunk.Record, error) {
	row := c.store.db.QueryRowContext(ctx, `
		SELECT tenant_id, source_table, source_id, chunk_type, chunk_text,
		       chunk_hash, embedded_at, created_at, updated_at
		FROM chunk_records
		WHERE tenant_id = ? AND source_table = ? AND source_id = ?`,
		tenantID, sourceTable, sourceID)

	var rec chunk.Record
	var embeddedAt sql.NullTime
	err := row.Scan(&rec.TenantID, &rec.SourceTable, &rec.SourceID, &rec.Type,
		&rec.Text, &rec.Hash, &embeddedAt, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chunk.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting chunk record: %w", err)
	}
	if embeddedAt.Valid {
		rec.EmbeddedAt = &embeddedAt.Time
	}
	return &rec, nil
}

// Upsert inserts the record or overwrites its text, hash and type in a
// single statement, so a reader never observes a hash that does not match
// the stored text. The embedded marker is cleared: the stored vector (if
// any) belongs to the previous hash.
func (c *chunkStore) Upsert(ctx context.Context, rec *chunk.Record) error {
	_, err := c.store.db.ExecContext(ctx, `
		INSERT INTO chunk_records
			(tenant_id, source_table, source_id, chunk_type, chunk_text,
			 chunk_hash, embedded_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?)
		ON CONFLICT(tenant_id, source_table, source_id) DO UPDATE SET
			chunk_type = excluded.chunk_type,
			chunk_text = excluded.chunk_text,
			chunk_hash = excluded.chunk_hash,
			embedded_at = NULL,
			updated_at = excluded.updated_at`,
		rec.TenantID, rec.SourceTable, rec.SourceID, rec.Type, rec.Text,
		rec.Hash, rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upserting chunk record: %w", err)
	}
	return nil
}

func (c *chunkStore) Touch(ctx context.Context, tenantID, sourceTable string, sourceID int64, at time.Time) error {
	_, err := c.store.db.ExecContext(ctx, `
		UPDATE chunk_records SET updated_at = ?
		WHERE tenant_id = ? AND source_table = ? AND source_id = ?`,
		at.UTC(), tenantID, sourceTable, sourceID)
	if err != nil {
		return fmt.Errorf("touching chunk record: %w", err)
	}
	return nil
}

func (c *chunkStore) MarkEmbedded(ctx context.Context, tenantID, sourceTable string, sourceID int64, at time.Time) error {
	_, err := c.store.db.ExecContext(ctx, `
		UPDATE chunk_records SET embedded_at = ?, updated_at = ?
		WHERE tenant_id = ? AND source_table = ? AND source_id = ?`,
		at.UTC(), at.UTC(), tenantID, sourceTable, sourceID)
	if err != nil {
		return fmt.Errorf("marking chunk record embedded: %w", err)
	}
	return nil
}

// Pending returns records whose current hash has no stored embedding,
// ordered deterministically for stable batching.
func (c *chunkStore) Pending(ctx context.Context, tenantID string) ([]*chunk.Record, error) {
	rows, err := c.store.db.QueryContext(ctx, `
		SELECT tenant_id, source_table, source_id, chunk_type, chunk_text,
		       chunk_hash, embedded_at, created_at, updated_at
		FROM chunk_records
		WHERE tenant_id = ? AND embedded_at IS NULL
		ORDER BY source_table, source_id`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing pending chunk records: %w", err)
	}
	defer rows.Close()

	var records []*chunk.Record
	for rows.Next() {
		var rec chunk.Record
		var embeddedAt sql.NullTime
		if err := rows.Scan(&rec.TenantID, &rec.SourceTable, &rec.SourceID, &rec.Type,
			&rec.Text, &rec.Hash, &embeddedAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning pending chunk record: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (c *chunkStore) Keys(ctx context.Context, tenantID string) ([]chunk.Key, error) {
	rows, err := c.store.db.QueryContext(ctx, `
		SELECT source_table, source_id FROM chunk_records WHERE tenant_id = ?`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing chunk keys: %w", err)
	}
	defer rows.Close()

	var keys []chunk.Key
	for rows.Next() {
		var k chunk.Key
		if err := rows.Scan(&k.SourceTable, &k.SourceID); err != nil {
			return nil, fmt.Errorf("scanning chunk key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (c *chunkStore) Delete(ctx context.Context, tenantID, sourceTable string, sourceID int64) error {
	_, err := c.store.db.ExecContext(ctx, `
		DELETE FROM chunk_records
		WHERE tenant_id = ? AND source_table = ? AND source_id = ?`,
		tenantID, sourceTable, sourceID)
	if err != nil {
		return fmt.Errorf("deleting chunk record: %w", err)
	}
	return nil
}

func (c *chunkStore) Count(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := c.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunk_records WHERE tenant_id = ?", tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chunk records: %w", err)
	}
	return count, nil
}

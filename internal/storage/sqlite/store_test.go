package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerdesk/indexd/internal/chunk"
	"github.com/sellerdesk/indexd/internal/source"
	"github.com/sellerdesk/indexd/internal/status"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "indexd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func insertOrder(t *testing.T, store *Store, tenantID, name string, updatedAt time.Time) int64 {
	t.Helper()
	res, err := store.db.Exec(`
		INSERT INTO orders (tenant_id, product_name, quantity, total_price,
			currency, status, order_date, region, updated_at)
		VALUES (?, ?, 2, 24.0, 'EUR', 'delivered', '2025-05-28', 'Bavaria', ?)`,
		tenantID, name, updatedAt.UTC())
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestSourceReader(t *testing.T) {
	store := newTestStore(t)
	reader := store.SourceReader()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	insertOrder(t, store, "42", "Ceramic Mug", base)
	insertOrder(t, store, "42", "Steel Bottle", base.Add(time.Hour))
	insertOrder(t, store, "43", "Other Tenant Item", base)

	t.Run("select all is tenant scoped", func(t *testing.T) {
		rows, err := reader.SelectAll(ctx, "42")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		for _, row := range rows {
			assert.Equal(t, "42", row.TenantID)
			assert.Equal(t, source.TableOrders, row.Table)
		}
		assert.Equal(t, "Ceramic Mug", rows[0].Field("product_name"))
		assert.Equal(t, "24.00", rows[0].Field("total_price"), "money is normalized to two decimals")
		assert.Equal(t, "2", rows[0].Field("quantity"))
	})

	t.Run("select changed honors watermark", func(t *testing.T) {
		rows, err := reader.SelectChanged(ctx, "42", base.Add(30*time.Minute))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "Steel Bottle", rows[0].Field("product_name"))
	})

	t.Run("tenants are deduplicated", func(t *testing.T) {
		tenants, err := reader.Tenants(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"42", "43"}, tenants)
	})
}

func TestChunkStore(t *testing.T) {
	store := newTestStore(t)
	chunks := store.ChunkStore()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	rec := &chunk.Record{
		TenantID:    "42",
		SourceTable: source.TableOrders,
		SourceID:    101,
		Type:        chunk.TypeOrder,
		Text:        "Order #101: Ceramic Mug.",
		Hash:        chunk.Hash("Order #101: Ceramic Mug."),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		_, err := chunks.Get(ctx, "42", source.TableOrders, 101)
		assert.ErrorIs(t, err, chunk.ErrNotFound)
	})

	t.Run("upsert then get", func(t *testing.T) {
		require.NoError(t, chunks.Upsert(ctx, rec))

		got, err := chunks.Get(ctx, "42", source.TableOrders, 101)
		require.NoError(t, err)
		assert.Equal(t, rec.Hash, got.Hash)
		assert.False(t, got.Embedded())
	})

	t.Run("mark embedded", func(t *testing.T) {
		require.NoError(t, chunks.MarkEmbedded(ctx, "42", source.TableOrders, 101, now.Add(time.Minute)))

		got, err := chunks.Get(ctx, "42", source.TableOrders, 101)
		require.NoError(t, err)
		assert.True(t, got.Embedded())
	})

	t.Run("re-upsert clears embedded marker", func(t *testing.T) {
		changed := *rec
		changed.Text = "Order #101: Ceramic Mug, quantity 3."
		changed.Hash = chunk.Hash(changed.Text)
		changed.UpdatedAt = now.Add(2 * time.Minute)
		require.NoError(t, chunks.Upsert(ctx, &changed))

		got, err := chunks.Get(ctx, "42", source.TableOrders, 101)
		require.NoError(t, err)
		assert.Equal(t, changed.Hash, got.Hash)
		assert.False(t, got.Embedded(), "new hash invalidates the stored vector")
	})

	t.Run("pending lists unembedded records", func(t *testing.T) {
		pending, err := chunks.Pending(ctx, "42")
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, int64(101), pending[0].SourceID)

		require.NoError(t, chunks.MarkEmbedded(ctx, "42", source.TableOrders, 101, now.Add(3*time.Minute)))
		pending, err = chunks.Pending(ctx, "42")
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("keys, count and delete", func(t *testing.T) {
		keys, err := chunks.Keys(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, []chunk.Key{{SourceTable: source.TableOrders, SourceID: 101}}, keys)

		count, err := chunks.Count(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		require.NoError(t, chunks.Delete(ctx, "42", source.TableOrders, 101))
		count, err = chunks.Count(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

func TestStatusTracker(t *testing.T) {
	store := newTestStore(t)
	tracker := store.StatusTracker()
	ctx := context.Background()

	t.Run("lazy pending row", func(t *testing.T) {
		st, err := tracker.Get(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, status.StatePending, st.State)
		assert.False(t, st.HasCompletedFullRun())
	})

	t.Run("begin is single flight", func(t *testing.T) {
		began, err := tracker.Begin(ctx, "42")
		require.NoError(t, err)
		assert.True(t, began)

		coalesced, err := tracker.Begin(ctx, "42")
		require.NoError(t, err)
		assert.False(t, coalesced, "second trigger while indexing must coalesce")
	})

	t.Run("other tenants are unaffected", func(t *testing.T) {
		began, err := tracker.Begin(ctx, "43")
		require.NoError(t, err)
		assert.True(t, began)
	})

	t.Run("complete sets watermarks and counts", func(t *testing.T) {
		startedAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
		require.NoError(t, tracker.Complete(ctx, "42", status.ModeFull, 3, startedAt))

		st, err := tracker.Get(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, status.StateIndexed, st.State)
		assert.Equal(t, 3, st.TotalChunks)
		assert.True(t, st.HasCompletedFullRun())
		assert.Equal(t, startedAt, st.Watermark().UTC())

		// Indexed -> indexing is allowed again.
		began, err := tracker.Begin(ctx, "42")
		require.NoError(t, err)
		assert.True(t, began)
	})

	t.Run("fail records reason", func(t *testing.T) {
		require.NoError(t, tracker.Fail(ctx, "42", "extraction failed"))

		st, err := tracker.Get(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, status.StateFailed, st.State)
		assert.Equal(t, "extraction failed", st.LastError)
	})
}

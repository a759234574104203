package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestChromemStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(ChromemConfig{
		Path:       t.TempDir(),
		Collection: "chunks",
		VectorSize: 3,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func tenantCtx(tenantID string) context.Context {
	return ContextWithTenant(context.Background(), &TenantInfo{TenantID: tenantID})
}

func TestChromemStoreUpsertAndQuery(t *testing.T) {
	store := newTestChromemStore(t)

	docs := []Document{
		{ID: "11111111-1111-1111-1111-111111111111", Content: "ceramic mug order", Vector: []float32{1, 0, 0}},
		{ID: "22222222-2222-2222-2222-222222222222", Content: "steel bottle stock", Vector: []float32{0, 1, 0}},
	}
	require.NoError(t, store.Upsert(tenantCtx("42"), docs))

	t.Run("query returns nearest above floor", func(t *testing.T) {
		results, err := store.Query(tenantCtx("42"), []float32{1, 0, 0}, 2, 0.5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "11111111-1111-1111-1111-111111111111", results[0].ID)
		assert.Equal(t, "ceramic mug order", results[0].Content)
		assert.InDelta(t, 1.0, results[0].Score, 0.001)
	})

	t.Run("floor zero returns all", func(t *testing.T) {
		results, err := store.Query(tenantCtx("42"), []float32{1, 0, 0}, 2, 0)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("upsert replaces same id", func(t *testing.T) {
		replaced := []Document{
			{ID: "11111111-1111-1111-1111-111111111111", Content: "ceramic mug order, cancelled", Vector: []float32{1, 0, 0}},
		}
		require.NoError(t, store.Upsert(tenantCtx("42"), replaced))

		results, err := store.Query(tenantCtx("42"), []float32{1, 0, 0}, 1, 0.5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "ceramic mug order, cancelled", results[0].Content)
	})
}

func TestChromemStoreTenantIsolation(t *testing.T) {
	store := newTestChromemStore(t)

	require.NoError(t, store.Upsert(tenantCtx("42"), []Document{
		{ID: "11111111-1111-1111-1111-111111111111", Content: "tenant 42 order", Vector: []float32{1, 0, 0}},
	}))
	require.NoError(t, store.Upsert(tenantCtx("43"), []Document{
		{ID: "22222222-2222-2222-2222-222222222222", Content: "tenant 43 order", Vector: []float32{1, 0, 0}},
	}))

	t.Run("query only sees own tenant", func(t *testing.T) {
		results, err := store.Query(tenantCtx("42"), []float32{1, 0, 0}, 2, 0)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "tenant 42 order", results[0].Content)
		assert.Equal(t, "42", results[0].Metadata["tenant_id"])
	})

	t.Run("missing tenant context fails closed", func(t *testing.T) {
		_, err := store.Query(context.Background(), []float32{1, 0, 0}, 1, 0)
		assert.ErrorIs(t, err, ErrMissingTenant)

		err = store.Upsert(context.Background(), []Document{
			{ID: "33333333-3333-3333-3333-333333333333", Content: "x", Vector: []float32{1, 0, 0}},
		})
		assert.ErrorIs(t, err, ErrMissingTenant)

		err = store.Delete(context.Background(), []string{"11111111-1111-1111-1111-111111111111"})
		assert.ErrorIs(t, err, ErrMissingTenant)
	})
}

func TestChromemStoreDelete(t *testing.T) {
	store := newTestChromemStore(t)

	require.NoError(t, store.Upsert(tenantCtx("42"), []Document{
		{ID: "11111111-1111-1111-1111-111111111111", Content: "order", Vector: []float32{1, 0, 0}},
	}))

	require.NoError(t, store.Delete(tenantCtx("42"), []string{"11111111-1111-1111-1111-111111111111"}))

	results, err := store.Query(tenantCtx("42"), []float32{1, 0, 0}, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	t.Run("deleting nothing is a no-op", func(t *testing.T) {
		assert.NoError(t, store.Delete(tenantCtx("42"), nil))
	})
}

func TestChromemStoreValidation(t *testing.T) {
	store := newTestChromemStore(t)

	t.Run("empty batch rejected", func(t *testing.T) {
		err := store.Upsert(tenantCtx("42"), nil)
		assert.ErrorIs(t, err, ErrEmptyDocuments)
	})

	t.Run("missing vector rejected", func(t *testing.T) {
		err := store.Upsert(tenantCtx("42"), []Document{{ID: "a", Content: "x"}})
		assert.ErrorIs(t, err, ErrMissingVector)
	})

	t.Run("non-positive k rejected", func(t *testing.T) {
		_, err := store.Query(tenantCtx("42"), []float32{1, 0, 0}, 0, 0)
		assert.Error(t, err)
	})
}

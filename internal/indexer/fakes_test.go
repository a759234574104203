package indexer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sellerdesk/indexd/internal/chunk"
	"github.com/sellerdesk/indexd/internal/source"
	"github.com/sellerdesk/indexd/internal/status"
	"github.com/sellerdesk/indexd/internal/vectorstore"
)

// fakeReader serves rows from memory.
type fakeReader struct {
	mu   sync.Mutex
	rows map[string][]source.Row
	err  error
}

func newFakeReader() *fakeReader {
	return &fakeReader{rows: make(map[string][]source.Row)}
}

func (r *fakeReader) setRows(tenantID string, rows []source.Row) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[tenantID] = rows
}

func (r *fakeReader) SelectAll(ctx context.Context, tenantID string) ([]source.Row, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return append([]source.Row(nil), r.rows[tenantID]...), nil
}

func (r *fakeReader) SelectChanged(ctx context.Context, tenantID string, since time.Time) ([]source.Row, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var changed []source.Row
	for _, row := range r.rows[tenantID] {
		if row.UpdatedAt.After(since) {
			changed = append(changed, row)
		}
	}
	return changed, nil
}

func (r *fakeReader) Tenants(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tenants := make([]string, 0, len(r.rows))
	for tenantID := range r.rows {
		tenants = append(tenants, tenantID)
	}
	return tenants, nil
}

// memChunkStore is an in-memory chunk.Store.
type memChunkStore struct {
	mu      sync.Mutex
	records map[string]map[chunk.Key]*chunk.Record
}

func newMemChunkStore() *memChunkStore {
	return &memChunkStore{records: make(map[string]map[chunk.Key]*chunk.Record)}
}

func (s *memChunkStore) get(tenantID string, key chunk.Key) *chunk.Record {
	tenant := s.records[tenantID]
	if tenant == nil {
		return nil
	}
	return tenant[key]
}

func (s *memChunkStore) Get(ctx context.Context, tenantID, sourceTable string, sourceID int64) (*chunk.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.get(tenantID, chunk.Key{SourceTable: sourceTable, SourceID: sourceID})
	if rec == nil {
		return nil, chunk.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *memChunkStore) Upsert(ctx context.Context, rec *chunk.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records[rec.TenantID] == nil {
		s.records[rec.TenantID] = make(map[chunk.Key]*chunk.Record)
	}
	cp := *rec
	cp.EmbeddedAt = nil
	s.records[rec.TenantID][chunk.Key{SourceTable: rec.SourceTable, SourceID: rec.SourceID}] = &cp
	return nil
}

func (s *memChunkStore) Touch(ctx context.Context, tenantID, sourceTable string, sourceID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.get(tenantID, chunk.Key{SourceTable: sourceTable, SourceID: sourceID}); rec != nil {
		rec.UpdatedAt = at
	}
	return nil
}

func (s *memChunkStore) MarkEmbedded(ctx context.Context, tenantID, sourceTable string, sourceID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.get(tenantID, chunk.Key{SourceTable: sourceTable, SourceID: sourceID}); rec != nil {
		t := at
		rec.EmbeddedAt = &t
	}
	return nil
}

func (s *memChunkStore) Pending(ctx context.Context, tenantID string) ([]*chunk.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []*chunk.Record
	for _, rec := range s.records[tenantID] {
		if rec.EmbeddedAt == nil {
			cp := *rec
			pending = append(pending, &cp)
		}
	}
	return pending, nil
}

func (s *memChunkStore) Keys(ctx context.Context, tenantID string) ([]chunk.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []chunk.Key
	for key := range s.records[tenantID] {
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *memChunkStore) Delete(ctx context.Context, tenantID, sourceTable string, sourceID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records[tenantID], chunk.Key{SourceTable: sourceTable, SourceID: sourceID})
	return nil
}

func (s *memChunkStore) Count(ctx context.Context, tenantID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[tenantID]), nil
}

// fakeEmbedder returns fixed-size vectors and counts texts embedded.
// failText permanently fails a specific text; blockFirst makes the first
// batch call hang until its context is canceled.
type fakeEmbedder struct {
	mu         sync.Mutex
	calls      int
	embedded   int
	failText   string
	blockFirst bool
}

func (e *fakeEmbedder) embeddedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.embedded
}

func (e *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	first := e.calls == 1
	e.mu.Unlock()

	if e.blockFirst && first {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	for _, text := range texts {
		if text == e.failText {
			return nil, errors.New("provider rejected batch")
		}
	}

	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	e.mu.Lock()
	e.embedded += len(texts)
	e.mu.Unlock()
	return vectors, nil
}

func (e *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == e.failText {
		return nil, errors.New("provider rejected text")
	}
	e.mu.Lock()
	e.embedded++
	e.mu.Unlock()
	return []float32{1, 0, 0}, nil
}

// fakeVectorStore records upserts and deletes by point ID.
type fakeVectorStore struct {
	mu   sync.Mutex
	docs map[string]vectorstore.Document
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{docs: make(map[string]vectorstore.Document)}
}

func (s *fakeVectorStore) Upsert(ctx context.Context, docs []vectorstore.Document) error {
	if _, err := vectorstore.TenantFromContext(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		s.docs[doc.ID] = doc
	}
	return nil
}

func (s *fakeVectorStore) Query(ctx context.Context, vector []float32, k int, floor float32) ([]vectorstore.SearchResult, error) {
	return nil, nil
}

func (s *fakeVectorStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.docs, id)
	}
	return nil
}

func (s *fakeVectorStore) Close() error { return nil }

func (s *fakeVectorStore) doc(id string) (vectorstore.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	return doc, ok
}

func (s *fakeVectorStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// memTracker is an in-memory status.Tracker with CAS Begin semantics.
type memTracker struct {
	mu       sync.Mutex
	statuses map[string]*status.Status
	failures []string
}

func newMemTracker() *memTracker {
	return &memTracker{statuses: make(map[string]*status.Status)}
}

func (t *memTracker) ensure(tenantID string) *status.Status {
	if t.statuses[tenantID] == nil {
		t.statuses[tenantID] = &status.Status{TenantID: tenantID, State: status.StatePending}
	}
	return t.statuses[tenantID]
}

func (t *memTracker) Begin(ctx context.Context, tenantID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.ensure(tenantID)
	if st.State == status.StateIndexing {
		return false, nil
	}
	st.State = status.StateIndexing
	return true, nil
}

func (t *memTracker) Complete(ctx context.Context, tenantID string, mode status.Mode, totalChunks int, startedAt time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.ensure(tenantID)
	st.State = status.StateIndexed
	st.TotalChunks = totalChunks
	st.LastError = ""
	at := startedAt
	if mode == status.ModeFull {
		st.LastFullIndexAt = &at
	}
	st.LastIncrementalAt = &at
	return nil
}

func (t *memTracker) Fail(ctx context.Context, tenantID string, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.ensure(tenantID)
	st.State = status.StateFailed
	st.LastError = reason
	t.failures = append(t.failures, reason)
	return nil
}

func (t *memTracker) Get(ctx context.Context, tenantID string) (*status.Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := *t.ensure(tenantID)
	return &cp, nil
}

func (t *memTracker) state(tenantID string) status.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ensure(tenantID).State
}

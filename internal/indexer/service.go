// Package indexer orchestrates per-tenant indexing runs.
//
// A run extracts business rows, renders them into chunks, classifies each
// chunk against its stored hash, embeds only new or changed text, upserts
// the vectors, and records the outcome in the tenant's index status. Full
// runs additionally reconcile deletions. Per-tenant single flight is
// enforced by the status tracker's Begin transition.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/sellerdesk/indexd/internal/chunk"
	"github.com/sellerdesk/indexd/internal/embeddings"
	"github.com/sellerdesk/indexd/internal/logging"
	"github.com/sellerdesk/indexd/internal/source"
	"github.com/sellerdesk/indexd/internal/status"
	"github.com/sellerdesk/indexd/internal/vectorstore"
)

var tracer = otel.Tracer("indexd.indexer")

// Config bounds the embedding work a run may do.
type Config struct {
	// BatchSize is the number of texts per embedding provider call.
	BatchSize int

	// MaxRetries is the per-row retry ceiling when the provider fails.
	MaxRetries int

	// RetryBackoff is the initial backoff, doubled per attempt.
	RetryBackoff time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 32
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
}

// RunResult summarizes one indexing run.
type RunResult struct {
	Mode        status.Mode
	New         int
	Changed     int
	Unchanged   int
	Skipped     int
	Deleted     int
	TotalChunks int
}

// Service runs the indexing pipeline for one tenant at a time.
type Service struct {
	source   source.Reader
	chunks   chunk.Store
	embedder embeddings.Client
	vectors  vectorstore.Store
	tracker  status.Tracker
	logger   *logging.Logger
	config   Config
}

// NewService wires the indexing pipeline.
func NewService(src source.Reader, chunks chunk.Store, embedder embeddings.Client, vectors vectorstore.Store, tracker status.Tracker, logger *logging.Logger, config Config) *Service {
	config.ApplyDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		source:   src,
		chunks:   chunks,
		embedder: embedder,
		vectors:  vectors,
		tracker:  tracker,
		logger:   logger,
		config:   config,
	}
}

// Run executes one indexing run for the tenant. A full run re-renders every
// row and reconciles deletions; an incremental run only visits rows updated
// after the watermark. The first run for a tenant is always full.
//
// Returns (nil, nil) when another run is already in flight for the tenant;
// the trigger is coalesced.
func (s *Service) Run(ctx context.Context, tenantID string, full bool) (*RunResult, error) {
	began, err := s.tracker.Begin(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("beginning run for tenant %s: %w", tenantID, err)
	}
	if !began {
		RunsTotal.WithLabelValues("none", "coalesced").Inc()
		s.logger.Debug(ctx, "indexing already in flight, trigger coalesced",
			zap.String("tenant_id", tenantID))
		return nil, nil
	}

	startedAt := time.Now().UTC()
	ctx = logging.WithTenant(ctx, tenantID)
	ctx = vectorstore.ContextWithTenant(ctx, &vectorstore.TenantInfo{TenantID: tenantID})

	ctx, span := tracer.Start(ctx, "Indexer.Run")
	defer span.End()
	span.SetAttributes(attribute.String("tenant_id", tenantID))

	result, err := s.run(ctx, tenantID, full, startedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.fail(ctx, tenantID, err)
		return nil, err
	}

	RunsTotal.WithLabelValues(string(result.Mode), "success").Inc()
	RunDuration.WithLabelValues(string(result.Mode)).Observe(time.Since(startedAt).Seconds())
	span.SetStatus(codes.Ok, "success")

	s.logger.Info(ctx, "indexing run complete",
		zap.String("mode", string(result.Mode)),
		zap.Int("new", result.New),
		zap.Int("changed", result.Changed),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("skipped", result.Skipped),
		zap.Int("deleted", result.Deleted),
		zap.Int("total_chunks", result.TotalChunks),
		zap.Duration("duration", time.Since(startedAt)),
	)
	return result, nil
}

// fail transitions the tenant to failed state. Best effort: a tracker error
// here can only be logged.
func (s *Service) fail(ctx context.Context, tenantID string, runErr error) {
	RunsTotal.WithLabelValues("none", "failure").Inc()
	s.logger.Error(ctx, "indexing run failed", zap.Error(runErr))

	// The run context may already be canceled.
	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.tracker.Fail(failCtx, tenantID, runErr.Error()); err != nil {
		s.logger.Error(ctx, "recording run failure", zap.Error(err))
	}
}

func (s *Service) run(ctx context.Context, tenantID string, full bool, startedAt time.Time) (*RunResult, error) {
	st, err := s.tracker.Get(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("reading index status: %w", err)
	}

	mode := status.ModeIncremental
	if full || !st.HasCompletedFullRun() {
		mode = status.ModeFull
	}
	result := &RunResult{Mode: mode}

	var rows []source.Row
	if mode == status.ModeFull {
		rows, err = s.source.SelectAll(ctx, tenantID)
	} else {
		rows, err = s.source.SelectChanged(ctx, tenantID, st.Watermark())
	}
	if err != nil {
		return nil, err
	}

	if err := s.classify(ctx, tenantID, rows, result); err != nil {
		return nil, err
	}

	// Reconcile before embedding so stale chunks never burn provider calls.
	if mode == status.ModeFull {
		if err := s.reconcileDeletions(ctx, tenantID, rows, result); err != nil {
			return nil, err
		}
	}

	// The pending set is every record whose hash lacks an embedding: the
	// rows just classified new or changed, plus leftovers from earlier
	// runs where the provider failed.
	pending, err := s.chunks.Pending(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing pending chunks: %w", err)
	}
	if err := s.embedAndStore(ctx, pending, result); err != nil {
		return nil, err
	}

	total, err := s.chunks.Count(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}
	result.TotalChunks = total

	if err := s.tracker.Complete(ctx, tenantID, mode, total, startedAt); err != nil {
		return nil, fmt.Errorf("completing run: %w", err)
	}
	return result, nil
}

// classify renders every row and persists new or changed chunk text. The
// rendered text is only written when its hash differs, which is what keeps
// timestamp-only updates away from the embedding provider.
func (s *Service) classify(ctx context.Context, tenantID string, rows []source.Row, result *RunResult) error {
	now := time.Now().UTC()

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return context.Cause(ctx)
		}

		text, chunkType, err := chunk.Render(row)
		if err != nil {
			return fmt.Errorf("rendering %s/%d: %w", row.Table, row.ID, err)
		}

		existing, err := s.chunks.Get(ctx, tenantID, row.Table, row.ID)
		existingHash := ""
		switch {
		case err == nil:
			existingHash = existing.Hash
		case errors.Is(err, chunk.ErrNotFound):
		default:
			return fmt.Errorf("loading chunk record %s/%d: %w", row.Table, row.ID, err)
		}

		classification, hash := chunk.Classify(existingHash, text)
		ChunksClassified.WithLabelValues(classification.String()).Inc()

		switch classification {
		case chunk.New, chunk.Changed:
			rec := &chunk.Record{
				TenantID:    tenantID,
				SourceTable: row.Table,
				SourceID:    row.ID,
				Type:        chunkType,
				Text:        text,
				Hash:        hash,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if existing != nil {
				rec.CreatedAt = existing.CreatedAt
			}
			if err := s.chunks.Upsert(ctx, rec); err != nil {
				return fmt.Errorf("storing chunk record %s/%d: %w", row.Table, row.ID, err)
			}
			if classification == chunk.New {
				result.New++
			} else {
				result.Changed++
			}

		case chunk.Unchanged:
			result.Unchanged++
			if err := s.chunks.Touch(ctx, tenantID, row.Table, row.ID, now); err != nil {
				return fmt.Errorf("touching chunk record %s/%d: %w", row.Table, row.ID, err)
			}
		}
	}
	return nil
}

// embedAndStore embeds pending chunks in batches and upserts the vectors.
// Rows the provider permanently fails on are skipped, not fatal: they keep
// a nil EmbeddedAt and the next run retries them.
func (s *Service) embedAndStore(ctx context.Context, pending []*chunk.Record, result *RunResult) error {
	for start := 0; start < len(pending); start += s.config.BatchSize {
		end := start + s.config.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		if err := ctx.Err(); err != nil {
			return context.Cause(ctx)
		}

		texts := make([]string, len(batch))
		for i, rec := range batch {
			texts[i] = rec.Text
		}

		vectors, err := s.embedder.EmbedDocuments(ctx, texts)
		embedded := batch
		if err != nil {
			// A canceled run aborts; a provider failure degrades to
			// per-chunk retries.
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			s.logger.Warn(ctx, "batch embedding failed, retrying per chunk",
				zap.Int("batch_size", len(batch)), zap.Error(err))
			embedded, vectors, err = s.embedIndividually(ctx, batch)
			if err != nil {
				return err
			}
			result.Skipped += len(batch) - len(embedded)
		}
		if len(embedded) == 0 {
			continue
		}

		docs := make([]vectorstore.Document, len(embedded))
		for i, rec := range embedded {
			docs[i] = vectorstore.Document{
				ID:      rec.PointID(),
				Content: rec.Text,
				Vector:  vectors[i],
				Metadata: map[string]string{
					"source_table": rec.SourceTable,
					"source_id":    strconv.FormatInt(rec.SourceID, 10),
					"chunk_type":   string(rec.Type),
					"chunk_hash":   rec.Hash,
				},
			}
		}

		if err := s.vectors.Upsert(ctx, docs); err != nil {
			return fmt.Errorf("upserting vectors: %w", err)
		}

		embeddedAt := time.Now().UTC()
		for _, rec := range embedded {
			if err := s.chunks.MarkEmbedded(ctx, rec.TenantID, rec.SourceTable, rec.SourceID, embeddedAt); err != nil {
				return fmt.Errorf("marking chunk embedded %s/%d: %w", rec.SourceTable, rec.SourceID, err)
			}
		}
	}
	return nil
}

// embedIndividually retries each chunk of a failed batch on its own with
// exponential backoff. Chunks still failing after MaxRetries are dropped
// from this run; a canceled run aborts.
func (s *Service) embedIndividually(ctx context.Context, batch []*chunk.Record) ([]*chunk.Record, [][]float32, error) {
	var embedded []*chunk.Record
	var vectors [][]float32

	for _, rec := range batch {
		vector, err := s.embedOne(ctx, rec.Text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, context.Cause(ctx)
			}
			EmbeddingsSkipped.Inc()
			s.logger.Warn(ctx, "embedding chunk failed, skipping until next run",
				zap.String("source_table", rec.SourceTable),
				zap.Int64("source_id", rec.SourceID),
				zap.Error(err),
			)
			continue
		}
		embedded = append(embedded, rec)
		vectors = append(vectors, vector)
	}
	return embedded, vectors, nil
}

func (s *Service) embedOne(ctx context.Context, text string) ([]float32, error) {
	backoff := s.config.RetryBackoff
	var lastErr error

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, context.Cause(ctx)
		}
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, context.Cause(ctx)
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		vector, err := s.embedder.EmbedQuery(ctx, text)
		if err == nil {
			return vector, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after %d retries: %w", s.config.MaxRetries, lastErr)
}

// reconcileDeletions removes chunks whose source row no longer exists. Only
// full runs see the complete row set, so only they can detect deletions.
func (s *Service) reconcileDeletions(ctx context.Context, tenantID string, rows []source.Row, result *RunResult) error {
	live := make(map[chunk.Key]struct{}, len(rows))
	for _, row := range rows {
		live[chunk.Key{SourceTable: row.Table, SourceID: row.ID}] = struct{}{}
	}

	keys, err := s.chunks.Keys(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("listing chunk keys: %w", err)
	}

	var stale []chunk.Key
	var pointIDs []string
	for _, key := range keys {
		if _, ok := live[key]; ok {
			continue
		}
		stale = append(stale, key)
		pointIDs = append(pointIDs, chunk.PointID(tenantID, key.SourceTable, key.SourceID))
	}
	if len(stale) == 0 {
		return nil
	}

	if err := s.vectors.Delete(ctx, pointIDs); err != nil {
		return fmt.Errorf("deleting stale vectors: %w", err)
	}
	for _, key := range stale {
		if err := s.chunks.Delete(ctx, tenantID, key.SourceTable, key.SourceID); err != nil {
			return fmt.Errorf("deleting chunk record %s/%d: %w", key.SourceTable, key.SourceID, err)
		}
	}

	result.Deleted = len(stale)
	ChunksDeleted.Add(float64(len(stale)))
	return nil
}

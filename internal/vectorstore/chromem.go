package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("indexd.vectorstore.chromem")

// ChromemConfig holds configuration for the chromem-go embedded vector store.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string

	// Collection is the collection name all tenants share.
	Collection string

	// Compress enables gzip compression for stored data.
	Compress bool

	// VectorSize is the expected embedding dimension.
	VectorSize int

	// Isolation is the tenant isolation mode.
	// Default: PayloadIsolation for fail-closed security.
	Isolation IsolationMode
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.config/indexd/vectorstore"
	}
	if c.Collection == "" {
		c.Collection = "chunks"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store using chromem-go.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies: no external service, persistence to gob files, pure Go.
// It is the default backend for single-node deployments.
type ChromemStore struct {
	db        *chromem.DB
	config    ChromemConfig
	logger    *zap.Logger
	isolation IsolationMode
}

// NewChromemStore creates a new ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	expandedPath, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}

	if err := os.MkdirAll(expandedPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
	}

	db, err := chromem.NewPersistentDB(expandedPath, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	isolation := config.Isolation
	if isolation == nil {
		isolation = NewPayloadIsolation()
	}

	store := &ChromemStore{
		db:        db,
		config:    config,
		logger:    logger,
		isolation: isolation,
	}

	logger.Info("chromem store initialized",
		zap.String("path", expandedPath),
		zap.String("collection", config.Collection),
		zap.Int("vector_size", config.VectorSize),
		zap.String("isolation", isolation.Mode()),
	)

	return store, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// collection returns the shared collection, creating it on first use.
// Embeddings are always precomputed by the caller, so the embedding func
// only exists to catch misuse.
func (s *ChromemStore) collection() (*chromem.Collection, error) {
	return s.db.GetOrCreateCollection(s.config.Collection, nil, func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("embeddings must be precomputed")
	})
}

// Upsert writes documents, replacing points with the same ID.
func (s *ChromemStore) Upsert(ctx context.Context, docs []Document) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()

	span.SetAttributes(attribute.Int("document_count", len(docs)))

	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	if err := s.isolation.InjectMetadata(ctx, docs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("injecting tenant metadata: %w", err)
	}

	collection, err := s.collection()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("getting collection: %w", err)
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document at index %d has no ID", i)
		}
		if len(doc.Vector) == 0 {
			return fmt.Errorf("%w: document %s", ErrMissingVector, doc.ID)
		}
		chromemDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: doc.Vector,
		}
	}

	// Concurrency of 1 since the embeddings already exist.
	if err := collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordOperation("upsert", err)
		return fmt.Errorf("adding documents: %w", err)
	}

	recordOperation("upsert", nil)
	PointsUpserted.Add(float64(len(docs)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("upserted documents to chromem", zap.Int("count", len(docs)))
	return nil
}

// Query performs tenant-filtered similarity search.
func (s *ChromemStore) Query(ctx context.Context, vector []float32, k int, floor float32) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()

	span.SetAttributes(attribute.Int("k", k))

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}

	filters, err := s.isolation.InjectFilter(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("injecting tenant filter: %w", err)
	}

	collection, err := s.collection()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("getting collection: %w", err)
	}

	// chromem requires nResults <= doc count.
	docCount := collection.Count()
	if docCount == 0 {
		return []SearchResult{}, nil
	}
	if k > docCount {
		k = docCount
	}

	results, err := collection.QueryEmbedding(ctx, vector, k, filters, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordOperation("query", err)
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	searchResults := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if r.Similarity < floor {
			continue
		}
		searchResults = append(searchResults, SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		})
	}
	sort.SliceStable(searchResults, func(i, j int) bool {
		return searchResults[i].Score > searchResults[j].Score
	})

	recordOperation("query", nil)
	span.SetAttributes(attribute.Int("results_count", len(searchResults)))
	span.SetStatus(codes.Ok, "success")

	return searchResults, nil
}

// Delete removes points by ID. Missing IDs are not an error.
func (s *ChromemStore) Delete(ctx context.Context, ids []string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Delete")
	defer span.End()

	span.SetAttributes(attribute.Int("id_count", len(ids)))

	if len(ids) == 0 {
		return nil
	}

	// Point IDs are tenant-derived, but deletes still fail closed without
	// a tenant in the context, same as every other operation.
	if _, err := s.isolation.InjectFilter(ctx, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("validating tenant context: %w", err)
	}

	collection, err := s.collection()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("getting collection: %w", err)
	}

	if err := collection.Delete(ctx, nil, nil, ids...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordOperation("delete", err)
		return fmt.Errorf("deleting documents: %w", err)
	}

	recordOperation("delete", nil)
	PointsDeleted.Add(float64(len(ids)))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Close releases store resources. chromem persists on write, so there is
// nothing to flush.
func (s *ChromemStore) Close() error {
	return nil
}

var _ Store = (*ChromemStore)(nil)

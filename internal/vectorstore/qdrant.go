package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// qdrantTracer for OpenTelemetry instrumentation.
var qdrantTracer = otel.Tracer("indexd.vectorstore.qdrant")

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (6334), NOT the HTTP REST port (6333).
	Port int

	// Collection is the collection name all tenants share.
	Collection string

	// VectorSize is the dimensionality of embeddings. Must match the
	// embedding model output.
	VectorSize uint64

	// APIKey authenticates against a secured Qdrant deployment (optional).
	APIKey string

	// UseTLS enables TLS encryption for the gRPC connection.
	UseTLS bool

	// MaxRetries is the maximum number of retry attempts for transient
	// failures. Default: 3.
	MaxRetries int

	// RetryBackoff is the initial backoff duration, doubled per retry.
	// Default: 1 second.
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB.
	MaxMessageSize int

	// Isolation is the tenant isolation mode.
	// Default: PayloadIsolation for fail-closed security.
	Isolation IsolationMode
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "chunks"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection name required", ErrInvalidConfig)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// IsTransientError checks if an error is transient (should retry).
// Returns true for network timeouts and temporary unavailability.
// Returns false for invalid arguments, not found, permission denied.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	st, ok := status.FromError(err)
	if !ok {
		return false
	}

	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantStore implements Store using Qdrant's native gRPC client.
//
// gRPC (port 6334) avoids the 256kB payload limit of Qdrant's HTTP layer
// and uses binary protobuf encoding. Points live in a single collection
// for all tenants with tenant_id as an indexed payload field.
type QdrantStore struct {
	client    *qdrant.Client
	config    QdrantConfig
	logger    *zap.Logger
	isolation IsolationMode

	// circuitBreaker trips after repeated failures so a dead Qdrant does
	// not stall every indexing run behind full retry cycles.
	circuitBreaker struct {
		failures int
		lastFail time.Time
		mu       sync.Mutex
	}
}

const circuitBreakerThreshold = 5

// NewQdrantStore creates a new QdrantStore, connects, health checks, and
// ensures the shared collection exists.
func NewQdrantStore(config QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if !config.UseTLS {
		logger.Warn("qdrant gRPC using plaintext (TLS disabled), insecure for production")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	isolation := config.Isolation
	if isolation == nil {
		isolation = NewPayloadIsolation()
	}

	store := &QdrantStore{
		client:    client,
		config:    config,
		logger:    logger,
		isolation: isolation,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	if err := store.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("qdrant store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("collection", config.Collection),
		zap.Uint64("vector_size", config.VectorSize),
		zap.String("isolation", isolation.Mode()),
	)

	return store, nil
}

// ensureCollection creates the shared collection if it does not exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.config.Collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.config.Collection, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.config.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.config.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.config.Collection, err)
	}

	// Index tenant_id so payload filtering stays fast as tenants grow.
	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.config.Collection,
		FieldName:      "tenant_id",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("indexing tenant_id field: %w", err)
	}
	return nil
}

// Close closes the Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// retryOperation retries an operation with exponential backoff.
func (s *QdrantStore) retryOperation(ctx context.Context, operationName string, operation func() error) error {
	backoff := s.config.RetryBackoff

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			s.resetCircuitBreaker()
			return nil
		}

		if s.isCircuitOpen() {
			return fmt.Errorf("%s: circuit breaker open", operationName)
		}

		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", operationName, err)
		}

		s.recordFailure()

		if attempt == s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", operationName, s.config.MaxRetries, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", operationName, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}

func (s *QdrantStore) recordFailure() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures++
	s.circuitBreaker.lastFail = time.Now()
}

func (s *QdrantStore) resetCircuitBreaker() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures = 0
}

func (s *QdrantStore) isCircuitOpen() bool {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()

	if s.circuitBreaker.failures >= circuitBreakerThreshold {
		// Allow retry after 30 seconds.
		if time.Since(s.circuitBreaker.lastFail) > 30*time.Second {
			s.circuitBreaker.failures = 0
			return false
		}
		return true
	}
	return false
}

// Upsert writes documents, replacing points with the same ID.
func (s *QdrantStore) Upsert(ctx context.Context, docs []Document) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.Int("document_count", len(docs)),
		attribute.String("collection", s.config.Collection),
	)

	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	if err := s.isolation.InjectMetadata(ctx, docs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("injecting tenant metadata: %w", err)
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document at index %d has no ID", i)
		}
		if len(doc.Vector) == 0 {
			return fmt.Errorf("%w: document %s", ErrMissingVector, doc.ID)
		}

		payload := make(map[string]*qdrant.Value, len(doc.Metadata)+1)
		payload["content"] = qdrant.NewValueString(doc.Content)
		for k, v := range doc.Metadata {
			payload[k] = qdrant.NewValueString(v)
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(doc.ID),
			Vectors: qdrant.NewVectors(doc.Vector...),
			Payload: payload,
		}
	}

	err := s.retryOperation(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.config.Collection,
			Points:         points,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordOperation("upsert", err)
		return fmt.Errorf("upserting points to collection %s: %w", s.config.Collection, err)
	}

	recordOperation("upsert", nil)
	PointsUpserted.Add(float64(len(points)))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Query performs tenant-filtered similarity search.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, k int, floor float32) ([]SearchResult, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int("k", k),
	)

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

	conditions := make([]*qdrant.Condition, 0, len(filters))
	for key, value := range filters {
		conditions = append(conditions, qdrant.NewMatch(key, value))
	}
	var filter *qdrant.Filter
	if len(conditions) > 0 {
		filter = &qdrant.Filter{Must: conditions}
	}

	query := &qdrant.QueryPoints{
		CollectionName: s.config.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         filter,
	}
	if floor > 0 {
		query.ScoreThreshold = qdrant.PtrOf(floor)
	}

	var results []*qdrant.ScoredPoint
	err = s.retryOperation(ctx, "query", func() error {
		res, err := s.client.Query(ctx, query)
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordOperation("query", err)
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	searchResults := make([]SearchResult, len(results))
	for i, point := range results {
		result := SearchResult{
			Score:    point.Score,
			Metadata: make(map[string]string, len(point.Payload)),
		}
		if id := point.GetId(); id != nil {
			result.ID = id.GetUuid()
		}
		for k, v := range point.Payload {
			if k == "content" {
				result.Content = v.GetStringValue()
				continue
			}
			result.Metadata[k] = v.GetStringValue()
		}
		searchResults[i] = result
	}

	recordOperation("query", nil)
	span.SetAttributes(attribute.Int("results_count", len(searchResults)))
	span.SetStatus(codes.Ok, "success")
	return searchResults, nil
}

// Delete removes points by ID. Missing IDs are not an error.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Delete")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int("id_count", len(ids)),
	)

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

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}

	err := s.retryOperation(ctx, "delete", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.config.Collection,
			Points:         qdrant.NewPointsSelector(pointIDs...),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordOperation("delete", err)
		return fmt.Errorf("deleting points from collection %s: %w", s.config.Collection, err)
	}

	recordOperation("delete", nil)
	PointsDeleted.Add(float64(len(ids)))
	span.SetStatus(codes.Ok, "success")
	return nil
}

var _ Store = (*QdrantStore)(nil)

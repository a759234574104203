// Package retrieval answers tenant queries from the vector index and
// enriches LLM prompts with the retrieved context.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/sellerdesk/indexd/internal/embeddings"
	"github.com/sellerdesk/indexd/internal/vectorstore"
)

var tracer = otel.Tracer("indexd.retrieval")

// Chunk is one retrieved piece of business context.
type Chunk struct {
	Text        string  `json:"text"`
	Score       float32 `json:"score"`
	SourceTable string  `json:"source_table"`
	ChunkType   string  `json:"chunk_type"`
	Hash        string  `json:"-"`
}

// Config bounds retrieval.
type Config struct {
	// K is the maximum number of chunks fetched per query.
	K int

	// SimilarityFloor is the minimum cosine similarity for inclusion.
	// Results below the floor are noise and are never returned.
	SimilarityFloor float32

	// ContextBudget is the context block size limit in characters.
	ContextBudget int

	// Timeout is the hard budget for the whole enrichment path.
	Timeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.K == 0 {
		c.K = 5
	}
	if c.SimilarityFloor == 0 {
		c.SimilarityFloor = 0.7
	}
	if c.ContextBudget == 0 {
		c.ContextBudget = 3000
	}
	if c.Timeout == 0 {
		c.Timeout = 2 * time.Second
	}
}

// Retriever performs tenant-scoped similarity search.
type Retriever struct {
	embedder embeddings.Client
	store    vectorstore.Store
	config   Config
}

// NewRetriever wires query embedding and vector search.
func NewRetriever(embedder embeddings.Client, store vectorstore.Store, config Config) *Retriever {
	config.ApplyDefaults()
	return &Retriever{
		embedder: embedder,
		store:    store,
		config:   config,
	}
}

// Retrieve embeds the query and returns the tenant's most similar chunks,
// ordered by similarity descending. Results below the similarity floor are
// already filtered out by the store.
func (r *Retriever) Retrieve(ctx context.Context, tenantID, query string) ([]Chunk, error) {
	ctx, span := tracer.Start(ctx, "Retriever.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.String("tenant_id", tenantID))

	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	ctx = vectorstore.ContextWithTenant(ctx, &vectorstore.TenantInfo{TenantID: tenantID})

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := r.store.Query(ctx, vector, r.config.K, r.config.SimilarityFloor)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching index: %w", err)
	}

	chunks := make([]Chunk, len(results))
	for i, res := range results {
		chunks[i] = Chunk{
			Text:        res.Content,
			Score:       res.Score,
			SourceTable: res.Metadata["source_table"],
			ChunkType:   res.Metadata["chunk_type"],
			Hash:        res.Metadata["chunk_hash"],
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(chunks)))
	span.SetStatus(codes.Ok, "success")
	return chunks, nil
}

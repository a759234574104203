// Package vectorstore defines the interface for vector storage operations.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrMissingVector indicates a document without a precomputed embedding.
	ErrMissingVector = errors.New("document missing embedding vector")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to vector store")
)

// Document is a chunk ready for storage. The embedding is computed by the
// caller so the store never talks to the embedding provider itself.
type Document struct {
	// ID is the unique point identifier. Must be a UUID string.
	ID string

	// Content is the chunk text.
	Content string

	// Vector is the precomputed embedding.
	Vector []float32

	// Metadata holds payload fields used for filtering. Tenant fields are
	// injected by the isolation mode, never by the caller.
	Metadata map[string]string
}

// SearchResult is one similarity search hit.
type SearchResult struct {
	// ID is the point identifier.
	ID string

	// Content is the chunk text.
	Content string

	// Score is the cosine similarity (higher = more similar).
	Score float32

	// Metadata is the stored payload.
	Metadata map[string]string
}

// Store is the interface for vector storage operations.
//
// All operations are tenant-scoped: callers MUST carry TenantInfo in the
// context (see ContextWithTenant). The isolation mode injects tenant
// metadata on writes and tenant filters on queries, and fails closed with
// ErrMissingTenant when the context carries no tenant.
//
// Implementations:
//   - ChromemStore: embedded chromem-go (default)
//   - QdrantStore: external Qdrant gRPC client
type Store interface {
	// Upsert writes documents, replacing points with the same ID.
	Upsert(ctx context.Context, docs []Document) error

	// Query performs similarity search against the query vector, returning
	// up to k results with score >= floor, ordered by score descending.
	Query(ctx context.Context, vector []float32, k int, floor float32) ([]SearchResult, error)

	// Delete removes points by ID. Tenant scoping comes from the
	// tenant-derived point IDs; the context must still carry a tenant.
	// Missing IDs are not an error.
	Delete(ctx context.Context, ids []string) error

	// Close releases store resources.
	Close() error
}

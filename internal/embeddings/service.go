// Package embeddings provides embedding generation via a TEI-compatible
// HTTP endpoint.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrEmptyInput indicates empty or nil input texts
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Client generates embedding vectors for chunk texts and queries.
type Client interface {
	// EmbedDocuments embeds a batch of chunk texts. The returned slice is
	// index-aligned with texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single retrieval query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Config holds configuration for the embedding service.
type Config struct {
	// BaseURL is the base URL for the embedding API
	BaseURL string

	// Model is the embedding model to use
	Model string

	// APIKey is the API key (optional for TEI)
	APIKey string

	// VectorSize is the expected dimensionality of returned vectors.
	// Responses with a different dimension are rejected.
	VectorSize int

	// Timeout bounds a single HTTP call to the provider.
	Timeout time.Duration
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// Service implements Client against a TEI-compatible /embed endpoint.
type Service struct {
	config  Config
	client  *http.Client
	metrics *Metrics
}

// NewService creates a new embedding service with the given configuration.
func NewService(config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Service{
		config:  config,
		client:  &http.Client{Timeout: timeout},
		metrics: NewMetrics(zap.NewNop()),
	}, nil
}

// teiRequest is the request body for TEI embed endpoint.
type teiRequest struct {
	Inputs   interface{} `json:"inputs"`
	Truncate bool        `json:"truncate"`
}

// EmbedDocuments generates embeddings for multiple texts.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		s.metrics.RecordGeneration(ctx, s.config.Model, "embed_documents", time.Since(start), len(texts), genErr)
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}
	for i, text := range texts {
		if text == "" {
			genErr = fmt.Errorf("%w: text at index %d is empty", ErrEmptyInput, i)
			return nil, genErr
		}
	}

	vectors, err := s.embed(ctx, texts)
	if err != nil {
		genErr = err
		return nil, genErr
	}

	if len(vectors) != len(texts) {
		genErr = fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vectors), len(texts))
		return nil, genErr
	}

	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		s.metrics.RecordGeneration(ctx, s.config.Model, "embed_query", time.Since(start), 1, genErr)
	}()

	if text == "" {
		genErr = fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vectors, err := s.embed(ctx, []string{text})
	if err != nil {
		genErr = err
		return nil, genErr
	}

	if len(vectors) == 0 {
		genErr = fmt.Errorf("%w: empty response", ErrEmbeddingFailed)
		return nil, genErr
	}

	return vectors[0], nil
}

func (s *Service) embed(ctx context.Context, texts []string) ([][]float32, error) {
	req := teiRequest{
		Inputs:   texts,
		Truncate: true,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.config.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	for i, v := range vectors {
		if len(v) != s.config.VectorSize {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d",
				ErrEmbeddingFailed, i, len(v), s.config.VectorSize)
		}
	}

	return vectors, nil
}

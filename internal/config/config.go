// Package config provides configuration loading for indexd.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the indexd daemon.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Database    DatabaseConfig    `koanf:"database"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Indexer     IndexerConfig     `koanf:"indexer"`
	Retrieval   RetrievalConfig   `koanf:"retrieval"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// DatabaseConfig holds the relational store configuration.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `koanf:"path"`
}

// VectorStoreConfig selects and configures the vector store backend.
type VectorStoreConfig struct {
	// Provider is "chromem" (embedded, default) or "qdrant".
	Provider string        `koanf:"provider"`
	Chromem  ChromemConfig `koanf:"chromem"`
	Qdrant   QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig configures the embedded chromem-go store.
type ChromemConfig struct {
	Path       string `koanf:"path"`
	Collection string `koanf:"collection"`
	Compress   bool   `koanf:"compress"`
}

// QdrantConfig configures the Qdrant gRPC store.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Collection string `koanf:"collection"`
	UseTLS     bool   `koanf:"use_tls"`
	APIKey     Secret `koanf:"api_key"`
}

// EmbeddingsConfig configures the embedding provider client.
type EmbeddingsConfig struct {
	// BaseURL is the TEI-compatible embedding endpoint.
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`
	// VectorSize is the fixed embedding dimensionality. Must match the
	// model output and the vector store collection.
	VectorSize int      `koanf:"vector_size"`
	Timeout    Duration `koanf:"timeout"`
}

// IndexerConfig configures indexing runs.
type IndexerConfig struct {
	// Workers is the number of goroutines consuming the trigger queue.
	Workers int `koanf:"workers"`
	// QueueSize is the trigger queue depth.
	QueueSize int `koanf:"queue_size"`
	// BatchSize bounds how many texts are embedded per provider call.
	BatchSize int `koanf:"batch_size"`
	// MaxRetries is the per-row retry ceiling for embedding failures.
	MaxRetries int `koanf:"max_retries"`
	// RetryBackoff is the initial backoff, doubled per attempt.
	RetryBackoff Duration `koanf:"retry_backoff"`
	// Interval is the scheduler tick for incremental runs.
	Interval Duration `koanf:"interval"`
}

// RetrievalConfig configures query-time retrieval and prompt enrichment.
type RetrievalConfig struct {
	// K is the maximum number of chunks fetched per query.
	K int `koanf:"k"`
	// SimilarityFloor is the minimum cosine similarity for inclusion.
	SimilarityFloor float32 `koanf:"similarity_floor"`
	// ContextBudget is the context block size limit in characters.
	ContextBudget int `koanf:"context_budget"`
	// Timeout is the hard budget for the whole enrichment path.
	Timeout Duration `koanf:"timeout"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "~/.config/indexd/indexd.db"
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.Chromem.Path == "" {
		cfg.VectorStore.Chromem.Path = "~/.config/indexd/vectorstore"
	}
	if cfg.VectorStore.Chromem.Collection == "" {
		cfg.VectorStore.Chromem.Collection = "chunks"
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}
	if cfg.VectorStore.Qdrant.Collection == "" {
		cfg.VectorStore.Qdrant.Collection = "chunks"
	}

	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Embeddings.VectorSize == 0 {
		cfg.Embeddings.VectorSize = 384
	}
	if cfg.Embeddings.Timeout == 0 {
		cfg.Embeddings.Timeout = Duration(30 * time.Second)
	}

	if cfg.Indexer.Workers == 0 {
		cfg.Indexer.Workers = 2
	}
	if cfg.Indexer.QueueSize == 0 {
		cfg.Indexer.QueueSize = 64
	}
	if cfg.Indexer.BatchSize == 0 {
		cfg.Indexer.BatchSize = 32
	}
	if cfg.Indexer.MaxRetries == 0 {
		cfg.Indexer.MaxRetries = 3
	}
	if cfg.Indexer.RetryBackoff == 0 {
		cfg.Indexer.RetryBackoff = Duration(time.Second)
	}
	if cfg.Indexer.Interval == 0 {
		cfg.Indexer.Interval = Duration(15 * time.Minute)
	}

	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = 5
	}
	if cfg.Retrieval.SimilarityFloor == 0 {
		cfg.Retrieval.SimilarityFloor = 0.7
	}
	if cfg.Retrieval.ContextBudget == 0 {
		cfg.Retrieval.ContextBudget = 3000
	}
	if cfg.Retrieval.Timeout == 0 {
		cfg.Retrieval.Timeout = Duration(2 * time.Second)
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("unsupported vectorstore provider: %s (supported: chromem, qdrant)", c.VectorStore.Provider)
	}
	if c.VectorStore.Provider == "qdrant" {
		if c.VectorStore.Qdrant.Port <= 0 || c.VectorStore.Qdrant.Port > 65535 {
			return fmt.Errorf("invalid qdrant port: %d", c.VectorStore.Qdrant.Port)
		}
	}
	if c.Embeddings.BaseURL == "" {
		return fmt.Errorf("embeddings base URL required")
	}
	if c.Embeddings.VectorSize <= 0 {
		return fmt.Errorf("embeddings vector size must be positive, got %d", c.Embeddings.VectorSize)
	}
	if c.Indexer.Workers <= 0 {
		return fmt.Errorf("indexer workers must be positive, got %d", c.Indexer.Workers)
	}
	if c.Indexer.BatchSize <= 0 {
		return fmt.Errorf("indexer batch size must be positive, got %d", c.Indexer.BatchSize)
	}
	if c.Retrieval.K <= 0 {
		return fmt.Errorf("retrieval k must be positive, got %d", c.Retrieval.K)
	}
	if c.Retrieval.SimilarityFloor < 0 || c.Retrieval.SimilarityFloor > 1 {
		return fmt.Errorf("similarity floor must be in [0,1], got %f", c.Retrieval.SimilarityFloor)
	}
	if c.Retrieval.ContextBudget <= 0 {
		return fmt.Errorf("context budget must be positive, got %d", c.Retrieval.ContextBudget)
	}
	return nil
}

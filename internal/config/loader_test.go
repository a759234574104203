package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, 384, cfg.Embeddings.VectorSize)
	assert.Equal(t, 5, cfg.Retrieval.K)
	assert.InDelta(t, 0.7, float64(cfg.Retrieval.SimilarityFloor), 1e-6)
	assert.Equal(t, 3000, cfg.Retrieval.ContextBudget)
	assert.Equal(t, 2*time.Second, cfg.Retrieval.Timeout.Duration())
	assert.Equal(t, 15*time.Minute, cfg.Indexer.Interval.Duration())
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9191
vectorstore:
  provider: qdrant
  qdrant:
    host: qdrant.internal
    port: 7334
retrieval:
  k: 8
  similarity_floor: 0.55
indexer:
  retry_backoff: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "qdrant", cfg.VectorStore.Provider)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.Qdrant.Host)
	assert.Equal(t, 7334, cfg.VectorStore.Qdrant.Port)
	assert.Equal(t, 8, cfg.Retrieval.K)
	assert.InDelta(t, 0.55, float64(cfg.Retrieval.SimilarityFloor), 1e-6)
	assert.Equal(t, 250*time.Millisecond, cfg.Indexer.RetryBackoff.Duration())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9191\n"), 0o600))

	t.Setenv("SERVER_PORT", "9292")
	t.Setenv("EMBEDDINGS_BASE_URL", "http://tei.internal:8080")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9292, cfg.Server.Port)
	assert.Equal(t, "http://tei.internal:8080", cfg.Embeddings.BaseURL)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad provider", "vectorstore:\n  provider: pinecone\n"},
		{"bad format", "logging:\n  format: xml\n"},
		{"bad floor", "retrieval:\n  similarity_floor: 1.5\n"},
		{"negative k", "retrieval:\n  k: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("super-secret")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "super-secret", s.Value())
	assert.True(t, s.IsSet())

	b, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(b))
}

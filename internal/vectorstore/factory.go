package vectorstore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sellerdesk/indexd/internal/config"
)

// NewStore creates a Store based on the configured provider.
//
// Providers:
//   - "chromem" (default): embedded ChromemStore, no external service
//   - "qdrant": QdrantStore over gRPC, requires a Qdrant server
//
// Both come up in PayloadIsolation mode, so every operation requires
// tenant context (TenantInfo in ctx) or fails with ErrMissingTenant.
func NewStore(cfg config.VectorStoreConfig, vectorSize int, logger *zap.Logger) (Store, error) {
	switch cfg.Provider {
	case "chromem", "":
		return NewChromemStore(ChromemConfig{
			Path:       cfg.Chromem.Path,
			Collection: cfg.Chromem.Collection,
			Compress:   cfg.Chromem.Compress,
			VectorSize: vectorSize,
		}, logger)

	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			Collection: cfg.Qdrant.Collection,
			VectorSize: uint64(vectorSize),
			APIKey:     cfg.Qdrant.APIKey.Value(),
			UseTLS:     cfg.Qdrant.UseTLS,
		}, logger)

	default:
		return nil, fmt.Errorf("unsupported vectorstore provider: %s (supported: chromem, qdrant)", cfg.Provider)
	}
}

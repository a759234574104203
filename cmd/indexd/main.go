// Indexd keeps a per-tenant vector index of business records in sync with
// the relational source of truth and serves retrieval-augmented prompt
// enrichment over HTTP.
//
// Configuration is loaded from a YAML file plus environment variable
// overrides (SERVER_PORT, EMBEDDINGS_BASE_URL, ...). See internal/config
// for details.
//
// Usage:
//
//	# Start with defaults
//	indexd
//
//	# Start with a config file
//	indexd -config /etc/indexd/config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/sellerdesk/indexd/internal/config"
	"github.com/sellerdesk/indexd/internal/embeddings"
	indexhttp "github.com/sellerdesk/indexd/internal/http"
	"github.com/sellerdesk/indexd/internal/indexer"
	"github.com/sellerdesk/indexd/internal/logging"
	"github.com/sellerdesk/indexd/internal/retrieval"
	"github.com/sellerdesk/indexd/internal/storage/sqlite"
	"github.com/sellerdesk/indexd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  indexd           Start the indexd daemon\n")
			fmt.Fprintf(os.Stderr, "  indexd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("indexd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the indexd daemon and blocks until the context is cancelled.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Initialize the structured logger
//  3. Open the relational store and run migrations
//  4. Create the embedding client and vector store
//  5. Wire the indexer service, trigger queue, and scheduler
//  6. Start the HTTP server
//  7. Graceful shutdown on context cancellation
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting indexd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	store, err := sqlite.NewStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL:    cfg.Embeddings.BaseURL,
		Model:      cfg.Embeddings.Model,
		APIKey:     cfg.Embeddings.APIKey.Value(),
		VectorSize: cfg.Embeddings.VectorSize,
		Timeout:    cfg.Embeddings.Timeout.Duration(),
	})
	if err != nil {
		return fmt.Errorf("creating embedding client: %w", err)
	}

	vectors, err := vectorstore.NewStore(cfg.VectorStore, cfg.Embeddings.VectorSize, logger.Underlying())
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	defer vectors.Close()

	logger.Info(ctx, "dependencies initialized",
		zap.String("database", store.Path()),
		zap.Int("vector_size", cfg.Embeddings.VectorSize))

	service := indexer.NewService(
		store.SourceReader(),
		store.ChunkStore(),
		embedder,
		vectors,
		store.StatusTracker(),
		logger,
		indexer.Config{
			BatchSize:    cfg.Indexer.BatchSize,
			MaxRetries:   cfg.Indexer.MaxRetries,
			RetryBackoff: cfg.Indexer.RetryBackoff.Duration(),
		},
	)

	queue := indexer.NewQueue(service, logger, cfg.Indexer.QueueSize)
	queue.Start(ctx, cfg.Indexer.Workers)

	scheduler := indexer.NewScheduler(store.SourceReader(), queue, logger, cfg.Indexer.Interval.Duration())
	go scheduler.Run(ctx)

	retrievalCfg := retrieval.Config{
		K:               cfg.Retrieval.K,
		SimilarityFloor: cfg.Retrieval.SimilarityFloor,
		ContextBudget:   cfg.Retrieval.ContextBudget,
		Timeout:         cfg.Retrieval.Timeout.Duration(),
	}
	retriever := retrieval.NewRetriever(embedder, vectors, retrievalCfg)
	enricher := retrieval.NewEnricher(retriever, logger, retrievalCfg)

	srv, err := indexhttp.NewServer(queue, store.StatusTracker(), enricher, logger, &indexhttp.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "http shutdown failed", zap.Error(err))
	}

	// In-flight indexing runs drain before the process exits so a run is
	// never cut off mid-write.
	queue.Wait()

	return nil
}

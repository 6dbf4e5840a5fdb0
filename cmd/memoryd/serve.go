package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memoryd/internal/blob"
	"github.com/fyrsmithlabs/memoryd/internal/catalog"
	"github.com/fyrsmithlabs/memoryd/internal/config"
	httpserver "github.com/fyrsmithlabs/memoryd/internal/http"
	"github.com/fyrsmithlabs/memoryd/internal/indexer"
	"github.com/fyrsmithlabs/memoryd/internal/logging"
	"github.com/fyrsmithlabs/memoryd/internal/memory"
	"github.com/fyrsmithlabs/memoryd/internal/notify"
	"github.com/fyrsmithlabs/memoryd/internal/queryparse"
	"github.com/fyrsmithlabs/memoryd/internal/search"
	"github.com/fyrsmithlabs/memoryd/internal/textintel"
	"github.com/fyrsmithlabs/memoryd/internal/vectorstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the memoryd daemon",
	Long: `Start the memoryd HTTP server with full service initialization:
metadata catalog, blob store, vector index, text intelligence, and the
trigger engine.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return runServe(ctx)
	},
}

// runServe initializes all dependencies and blocks until ctx is cancelled.
func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.Intel.APIKey.IsSet() {
		return errors.New("intel API key required: set MEMORYD_INTEL_API_KEY or intel.api_key")
	}
	intel, err := textintel.NewClient(textintel.Config{
		BaseURL:    cfg.Intel.BaseURL,
		APIKey:     cfg.Intel.APIKey.Value(),
		Model:      cfg.Intel.Model,
		EmbedModel: cfg.Intel.EmbedModel,
		Timeout:    cfg.Intel.Timeout.Duration(),
	})
	if err != nil {
		return fmt.Errorf("initializing text intelligence: %w", err)
	}

	cat, err := newCatalog(cfg)
	if err != nil {
		return fmt.Errorf("initializing catalog: %w", err)
	}

	blobs, err := blob.NewLocalStore(cfg.Blob.Root)
	if err != nil {
		return fmt.Errorf("initializing blob store: %w", err)
	}

	vectors, err := newVectorStore(cfg, intel.Embedder(), logger)
	if err != nil {
		return fmt.Errorf("initializing vector store: %w", err)
	}
	defer func() { _ = vectors.Close() }()

	var notifier notify.Publisher
	if cfg.Notify.URL != "" {
		notifier, err = notify.NewNATSPublisher(notify.Config{
			URL:     cfg.Notify.URL,
			Subject: cfg.Notify.Subject,
		})
		if err != nil {
			return fmt.Errorf("initializing notifier: %w", err)
		}
	} else {
		notifier = notify.NewLogPublisher(logger)
	}
	defer notifier.Close()

	idx := indexer.NewService(blobs, cat, vectors, logger, indexer.Config{
		MaxChunkSize: cfg.Index.MaxChunkSize,
		BatchSize:    cfg.Index.BatchSize,
	})
	parser := queryparse.NewParser(intel, logger)
	engine := search.NewEngine(parser, cat, blobs, vectors, logger, search.Config{
		DefaultLimit:  cfg.Search.DefaultLimit,
		ExcerptWindow: cfg.Search.ExcerptWindow,
	})
	mem := memory.NewService(cat, blobs, idx, intel, notifier, logger, memory.Config{})

	server, err := httpserver.NewServer(mem, engine, idx, cat, logger, &httpserver.Config{
		Host: "0.0.0.0",
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "shutdown error", zap.Error(err))
		return err
	}
	return nil
}

func newCatalog(cfg *config.Config) (catalog.Catalog, error) {
	switch cfg.Catalog.Driver {
	case "postgres":
		return catalog.NewGormCatalog(cfg.Catalog.DSN.Value())
	case "memory":
		return catalog.NewMemoryCatalog(), nil
	default:
		return nil, fmt.Errorf("unknown catalog driver %q", cfg.Catalog.Driver)
	}
}

func newVectorStore(cfg *config.Config, embedder vectorstore.Embedder, logger *logging.Logger) (vectorstore.Store, error) {
	switch cfg.Vector.Provider {
	case "qdrant":
		return vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			Host:           cfg.Vector.Qdrant.Host,
			Port:           cfg.Vector.Qdrant.Port,
			CollectionName: cfg.Vector.Collection,
			VectorSize:     uint64(cfg.Vector.VectorSize),
			UseTLS:         cfg.Vector.Qdrant.UseTLS,
		}, embedder)
	case "chromem":
		return vectorstore.NewChromemStore(vectorstore.ChromemConfig{
			Path:           cfg.Vector.Chromem.Path,
			Compress:       cfg.Vector.Chromem.Compress,
			CollectionName: cfg.Vector.Collection,
		}, embedder, logger.Zap())
	default:
		return nil, fmt.Errorf("unknown vector provider %q", cfg.Vector.Provider)
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zacharyvunguyen/FinSight-AI/config"
	"github.com/zacharyvunguyen/FinSight-AI/internal/blob/fsblob"
	"github.com/zacharyvunguyen/FinSight-AI/internal/chunk"
	"github.com/zacharyvunguyen/FinSight-AI/internal/embed/openai"
	"github.com/zacharyvunguyen/FinSight-AI/internal/extract"
	"github.com/zacharyvunguyen/FinSight-AI/internal/extract/llamaparse"
	"github.com/zacharyvunguyen/FinSight-AI/internal/index"
	"github.com/zacharyvunguyen/FinSight-AI/internal/ingest"
	"github.com/zacharyvunguyen/FinSight-AI/internal/metastore"
	"github.com/zacharyvunguyen/FinSight-AI/internal/search"
	"github.com/zacharyvunguyen/FinSight-AI/internal/server"
	"github.com/zacharyvunguyen/FinSight-AI/internal/store"
	"github.com/zacharyvunguyen/FinSight-AI/internal/telemetry"
	"github.com/zacharyvunguyen/FinSight-AI/internal/vector/pinecone"
)

func main() {
	var root = &cobra.Command{Use: "finsight"}

	var cfgPath string
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path")

	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion and search API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			return runServe(cfg)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")

	var migDir string
	var direction string
	var steps int
	var migrate = &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			dsn, err := cfg.Postgres.DSN()
			if err != nil {
				return err
			}
			return store.Migrate(migDir, dsn, direction, steps)
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	root.AddCommand(serve, migrate)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cfg *config.Config) error {
	ctx := context.Background()

	dsn, err := cfg.Postgres.DSN()
	if err != nil {
		return err
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}
	defer st.DB.Close()

	rdb, err := metastore.Conn(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, 5*time.Second)
	if err != nil {
		return err
	}
	defer rdb.Close()
	meta := metastore.New(rdb)

	blobs, err := fsblob.New(cfg.Blob.RootDir, cfg.Blob.BaseURL, []byte(cfg.Blob.SigningSecret))
	if err != nil {
		return err
	}

	if cfg.Extraction.APIKey == "" {
		return fmt.Errorf("extraction api key not configured (extraction.api_key)")
	}
	provider := llamaparse.NewClient(llamaparse.Config{
		BaseURL: cfg.Extraction.BaseURL,
		APIKey:  cfg.Extraction.APIKey,
		Timeout: cfg.Extraction.Timeout,
	})
	extractLogger := log.New(log.Writer(), "[EXTRACT] ", log.LstdFlags)
	machine, err := extract.NewMachine(provider, extract.Config{
		PollInterval: cfg.Extraction.PollInterval,
		RetryBackoff: cfg.Extraction.RetryBackoff,
		Budget:       cfg.Extraction.Budget,
		KnownJobID:   cfg.Extraction.KnownJobID,
	}, extractLogger)
	if err != nil {
		return err
	}

	if cfg.Embedding.APIKey == "" {
		return fmt.Errorf("embedding api key not configured (embedding.api_key)")
	}
	embedder := openai.NewClient(openai.Config{
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.Embedding.Timeout,
	})

	vidx, err := pineconeIndex(cfg)
	if err != nil {
		return err
	}

	metrics := telemetry.New()
	indexLogger := log.New(log.Writer(), "[INDEX] ", log.LstdFlags)
	indexer, err := index.NewIndexer(embedder, vidx, indexLogger)
	if err != nil {
		return err
	}

	chunker := chunk.NewChunker(cfg.Chunking.MaxTokens, chunk.DefaultTokenizer())
	ingestLogger := log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	pipeline, err := ingest.NewPipeline(meta, st, blobs, machine, chunker, indexer, metrics, ingestLogger)
	if err != nil {
		return err
	}

	searchLogger := log.New(log.Writer(), "[SEARCH] ", log.LstdFlags)
	searcher, err := search.NewService(embedder, vidx, st, metrics, searchLogger)
	if err != nil {
		return err
	}

	srv, err := server.New(pipeline, searcher, st, blobs, cfg.Blob.URLTTL, metrics)
	if err != nil {
		return err
	}
	e := srv.Echo()

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(cfg.Server.Address)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Printf("received %s, shutting down", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	}
}

func pineconeIndex(cfg *config.Config) (*pinecone.Index, error) {
	return pinecone.NewIndex(pinecone.Config{
		BaseURL:   cfg.Vector.BaseURL,
		APIKey:    cfg.Vector.APIKey,
		Namespace: cfg.Vector.Namespace,
		Timeout:   cfg.Vector.Timeout,
		Retries:   2,
	})
}

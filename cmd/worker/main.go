package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"studyrag/internal/activities"
	"studyrag/internal/app"
	"studyrag/internal/config"
	"studyrag/internal/embedding"
	"studyrag/internal/extract"
	"studyrag/internal/filestore"
	"studyrag/internal/ingest"
	"studyrag/internal/providers"
	"studyrag/internal/storage"
	"studyrag/internal/vector"
	"studyrag/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := app.NewLogger(cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Error("worker stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	db, err := app.OpenDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	files, err := filestore.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open file store: %w", err)
	}
	index, closeIndex, err := vector.Open(ctx, cfg, db.Pool)
	if err != nil {
		return fmt.Errorf("open vector index: %w", err)
	}
	defer closeIndex()

	mgr, err := providers.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("configure providers: %w", err)
	}
	embedder := embedding.NewClient(mgr, embedding.Options{
		BatchSize:  cfg.EmbedBatchSize,
		BatchDelay: cfg.EmbedBatchDelay,
		MaxChars:   cfg.EmbedMaxChars,
		Dimension:  cfg.EmbedDim,
	}, logger)

	pipeline := ingest.NewPipeline(
		storage.NewDocumentRepo(db),
		storage.NewChunkRepo(db),
		extract.NewPDFOpener(files),
		embedder,
		index,
		ingest.Options{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap, ErrorMessageMax: cfg.ErrorMessageMax},
		logger,
	)

	tc, err := app.DialTemporal(cfg, logger)
	if err != nil {
		return err
	}
	defer tc.Close()

	w := worker.New(tc, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, activities.New(pipeline))

	logger.Info("studyrag worker listening", "temporal", cfg.TemporalAddress, "queue", cfg.TemporalTaskQueue, "embed_providers", cfg.EmbedProviders)
	return w.Run(worker.InterruptCh())
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studyrag/internal/answer"
	"studyrag/internal/api"
	"studyrag/internal/app"
	"studyrag/internal/config"
	"studyrag/internal/documents"
	"studyrag/internal/embedding"
	"studyrag/internal/filestore"
	"studyrag/internal/providers"
	"studyrag/internal/storage"
	"studyrag/internal/vector"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := app.NewLogger(cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
	locker, closeLocker := app.NewLocker(cfg)
	defer closeLocker()

	tc, err := app.DialTemporal(cfg, logger)
	if err != nil {
		return err
	}
	defer tc.Close()

	mgr, err := providers.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("configure providers: %w", err)
	}
	catalog, err := answer.LoadCatalog(cfg.AnswerPhrasesFile)
	if err != nil {
		return fmt.Errorf("load answer phrases: %w", err)
	}

	docRepo := storage.NewDocumentRepo(db)
	chunkRepo := storage.NewChunkRepo(db)
	embedder := embedding.NewClient(mgr, embedding.Options{
		BatchSize:  cfg.EmbedBatchSize,
		BatchDelay: cfg.EmbedBatchDelay,
		MaxChars:   cfg.EmbedMaxChars,
		Dimension:  cfg.EmbedDim,
	}, logger)

	svc := documents.NewService(docRepo, chunkRepo, files, index, locker,
		documents.NewTemporalIngestor(tc, cfg.TemporalTaskQueue, cfg.PageBatchSize),
		documents.Options{LockTTL: cfg.UploadLockTTL, ErrorMessageMax: cfg.ErrorMessageMax}, logger)
	engine, err := answer.NewEngine(answer.Deps{
		Documents: docRepo,
		Chunks:    chunkRepo,
		Embedder:  embedder,
		Index:     index,
		LLM:       mgr,
		Grounded:  mgr,
		Searcher:  mgr,
		Catalog:   catalog,
	}, answer.Options{
		TopK:            cfg.AnswerTopK,
		MaxContextChars: cfg.AnswerMaxContextChars,
		Locale:          cfg.AnswerLocale,
	}, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           api.NewServer(svc, engine, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("studyrag api listening", "addr", cfg.APIAddr, "llm_providers", cfg.LLMProviders, "embed_providers", cfg.EmbedProviders, "vector_store", cfg.VectorStore)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ledgerstack/ledgerstack/internal/common"
	"github.com/ledgerstack/ledgerstack/internal/docai"
	"github.com/ledgerstack/ledgerstack/internal/export"
	"github.com/ledgerstack/ledgerstack/internal/pipeline"
	"github.com/ledgerstack/ledgerstack/internal/repository"
	"github.com/ledgerstack/ledgerstack/internal/server"
	"github.com/ledgerstack/ledgerstack/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, pool, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("open database failed", "error", err)
		os.Exit(1)
	}
	defer repository.Close(db, pool, logger)

	if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}

	store, err := storage.NewDiskStore(cfg.Storage.BaseDir, cfg.Storage.PublicBaseURL, cfg.Storage.URLSecret, cfg.Server.MaxUploadBytes, logger)
	if err != nil {
		logger.Error("init object store failed", "error", err)
		os.Exit(1)
	}

	client := docai.NewClient(docai.Config{
		RecognizeURL: cfg.DocAI.RecognizeURL,
		ClassifyURL:  cfg.DocAI.ClassifyURL,
		ExtractURL:   cfg.DocAI.ExtractURL,
		APIKey:       cfg.DocAI.APIKey,
		Timeout:      cfg.DocAI.Timeout,
	}, logger)

	extractions := repository.NewExtractionRepository(db, logger)
	records := repository.NewRecordRepository(db, logger)

	pipe := pipeline.New(logger, pipeline.Config{
		SignedURLTTL: cfg.Storage.SignedURLTTL,
		DefaultModel: cfg.DocAI.Model,
		BulkWorkers:  cfg.Bulk.Workers,
		BulkTimeout:  cfg.Bulk.ItemTimeout,
	}, extractions, store, client, client, client)

	api := server.NewAPI(cfg.Server, logger, pipe, export.NewService(records, logger), store)
	srv := server.New(api)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	logger.Info("stopped")
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jafarshop/refundops/internal/api"
	"github.com/jafarshop/refundops/internal/config"
	"github.com/jafarshop/refundops/internal/dedup"
	"github.com/jafarshop/refundops/internal/repository/postgres"
	"github.com/jafarshop/refundops/internal/service"
	"github.com/jafarshop/refundops/internal/settlement"
	"github.com/jafarshop/refundops/internal/storage"
	"github.com/jafarshop/refundops/internal/whatsapp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, logger)

	waClient := whatsapp.NewClient(cfg.WhatsApp, logger)
	settlementClient := settlement.NewClient(cfg.Settlement, logger)
	storageClient := storage.NewClient(cfg.Storage, logger)

	notifier := service.NewNotifyService(waClient, cfg.WhatsApp, logger)
	refunds := service.NewRefundService(repos.Refund, storageClient, settlementClient, notifier, logger)

	cache := dedup.NewCache(cfg.Webhook.DedupClearInterval, logger)
	cache.Start()
	defer cache.Stop()

	router := api.NewRouter(api.Deps{
		Config:   cfg,
		Repos:    repos,
		Refunds:  refunds,
		Notifier: notifier,
		Inbound:  notifier,
		Dedup:    cache,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	zapcfg := zap.NewProductionConfig()
	zapcfg.Level = lvl

	return zapcfg.Build()
}

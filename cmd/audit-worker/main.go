package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/audit"
	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/config"
	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/handlers"
	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/logger"
)

func main() {
	cfg := config.Load()

	zl, err := logger.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer zl.Sync()

	if cfg.RabbitMQ.URL == "" {
		zl.Fatal("RABBITMQ_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zl.Info("configuration loaded",
		zap.String("clickhouse", cfg.ClickHouse.Host),
		zap.String("database", cfg.ClickHouse.Database),
		zap.String("exchange", cfg.RabbitMQ.Exchange),
	)

	client, err := audit.NewClickHouseClient(ctx, cfg.ClickHouse)
	if err != nil {
		zl.Fatal("failed to initialize ClickHouse client", zap.Error(err))
	}
	defer client.Close()

	journal := audit.NewJournalRepository(client)
	if err := journal.EnsureSchema(ctx); err != nil {
		zl.Fatal("failed to create journal schema", zap.Error(err))
	}

	consumer, err := audit.NewRabbitMQConsumer(cfg.RabbitMQ, journal, zl)
	if err != nil {
		zl.Fatal("failed to create RabbitMQ consumer", zap.Error(err))
	}
	defer consumer.Close()

	httpServer := &http.Server{
		Addr:              ":" + cfg.AuditHTTPPort,
		Handler:           handlers.NewJournalRouter(handlers.NewJournalHandler(&journalReader{journal, client}), zl),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zl.Info("journal HTTP server starting", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("journal HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	if err := consumer.Start(ctx); err != nil {
		zl.Error("consumer stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Error("journal HTTP server shutdown failed", zap.Error(err))
	}
	zl.Info("audit worker stopped")
}

// journalReader serves journal reads with a ClickHouse health check
type journalReader struct {
	*audit.JournalRepository
	client *audit.ClickHouseClient
}

func (r *journalReader) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/config"
	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/db"
	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/domain"
	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/events"
	grpcserver "github.com/Kamal-Moha/blnk-Ledger-Test/internal/grpc"
	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/handlers"
	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/lock"
	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/logger"
	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/memory"
)

// storage groups the persistence dependencies of the transaction service.
type storage struct {
	store     domain.LedgerStore
	registry  domain.InflightRegistry
	txns      domain.TransactionRepository
	txManager domain.TransactionManager
	close     func()
}

func main() {
	cfg := config.Load()

	zl, err := logger.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer zl.Sync()

	if err := cfg.Validate(); err != nil {
		zl.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := newStorage(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("failed to initialize storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer st.close()
	zl.Info("storage initialized", zap.String("driver", cfg.Storage.Driver))

	locker, closeLocker, err := newLocker(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("failed to initialize locker", zap.Error(err))
	}
	defer closeLocker()

	// A nil interface value disables publishing; a typed nil would not.
	var publisher domain.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		p, err := events.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			zl.Fatal("failed to create rabbitmq publisher", zap.Error(err))
		}
		defer p.Close()
		publisher = p
		zl.Info("event publishing enabled", zap.String("exchange", cfg.RabbitMQ.Exchange))
	}

	service := domain.NewTransactionService(st.store, st.registry, st.txns, st.txManager, locker, publisher, zl)
	zl.Info("domain services initialized")

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handlers.NewRouter(handlers.NewHandler(service), zl),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	grpcServer := grpcserver.NewServer(service, zl)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		zl.Fatal("failed to listen", zap.String("port", cfg.GRPCPort), zap.Error(err))
	}

	go grpcServer.WatchHealth(ctx, 10*time.Second)

	go func() {
		zl.Info("gRPC health server starting", zap.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil {
			zl.Error("gRPC server failed", zap.Error(err))
			stop()
		}
	}()

	go func() {
		zl.Info("HTTP server starting", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Error("HTTP server shutdown failed", zap.Error(err))
	}
	grpcServer.GracefulStop()
	zl.Info("servers stopped")
}

func newStorage(ctx context.Context, cfg *config.Config, zl *zap.Logger) (*storage, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		return &storage{
			store:     memory.NewStore(),
			registry:  memory.NewRegistry(),
			txns:      memory.NewTransactionRepository(),
			txManager: memory.NewTransactionManager(),
			close:     func() {},
		}, nil
	}

	pool, err := db.NewPool(ctx, cfg.Storage.DatabaseURL, cfg.Storage.MaxConns)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.AutoMigrate {
		if err := db.Migrate(ctx, pool.Pool); err != nil {
			pool.Close()
			return nil, err
		}
		zl.Info("database migrations applied")
	}

	return &storage{
		store:     db.NewLedgerStore(pool.Pool),
		registry:  db.NewReservationRepository(pool.Pool),
		txns:      db.NewTransactionRepository(pool.Pool),
		txManager: db.NewTransactionManager(pool.Pool, zl),
		close:     pool.Close,
	}, nil
}

func newLocker(ctx context.Context, cfg *config.Config, zl *zap.Logger) (domain.Locker, func(), error) {
	if cfg.Redis.Addr == "" {
		zl.Info("using in-process locks")
		return lock.NewLocalLocker(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}

	opts := lock.DefaultOptions()
	opts.Expiry = cfg.Redis.LockExpiry
	opts.Tries = cfg.Redis.LockTries
	opts.RetryDelay = cfg.Redis.LockRetryDelay

	locker, err := lock.NewRedisLocker(client, opts, zl)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	zl.Info("using distributed locks", zap.String("redis", cfg.Redis.Addr))
	return locker, func() { client.Close() }, nil
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/punchamoorthee/finledger/internal/api"
	"github.com/punchamoorthee/finledger/internal/auth"
	"github.com/punchamoorthee/finledger/internal/config"
	"github.com/punchamoorthee/finledger/internal/logging"
	"github.com/punchamoorthee/finledger/internal/metrics"
	"github.com/punchamoorthee/finledger/internal/service"
	"github.com/punchamoorthee/finledger/internal/store"
	"github.com/punchamoorthee/finledger/internal/store/memory"
	"github.com/punchamoorthee/finledger/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLoggerFromEnv()
	if err != nil {
		log.Fatalf("Unable to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Unable to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	ledgerStore := store.NewBreakerStore(backend, store.BreakerConfig{
		MaxFailures:      cfg.BreakerMaxFailures,
		OpenTimeout:      cfg.BreakerOpenTimeout,
		HalfOpenRequests: 1,
	}, logger)
	defer ledgerStore.Close()

	recorder := metrics.NewPrometheus(cfg.MetricsNamespace)
	if err := recorder.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Fatal("Unable to register metrics", zap.Error(err))
	}

	// Initialize Layers
	ledger := service.NewLedger(ledgerStore,
		service.WithLogger(logger),
		service.WithMetrics(recorder),
		service.WithPageSize(cfg.PageSize, cfg.MaxPageSize),
	)

	handlerOpts := []api.Option{api.WithLogger(logger), api.WithRevocationTTL(cfg.RevocationTTL)}
	if cfg.RedisAddr != "" {
		revocations, err := auth.NewRedisRevocations(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Fatal("Unable to connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		defer revocations.Close()
		handlerOpts = append(handlerOpts, api.WithRevocations(revocations))
	} else {
		handlerOpts = append(handlerOpts, api.WithRevocations(auth.NewMemoryRevocations()))
	}
	handler := api.NewHandler(ledger, handlerOpts...)

	// Router
	r := api.NewRouter(handler)
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Server starting",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("store", cfg.StoreDriver),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (store.Store, error) {
	if cfg.StoreDriver == config.DriverMemory {
		logger.Warn("Using the in-memory store; data is lost on exit")
		return memory.New(), nil
	}

	pg, err := postgres.New(ctx, cfg.DBSource, logger)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

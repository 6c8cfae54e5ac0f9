// cmd/oracle-service/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"oracle-service/internal/common/config"
	"oracle-service/internal/common/database"
	"oracle-service/internal/common/logger"
	"oracle-service/internal/common/observability"
	"oracle-service/internal/oracle/ai"
	"oracle-service/internal/oracle/coordinator"
	"oracle-service/internal/oracle/ledger"
	"oracle-service/internal/oracle/scanner"
	"oracle-service/internal/oracle/store"
	"oracle-service/internal/oracle/tracker"
	"oracle-service/internal/server"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	configPath := flag.String("config", "", "path to a config file (default: search ./configs)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting oracle service...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("aiBackend", cfg.AI.BaseURL),
		zap.String("ledgerGateway", cfg.Ledger.RPCURL),
		zap.String("storeMode", cfg.Store.Mode),
	)

	obs := observability.New("oracle-service")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Store gateway ---
	var gateway store.Gateway
	switch cfg.Store.Mode {
	case "postgres":
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")
		gateway = store.NewPostgresGateway(pg, log)
	default:
		gateway = store.NewHTTPGateway(store.Config{
			Mode:    cfg.Store.Mode,
			BaseURL: cfg.Store.BaseURL,
			Timeout: config.GetDuration(cfg.Store.Timeout),
		}, log)
	}

	// --- Analyzed markers (optional Redis) ---
	var markers coordinator.Markers = coordinator.NoopMarkers{}
	if cfg.Database.Redis.Address != "" {
		var redisClient *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redisClient, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redisClient.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Warn("redis unavailable, running without analyzed markers", zap.Error(err))
		} else {
			defer redisClient.Close()
			zapLog.Info("Redis connected successfully")
			markers = coordinator.NewRedisMarkers(redisClient, log)
		}
	}

	// --- Pipeline clients ---
	aiClient := ai.NewClient(ai.Config{
		BaseURL: cfg.AI.BaseURL,
		Timeout: config.GetDuration(cfg.AI.Timeout),
	}, log)

	ledgerClient := ledger.NewClient(ledger.Config{
		RPCURL:              cfg.Ledger.RPCURL,
		OracleAddress:       cfg.Ledger.OracleAddress,
		SubmitTimeout:       config.GetDuration(cfg.Ledger.SubmitTimeout),
		ConfirmTimeout:      config.GetDuration(cfg.Ledger.ConfirmTimeout),
		ConfirmPollInterval: config.GetDuration(cfg.Ledger.ConfirmPollInterval),
	}, log)

	coord := coordinator.New(aiClient, ledgerClient, gateway, tracker.New(), markers, obs, log,
		coordinator.Options{
			QueueSize: cfg.Server.QueueSize,
			Workers:   cfg.Server.QueueWorkers,
		})

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	coord.Start(runCtx)

	// --- Scanner ---
	if cfg.Scanner.Enabled {
		scan := scanner.New(scanner.Config{
			Interval:  config.GetDuration(cfg.Scanner.Interval),
			BatchSize: cfg.Scanner.BatchSize,
			ItemDelay: config.GetDuration(cfg.Scanner.ItemDelay),
		}, gateway, coord, log)
		go scan.Run(runCtx)
	} else {
		zapLog.Info("scanner disabled")
	}

	// --- HTTP Server ---
	handler := server.NewRouter(server.Config{
		ServiceName:    cfg.App.Name,
		Version:        cfg.App.Version,
		RequestTimeout: config.GetDuration(cfg.Server.RequestTimeout),
		CORSOrigins:    cfg.Server.CORSOrigins,
	}, coord, log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")

	// Stop accepting new work first, then drain the pipeline.
	cancelRun()
	coord.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("Oracle service stopped gracefully")
}

// cmd/builderd/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gitcoinco/grants-stack-sub000/internal/adapters/chain"
	"github.com/gitcoinco/grants-stack-sub000/internal/adapters/indexer"
	"github.com/gitcoinco/grants-stack-sub000/internal/adapters/ipfs"
	"github.com/gitcoinco/grants-stack-sub000/internal/adapters/wallet"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/config"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/database"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/logger"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/observability"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/tracking"
	"github.com/gitcoinco/grants-stack-sub000/internal/journal"
	"github.com/gitcoinco/grants-stack-sub000/internal/notify"
	"github.com/gitcoinco/grants-stack-sub000/internal/submission"
)

const (
	roundCacheTTL = time.Hour
	appliedTTL    = 30 * 24 * time.Hour
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
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting builder daemon...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init chain client with retry ---
	var chainClient *chain.Client
	err = retryWithBackoff(func() error {
		var err error
		chainClient, err = chain.Dial(ctx, cfg.Chain, cfg.Wallet.PrivateKey, log)
		return err
	}, 10, 2*time.Second, zapLog, "chain RPC connection")

	if err != nil {
		zapLog.Fatal("chain RPC failed after retries", zap.Error(err))
	}
	zapLog.Info("Chain RPC connected successfully", zap.Int64("chainId", cfg.Chain.ChainID))

	// --- Init adapters ---
	signer, err := wallet.NewLocalSigner(cfg.Wallet.PrivateKey, cfg.Chain.ChainID)
	if err != nil {
		zapLog.Fatal("wallet key invalid", zap.Error(err))
	}

	pinner := ipfs.NewClient(cfg.Ipfs, log)
	idx := indexer.NewClient(cfg.Indexer, log)

	// --- Init attempt journal ---
	attemptJournal := journal.New(pg.GetDB(), log)
	if err := attemptJournal.Init(ctx); err != nil {
		zapLog.Fatal("journal init failed", zap.Error(err))
	}

	// --- Init error tracking ---
	var collector tracking.Collector
	if cfg.Tracking.Enabled {
		collector = tracking.NewHTTPCollector(
			cfg.Tracking.URL,
			cfg.Tracking.APIKey,
			time.Duration(cfg.Tracking.Timeout)*time.Millisecond,
			log,
		)
	}
	reporter := tracking.NewReporter(collector, log)

	// --- Init notifications ---
	var notifier submission.Notifier
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		n, err := notify.New(ctx, cfg.Notifications, log)
		if err != nil {
			zapLog.Fatal("notifier init failed", zap.Error(err))
		}
		notifier = n
	}

	zapLog.Info("All adapters initialized")

	// --- Assemble submission pipeline ---
	statuses := submission.NewStatusStore()
	deps := submission.Deps{
		Rounds:           submission.NewRoundCache(idx, pinner, redis, roundCacheTTL, log),
		Projects:         idx,
		Pinner:           pinner,
		Chain:            chainClient,
		Signer:           signer,
		Statuses:         statuses,
		Applied:          submission.NewAppliedStore(redis, appliedTTL, log),
		Journal:          attemptJournal,
		Notifier:         notifier,
		Reporter:         reporter,
		Logger:           log,
		RegistryAddress:  cfg.Chain.RegistryAddress,
		MetadataProtocol: "1",
	}

	srv := &server{
		cfg:      cfg,
		deps:     deps,
		statuses: statuses,
		journal:  attemptJournal,
		logger:   log,
	}

	// --- API Server ---
	apiServer := &http.Server{
		Addr:    cfg.App.ListenAddr,
		Handler: srv.routes(),
	}
	go func() {
		zapLog.Info("API server listening", zap.String("addr", cfg.App.ListenAddr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("API server failed", zap.Error(err))
		}
	}()

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := pg.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "postgres unavailable"})
				return
			}
			if err := redis.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "redis unavailable"})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("API server shutdown failed", zap.Error(err))
	}
	zapLog.Info("Builder daemon stopped")
}

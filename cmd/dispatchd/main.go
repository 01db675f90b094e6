// cmd/dispatchd/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"bushfire-beacon/internal/api"
	"bushfire-beacon/internal/audit"
	"bushfire-beacon/internal/channels"
	"bushfire-beacon/internal/channels/email"
	"bushfire-beacon/internal/channels/sms"
	"bushfire-beacon/internal/common/aws"
	"bushfire-beacon/internal/common/config"
	"bushfire-beacon/internal/common/database"
	"bushfire-beacon/internal/common/logger"
	"bushfire-beacon/internal/common/observability"
	"bushfire-beacon/internal/dedup"
	"bushfire-beacon/internal/directory"
	"bushfire-beacon/internal/dispatch"
	"bushfire-beacon/internal/engine"
	"bushfire-beacon/internal/fanout"
	"bushfire-beacon/internal/intake"
	"bushfire-beacon/internal/store"
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
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting alert dispatch engine...")

	obs := observability.New("dispatchd")
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
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry (audit trail only) ---
	var recorder dispatch.Recorder
	if cfg.Audit.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		recorder = audit.NewWriter(esClient.Client, cfg.Audit.Index, log)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Init channel adapters ---
	var adapters []channels.Adapter

	if cfg.Notifications.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		adapters = append(adapters, email.New(sesClient, cfg.Notifications.Email.FromEmail, log))
		zapLog.Info("Email adapter initialized")
	}

	if cfg.Notifications.SMS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		adapters = append(adapters, sms.New(snsClient, cfg.Notifications.SMS.SenderID, log))
		zapLog.Info("SMS adapter initialized")
	}

	if len(adapters) == 0 {
		zapLog.Fatal("no delivery channel enabled")
	}

	// --- Wire the pipeline ---
	alertStore := store.NewPostgres(pg.DB, log)
	deduper := dedup.NewRedis(redisClient.Client, time.Duration(cfg.Dedup.WindowMinutes)*time.Minute)
	dir := directory.NewPostgres(pg.DB, log)

	eng := engine.New(
		intake.New(intake.Config{
			TimeBucket: time.Duration(cfg.Dedup.TimeBucketMinutes) * time.Minute,
		}, log),
		deduper,
		fanout.New(dir, log),
		alertStore, alertStore, log,
	)

	dispatchOpts := dispatch.Options{
		MaxAttempts: cfg.Dispatch.MaxRetries,
		Backoff: dispatch.Policy{
			Base: config.GetDuration(cfg.Dispatch.BackoffBaseMs),
			Cap:  config.GetDuration(cfg.Dispatch.BackoffCapMs),
		},
		QueueSize: cfg.Dispatch.QueueSize,
		Lease:     30 * time.Second,
		Channels:  map[string]dispatch.ChannelOptions{},
	}
	for name, ch := range cfg.Dispatch.Channels {
		if !ch.Enabled {
			continue
		}
		dispatchOpts.Channels[name] = dispatch.ChannelOptions{
			Workers: ch.Workers,
			Rate:    ch.RatePerSecond,
			Burst:   ch.Burst,
			Timeout: config.GetDuration(ch.TimeoutMs),
		}
	}

	dispatcher := dispatch.New(dispatchOpts, alertStore, alertStore, adapters, recorder, obs, log)
	scheduler := dispatch.NewScheduler(alertStore, dispatcher,
		config.GetDuration(cfg.Dispatch.SchedulerTickMs), cfg.Dispatch.QueueSize, log)

	dispatcher.Start(ctx)
	scheduler.Start(ctx)
	zapLog.Info("Dispatcher and scheduler started")

	// --- API Server ---
	apiServer := &http.Server{
		Addr:    cfg.App.ListenAddr,
		Handler: api.NewServer(eng, log).Routes(),
	}
	go func() {
		zapLog.Info("API server listening", zap.String("addr", cfg.App.ListenAddr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("API server failed", zap.Error(err))
		}
	}()

	// --- Metrics Server ---
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Metrics server listening", zap.String("addr", cfg.App.MetricsAddr))
		if err := http.ListenAndServe(cfg.App.MetricsAddr, nil); err != nil {
			zapLog.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("API server shutdown failed", zap.Error(err))
	}

	scheduler.Stop()
	dispatcher.Stop()

	zapLog.Info("Alert dispatch engine stopped gracefully")
}

// Package main implements the session worker daemon: it drains the
// session task queue, runs the research pipeline for each job, persists
// terminal session states, and runs the monitoring loop that alerts on
// queue depth and failure rate. The optional Prometheus exporter is
// served alongside when enabled.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/tmorehouse/researchd/internal/alert"
	"github.com/tmorehouse/researchd/internal/config"
	"github.com/tmorehouse/researchd/internal/metrics"
	"github.com/tmorehouse/researchd/internal/monitor"
	"github.com/tmorehouse/researchd/internal/pipeline"
	"github.com/tmorehouse/researchd/internal/platform/logger"
	"github.com/tmorehouse/researchd/internal/queue"
	"github.com/tmorehouse/researchd/internal/state"
	"github.com/tmorehouse/researchd/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("worker failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logr := logger.Setup(cfg.Server.LogLevel)

	client := redis.NewClient(&redis.Options{
		Addr: net.JoinHostPort(cfg.Redis.Host, strconv.Itoa(cfg.Redis.Port)),
		DB:   cfg.Redis.DB,
	})
	defer func() { _ = client.Close() }()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis at %s:%d: %w", cfg.Redis.Host, cfg.Redis.Port, err)
	}

	store := state.NewStore(client, state.Options{
		Sharded:    cfg.State.Sharded,
		ShardCount: cfg.State.ShardCount,
		TTL:        time.Duration(cfg.State.TTLHours) * time.Hour,
	})
	taskQueue := queue.New(client, cfg.Queue.Key, logr)

	var m *metrics.Metrics
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		m = metrics.MustNewMetrics(prometheus.DefaultRegisterer)
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: metrics.Router(prometheus.DefaultGatherer),
		}
		go func() {
			logr.Info("metrics exporter listening", "port", cfg.Metrics.Port)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logr.Error("metrics server failed", "error", err)
			}
		}()
	}

	notifier := alert.New(alert.Config{
		Provider:     cfg.Alert.Provider,
		SMTPServer:   cfg.Alert.SMTPServer,
		SMTPPort:     cfg.Alert.SMTPPort,
		SMTPUser:     cfg.Alert.SMTPUser,
		SMTPPassword: cfg.Alert.SMTPPassword,
		Recipients:   cfg.Alert.EmailList,
		ChatWebhook:  cfg.Alert.ChatWebhook,
		ChatSecret:   cfg.Alert.ChatSecret,
		CloudWebhook: cfg.Alert.CloudWebhook,
	}, logr)

	window := monitor.NewResultWindow(monitor.DefaultWindowSize)
	pipe := pipeline.NewClient(cfg.Pipeline.URL, time.Duration(cfg.Pipeline.TimeoutSeconds)*time.Second, logr)

	sessionWorker := worker.New(taskQueue, store, pipe, window, m, worker.Config{
		WorkerCount: cfg.Worker.Count,
		PopTimeout:  time.Duration(cfg.Worker.PopTimeoutSeconds) * time.Second,
	}, logr)
	sessionWorker.Start()

	mon := monitor.New(taskQueue, window, notifier, m, monitor.Config{
		Interval:             time.Duration(cfg.Monitor.IntervalSeconds) * time.Second,
		QueueAlertThreshold:  cfg.Monitor.QueueAlertThreshold,
		FailureRateThreshold: cfg.Monitor.FailureRateThreshold,
	}, logr)
	mon.Start()

	logr.Info("session job core started",
		"queue", cfg.Queue.Key,
		"workers", cfg.Worker.Count,
		"sharded_state", cfg.State.Sharded,
		"alert_provider", cfg.Alert.Provider,
		"metrics_enabled", cfg.Metrics.Enabled)

	waitForShutdown(logr)

	// Stop order: monitor first so it does not alert on the draining
	// queue, then the workers, then the metrics listener.
	mon.Stop()
	sessionWorker.Stop()
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	logr.Info("session job core stopped")
	return nil
}

func waitForShutdown(logr *slog.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logr.Info("shutdown signal received", "signal", s.String())
}

package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tmorehouse/researchd/internal/alert"
	"github.com/tmorehouse/researchd/internal/metrics"
)

// QueueDepther reports the current depth of the task queue.
type QueueDepther interface {
	Len(ctx context.Context) (int64, error)
}

// Config holds the monitor's thresholds and cadence.
type Config struct {
	// Interval between check cycles.
	Interval time.Duration

	// QueueAlertThreshold triggers a queue-depth alert when the depth
	// strictly exceeds it.
	QueueAlertThreshold int64

	// FailureRateThreshold (0–1) triggers a failure-rate alert when
	// the windowed rate strictly exceeds it.
	FailureRateThreshold float64
}

// DefaultConfig returns sane monitor settings: one cycle a minute,
// alerts at 1000 queued tasks or a 10% failure rate.
func DefaultConfig() Config {
	return Config{
		Interval:             time.Minute,
		QueueAlertThreshold:  1000,
		FailureRateThreshold: 0.1,
	}
}

// Monitor periodically samples queue depth and failure rate and
// dispatches alerts on threshold breaches.
type Monitor struct {
	queue    QueueDepther
	window   *ResultWindow
	notifier alert.Notifier
	metrics  *metrics.Metrics
	config   Config
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Monitor. The metrics handle may be nil when the
// exporter is disabled.
func New(queue QueueDepther, window *ResultWindow, notifier alert.Notifier, m *metrics.Metrics, config Config, logger *slog.Logger) *Monitor {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		queue:    queue,
		window:   window,
		notifier: notifier,
		metrics:  m,
		config:   config,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the monitor loop in its own goroutine.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.run()
}

// Stop signals the loop to exit and waits for it.
func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

func (m *Monitor) run() {
	defer m.wg.Done()

	m.logger.Info("monitor started",
		"interval", m.config.Interval,
		"queue_alert_threshold", m.config.QueueAlertThreshold,
		"failure_rate_threshold", m.config.FailureRateThreshold)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("monitor stopped")
			return
		case <-ticker.C:
			m.CheckOnce(m.ctx)
		}
	}
}

// CheckOnce runs a single monitoring cycle: sample both signals, update
// metrics, and dispatch at most one alert per breached signal. A read
// failure on the queue skips the depth check for this cycle only.
func (m *Monitor) CheckOnce(ctx context.Context) {
	depth, err := m.queue.Len(ctx)
	if err != nil {
		m.logger.Warn("skipping queue depth check, queue read failed", "error", err)
	} else {
		m.metrics.SetQueueLength(depth)
		if depth > m.config.QueueAlertThreshold {
			m.dispatch(ctx,
				"queue depth threshold exceeded",
				fmt.Sprintf("current queue depth %d exceeds threshold %d", depth, m.config.QueueAlertThreshold))
			m.metrics.QueueAlert()
		}
	}

	rate := m.window.FailureRate()
	m.metrics.SetFailureRate(rate)
	if rate > m.config.FailureRateThreshold {
		m.dispatch(ctx,
			"failure rate threshold exceeded",
			fmt.Sprintf("current failure rate %.2f exceeds threshold %.2f over the last %d tasks",
				rate, m.config.FailureRateThreshold, m.window.Len()))
		m.metrics.FailureAlert()
	}
}

// dispatch delivers one alert, logging and swallowing channel failures:
// alerting is best-effort and must never take down the monitor loop.
func (m *Monitor) dispatch(ctx context.Context, subject, body string) {
	m.logger.Warn("threshold breached, dispatching alert",
		"subject", subject,
		"detail", body)
	if err := m.notifier.Notify(ctx, subject, body); err != nil {
		m.logger.Error("alert delivery failed", "subject", subject, "error", err)
	}
}

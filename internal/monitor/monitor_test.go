package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmorehouse/researchd/internal/metrics"
)

// stubQueue implements QueueDepther with a fixed depth or error.
type stubQueue struct {
	depth int64
	err   error
}

func (s *stubQueue) Len(ctx context.Context) (int64, error) {
	return s.depth, s.err
}

// recordingNotifier captures dispatched alerts and can simulate an
// unreachable channel.
type recordingNotifier struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (n *recordingNotifier) Notify(ctx context.Context, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subjects = append(n.subjects, subject)
	return n.err
}

func (n *recordingNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.subjects...)
}

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func newTestMonitor(q QueueDepther, w *ResultWindow, n *recordingNotifier, cfg Config) *Monitor {
	return New(q, w, n, nil, cfg, setupTestLogger())
}

func TestCheckOnceNoBreach(t *testing.T) {
	notifier := &recordingNotifier{}
	m := newTestMonitor(&stubQueue{depth: 3}, NewResultWindow(10), notifier, Config{
		Interval:             time.Minute,
		QueueAlertThreshold:  10,
		FailureRateThreshold: 0.5,
	})

	m.CheckOnce(context.Background())
	assert.Empty(t, notifier.sent())
}

func TestCheckOnceQueueBreach(t *testing.T) {
	notifier := &recordingNotifier{}
	m := newTestMonitor(&stubQueue{depth: 11}, NewResultWindow(10), notifier, Config{
		Interval:             time.Minute,
		QueueAlertThreshold:  10,
		FailureRateThreshold: 0.5,
	})

	m.CheckOnce(context.Background())
	require.Len(t, notifier.sent(), 1)
	assert.Equal(t, "queue depth threshold exceeded", notifier.sent()[0])
}

func TestCheckOnceThresholdIsStrict(t *testing.T) {
	// A depth exactly at the threshold does not alert.
	notifier := &recordingNotifier{}
	m := newTestMonitor(&stubQueue{depth: 10}, NewResultWindow(10), notifier, Config{
		Interval:            time.Minute,
		QueueAlertThreshold: 10,
		// Rate exactly at threshold does not alert either.
		FailureRateThreshold: 0.5,
	})
	m.window.Record(true)
	m.window.Record(false)

	m.CheckOnce(context.Background())
	assert.Empty(t, notifier.sent())
}

func TestCheckOnceFailureRateBreach(t *testing.T) {
	notifier := &recordingNotifier{}
	window := NewResultWindow(10)
	window.Record(false)
	window.Record(false)
	window.Record(true)

	m := newTestMonitor(&stubQueue{depth: 0}, window, notifier, Config{
		Interval:             time.Minute,
		QueueAlertThreshold:  10,
		FailureRateThreshold: 0.5,
	})

	m.CheckOnce(context.Background())
	require.Len(t, notifier.sent(), 1)
	assert.Equal(t, "failure rate threshold exceeded", notifier.sent()[0])
}

func TestCheckOnceBothBreaches(t *testing.T) {
	notifier := &recordingNotifier{}
	window := NewResultWindow(10)
	window.Record(false)

	m := newTestMonitor(&stubQueue{depth: 100}, window, notifier, Config{
		Interval:             time.Minute,
		QueueAlertThreshold:  10,
		FailureRateThreshold: 0.5,
	})

	m.CheckOnce(context.Background())
	assert.Len(t, notifier.sent(), 2, "exactly one alert per breached signal per cycle")
}

func TestCheckOnceQueueReadFailureSkipsDepthCheck(t *testing.T) {
	notifier := &recordingNotifier{}
	m := newTestMonitor(&stubQueue{err: fmt.Errorf("connection refused")}, NewResultWindow(10), notifier, Config{
		Interval:             time.Minute,
		QueueAlertThreshold:  0,
		FailureRateThreshold: 0.5,
	})

	// Must not panic and must not dispatch a depth alert it could not measure.
	m.CheckOnce(context.Background())
	assert.Empty(t, notifier.sent())
}

func TestCheckOnceNotifierFailureIsSwallowed(t *testing.T) {
	notifier := &recordingNotifier{err: fmt.Errorf("webhook unreachable")}
	m := newTestMonitor(&stubQueue{depth: 100}, NewResultWindow(10), notifier, Config{
		Interval:             time.Minute,
		QueueAlertThreshold:  10,
		FailureRateThreshold: 0.5,
	})

	// The cycle completes despite the delivery failure.
	m.CheckOnce(context.Background())
	assert.Len(t, notifier.sent(), 1)
}

func TestCheckOnceUpdatesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	mx := metrics.MustNewMetrics(reg)

	notifier := &recordingNotifier{}
	window := NewResultWindow(10)
	window.Record(false)
	m := New(&stubQueue{depth: 100}, window, notifier, mx, Config{
		Interval:             time.Minute,
		QueueAlertThreshold:  10,
		FailureRateThreshold: 0.5,
	}, setupTestLogger())

	m.CheckOnce(context.Background())

	families, err := reg.Gather()
	require.NoError(t, err)
	found := map[string]float64{}
	for _, mf := range families {
		if len(mf.GetMetric()) == 1 {
			metric := mf.GetMetric()[0]
			switch {
			case metric.GetGauge() != nil:
				found[mf.GetName()] = metric.GetGauge().GetValue()
			case metric.GetCounter() != nil:
				found[mf.GetName()] = metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 100.0, found["session_queue_length"])
	assert.Equal(t, 1.0, found["session_failure_rate"])
	assert.Equal(t, 1.0, found["queue_alerts_total"])
	assert.Equal(t, 1.0, found["failure_rate_alerts_total"])
}

func TestMonitorLoopStartStop(t *testing.T) {
	notifier := &recordingNotifier{}
	m := newTestMonitor(&stubQueue{depth: 100}, NewResultWindow(10), notifier, Config{
		Interval:             10 * time.Millisecond,
		QueueAlertThreshold:  10,
		FailureRateThreshold: 0.5,
	})

	m.Start()
	assert.Eventually(t, func() bool {
		return len(notifier.sent()) >= 1
	}, time.Second, 5*time.Millisecond)
	m.Stop()

	// No further cycles after Stop.
	n := len(notifier.sent())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, len(notifier.sent()))
}

// Package worker drains the session task queue and turns every job
// into a terminal session state. The loop enforces the core guarantee
// of the system: at-least-once delivery with idempotent skip. A
// dequeued session that already has a terminal record is skipped
// without invoking the pipeline; everything else runs the pipeline and
// persists the outcome — success or failure — unconditionally, so no
// session is ever left silently stuck.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tmorehouse/researchd/internal/metrics"
	"github.com/tmorehouse/researchd/internal/monitor"
	"github.com/tmorehouse/researchd/internal/queue"
	"github.com/tmorehouse/researchd/internal/state"
)

// Pipeline is the single contract the job core requires from the
// research-pipeline subsystem: run a session and return its resulting
// state, or an error.
type Pipeline interface {
	Run(ctx context.Context, topic, sessionID string) (*state.SessionState, error)
}

// PipelineFunc adapts a plain function to the Pipeline interface.
type PipelineFunc func(ctx context.Context, topic, sessionID string) (*state.SessionState, error)

// Run calls f.
func (f PipelineFunc) Run(ctx context.Context, topic, sessionID string) (*state.SessionState, error) {
	return f(ctx, topic, sessionID)
}

// TaskSource is the queue surface the worker consumes: a blocking pop
// with a bounded timeout, returning ok=false on an empty timeout.
type TaskSource interface {
	Pop(ctx context.Context, timeout time.Duration) (queue.Task, bool, error)
}

// Config holds worker pool settings.
type Config struct {
	// WorkerCount is how many loops drain the queue concurrently.
	// Zero or negative falls back to 1. Idempotency is enforced at the
	// state store, so any count is correct.
	WorkerCount int

	// PopTimeout bounds each blocking pop so the loop can check its
	// stop condition. Zero falls back to DefaultPopTimeout.
	PopTimeout time.Duration
}

// DefaultPopTimeout is the blocking-pop bound when none is configured.
const DefaultPopTimeout = 10 * time.Second

// popErrorBackoff is how long a loop waits after a queue read error
// before retrying, so a down Redis does not turn into a hot loop.
const popErrorBackoff = 5 * time.Second

// Worker runs one or more session worker loops over a shared queue.
type Worker struct {
	source   TaskSource
	store    state.Store
	pipeline Pipeline
	window   *monitor.ResultWindow
	metrics  *metrics.Metrics
	config   Config
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Worker. The result window and metrics handle may be
// nil when the monitor or exporter are not wired in.
func New(source TaskSource, store state.Store, pipeline Pipeline, window *monitor.ResultWindow, m *metrics.Metrics, config Config, logger *slog.Logger) *Worker {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.PopTimeout <= 0 {
		config.PopTimeout = DefaultPopTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		source:   source,
		store:    store,
		pipeline: pipeline,
		window:   window,
		metrics:  m,
		config:   config,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker loops.
func (w *Worker) Start() {
	for i := 0; i < w.config.WorkerCount; i++ {
		w.wg.Add(1)
		go w.loop(i)
	}
}

// Stop signals all loops to exit and waits for them. A task whose
// pipeline is mid-flight finishes and persists its state before the
// loop observes the signal; it is only considered consumed once its
// terminal state is written.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) loop(id int) {
	defer w.wg.Done()

	logger := w.logger.With("worker_id", id)
	logger.Info("session worker started")

	for {
		select {
		case <-w.ctx.Done():
			logger.Info("session worker stopped")
			return
		default:
		}

		task, ok, err := w.source.Pop(w.ctx, w.config.PopTimeout)
		if err != nil {
			if w.ctx.Err() != nil {
				logger.Info("session worker stopped")
				return
			}
			// Transient queue error: back off and retry on the next
			// iteration rather than crashing the loop.
			logger.Warn("queue pop failed, backing off", "error", err)
			select {
			case <-w.ctx.Done():
			case <-time.After(popErrorBackoff):
			}
			continue
		}
		if !ok {
			continue
		}

		w.process(task, logger)
	}
}

// process turns one dequeued task into a terminal session state.
func (w *Worker) process(task queue.Task, logger *slog.Logger) {
	// The task must complete even if shutdown begins mid-pipeline, so
	// it runs under its own context rather than the loop's.
	ctx := context.Background()
	logger = logger.With("session_id", task.SessionID, "topic", task.Topic)
	logger.Info("task received")

	completed, err := w.store.HasCompleted(ctx, task.SessionID)
	if err != nil {
		// Proceeding without the check is safe under at-least-once
		// semantics: the worst case is a redundant pipeline run.
		logger.Warn("completion check failed, processing anyway", "error", err)
	}
	if completed {
		logger.Info("session already terminal, skipping")
		w.metrics.TaskSkipped()
		return
	}

	st, err := w.runPipeline(ctx, task)
	if err != nil {
		logger.Error("pipeline execution failed", "error", err)
		st = &state.SessionState{
			SessionID: task.SessionID,
			Topic:     task.Topic,
			Error:     fmt.Sprintf("pipeline failed for session %s: %v", task.SessionID, err),
		}
	}
	if st.SessionID == "" {
		st.SessionID = task.SessionID
	}
	if st.Topic == "" {
		st.Topic = task.Topic
	}

	// Persist unconditionally: failures produce a queryable terminal
	// record too. A write failure here is lost work and the one error
	// class that must be surfaced loudly.
	if err := w.store.SetState(ctx, st); err != nil {
		logger.Error("failed to persist terminal state, result is lost", "error", err)
	}

	success := !st.Failed()
	if w.window != nil {
		w.window.Record(success)
	}
	w.metrics.TaskProcessed(success)

	if success {
		logger.Info("session completed", "report_paths", len(st.ReportPaths))
	} else {
		logger.Warn("session failed", "session_error", st.Error)
	}
}

// runPipeline invokes the external pipeline, converting a panic into an
// ordinary error so a misbehaving pipeline cannot terminate the loop.
func (w *Worker) runPipeline(ctx context.Context, task queue.Task) (st *state.SessionState, err error) {
	defer func() {
		if r := recover(); r != nil {
			st = nil
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	st, err = w.pipeline.Run(ctx, task.Topic, task.SessionID)
	if err == nil && st == nil {
		err = fmt.Errorf("pipeline returned no state")
	}
	return st, err
}

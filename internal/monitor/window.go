// Package monitor watches the health of the session job core: it
// periodically samples queue depth and the recent failure rate and
// dispatches an alert when either crosses its configured threshold.
// The monitor is an independent loop with its own interval timer; it
// never blocks the worker and tolerates transient read failures by
// skipping the affected check for that cycle.
package monitor

import "sync"

// DefaultWindowSize bounds how many recent task results feed the
// failure rate.
const DefaultWindowSize = 100

// ResultWindow is a bounded sliding window of task outcomes. Workers
// record each terminal execution; the monitor reads the failure rate.
// Safe for concurrent use.
type ResultWindow struct {
	mu      sync.Mutex
	results []bool
	next    int
	filled  bool
	size    int
}

// NewResultWindow creates a window holding up to size results. A
// non-positive size falls back to DefaultWindowSize.
func NewResultWindow(size int) *ResultWindow {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &ResultWindow{
		results: make([]bool, size),
		size:    size,
	}
}

// Record appends one task outcome, evicting the oldest entry once the
// window is full.
func (w *ResultWindow) Record(success bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.results[w.next] = success
	w.next++
	if w.next == w.size {
		w.next = 0
		w.filled = true
	}
}

// Len returns how many results the window currently holds.
func (w *ResultWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.filled {
		return w.size
	}
	return w.next
}

// FailureRate returns failed ÷ total over the current window contents,
// or 0 when no results have been recorded yet.
func (w *ResultWindow) FailureRate() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := w.next
	if w.filled {
		n = w.size
	}
	if n == 0 {
		return 0
	}
	failures := 0
	for i := 0; i < n; i++ {
		if !w.results[i] {
			failures++
		}
	}
	return float64(failures) / float64(n)
}

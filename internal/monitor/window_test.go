package monitor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptyWindow(t *testing.T) {
	w := NewResultWindow(10)
	assert.Zero(t, w.Len())
	assert.Zero(t, w.FailureRate())
}

func TestFailureRate(t *testing.T) {
	w := NewResultWindow(10)
	w.Record(true)
	w.Record(true)
	w.Record(false)
	w.Record(false)

	assert.Equal(t, 4, w.Len())
	assert.InDelta(t, 0.5, w.FailureRate(), 1e-9)
}

func TestWindowEvictsOldest(t *testing.T) {
	w := NewResultWindow(4)
	// Fill the window with failures, then push them out with successes.
	for i := 0; i < 4; i++ {
		w.Record(false)
	}
	assert.InDelta(t, 1.0, w.FailureRate(), 1e-9)

	for i := 0; i < 4; i++ {
		w.Record(true)
	}
	assert.Equal(t, 4, w.Len())
	assert.Zero(t, w.FailureRate())
}

func TestWindowPartialWrap(t *testing.T) {
	w := NewResultWindow(3)
	w.Record(true)
	w.Record(true)
	w.Record(true)
	w.Record(false) // evicts the first success

	assert.Equal(t, 3, w.Len())
	assert.InDelta(t, 1.0/3.0, w.FailureRate(), 1e-9)
}

func TestWindowDefaultSize(t *testing.T) {
	w := NewResultWindow(0)
	for i := 0; i < DefaultWindowSize+25; i++ {
		w.Record(false)
	}
	assert.Equal(t, DefaultWindowSize, w.Len())
}

func TestWindowConcurrentRecords(t *testing.T) {
	w := NewResultWindow(64)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(fail bool) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				w.Record(!fail)
				_ = w.FailureRate()
			}
		}(i%2 == 0)
	}
	wg.Wait()
	assert.Equal(t, 64, w.Len())
}

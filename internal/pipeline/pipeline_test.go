package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmorehouse/researchd/internal/state"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func TestRunSuccess(t *testing.T) {
	var gotReq runRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(state.SessionState{
			SessionID:   gotReq.SessionID,
			Topic:       gotReq.Topic,
			Tasks:       []string{"plan", "research"},
			ReportPaths: map[string]string{"pdf": "/reports/" + gotReq.SessionID + ".pdf"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, setupTestLogger())
	st, err := c.Run(context.Background(), "solar storage", "sess1")
	require.NoError(t, err)

	assert.Equal(t, "solar storage", gotReq.Topic)
	assert.Equal(t, "sess1", gotReq.SessionID)
	assert.Equal(t, "sess1", st.SessionID)
	assert.True(t, st.Terminal())
	assert.Empty(t, st.Error)
}

func TestRunServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "planner crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, setupTestLogger())
	_, err := c.Run(context.Background(), "t", "sess1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "planner crashed")
}

func TestRunUndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, setupTestLogger())
	_, err := c.Run(context.Background(), "t", "sess1")
	assert.Error(t, err)
}

func TestRunUnreachableService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, time.Second, setupTestLogger())
	_, err := c.Run(context.Background(), "t", "sess1")
	assert.Error(t, err)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Minute, setupTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	_, err := c.Run(ctx, "t", "sess1")
	assert.Error(t, err)
}

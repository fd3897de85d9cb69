package state

import "errors"

// Common store errors used by all Store implementations.
var (
	// ErrNotFound is returned when no state record exists for a session.
	ErrNotFound = errors.New("session state not found")

	// ErrInvalidState is returned when a record fails validation before
	// being stored (e.g., a missing session id).
	ErrInvalidState = errors.New("invalid session state")
)

// SessionState is the full, durable record of one research session.
// A record is written exactly once per session under normal flow, as a
// whole; there are no partial updates. The JSON field names match the
// wire format shared with the research pipeline.
type SessionState struct {
	// SessionID identifies the session this record belongs to.
	SessionID string `json:"_session_id"`

	// Topic is the research topic the session was enqueued with.
	Topic string `json:"topic"`

	// Tasks is the ordered plan the pipeline executed.
	Tasks []string `json:"tasks,omitempty"`

	// ResearchResults and CodeResults hold per-task pipeline output.
	// They can be large, which is why the sharded layout stores them
	// under separate keys.
	ResearchResults map[string]any `json:"research_results,omitempty"`
	CodeResults     map[string]any `json:"code_results,omitempty"`

	// ReportPaths maps rendered artifact kind (pdf, pptx, md) to its
	// location. Non-empty on success.
	ReportPaths map[string]string `json:"report_paths,omitempty"`

	// AudioPath is the synthesized narration, when one was produced.
	AudioPath string `json:"audio_path,omitempty"`

	// Error holds a human-readable failure message. A non-empty Error
	// marks the record as a failed terminal state.
	Error string `json:"error,omitempty"`
}

// Terminal reports whether this record represents a finished session,
// either succeeded (report or audio produced) or failed (error set).
// Once a terminal record is stored the session must not be reprocessed.
func (s *SessionState) Terminal() bool {
	if s == nil {
		return false
	}
	return s.Error != "" || len(s.ReportPaths) > 0 || s.AudioPath != ""
}

// Failed reports whether this record is a failed terminal state.
func (s *SessionState) Failed() bool {
	return s != nil && s.Error != ""
}

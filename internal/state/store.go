package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a session record lives without being read.
// Reads refresh the TTL, so actively queried sessions stay warm.
const DefaultTTL = 24 * time.Hour

// Store is the persistence contract for session state. Implementations
// must be safe for concurrent use; the backing store provides the
// atomicity of individual reads and writes.
type Store interface {
	// SetState writes the full record, replacing any prior value.
	SetState(ctx context.Context, st *SessionState) error

	// GetState returns the record for a session, or ErrNotFound.
	GetState(ctx context.Context, sessionID string) (*SessionState, error)

	// HasCompleted reports whether a terminal record exists for the
	// session. It is called on every dequeued task, so implementations
	// avoid deserializing the large result payloads.
	HasCompleted(ctx context.Context, sessionID string) (bool, error)

	// DeleteState removes the record, including any shard index entry.
	// Deleting a missing record is not an error.
	DeleteState(ctx context.Context, sessionID string) error
}

// ShardLister is implemented by stores that maintain a shard-scoped
// index, allowing shard-local enumeration without scanning the whole
// key space.
type ShardLister interface {
	// ShardFor returns the shard a session's record is indexed under.
	// The mapping is a stable function of the session id and carries
	// no behavioral meaning beyond storage placement.
	ShardFor(sessionID string) int

	// ListShard returns the session ids indexed under one shard.
	ListShard(ctx context.Context, shard int) ([]string, error)
}

// Options configures how session records are laid out in Redis.
// The layout is resolved once here rather than threaded through every
// call site.
type Options struct {
	// Sharded selects the split-key layout that stores research and
	// code results under separate keys and maintains a shard index.
	Sharded bool

	// ShardCount is the number of index shards when Sharded is set.
	// Zero or negative falls back to 1.
	ShardCount int

	// TTL overrides DefaultTTL when positive.
	TTL time.Duration
}

// NewStore builds a Store over the given Redis client using the layout
// selected in opts.
func NewStore(client redis.UniversalClient, opts Options) Store {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if opts.Sharded {
		shards := opts.ShardCount
		if shards <= 0 {
			shards = 1
		}
		return &shardedStore{client: client, ttl: ttl, shards: shards}
	}
	return &plainStore{client: client, ttl: ttl}
}

// terminalProbe decodes only the fields needed to decide whether a
// record is terminal, skipping the result payloads.
type terminalProbe struct {
	ReportPaths map[string]json.RawMessage `json:"report_paths"`
	AudioPath   string                     `json:"audio_path"`
	Error       string                     `json:"error"`
}

func (p terminalProbe) terminal() bool {
	return p.Error != "" || len(p.ReportPaths) > 0 || p.AudioPath != ""
}

func stateKey(sessionID string) string { return "state:" + sessionID }

// plainStore keeps each session as one JSON blob under state:<id>.
type plainStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func (s *plainStore) SetState(ctx context.Context, st *SessionState) error {
	if st == nil || st.SessionID == "" {
		return fmt.Errorf("%w: missing session id", ErrInvalidState)
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode state for session %s: %w", st.SessionID, err)
	}
	if err := s.client.Set(ctx, stateKey(st.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write state for session %s: %w", st.SessionID, err)
	}
	return nil
}

func (s *plainStore) GetState(ctx context.Context, sessionID string) (*SessionState, error) {
	data, err := s.client.Get(ctx, stateKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state for session %s: %w", sessionID, err)
	}
	var st SessionState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode state for session %s: %w", sessionID, err)
	}
	// Refresh the TTL so recently read sessions stay cached.
	s.client.Expire(ctx, stateKey(sessionID), s.ttl)
	return &st, nil
}

func (s *plainStore) HasCompleted(ctx context.Context, sessionID string) (bool, error) {
	data, err := s.client.Get(ctx, stateKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check completion for session %s: %w", sessionID, err)
	}
	var probe terminalProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return false, fmt.Errorf("failed to decode state for session %s: %w", sessionID, err)
	}
	return probe.terminal(), nil
}

func (s *plainStore) DeleteState(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, stateKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete state for session %s: %w", sessionID, err)
	}
	return nil
}

// shardedBase is the slice of a record stored under the base key in the
// sharded layout. It carries everything except the large result maps,
// so completion checks and small reads touch a single small value.
type shardedBase struct {
	SessionID   string            `json:"_session_id"`
	Topic       string            `json:"topic"`
	Tasks       []string          `json:"tasks,omitempty"`
	ReportPaths map[string]string `json:"report_paths,omitempty"`
	AudioPath   string            `json:"audio_path,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// shardedStore splits each session across state:<id>:base,
// state:<id>:research and state:<id>:code, and indexes the id under
// state:index:<shard> for shard-local enumeration.
type shardedStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	shards int
}

func baseKey(sessionID string) string     { return "state:" + sessionID + ":base" }
func researchKey(sessionID string) string { return "state:" + sessionID + ":research" }
func codeKey(sessionID string) string     { return "state:" + sessionID + ":code" }

func (s *shardedStore) indexKey(shard int) string {
	return "state:index:" + strconv.Itoa(shard)
}

func (s *shardedStore) ShardFor(sessionID string) int {
	return int(xxhash.Sum64String(sessionID) % uint64(s.shards))
}

func (s *shardedStore) SetState(ctx context.Context, st *SessionState) error {
	if st == nil || st.SessionID == "" {
		return fmt.Errorf("%w: missing session id", ErrInvalidState)
	}
	base := shardedBase{
		SessionID:   st.SessionID,
		Topic:       st.Topic,
		Tasks:       st.Tasks,
		ReportPaths: st.ReportPaths,
		AudioPath:   st.AudioPath,
		Error:       st.Error,
	}
	baseData, err := json.Marshal(base)
	if err != nil {
		return fmt.Errorf("failed to encode state for session %s: %w", st.SessionID, err)
	}
	research := st.ResearchResults
	if research == nil {
		research = map[string]any{}
	}
	code := st.CodeResults
	if code == nil {
		code = map[string]any{}
	}
	researchData, err := json.Marshal(research)
	if err != nil {
		return fmt.Errorf("failed to encode research results for session %s: %w", st.SessionID, err)
	}
	codeData, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("failed to encode code results for session %s: %w", st.SessionID, err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, baseKey(st.SessionID), baseData, s.ttl)
	pipe.Set(ctx, researchKey(st.SessionID), researchData, s.ttl)
	pipe.Set(ctx, codeKey(st.SessionID), codeData, s.ttl)
	pipe.SAdd(ctx, s.indexKey(s.ShardFor(st.SessionID)), st.SessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write state for session %s: %w", st.SessionID, err)
	}
	return nil
}

func (s *shardedStore) GetState(ctx context.Context, sessionID string) (*SessionState, error) {
	baseData, err := s.client.Get(ctx, baseKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state for session %s: %w", sessionID, err)
	}
	var base shardedBase
	if err := json.Unmarshal(baseData, &base); err != nil {
		return nil, fmt.Errorf("failed to decode state for session %s: %w", sessionID, err)
	}

	st := &SessionState{
		SessionID:       base.SessionID,
		Topic:           base.Topic,
		Tasks:           base.Tasks,
		ReportPaths:     base.ReportPaths,
		AudioPath:       base.AudioPath,
		Error:           base.Error,
		ResearchResults: map[string]any{},
		CodeResults:     map[string]any{},
	}
	if st.SessionID == "" {
		st.SessionID = sessionID
	}

	researchData, err := s.client.Get(ctx, researchKey(sessionID)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read research results for session %s: %w", sessionID, err)
	}
	if len(researchData) > 0 {
		if err := json.Unmarshal(researchData, &st.ResearchResults); err != nil {
			return nil, fmt.Errorf("failed to decode research results for session %s: %w", sessionID, err)
		}
	}
	codeData, err := s.client.Get(ctx, codeKey(sessionID)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read code results for session %s: %w", sessionID, err)
	}
	if len(codeData) > 0 {
		if err := json.Unmarshal(codeData, &st.CodeResults); err != nil {
			return nil, fmt.Errorf("failed to decode code results for session %s: %w", sessionID, err)
		}
	}

	// Refresh TTLs on whatever keys exist.
	pipe := s.client.Pipeline()
	pipe.Expire(ctx, baseKey(sessionID), s.ttl)
	pipe.Expire(ctx, researchKey(sessionID), s.ttl)
	pipe.Expire(ctx, codeKey(sessionID), s.ttl)
	_, _ = pipe.Exec(ctx)

	return st, nil
}

func (s *shardedStore) HasCompleted(ctx context.Context, sessionID string) (bool, error) {
	baseData, err := s.client.Get(ctx, baseKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check completion for session %s: %w", sessionID, err)
	}
	var probe terminalProbe
	if err := json.Unmarshal(baseData, &probe); err != nil {
		return false, fmt.Errorf("failed to decode state for session %s: %w", sessionID, err)
	}
	return probe.terminal(), nil
}

func (s *shardedStore) DeleteState(ctx context.Context, sessionID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, baseKey(sessionID), researchKey(sessionID), codeKey(sessionID))
	pipe.SRem(ctx, s.indexKey(s.ShardFor(sessionID)), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete state for session %s: %w", sessionID, err)
	}
	return nil
}

func (s *shardedStore) ListShard(ctx context.Context, shard int) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey(shard)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list shard %d: %w", shard, err)
	}
	return ids, nil
}

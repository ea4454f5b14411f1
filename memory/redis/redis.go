// Package redis wires memory.Store to a Redis client for multi-process
// deployments. Session state is stored as a single JSON blob per session;
// the event log is stored as a Redis list of JSON-encoded entries.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"goa.design/agentkernel/apitypes"
	"goa.design/agentkernel/memory"
)

const (
	defaultKeyPrefix = "agentkernel:session:"
	defaultTimeout   = 5 * time.Second
)

// Options configures the Redis-backed Store.
type Options struct {
	Client    *redis.Client
	KeyPrefix string
	Timeout   time.Duration
}

// Store implements memory.Store on top of a Redis client.
type Store struct {
	client    *redis.Client
	keyPrefix string
	timeout   time.Duration
}

// New returns a Redis-backed Store. Options.Client is required.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Store{client: opts.Client, keyPrefix: prefix, timeout: timeout}, nil
}

// LoadState reads and decodes the session's state blob.
func (s *Store) LoadState(ctx context.Context, sessionID string) (apitypes.SessionState, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := s.client.Get(ctx, s.stateKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return apitypes.SessionState{}, false, nil
	}
	if err != nil {
		return apitypes.SessionState{}, false, err
	}
	var state apitypes.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return apitypes.SessionState{}, false, err
	}
	return state, true, nil
}

// SaveState encodes and writes the session's state blob with no expiry.
func (s *Store) SaveState(ctx context.Context, sessionID string, state apitypes.SessionState) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.stateKey(sessionID), raw, 0).Err()
}

// AppendSessionEvent RPUSHes the JSON-encoded event onto the session's
// event log list.
func (s *Store) AppendSessionEvent(ctx context.Context, sessionID string, event memory.SessionEvent) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, s.eventsKey(sessionID), raw).Err()
}

// Events returns the session's full event log in append order, primarily
// for diagnostics since the Coordinator itself never reads it back.
func (s *Store) Events(ctx context.Context, sessionID string) ([]memory.SessionEvent, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raws, err := s.client.LRange(ctx, s.eventsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]memory.SessionEvent, 0, len(raws))
	for _, raw := range raws {
		var event memory.SessionEvent
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func (s *Store) stateKey(sessionID string) string  { return s.keyPrefix + sessionID + ":state" }
func (s *Store) eventsKey(sessionID string) string { return s.keyPrefix + sessionID + ":events" }

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.timeout)
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/leadline-ai/leadline-voice-service/pkg/redis"
)

// SessionTTL is a safety net only; the normal deletion path is the
// finalizer after a terminal webhook event.
const SessionTTL = 2 * time.Hour

// Store is the durable session store contract. Absent sessions are
// reported as (nil, nil), not as an error.
type Store interface {
	Get(ctx context.Context, callSid string) (*Session, error)
	Upsert(ctx context.Context, s *Session) error
	Delete(ctx context.Context, callSid string) error
}

// RedisStore keeps sessions in Redis keyed by call SID.
type RedisStore struct {
	redisSvc redis.RedisServiceInterface
}

func NewRedisStore(redisSvc redis.RedisServiceInterface) *RedisStore {
	return &RedisStore{redisSvc: redisSvc}
}

func (r *RedisStore) key(callSid string) string {
	return r.redisSvc.GenerateKey(redis.CALL_SESSION, callSid)
}

// Get loads a session, nil if none exists for the call.
func (r *RedisStore) Get(ctx context.Context, callSid string) (*Session, error) {
	val, err := r.redisSvc.GetValue(ctx, r.key(callSid))
	if err != nil {
		if errors.Is(err, redis.ErrKeyNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session %s: %w", callSid, err)
	}

	var s Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", callSid, err)
	}
	return &s, nil
}

// Upsert writes the whole session. Last write wins: the conversation
// engine guarantees a single in-flight turn per call.
func (r *RedisStore) Upsert(ctx context.Context, s *Session) error {
	if s == nil || s.CallSid == "" {
		return fmt.Errorf("session must have a call sid")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", s.CallSid, err)
	}
	if err := r.redisSvc.SetValue(ctx, r.key(s.CallSid), string(data), SessionTTL); err != nil {
		return fmt.Errorf("failed to store session %s: %w", s.CallSid, err)
	}
	return nil
}

// Delete removes the session; deleting an absent session is not an error.
func (r *RedisStore) Delete(ctx context.Context, callSid string) error {
	if err := r.redisSvc.DelValue(ctx, r.key(callSid)); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", callSid, err)
	}
	return nil
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stateActive  = "active"
	stateRevoked = "revoked"
)

// consumeScript flips a session from active to revoked while preserving its
// TTL and removes the JTI from the user's session set. It returns 1 only
// for the caller that performed the flip, so of any number of concurrent
// consumers exactly one wins.
var consumeScript = redis.NewScript(`
local state = redis.call("GET", KEYS[1])
if state == "active" then
  local ttl = redis.call("PTTL", KEYS[1])
  if ttl > 0 then
    redis.call("SET", KEYS[1], "revoked", "PX", ttl)
  else
    redis.call("SET", KEYS[1], "revoked")
  end
  redis.call("SREM", KEYS[2], ARGV[1])
  return 1
end
return 0
`)

// SessionStore tracks the server-side state of issued token sessions. Each
// session key lives exactly as long as the token it mirrors, so a JWT that
// outlives its cache entry is already expired.
type SessionStore struct {
	rdb *redis.Client
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

func sessionKey(jti string) string { return "session:" + jti }
func userKey(userID string) string { return "sessions:user:" + userID }

// Register records a newly issued session as active for ttl and indexes it
// under the owning user so RevokeAll can find it.
func (s *SessionStore) Register(ctx context.Context, jti, userID string, ttl time.Duration) error {
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, sessionKey(jti), stateActive, ttl)
	pipe.SAdd(ctx, userKey(userID), jti)
	// keep the index alive at least as long as its longest-lived member
	pipe.ExpireNX(ctx, userKey(userID), ttl)
	pipe.ExpireGT(ctx, userKey(userID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to register session: %w", err)
	}
	return nil
}

// IsActive reports whether the session exists and has not been revoked.
func (s *SessionStore) IsActive(ctx context.Context, jti string) (bool, error) {
	state, err := s.rdb.Get(ctx, sessionKey(jti)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read session: %w", err)
	}
	return state == stateActive, nil
}

// Consume atomically revokes an active session and reports whether this
// caller did the revoking. A false result means the session was already
// revoked, expired, or never existed.
func (s *SessionStore) Consume(ctx context.Context, jti, userID string) (bool, error) {
	won, err := consumeScript.Run(ctx, s.rdb, []string{sessionKey(jti), userKey(userID)}, jti).Int()
	if err != nil {
		return false, fmt.Errorf("failed to consume session: %w", err)
	}
	return won == 1, nil
}

// Revoke marks a session revoked. Revoking an unknown or already revoked
// session is a no-op.
func (s *SessionStore) Revoke(ctx context.Context, jti, userID string) error {
	if _, err := s.Consume(ctx, jti, userID); err != nil {
		return err
	}
	return nil
}

// RevokeAll revokes every live session of the user and drops the index.
func (s *SessionStore) RevokeAll(ctx context.Context, userID string) error {
	jtis, err := s.rdb.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}
	for _, jti := range jtis {
		if _, err := s.Consume(ctx, jti, userID); err != nil {
			return err
		}
	}
	if err := s.rdb.Del(ctx, userKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to drop user session index: %w", err)
	}
	return nil
}

package streamproxy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisMirror publishes SessionTracker's active sessions into a shared
// redis hash, so every instance's sessions are visible in one place. The
// mirror is write-only: SessionTracker.List and Count read only the local
// instance's sessions. Mirroring is best-effort: a redis error never fails
// the stream request it's attached to.
type RedisMirror struct {
	client *redis.Client
	key    string
}

// NewRedisMirror dials addr lazily (redis.NewClient does not connect
// eagerly) and mirrors sessions under a single hash named keyPrefix.
func NewRedisMirror(addr, keyPrefix string) *RedisMirror {
	if keyPrefix == "" {
		keyPrefix = "m3uproxy:sessions"
	}
	return &RedisMirror{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    keyPrefix,
	}
}

// Publish upserts sess's current snapshot into the shared hash, keyed by
// session ID.
func (m *RedisMirror) Publish(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := m.client.HSet(ctx, m.key, sess.ID, data).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// Remove drops a session from the shared hash, e.g. on Unregister/Terminate
// or an idle sweep.
func (m *RedisMirror) Remove(ctx context.Context, id string) error {
	if err := m.client.HDel(ctx, m.key, id).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}

// Close releases the underlying redis connection pool.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}

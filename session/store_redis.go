package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 3 * time.Second

// RedisStore is a Redis-backed TTL session store. Expiry is enforced twice:
// by the key's Redis TTL and by the ExpiresAt check on read, the latter
// being authoritative. Intended for multi-instance deployments where
// consecutive deliveries for one conversation may hit different servers.
// Updates are transition-validated like RepoStore's.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a session store on the given Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "fieldcheck:session:"}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}

func (r *RedisStore) Get(id string) (Session, bool) {
	ctx, cancel := opCtx()
	defer cancel()
	raw, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		// Missing key and transport errors look the same to the caller: no
		// live session. The channel surfaces "session expired, please retry".
		return Session{}, false
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		r.Delete(id)
		return Session{}, false
	}
	if s.Expired(time.Now().UTC()) {
		r.Delete(id)
		return Session{}, false
	}
	return s, true
}

func (r *RedisStore) Save(id string, s Session, ttl time.Duration) {
	now := time.Now().UTC()
	s.ID = id
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.LastActivity = now
	s.ExpiresAt = now.Add(ttl)
	data, err := json.Marshal(s)
	if err != nil {
		slog.Warn("redis session store: marshal failed", "session_id", id, "error", err)
		return
	}
	ctx, cancel := opCtx()
	defer cancel()
	if err := r.client.Set(ctx, r.key(id), data, ttl).Err(); err != nil {
		slog.Warn("redis session store: save failed", "session_id", id, "error", err)
	}
}

func (r *RedisStore) Update(id string, s Session) error {
	existing, ok := r.Get(id)
	if !ok {
		return ErrNotFound
	}
	if !CanTransition(existing.State, s.State) {
		return ErrInvalidTransition
	}
	s.ID = id
	s.CreatedAt = existing.CreatedAt
	s.LastActivity = time.Now().UTC()
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ctx, cancel := opCtx()
	defer cancel()
	return r.client.Set(ctx, r.key(id), data, redis.KeepTTL).Err()
}

func (r *RedisStore) Delete(id string) {
	ctx, cancel := opCtx()
	defer cancel()
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		slog.Warn("redis session store: delete failed", "session_id", id, "error", err)
	}
}

func (r *RedisStore) Exists(id string) bool {
	_, ok := r.Get(id)
	return ok
}

package store

// Redis-backed Nonce Record / Failure Ledger for horizontally scaled
// deployments where the memory backend's per-process map cannot be
// shared across instances. Uses github.com/redis/go-redis/v9.

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisNonceKeyPrefix   = "elp:nonce:"
	redisFailureKeyPrefix = "elp:failure:"
)

// RedisNonceStore keys each nonce with a TTL equal to the caller's
// retention horizon, so eviction is handled by Redis itself; Evict is a
// no-op kept only to satisfy the NonceStore interface.
type RedisNonceStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisNonceStore(rdb *redis.Client, ttl time.Duration) *RedisNonceStore {
	return &RedisNonceStore{rdb: rdb, ttl: ttl}
}

// CheckAndStore uses SETNX, which is atomic in Redis and gives exactly
// the test-and-insert semantics the Replay Guard requires without a
// separate read.
func (s *RedisNonceStore) CheckAndStore(ctx context.Context, nonce string, firstSeenMs int64) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, redisNonceKeyPrefix+nonce, firstSeenMs, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("store: redis nonce setnx: %w", err)
	}
	return ok, nil
}

// Evict is unnecessary: keys expire on their own TTL. Kept to satisfy
// NonceStore.
func (s *RedisNonceStore) Evict(ctx context.Context, olderThanMs int64) error {
	return nil
}

// failureScript increments the counter and resets it to 1 when the
// window has elapsed, all inside Redis so concurrent failures from the
// same fingerprint (across any number of server processes) serialize on
// the single key instead of racing on a read-then-write round trip.
var failureScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local ttlSeconds = tonumber(ARGV[3])

local windowStart = redis.call("HGET", key, "window_start_ms")
local count

if windowStart == false or (now - tonumber(windowStart)) > window then
	count = 1
	redis.call("HSET", key, "count", 1, "window_start_ms", now)
else
	count = redis.call("HINCRBY", key, "count", 1)
end

redis.call("EXPIRE", key, ttlSeconds)
return count
`)

type RedisFailureStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisFailureStore(rdb *redis.Client, ttl time.Duration) *RedisFailureStore {
	return &RedisFailureStore{rdb: rdb, ttl: ttl}
}

func (s *RedisFailureStore) RecordFailure(ctx context.Context, fingerprint string, nowMs, windowMs int64) (int, error) {
	key := redisFailureKeyPrefix + fingerprint
	res, err := failureScript.Run(ctx, s.rdb, []string{key}, nowMs, windowMs, int64(s.ttl.Seconds())).Result()
	if err != nil {
		return 0, fmt.Errorf("store: redis failure script: %w", err)
	}
	count, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("store: redis failure script returned unexpected type %T", res)
	}
	return int(count), nil
}

package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultDialTimeout = 5 * time.Second

// incrAndExpireScript atomically increments key and, only when the
// increment created the key (new value == 1), sets its TTL. A pipelined
// INCR+EXPIRE would leave a window where a crash between the two commands
// produces a counter with no TTL; the Lua script closes that window.
var incrAndExpireScript = goredis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RedisStore is the production kv.Store backed by a single-node Redis
// instance, in the shape of the pack's own topology-agnostic client
// (frameworks/pkg/redis).
type RedisStore struct {
	client *goredis.Client
}

// NewRedisStore dials addr/db and verifies connectivity with a Ping.
func NewRedisStore(ctx context.Context, addr string, db int) (*RedisStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultDialTimeout,
		WriteTimeout: defaultDialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("kv: ping redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) SetEX(ctx context.Context, key string, ttl time.Duration, value []byte) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return val, true, nil
}

func (s *RedisStore) IncrAndExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	res, err := incrAndExpireScript.Run(ctx, s.client, []string{key}, ttl.Milliseconds()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	n, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected script result type %T", ErrUnavailable, res)
	}
	return n, nil
}

package otp

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "otp:v1:"

// incrAttempts counts a wrong submission only while the code still exists, so
// a code consumed concurrently is not recreated as a partial hash.
var incrAttempts = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

// RedisStore keeps passcodes in Redis hashes so attempt counting is atomic.
type RedisStore struct {
	cache *redis.Client
}

// NewRedisStore builds a Redis-backed passcode store.
func NewRedisStore(cache *redis.Client) *RedisStore {
	return &RedisStore{cache: cache}
}

func (s *RedisStore) Save(ctx context.Context, phone string, rec Record, retain time.Duration) error {
	key := redisKeyPrefix + phone
	_, err := s.cache.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key,
			"hash", string(rec.Hash),
			"expires_at", strconv.FormatInt(rec.ExpiresAt.UnixMilli(), 10),
			"attempts", rec.Attempts,
		)
		p.Expire(ctx, key, retain)
		return nil
	})
	return err
}

func (s *RedisStore) Load(ctx context.Context, phone string) (Record, error) {
	vals, err := s.cache.HGetAll(ctx, redisKeyPrefix+phone).Result()
	if err != nil {
		return Record{}, err
	}
	if len(vals) == 0 {
		return Record{}, ErrNoCode
	}
	expMs, err := strconv.ParseInt(vals["expires_at"], 10, 64)
	if err != nil {
		return Record{}, err
	}
	attempts, err := strconv.Atoi(vals["attempts"])
	if err != nil {
		return Record{}, err
	}
	return Record{
		Hash:      []byte(vals["hash"]),
		ExpiresAt: time.UnixMilli(expMs).UTC(),
		Attempts:  attempts,
	}, nil
}

func (s *RedisStore) IncrAttempts(ctx context.Context, phone string) (int, error) {
	n, err := incrAttempts.Run(ctx, s.cache, []string{redisKeyPrefix + phone}).Int()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ErrNoCode
	}
	return n, nil
}

func (s *RedisStore) Consume(ctx context.Context, phone string) (bool, error) {
	n, err := s.cache.Del(ctx, redisKeyPrefix+phone).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

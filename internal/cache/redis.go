package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// setIfNotOlder writes the hash only when the stored version is not newer.
// KEYS[1] profile key, ARGV[1] version, ARGV[2] json, ARGV[3] ttl in ms.
var setIfNotOlder = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'v')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// RedisProfileCache stores each user as a hash under profile:<email> with
// the row version in field v and the JSON body in field data. The session
// token is not serialized.
type RedisProfileCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisProfileCache(rdb *redis.Client, ttl time.Duration) *RedisProfileCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisProfileCache{rdb: rdb, ttl: ttl}
}

func (r *RedisProfileCache) Get(ctx context.Context, email string) (user.User, bool, error) {
	raw, err := r.rdb.HGet(ctx, profileKey(email), "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return user.User{}, false, nil
	}
	if err != nil {
		return user.User{}, false, fmt.Errorf("redis get: %w", err)
	}

	var u user.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return user.User{}, false, fmt.Errorf("decode cached profile: %w", err)
	}
	return u, true, nil
}

func (r *RedisProfileCache) Set(ctx context.Context, u user.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	keys := []string{profileKey(u.Email)}
	err = setIfNotOlder.Run(ctx, r.rdb, keys, u.Version, raw, r.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisProfileCache) Delete(ctx context.Context, email string) error {
	if err := r.rdb.Del(ctx, profileKey(email)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *RedisProfileCache) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

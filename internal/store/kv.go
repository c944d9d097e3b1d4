package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	rediscommon "standup-formstack/common/redis"

	"github.com/go-redis/redis/v8"
)

// ErrMiss 键不存在（或已过期）
var ErrMiss = errors.New("cache miss")

// KV 房间配置使用的键值存储抽象
// 实现：RedisKV（默认）、PostgresKV；测试中可替换为内存实现
// 键由调用方拼出完整名字，不提供通配查询
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	// Set ttl 为 0 表示永不过期
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Remove(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// RedisKV go-redis 实现
type RedisKV struct {
	c *redis.Client
}

func NewRedisKV(c *redis.Client) *RedisKV { return &RedisKV{c: c} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", ErrMiss
	case err != nil:
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := r.c.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Remove 一次 DEL 删除所有键，不存在的键忽略
func (r *RedisKV) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.c.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del %d keys: %w", len(keys), err)
	}
	return nil
}

func (r *RedisKV) Ping(ctx context.Context) error {
	return rediscommon.Ping(ctx, r.c)
}

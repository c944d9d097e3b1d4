package redis

import (
	"context"
	"fmt"

	"standup-formstack/common/config"

	"github.com/go-redis/redis/v8"
)

// Client 对外暴露的客户端类型，调用方无需直接引入 go-redis
type Client = redis.Client

// NewRedisClient 按配置创建客户端（惰性连接，不做 Ping）
func NewRedisClient(cfg *config.RedisConfig) *Client {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	return redis.NewClient(opts)
}

// Ping 检查连接，错误里带上地址方便排查
func Ping(ctx context.Context, client *Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", client.Options().Addr, err)
	}
	return nil
}

// Close 关闭连接，nil 客户端直接返回
func Close(client *Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}

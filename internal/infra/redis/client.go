package redis

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/migueljbento/percenseo/internal/config"
)

// Client holds the connection used for survey run leases.
type Client struct {
	inner *redis.Client
}

func options(cfg config.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		ClientName:   "percenseo",
	}
	// a survey run holds at most a couple of connections
	if opts.PoolSize <= 0 {
		opts.PoolSize = 2
	}
	if opts.MinIdleConns > opts.PoolSize {
		opts.MinIdleConns = opts.PoolSize
	}
	return opts
}

// NewClient connects to cfg.Address and fails unless the server answers PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis: no address configured")
	}
	client := redis.NewClient(options(cfg))
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Address, err)
	}
	return &Client{inner: client}, nil
}

func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}

// Inner exposes the go-redis client for scripts and commands.
func (c *Client) Inner() *redis.Client {
	return c.inner
}

package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Network  string `json:"network" yaml:"network"` // "tcp" or "unix" for socket path
}

type Client struct {
	client *redis.Client
}

var ctx = context.Background()

func New(cfg Config) (*Client, error) {
	// Use a Unix socket for local Redis when the addr looks like a path.
	network := "tcp"
	if cfg.Network != "" {
		network = cfg.Network
	}
	if len(cfg.Addr) > 0 && cfg.Addr[0] == '/' {
		network = "unix"
	}

	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Network:  network,
		// Connection pool sized for bursty gateway traffic
		PoolSize:     100,
		MinIdleConns: 20,
		MaxRetries:   3,
		PoolTimeout:  4 * time.Second,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	rdb := redis.NewClient(opts)

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if network == "unix" {
		log.Println("✓ Redis connected via Unix socket")
	} else {
		log.Println("✓ Redis connected via TCP")
	}

	return &Client{client: rdb}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping() error {
	return c.client.Ping(ctx).Err()
}

// Basic operations

func (c *Client) Set(key string, value interface{}, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

func (c *Client) Get(key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

func (c *Client) Del(key string) error {
	return c.client.Del(ctx, key).Err()
}

// Publish pushes a payload onto a pub/sub channel. Best-effort fan-out for
// dashboard subscribers.
func (c *Client) Publish(channel string, payload []byte) error {
	return c.client.Publish(ctx, channel, payload).Err()
}

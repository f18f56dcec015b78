package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aixgo-dev/fanin/pkg/future"
)

// Redis is a remote Service that round-trips each message through the
// Redis ECHO command.
type Redis struct {
	id     string
	client *redis.Client
	exec   future.Executor
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string
	// Password is the Redis password (optional).
	Password string
	// DB is the Redis database number.
	DB int
	// PoolSize is the connection pool size (default: 10).
	PoolSize int
}

// NewRedis connects to Redis and returns a Service backed by it.
func NewRedis(id string, cfg RedisConfig, exec future.Executor) (*Redis, error) {
	client, err := NewRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewRedisFromClient(id, client, exec), nil
}

// NewRedisClient creates a client and verifies connectivity. Several Redis
// services may share one client.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		// Close client to release connection pool resources
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// NewRedisFromClient wraps an existing client. Useful with miniredis.
func NewRedisFromClient(id string, client *redis.Client, exec future.Executor) *Redis {
	return &Redis{id: id, client: client, exec: exec}
}

// WithID returns a Service with a different identifier sharing r's client.
func (r *Redis) WithID(id string) *Redis {
	return &Redis{id: id, client: r.client, exec: r.exec}
}

// ID returns the service identifier
func (r *Redis) ID() string {
	return r.id
}

// RetrieveAsync sends ECHO message and resolves with the reply.
func (r *Redis) RetrieveAsync(ctx context.Context, message string) *future.Future[string] {
	return future.Go(r.exec, func() (string, error) {
		reply, err := r.client.Echo(ctx, message).Result()
		if err != nil {
			return "", fmt.Errorf("redis echo: %w", err)
		}
		return reply, nil
	})
}

// Ping checks connectivity. It is suitable as a health check function.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client's connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

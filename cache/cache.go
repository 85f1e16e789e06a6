// Package cache is a small Redis-backed key/value store with pub/sub.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Redis struct {
	client redis.UniversalClient
}

// NewRedis connects to a redis:// or rediss:// URL. No I/O happens until the first command.
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid redis URL: %w", err)
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(c redis.UniversalClient) *Redis {
	return &Redis{client: c}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Set stores value under key. A zero ttl keeps the key forever.
func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Get returns the value of key. ok is false when the key does not exist.
func (r *Redis) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	return result(r.client.Get(ctx, key))
}

// Forget deletes key and returns the value it held.
func (r *Redis) Forget(ctx context.Context, key string) (value string, ok bool, err error) {
	return result(r.client.GetDel(ctx, key))
}

func result(cmd *redis.StringCmd) (string, bool, error) {
	v, err := cmd.Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Publish sends message on topic and reports how many subscribers received it.
func (r *Redis) Publish(ctx context.Context, topic string, message any) (int64, error) {
	return r.client.Publish(ctx, topic, message).Result()
}

// Subscribe delivers messages on topic to fn until fn returns false or ctx ends. It returns
// the payload that stopped the loop.
func (r *Redis) Subscribe(ctx context.Context, topic string, fn func(payload string) bool) (string, error) {
	sub := r.client.Subscribe(ctx, topic)
	defer sub.Close()

	// Wait for the subscription confirmation so publishes after this call are not missed.
	if _, err := sub.Receive(ctx); err != nil {
		return "", fmt.Errorf("cache: subscribe %s: %w", topic, err)
	}
	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return "", fmt.Errorf("cache: subscription %s closed", topic)
			}
			if !fn(msg.Payload) {
				return msg.Payload, nil
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}

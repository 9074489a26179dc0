// Package cache wraps Redis for the two things the service keeps there:
// short-lived group order snapshots and payment idempotency keys.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	snapshotPrefix = "snapshot:"
	paymentPrefix  = "payment-idem:"

	// PaymentKeyTTL is how long a used idempotency key blocks a retry.
	PaymentKeyTTL = 24 * time.Hour
)

type Client struct {
	rdb         *redis.Client
	snapshotTTL time.Duration
}

// Connect parses redisURL and pings the server.
func Connect(ctx context.Context, redisURL string, snapshotTTL time.Duration) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return New(rdb, snapshotTTL), nil
}

func New(rdb *redis.Client, snapshotTTL time.Duration) *Client {
	return &Client{rdb: rdb, snapshotTTL: snapshotTTL}
}

func (c *Client) Close() error { return c.rdb.Close() }

func snapshotKey(groupOrderID uuid.UUID) string {
	return snapshotPrefix + groupOrderID.String()
}

func paymentKey(groupOrderID uuid.UUID, key string) string {
	return paymentPrefix + groupOrderID.String() + ":" + key
}

// GetSnapshot decodes the cached snapshot into dst. It reports false on a miss.
func (c *Client) GetSnapshot(ctx context.Context, groupOrderID uuid.UUID, dst any) (bool, error) {
	val, err := c.rdb.Get(ctx, snapshotKey(groupOrderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get snapshot: %w", err)
	}
	if err := json.Unmarshal(val, dst); err != nil {
		return false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return true, nil
}

func (c *Client) SetSnapshot(ctx context.Context, groupOrderID uuid.UUID, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return c.rdb.Set(ctx, snapshotKey(groupOrderID), data, c.snapshotTTL).Err()
}

func (c *Client) InvalidateSnapshot(ctx context.Context, groupOrderID uuid.UUID) error {
	return c.rdb.Del(ctx, snapshotKey(groupOrderID)).Err()
}

// ReservePayment claims an idempotency key. It reports false when the key was
// already used within PaymentKeyTTL.
func (c *Client) ReservePayment(ctx context.Context, groupOrderID uuid.UUID, key string) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, paymentKey(groupOrderID, key), time.Now().UTC().Format(time.RFC3339), PaymentKeyTTL).Result()
	if err != nil {
		return false, fmt.Errorf("reserve payment key: %w", err)
	}
	return ok, nil
}

// ReleasePayment frees a key whose payment never reached the gateway.
func (c *Client) ReleasePayment(ctx context.Context, groupOrderID uuid.UUID, key string) error {
	return c.rdb.Del(ctx, paymentKey(groupOrderID, key)).Err()
}

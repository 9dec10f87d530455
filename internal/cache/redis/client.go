package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/manual-hunter/backend/internal/storage/models"
	"github.com/manual-hunter/backend/pkg/logger"
	"github.com/manual-hunter/backend/pkg/utils"
)

// ErrClaimHeld is returned when another resolution already holds the claim
// for the same equipment key.
var ErrClaimHeld = errors.New("resolution claim held by another worker")

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func claimKey(key models.EquipmentKey) string {
	return "claim:" + utils.HashString(key.String())
}

func resultKey(key models.EquipmentKey) string {
	return "result:" + utils.HashString(key.String())
}

// Claim takes the advisory per-key resolution lock. ownerID identifies the
// resolution attempt; ttl bounds how long a crashed worker can block others.
func (c *Client) Claim(ctx context.Context, key models.EquipmentKey, ownerID string, ttl time.Duration) error {
	ok, err := c.client.SetNX(ctx, claimKey(key), ownerID, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to set resolution claim: %w", err)
	}
	if !ok {
		return ErrClaimHeld
	}

	logger.Debug("Resolution claim acquired",
		zap.String("key", key.String()),
		zap.String("owner", ownerID),
	)
	return nil
}

// Release drops the claim if this owner still holds it. A claim stolen by TTL
// expiry is left alone.
func (c *Client) Release(ctx context.Context, key models.EquipmentKey, ownerID string) {
	const script = `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0`

	if err := c.client.Eval(ctx, script, []string{claimKey(key)}, ownerID).Err(); err != nil {
		logger.Warn("Failed to release resolution claim",
			zap.String("key", key.String()),
			zap.Error(err),
		)
	}
}

// PublishResult shares the winner's record so waiting callers for the same
// key can return it without running the tiers again.
func (c *Client) PublishResult(ctx context.Context, key models.EquipmentKey, record *models.CacheRecord, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	err = c.client.Set(ctx, resultKey(key), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}

	return nil
}

// WaitForResult polls for a published result until wait elapses or ctx is
// cancelled. Returns (nil, nil) when no result appeared in time.
func (c *Client) WaitForResult(ctx context.Context, key models.EquipmentKey, wait time.Duration) (*models.CacheRecord, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		data, err := c.client.Get(ctx, resultKey(key)).Bytes()
		if err == nil {
			var record models.CacheRecord
			if err := json.Unmarshal(data, &record); err != nil {
				return nil, fmt.Errorf("failed to unmarshal published result: %w", err)
			}
			logger.Debug("Picked up published result", zap.String("key", key.String()))
			return &record, nil
		}
		if !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("failed to poll published result: %w", err)
		}

		if time.Now().After(deadline) {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

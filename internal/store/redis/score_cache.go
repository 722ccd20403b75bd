package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "revscore"

// kv is the subset of redis.Cmdable used by ScoreCache.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// ScoreCache shares classifier scores across processes. Scores of a saved
// revision never change, so entries only expire to bound memory.
type ScoreCache struct {
	client kv
	closer func() error
	ttl    time.Duration
}

// Dial connects to the Redis server at url and verifies it with PING.
func Dial(ctx context.Context, url string, ttl time.Duration) (*ScoreCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	c := NewScoreCache(client, ttl)
	c.closer = client.Close
	return c, nil
}

func NewScoreCache(client kv, ttl time.Duration) *ScoreCache {
	return &ScoreCache{client: client, ttl: ttl}
}

func (c *ScoreCache) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// Get returns the cached score. A miss is (0, false, nil).
func (c *ScoreCache) Get(ctx context.Context, model string, revID int64) (float64, bool, error) {
	raw, err := c.client.Get(ctx, scoreKey(model, revID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get score %s/%d: %w", model, revID, err)
	}

	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("decode score %s/%d %q: %w", model, revID, raw, err)
	}
	return score, true, nil
}

func (c *ScoreCache) Set(ctx context.Context, model string, revID int64, score float64) error {
	value := strconv.FormatFloat(score, 'g', -1, 64)
	if err := c.client.Set(ctx, scoreKey(model, revID), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("set score %s/%d: %w", model, revID, err)
	}
	return nil
}

func scoreKey(model string, revID int64) string {
	return keyPrefix + ":" + model + ":" + strconv.FormatInt(revID, 10)
}

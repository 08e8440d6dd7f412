package dedup

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// processedKey is a sorted set of deal ids scored by the unix time they
	// were marked.
	processedKey = "pgfnsync:dedup:processed"
)

// Redis is the durable processed set shared by every automation instance
// pointed at the same Redis.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	now    func() time.Time
}

type RedisOption func(*Redis)

// WithTTL drops ids older than ttl on every Mark. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// WithKey overrides the sorted set key.
func WithKey(key string) RedisOption {
	return func(r *Redis) {
		if key != "" {
			r.key = key
		}
	}
}

func WithClock(now func() time.Time) RedisOption {
	return func(r *Redis) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		key:    processedKey,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Redis) Seen(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	// ZMSCORE answers 0 for missing members; marked members always score > 0.
	scores, err := r.client.ZMScore(ctx, r.key, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("read processed set: %w", err)
	}
	for i, id := range ids {
		out[id] = i < len(scores) && scores[i] > 0
	}
	return out, nil
}

func (r *Redis) Mark(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	now := r.now()
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, r.key, redis.Z{Score: float64(now.Unix()), Member: id})
		if r.ttl > 0 {
			cutoff := now.Add(-r.ttl).Unix()
			pipe.ZRemRangeByScore(ctx, r.key, "-inf", "("+strconv.FormatInt(cutoff, 10))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark processed %s: %w", id, err)
	}
	return nil
}

func (r *Redis) Count(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("count processed set: %w", err)
	}
	return int(n), nil
}

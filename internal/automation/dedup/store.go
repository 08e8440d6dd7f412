// Package dedup remembers which CRM deals were already enriched so discovery
// can leave them out of later cycles.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store kinds accepted by New.
const (
	KindMemory = "memory"
	KindRedis  = "redis"
	KindNone   = "none"
)

// Store is the processed set. Implementations must be safe for concurrent use.
type Store interface {
	// Seen reports, for each id, whether it was marked processed.
	Seen(ctx context.Context, ids []string) (map[string]bool, error)
	Mark(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// New builds the store named by kind. client is only used for KindRedis.
func New(kind string, client *redis.Client, ttl time.Duration) (Store, error) {
	switch kind {
	case "", KindMemory:
		return NewMemory(), nil
	case KindRedis:
		if client == nil {
			return nil, errors.New("redis client is required for the redis dedup store")
		}
		return NewRedis(client, WithTTL(ttl)), nil
	case KindNone:
		return None{}, nil
	default:
		return nil, fmt.Errorf("unknown dedup store %q", kind)
	}
}

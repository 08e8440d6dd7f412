//go:build integration

package dedup_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"pgfnsync/internal/automation/dedup"
	"pgfnsync/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestMarkAndSeen() {
	ctx := context.Background()
	store := dedup.NewRedis(s.redis.Client)

	s.Require().NoError(store.Mark(ctx, "101"))
	s.Require().NoError(store.Mark(ctx, "102"))

	seen, err := store.Seen(ctx, []string{"101", "102", "103"})
	s.Require().NoError(err)
	s.True(seen["101"])
	s.True(seen["102"])
	s.False(seen["103"])

	n, err := store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(2, n)
}

// Justification: a second instance on the same Redis must see the first
// instance's marks, which is the reason to pick the redis store.
func (s *RedisStoreSuite) TestSharedAcrossInstances() {
	ctx := context.Background()
	first := dedup.NewRedis(s.redis.Client)
	second := dedup.NewRedis(s.redis.Client)

	s.Require().NoError(first.Mark(ctx, "7"))

	seen, err := second.Seen(ctx, []string{"7"})
	s.Require().NoError(err)
	s.True(seen["7"])
}

func (s *RedisStoreSuite) TestTTLPrunesOldEntries() {
	ctx := context.Background()
	now := time.Now()
	clock := func() time.Time { return now }
	store := dedup.NewRedis(s.redis.Client, dedup.WithTTL(time.Hour), dedup.WithClock(clock))

	s.Require().NoError(store.Mark(ctx, "old"))
	now = now.Add(2 * time.Hour)
	s.Require().NoError(store.Mark(ctx, "new"))

	seen, err := store.Seen(ctx, []string{"old", "new"})
	s.Require().NoError(err)
	s.False(seen["old"])
	s.True(seen["new"])
}

func (s *RedisStoreSuite) TestSeenEmpty() {
	store := dedup.NewRedis(s.redis.Client)
	seen, err := store.Seen(context.Background(), nil)
	s.Require().NoError(err)
	s.Empty(seen)
}

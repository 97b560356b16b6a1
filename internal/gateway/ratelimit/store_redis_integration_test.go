//go:build integration

package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"clm/internal/gateway/ratelimit"
	"clm/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *ratelimit.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = ratelimit.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestAllowUpToLimit() {
	ctx := context.Background()
	for i := range 3 {
		res, err := s.store.AllowN(ctx, "k", 1, 3, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed, "request %d", i)
	}
	res, err := s.store.AllowN(ctx, "k", 1, 3, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Positive(res.RetryAfter)

	count, err := s.store.GetCurrentCount(ctx, "k", time.Minute)
	s.Require().NoError(err)
	s.Equal(3, count)

	s.Require().NoError(s.store.Reset(ctx, "k"))
	count, err = s.store.GetCurrentCount(ctx, "k", time.Minute)
	s.Require().NoError(err)
	s.Zero(count)
}

// TestConcurrentAllow verifies the script admits exactly limit requests under contention.
func (s *RedisStoreSuite) TestConcurrentAllow() {
	ctx := context.Background()
	const (
		limit      = 20
		goroutines = 100
	)
	var wg sync.WaitGroup
	var allowed atomic.Int32
	for range goroutines {
		wg.Go(func() {
			res, err := s.store.AllowN(ctx, ratelimit.IdentityKey("user_id"), 1, limit, time.Minute)
			if err == nil && res.Allowed {
				allowed.Add(1)
			}
		})
	}
	wg.Wait()
	s.Equal(int32(limit), allowed.Load())
}

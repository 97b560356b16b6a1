package authorization

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces authorization flags.
const RedisKeyPrefix = "clm:authz:"

// RedisSource reads a boolean flag at clm:authz:<customer_id>.
type RedisSource struct {
	client redis.Cmdable
}

func NewRedisSource(client redis.Cmdable) *RedisSource {
	return &RedisSource{client: client}
}

func (s *RedisSource) AuthorizedToTrade(ctx context.Context, customerID string) (bool, error) {
	v, err := s.client.Get(ctx, RedisKeyPrefix+customerID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read authorization flag: %w", err)
	}
	ok, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("malformed authorization flag %q: %w", v, err)
	}
	return ok, nil
}

// Set writes the flag. Used by seeding and tests.
func (s *RedisSource) Set(ctx context.Context, customerID string, authorized bool) error {
	return s.client.Set(ctx, RedisKeyPrefix+customerID, strconv.FormatBool(authorized), 0).Err()
}

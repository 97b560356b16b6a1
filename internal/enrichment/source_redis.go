package enrichment

import (
	"context"
	"errors"
	"net"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces enrichment hashes.
const RedisKeyPrefix = "clm:enrichment:"

// RedisSource reads attributes from a hash at clm:enrichment:<customer_id>.
// "true"/"false" values are decoded as booleans; everything else stays a string.
type RedisSource struct {
	client redis.Cmdable
}

func NewRedisSource(client redis.Cmdable) *RedisSource {
	return &RedisSource{client: client}
}

func (s *RedisSource) Lookup(ctx context.Context, customerID string) (map[string]any, error) {
	fields, err := s.client.HGetAll(ctx, RedisKeyPrefix+customerID).Result()
	if err != nil {
		return nil, classifyRedisError(err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	attrs := make(map[string]any, len(fields))
	for k, v := range fields {
		switch v {
		case "true":
			attrs[k] = true
		case "false":
			attrs[k] = false
		default:
			attrs[k] = v
		}
	}
	return attrs, nil
}

func classifyRedisError(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewSourceError(CategoryTimeout, "redis lookup timed out", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return NewSourceError(CategoryTimeout, "redis lookup timed out", err)
	case errors.Is(err, context.Canceled):
		return NewSourceError(CategoryInternal, "redis lookup cancelled", err)
	case errors.Is(err, redis.ErrClosed):
		return NewSourceError(CategoryInternal, "redis client closed", err)
	default:
		return NewSourceError(CategoryOutage, "redis lookup failed", err)
	}
}

//go:build integration

package authorization_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"clm/internal/authorization"
	"clm/pkg/testutil/containers"
)

type SourceSuite struct {
	suite.Suite
	redis    *containers.RedisContainer
	postgres *containers.PostgresContainer
	sources  map[string]source
}

type source interface {
	authorization.Source
	Set(ctx context.Context, customerID string, authorized bool) error
}

func TestSourceSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(SourceSuite))
}

func (s *SourceSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.postgres = mgr.GetPostgres(s.T())
	s.sources = map[string]source{
		"redis":    authorization.NewRedisSource(s.redis.Client),
		"postgres": authorization.NewPostgresSource(s.postgres.Pool(s.T())),
	}
}

func (s *SourceSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.redis.FlushAll(ctx))
	s.Require().NoError(s.postgres.TruncateTables(ctx, "trading_authorizations"))
}

func (s *SourceSuite) TestUnknownCustomerIsNotAuthorized() {
	for name, src := range s.sources {
		s.Run(name, func() {
			ok, err := src.AuthorizedToTrade(context.Background(), "unknown")
			s.Require().NoError(err)
			s.False(ok)
		})
	}
}

func (s *SourceSuite) TestSetThenRead() {
	ctx := context.Background()
	for name, src := range s.sources {
		s.Run(name, func() {
			s.Require().NoError(src.Set(ctx, "12345", true))
			ok, err := src.AuthorizedToTrade(ctx, "12345")
			s.Require().NoError(err)
			s.True(ok)

			s.Require().NoError(src.Set(ctx, "12345", false))
			ok, err = src.AuthorizedToTrade(ctx, "12345")
			s.Require().NoError(err)
			s.False(ok, "a revoked authorization is seen on the next read")
		})
	}
}

func (s *SourceSuite) TestOracleReadsThrough() {
	ctx := context.Background()
	src := s.sources["postgres"]
	oracle, err := authorization.New(src)
	s.Require().NoError(err)

	s.Require().NoError(src.Set(ctx, "777", true))
	ok, err := oracle.IsAuthorizedToTrade(ctx, "777")
	s.Require().NoError(err)
	s.True(ok)
}

func (s *SourceSuite) TestMalformedRedisFlag() {
	ctx := context.Background()
	s.Require().NoError(s.redis.Client.Set(ctx, authorization.RedisKeyPrefix+"bad", "maybe", 0).Err())

	_, err := s.sources["redis"].AuthorizedToTrade(ctx, "bad")
	s.Error(err)
}

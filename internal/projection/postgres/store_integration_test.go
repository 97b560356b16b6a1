//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"clm/internal/customer/models"
	"clm/internal/projection/postgres"
	"clm/pkg/platform/sentinel"
	"clm/pkg/testutil/containers"
)

type PostgresProjectionSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.Store
}

func TestPostgresProjectionSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresProjectionSuite))
}

func (s *PostgresProjectionSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.pg.Pool(s.T()))
}

func (s *PostgresProjectionSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "customer_projection"))
}

func record(id, name string, version int64) *models.CustomerRecord {
	rec := models.NewCustomerRecord(map[string]any{"customer_id": id, "name": name, "enriched": true})
	rec.Version = version
	return rec
}

func (s *PostgresProjectionSuite) TestPutAndGet() {
	ctx := context.Background()
	id := uuid.NewString()

	applied, err := s.store.Put(ctx, record(id, "John Doe", 1))
	s.Require().NoError(err)
	s.True(applied)

	rec, err := s.store.Get(ctx, id)
	s.Require().NoError(err)
	s.Equal("John Doe", rec.Name())
	s.Equal(int64(1), rec.Version)
	s.True(rec.Enriched())
}

func (s *PostgresProjectionSuite) TestStaleVersionIgnored() {
	ctx := context.Background()
	id := uuid.NewString()

	_, err := s.store.Put(ctx, record(id, "Newer", 2))
	s.Require().NoError(err)
	applied, err := s.store.Put(ctx, record(id, "Older", 1))
	s.Require().NoError(err)
	s.False(applied)

	rec, err := s.store.Get(ctx, id)
	s.Require().NoError(err)
	s.Equal("Newer", rec.Name())
}

func (s *PostgresProjectionSuite) TestConcurrentWritersKeepHighestVersion() {
	ctx := context.Background()
	id := uuid.NewString()

	var wg sync.WaitGroup
	for v := int64(1); v <= 20; v++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Put(ctx, record(id, "v", v))
			s.NoError(err)
		}()
	}
	wg.Wait()

	rec, err := s.store.Get(ctx, id)
	s.Require().NoError(err)
	s.Equal(int64(20), rec.Version)
}

func (s *PostgresProjectionSuite) TestGetUnknown() {
	_, err := s.store.Get(context.Background(), uuid.NewString())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

//go:build integration

package cache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verigate/internal/verification/cache"
	"verigate/internal/verification/models"
	"verigate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	now   time.Time
	store *cache.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	s.store = cache.NewPostgres(s.pg.DB, cache.WithClock(func() time.Time { return s.now }))
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	s.Require().NoError(s.pg.Truncate(context.Background(), "verified_sessions"))
}

func (s *PostgresStoreSuite) TestRoundTripAndExpiry() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, "ada@example.com", "s1", models.StatusApproved))

	s.now = s.now.Add(cache.DefaultTTL - time.Minute)
	entry, err := s.store.Get(ctx, "ada@example.com")
	s.Require().NoError(err)
	s.Require().NotNil(entry)
	s.Equal("s1", entry.SessionID)

	s.now = s.now.Add(time.Minute)
	entry, err = s.store.Get(ctx, "ada@example.com")
	s.Require().NoError(err)
	s.Nil(entry)

	var rows int
	s.Require().NoError(s.pg.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM verified_sessions`).Scan(&rows))
	s.Equal(0, rows, "expired row purged on read")
}

func (s *PostgresStoreSuite) TestConcurrentPutsKeepOneRow() {
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(s.store.Put(ctx, "ada@example.com", "s"+string(rune('0'+i)), models.StatusApproved))
		}()
	}
	wg.Wait()

	var rows int
	s.Require().NoError(s.pg.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM verified_sessions WHERE subject_key = $1`, "ada@example.com").Scan(&rows))
	s.Equal(1, rows)
}

func (s *PostgresStoreSuite) TestEvict() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, "ada@example.com", "s1", models.StatusApproved))
	s.Require().NoError(s.store.Evict(ctx, "ada@example.com"))

	entry, err := s.store.Get(ctx, "ada@example.com")
	s.Require().NoError(err)
	s.Nil(entry)
}

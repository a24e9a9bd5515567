package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type BreakerSuite struct {
	suite.Suite
	now time.Time
}

func TestBreakerSuite(t *testing.T) {
	suite.Run(t, new(BreakerSuite))
}

func (s *BreakerSuite) SetupTest() {
	s.now = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *BreakerSuite) newBreaker(opts ...Option) *Breaker {
	opts = append([]Option{WithClock(func() time.Time { return s.now })}, opts...)
	return New("audit-kafka", opts...)
}

func (s *BreakerSuite) TestStartsClosed() {
	b := s.newBreaker()
	s.False(b.IsOpen())
	s.Equal(StateClosed, b.State())
	s.Equal("audit-kafka", b.Name())
	s.True(b.Allow())
}

func (s *BreakerSuite) TestOpensOnConsecutiveFailures() {
	b := s.newBreaker(WithFailureThreshold(3))

	for range 2 {
		fallback, change := b.RecordFailure()
		s.False(fallback)
		s.False(change.Opened)
	}
	fallback, change := b.RecordFailure()
	s.True(fallback)
	s.True(change.Opened)
	s.True(b.IsOpen())

	fallback, change = b.RecordFailure()
	s.True(fallback, "open breaker keeps routing to fallback")
	s.False(change.Opened, "already open")
}

func (s *BreakerSuite) TestSuccessClearsFailureStreak() {
	b := s.newBreaker(WithFailureThreshold(3))
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	b.RecordFailure()
	b.RecordFailure()
	s.False(b.IsOpen())
	b.RecordFailure()
	s.True(b.IsOpen())
}

func (s *BreakerSuite) TestRecovery() {
	s.Run("closes after enough successes", func() {
		b := s.newBreaker(WithFailureThreshold(1), WithSuccessThreshold(2))
		b.RecordFailure()

		primary, change := b.RecordSuccess()
		s.False(primary)
		s.False(change.Closed)

		primary, change = b.RecordSuccess()
		s.True(primary)
		s.True(change.Closed)
		s.False(b.IsOpen())
	})

	s.Run("a failure while open restarts the success count", func() {
		b := s.newBreaker(WithFailureThreshold(1), WithSuccessThreshold(2))
		b.RecordFailure()
		b.RecordSuccess()
		b.RecordFailure()

		b.RecordSuccess()
		s.True(b.IsOpen())
		b.RecordSuccess()
		s.False(b.IsOpen())
	})

	s.Run("reset closes immediately", func() {
		b := s.newBreaker(WithFailureThreshold(1))
		b.RecordFailure()
		b.Reset()
		s.Equal(StateClosed, b.State())
	})
}

func (s *BreakerSuite) TestAllowProbesOncePerCooldown() {
	b := s.newBreaker(WithFailureThreshold(1), WithCooldown(10*time.Second))
	b.RecordFailure()
	s.False(b.Allow(), "open breaker rejects during cooldown")

	s.now = s.now.Add(11 * time.Second)
	s.True(b.Allow(), "first call after cooldown is a probe")
	s.False(b.Allow(), "only one probe per cooldown window")

	s.now = s.now.Add(11 * time.Second)
	s.True(b.Allow())
}

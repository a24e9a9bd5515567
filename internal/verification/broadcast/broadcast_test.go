package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestDecode(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		sig, err := Decode([]byte(`{"type":"VERIFICATION_SUCCESS","sessionId":"s1","status":"Approved"}`))
		require.NoError(t, err)
		assert.Equal(t, Signal{Type: SignalType, SessionID: "s1", Status: "Approved"}, sig)
	})

	t.Run("malformed payloads are rejected", func(t *testing.T) {
		for _, raw := range []string{
			`not json`,
			`{"type":"SOMETHING_ELSE","sessionId":"s1","status":"Approved"}`,
			`{"type":"VERIFICATION_SUCCESS","status":"Approved"}`,
		} {
			_, err := Decode([]byte(raw))
			assert.ErrorIs(t, err, ErrMalformed, raw)
		}
	})
}

func TestKey(t *testing.T) {
	assert.Equal(t, "callback-abc", Key("abc"))
}

type StoreSuite struct {
	suite.Suite
	newStore func() Store
	store    Store
}

func (s *StoreSuite) SetupTest() {
	s.store = s.newStore()
}

func (s *StoreSuite) TestPublishThenGet() {
	ctx := context.Background()
	s.Require().NoError(Publish(ctx, s.store, Signal{SessionID: "s1", Status: "Approved"}))

	raw, err := s.store.Get(ctx, "s1")
	s.Require().NoError(err)
	sig, err := Decode(raw)
	s.Require().NoError(err)
	s.Equal("Approved", sig.Status)
	s.Equal(SignalType, sig.Type)
}

func (s *StoreSuite) TestGetMissing() {
	raw, err := s.store.Get(context.Background(), "nope")
	s.Require().NoError(err)
	s.Nil(raw)
}

func (s *StoreSuite) TestDelete() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, "s1", []byte(`x`)))
	s.Require().NoError(s.store.Delete(ctx, "s1"))

	raw, err := s.store.Get(ctx, "s1")
	s.Require().NoError(err)
	s.Nil(raw)
}

func (s *StoreSuite) TestSubscribeReceivesOnlyOwnSession() {
	ctx := context.Background()
	ch, cancel, err := s.store.Subscribe(ctx, "s1")
	s.Require().NoError(err)
	defer cancel()

	s.Require().NoError(s.store.Put(ctx, "other", []byte(`other`)))
	s.Require().NoError(s.store.Put(ctx, "s1", []byte(`mine`)))

	select {
	case raw := <-ch:
		s.Equal("mine", string(raw))
	case <-time.After(2 * time.Second):
		s.Fail("no notification received")
	}
}

func (s *StoreSuite) TestCancelClosesChannel() {
	ch, cancel, err := s.store.Subscribe(context.Background(), "s1")
	s.Require().NoError(err)
	cancel()
	cancel()

	s.Eventually(func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *StoreSuite) TestContextCancelClosesChannel() {
	ctx, cancelCtx := context.WithCancel(context.Background())
	ch, cancel, err := s.store.Subscribe(ctx, "s1")
	s.Require().NoError(err)
	defer cancel()
	cancelCtx()

	s.Eventually(func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func() Store { return NewInMemory() }})
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	suite.Run(t, &StoreSuite{newStore: func() Store {
		mr.FlushAll()
		return NewRedis(client)
	}})
}

func TestRedisStoreRetention(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedis(client)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "s1", []byte(`x`)))
	assert.Equal(t, DefaultRetention, mr.TTL(Key("s1")))

	mr.FastForward(DefaultRetention + time.Second)
	raw, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestInMemoryStoreRetention(t *testing.T) {
	store := NewInMemory()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "s1", []byte(`x`)))
	now = now.Add(DefaultRetention)
	raw, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

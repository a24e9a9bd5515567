package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "verigate:signals:"

// RedisStore shares signals across replicas: the payload is a plain key with a
// retention expiry and notifications go over Redis pub/sub.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, sessionID string, raw []byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, Key(sessionID), raw, DefaultRetention)
		pipe.Publish(ctx, redisChannelPrefix+sessionID, raw)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish signal: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) ([]byte, error) {
	raw, err := s.client.Get(ctx, Key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read signal: %w", err)
	}
	return raw, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, Key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete signal: %w", err)
	}
	return nil
}

func (s *RedisStore) Subscribe(ctx context.Context, sessionID string) (<-chan []byte, func(), error) {
	ps := s.client.Subscribe(ctx, redisChannelPrefix+sessionID)
	// Wait for the subscription confirmation so no publish after this call is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe signal: %w", err)
	}

	out := make(chan []byte, 4)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}
	return out, cancel, nil
}

package broadcast

import (
	"context"
	"sync"
	"time"
)

type storedSignal struct {
	raw       []byte
	expiresAt time.Time
}

// InMemoryStore is a single-process Store.
type InMemoryStore struct {
	mu          sync.Mutex
	values      map[string]storedSignal
	subscribers map[string]map[int]chan []byte
	nextID      int
	retention   time.Duration
	now         func() time.Time
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		values:      make(map[string]storedSignal),
		subscribers: make(map[string]map[int]chan []byte),
		retention:   DefaultRetention,
		now:         time.Now,
	}
}

func (s *InMemoryStore) Put(_ context.Context, sessionID string, raw []byte) error {
	payload := append([]byte(nil), raw...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[sessionID] = storedSignal{raw: payload, expiresAt: s.now().Add(s.retention)}
	for _, ch := range s.subscribers[sessionID] {
		select {
		case ch <- payload:
		default:
			// Subscriber is behind; it will still see the value via Get.
		}
	}
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, sessionID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[sessionID]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(v.expiresAt) {
		delete(s.values, sessionID)
		return nil, nil
	}
	return v.raw, nil
}

func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, sessionID)
	return nil
}

func (s *InMemoryStore) Subscribe(ctx context.Context, sessionID string) (<-chan []byte, func(), error) {
	ch := make(chan []byte, 4)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if s.subscribers[sessionID] == nil {
		s.subscribers[sessionID] = make(map[int]chan []byte)
	}
	s.subscribers[sessionID][id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers[sessionID], id)
			if len(s.subscribers[sessionID]) == 0 {
				delete(s.subscribers, sessionID)
			}
			close(ch)
		})
	}
	stop := context.AfterFunc(ctx, cancel)
	return ch, func() {
		stop()
		cancel()
	}, nil
}

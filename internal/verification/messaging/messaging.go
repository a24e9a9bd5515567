// Package messaging is the cross-window message channel: the callback page and
// the provider frame post messages, and every live attempt sees every message.
// Receivers must check Origin before trusting Data.
package messaging

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"verigate/internal/verification/metrics"
)

const (
	// DefaultBuffer is the per-subscriber queue length.
	DefaultBuffer = 8

	channelLabel = "message"
)

type Message struct {
	Origin string
	Data   []byte
}

// Bus fans each published message out to all current subscribers.
type Bus struct {
	mu      sync.Mutex
	subs    map[int]chan Message
	nextID  int
	buffer  int
	metrics *metrics.Metrics
}

type Option func(*Bus)

// WithMetrics reports deliveries skipped on a full subscriber as dropped
// message signals.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bus) {
		b.metrics = m
	}
}

// WithBuffer sets the per-subscriber queue length. Non-positive values are ignored.
func WithBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

func NewBus(opts ...Option) *Bus {
	b := &Bus{subs: make(map[int]chan Message), buffer: DefaultBuffer}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers msg to every subscriber without blocking. A subscriber with
// a full buffer misses the message. It returns the number of deliveries.
func (b *Bus) Publish(msg Message) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	delivered := 0
	for _, ch := range b.subs {
		select {
		case ch <- msg:
			delivered++
		default:
			b.metrics.IncDropped(channelLabel, "buffer_full")
		}
	}
	return delivered
}

// Subscribe returns a channel of messages and an idempotent cancel func that
// closes it.
func (b *Bus) Subscribe() (<-chan Message, func()) {
	ch := make(chan Message, b.buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// Subscribers reports the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// OriginOf returns the scheme://host[:port] origin of rawURL.
func OriginOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse origin: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("parse origin: %q has no scheme or host", rawURL)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
}

// OriginAllowed reports whether origin exactly matches one of allowed after
// normalization. Empty origins never match.
func OriginAllowed(origin string, allowed ...string) bool {
	got, err := OriginOf(origin)
	if err != nil {
		return false
	}
	for _, a := range allowed {
		want, err := OriginOf(a)
		if err != nil {
			continue
		}
		if got == want {
			return true
		}
	}
	return false
}

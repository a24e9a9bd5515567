// Package publisher is the audit entry point used by the rest of the service.
//
// In sync mode Emit writes straight to the store. With WithAsyncBuffer, Emit
// enqueues without blocking and a worker goroutine persists events; Close
// drains whatever is still buffered.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "verigate/pkg/platform/audit"
	"verigate/pkg/platform/audit/worker"
)

var ErrBufferFull = errors.New("audit buffer full")

type attemptLister interface {
	ListByAttempt(ctx context.Context, attemptID string) ([]audit.Event, error)
}

type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	sampler *Sampler
	now     func() time.Time

	bufferSize int
	inbox      chan audit.Event
	mu         sync.RWMutex
	closed     bool
	done       chan struct{}
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with a buffer of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.bufferSize = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithSampler samples operational events.
func WithSampler(s *Sampler) Option {
	return func(p *Publisher) {
		p.sampler = s
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufferSize <= 0 {
		close(p.done)
		return p
	}
	p.inbox = make(chan audit.Event, p.bufferSize)
	w := worker.NewWorker(store, p.inbox,
		worker.WithLogger(p.logger),
		worker.WithFailureHook(func(audit.Event, error) { p.metrics.incPersistFailures() }),
	)
	go func() {
		defer close(p.done)
		w.Run(context.Background())
	}()
	return p
}

// Emit records event. Timestamp and Category are filled when empty.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	event = audit.Normalize(event, p.now())
	if event.Category == audit.CategoryOperations && !p.sampler.Keep(event.Action) {
		p.metrics.incSampled()
		return nil
	}

	if p.inbox == nil {
		if err := p.store.Append(ctx, event); err != nil {
			p.metrics.incPersistFailures()
			return err
		}
		p.metrics.incEmitted()
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrBufferFull
	}
	select {
	case p.inbox <- event:
		p.metrics.incEmitted()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.metrics.incDropped()
		p.logger.WarnContext(ctx, "audit buffer full, dropping event", "action", event.Action)
		return ErrBufferFull
	}
}

// List returns events for attemptID when the store supports listing.
func (p *Publisher) List(ctx context.Context, attemptID string) ([]audit.Event, error) {
	lister, ok := p.store.(attemptLister)
	if !ok {
		return nil, errors.New("audit store does not support listing")
	}
	return lister.ListByAttempt(ctx, attemptID)
}

// Close stops accepting events and waits for buffered ones to be persisted.
func (p *Publisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		if p.inbox != nil {
			close(p.inbox)
		}
	}
	p.mu.Unlock()
	<-p.done
}

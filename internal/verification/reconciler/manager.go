package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/sentinel"
)

const (
	DefaultRetainedAttempts = 1024
	DefaultRetention        = 15 * time.Minute
)

// CallbackURLFunc returns the provider redirect URL for an attempt.
type CallbackURLFunc func(attemptID string) (string, error)

// Manager indexes attempts by ID for the HTTP layer and keeps at most one
// live attempt per subject. Snapshots of torn-down attempts stay readable for
// a retention window.
type Manager struct {
	r           *Reconciler
	callbackURL CallbackURLFunc
	logger      *slog.Logger

	mu        sync.Mutex
	live      map[string]*Attempt
	bySubject map[string]*Attempt
	// claims holds the attempt ID of the newest Start per subject while its
	// session is being created.
	claims   map[string]string
	retained *expirable.LRU[string, Snapshot]
}

type ManagerOption func(*managerConfig)

type managerConfig struct {
	callbackURL CallbackURLFunc
	logger      *slog.Logger
	size        int
	retention   time.Duration
}

func WithCallbackURL(fn CallbackURLFunc) ManagerOption {
	return func(c *managerConfig) {
		c.callbackURL = fn
	}
}

func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(c *managerConfig) {
		c.logger = logger
	}
}

// WithRetention sets how many torn-down snapshots are kept and for how long.
func WithRetention(size int, ttl time.Duration) ManagerOption {
	return func(c *managerConfig) {
		if size > 0 {
			c.size = size
		}
		if ttl > 0 {
			c.retention = ttl
		}
	}
}

func NewManager(r *Reconciler, opts ...ManagerOption) *Manager {
	cfg := managerConfig{
		logger:    slog.Default(),
		size:      DefaultRetainedAttempts,
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Manager{
		r:           r,
		callbackURL: cfg.callbackURL,
		logger:      cfg.logger,
		live:        make(map[string]*Attempt),
		bySubject:   make(map[string]*Attempt),
		claims:      make(map[string]string),
		retained:    expirable.NewLRU[string, Snapshot](cfg.size, nil, cfg.retention),
	}
}

// Start closes any live attempt for the same subject and starts a new one.
// A non-nil snapshot is returned whenever an attempt was created, including
// when session creation failed. When Starts for one subject overlap, the last
// to claim the subject stays live and the others come back cancelled.
func (m *Manager) Start(ctx context.Context, req StartRequest, onComplete CompletionFunc) (*Snapshot, error) {
	if req.AttemptID == "" {
		req.AttemptID = uuid.NewString()
	}
	if m.callbackURL != nil && req.CallbackURL == "" {
		u, err := m.callbackURL(req.AttemptID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeMisconfigured, "failed to build callback url")
		}
		req.CallbackURL = u
	}

	m.mu.Lock()
	prev := m.bySubject[req.Subject]
	m.claims[req.Subject] = req.AttemptID
	m.mu.Unlock()
	if prev != nil {
		m.logger.InfoContext(ctx, "replacing live verification attempt",
			"attempt_id", prev.ID(),
			"replacement_id", req.AttemptID,
		)
		prev.Close()
	}

	userClosed := req.OnClosed
	req.OnClosed = func(a *Attempt) {
		m.release(a)
		if userClosed != nil {
			userClosed(a)
		}
	}

	a, err := m.r.Start(ctx, req, onComplete)

	m.mu.Lock()
	superseded := m.claims[req.Subject] != req.AttemptID
	if !superseded {
		delete(m.claims, req.Subject)
	}
	if a != nil && !superseded && !a.Snapshot().Closed {
		m.live[a.ID()] = a
		m.bySubject[a.Subject()] = a
	}
	m.mu.Unlock()

	if a == nil {
		return nil, err
	}
	if superseded {
		m.logger.InfoContext(ctx, "verification attempt superseded during start",
			"attempt_id", a.ID(),
		)
		a.Close()
	}
	snap := a.Snapshot()
	return &snap, err
}

func (m *Manager) release(a *Attempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live[a.ID()] == a {
		delete(m.live, a.ID())
	}
	if m.bySubject[a.Subject()] == a {
		delete(m.bySubject, a.Subject())
	}
	m.retained.Add(a.ID(), a.Snapshot())
}

func (m *Manager) lookup(id string) (*Attempt, *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.live[id]; ok {
		return a, nil
	}
	if snap, ok := m.retained.Get(id); ok {
		return nil, &snap
	}
	return nil, nil
}

// Get returns the current snapshot of an attempt.
func (m *Manager) Get(id string) (*Snapshot, error) {
	a, snap := m.lookup(id)
	switch {
	case a != nil:
		s := a.Snapshot()
		return &s, nil
	case snap != nil:
		return snap, nil
	default:
		return nil, notFound(id)
	}
}

// Check runs an on-demand status check for a live attempt. Torn-down attempts
// report their final outcome.
func (m *Manager) Check(ctx context.Context, id string) (CheckResult, error) {
	a, snap := m.lookup(id)
	switch {
	case a != nil:
		return a.Check(ctx)
	case snap != nil:
		return CheckResult{State: snap.State, Status: snap.LastStatus, Message: snap.Message}, nil
	default:
		return CheckResult{}, notFound(id)
	}
}

// Close cancels a live attempt and returns its snapshot.
func (m *Manager) Close(id string) (*Snapshot, error) {
	a, snap := m.lookup(id)
	switch {
	case a != nil:
		a.Close()
		s := a.Snapshot()
		return &s, nil
	case snap != nil:
		return snap, nil
	default:
		return nil, notFound(id)
	}
}

// Active returns the number of attempts not yet torn down.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Shutdown closes every live attempt and waits for their teardown or ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	attempts := make([]*Attempt, 0, len(m.live))
	for _, a := range m.live {
		attempts = append(attempts, a)
	}
	m.mu.Unlock()

	for _, a := range attempts {
		a.Close()
	}
	for _, a := range attempts {
		select {
		case <-a.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func notFound(id string) error {
	return dErrors.Wrap(fmt.Errorf("attempt %s: %w", id, sentinel.ErrNotFound), dErrors.CodeNotFound, "verification attempt not found")
}

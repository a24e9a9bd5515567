package reconciler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"verigate/internal/verification/broadcast"
	"verigate/internal/verification/messaging"
	"verigate/internal/verification/models"
	dErrors "verigate/pkg/domain-errors"
	audit "verigate/pkg/platform/audit"
)

// State is the lifecycle position of an attempt.
type State string

const (
	StateIdle          State = "idle"
	StateCheckingCache State = "checking_cache"
	StateCreating      State = "creating"
	StateActive        State = "active"
	StateResolved      State = "resolved"
	StateDeclined      State = "declined"
	StateFailed        State = "failed"
	StateCancelled     State = "cancelled"
	StateExpired       State = "expired"
)

// Settled reports whether the attempt has reached an outcome.
func (s State) Settled() bool {
	switch s {
	case StateResolved, StateDeclined, StateFailed, StateCancelled, StateExpired:
		return true
	default:
		return false
	}
}

// Channel names the source that settled an attempt.
type Channel string

const (
	ChannelCache   Channel = "cache"
	ChannelCreate  Channel = "create"
	ChannelPoll    Channel = "poll"
	ChannelStorage Channel = "storage"
	ChannelMessage Channel = "message"
	ChannelCheck   Channel = "check"
	ChannelUser    Channel = "user"
	ChannelTimer   Channel = "timer"
)

// Snapshot is a point-in-time, read-only view of an attempt.
type Snapshot struct {
	AttemptID  string        `json:"attempt_id"`
	Flow       models.Flow   `json:"flow"`
	SessionID  string        `json:"session_id,omitempty"`
	SessionURL string        `json:"session_url,omitempty"`
	State      State         `json:"state"`
	LastStatus models.Status `json:"last_status,omitempty"`
	Channel    Channel       `json:"channel,omitempty"`
	Message    string        `json:"message,omitempty"`
	FromCache  bool          `json:"from_cache"`
	Closed     bool          `json:"closed"`
	StartedAt  time.Time     `json:"started_at"`
	SettledAt  *time.Time    `json:"settled_at,omitempty"`
}

// CheckResult answers an on-demand status check.
type CheckResult struct {
	State   State         `json:"state"`
	Status  models.Status `json:"status,omitempty"`
	Message string        `json:"message"`
}

type settlement struct {
	state     State
	channel   Channel
	status    models.Status
	sessionID string
	fromCache bool
	message   string
	reason    string
}

// Attempt is one verification attempt. Its methods are safe for concurrent use.
type Attempt struct {
	id         string
	subject    string
	flow       models.Flow
	ownOrigin  string
	requestID  string
	r          *Reconciler
	onComplete CompletionFunc
	onClosed   func(*Attempt)

	// resolved is the resolution token. Whoever swaps it to true owns the outcome.
	resolved atomic.Bool

	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	settledCh    chan struct{}
	closedCh     chan struct{}
	teardownOnce sync.Once

	mu            sync.RWMutex
	state         State
	sessionID     string
	sessionURL    string
	lastStatus    models.Status
	channel       Channel
	message       string
	fromCache     bool
	active        bool
	closed        bool
	startedAt     time.Time
	settledAt     time.Time
	expiry        *time.Timer
	teardownTimer *time.Timer
}

func (a *Attempt) ID() string {
	return a.id
}

// Subject returns the subject key the attempt verifies.
func (a *Attempt) Subject() string {
	return a.subject
}

// Settled is closed once the attempt has an outcome.
func (a *Attempt) Settled() <-chan struct{} {
	return a.settledCh
}

// Done is closed after teardown.
func (a *Attempt) Done() <-chan struct{} {
	return a.closedCh
}

func (a *Attempt) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := Snapshot{
		AttemptID:  a.id,
		Flow:       a.flow,
		SessionID:  a.sessionID,
		SessionURL: a.sessionURL,
		State:      a.state,
		LastStatus: a.lastStatus,
		Channel:    a.channel,
		Message:    a.message,
		FromCache:  a.fromCache,
		Closed:     a.closed,
		StartedAt:  a.startedAt,
	}
	if !a.settledAt.IsZero() {
		t := a.settledAt
		s.SettledAt = &t
	}
	return s
}

// Close cancels the attempt. An active attempt becomes Cancelled with nothing
// cached and no completion; a settled one is torn down without further delay.
// Close is idempotent.
func (a *Attempt) Close() {
	if a.settle(settlement{state: StateCancelled, channel: ChannelUser, message: MsgCancelled}) {
		return
	}
	a.mu.Lock()
	t := a.teardownTimer
	a.mu.Unlock()
	if t != nil {
		t.Stop()
	}
	go a.teardown()
}

// Check fetches the provider status once and feeds it through the same
// reconciliation path as the listeners. Provider failures become a message,
// not an error.
func (a *Attempt) Check(ctx context.Context) (CheckResult, error) {
	snap := a.Snapshot()
	if snap.State.Settled() {
		return CheckResult{State: snap.State, Status: snap.LastStatus, Message: snap.Message}, nil
	}
	if snap.SessionID == "" {
		return CheckResult{}, dErrors.New(dErrors.CodeInvalidState, "attempt has no verification session yet")
	}

	res, err := a.r.provider.Status(ctx, snap.SessionID)
	if err != nil {
		a.r.logger.WarnContext(ctx, "manual status check failed",
			"attempt_id", a.id,
			"session_id", snap.SessionID,
			"error", err,
		)
		return CheckResult{State: snap.State, Status: snap.LastStatus, Message: MsgUnavailable}, nil
	}
	a.observe(ChannelCheck, res.Status)
	return CheckResult{
		State:   a.Snapshot().State,
		Status:  res.Status,
		Message: checkMessage(res.Status),
	}, nil
}

func (a *Attempt) setState(s State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.state.Settled() {
		a.state = s
	}
}

func (a *Attempt) resolveFromCache(sessionID string) {
	a.settle(settlement{
		state:     StateResolved,
		channel:   ChannelCache,
		status:    models.StatusApproved,
		sessionID: sessionID,
		fromCache: true,
		message:   MsgApproved,
	})
}

func (a *Attempt) activate(sess *models.Session) {
	a.mu.Lock()
	a.sessionID = sess.ID
	a.sessionURL = sess.URL
	a.state = StateActive
	a.lastStatus = models.StatusPending
	a.active = true
	a.mu.Unlock()
	a.r.metrics.AttemptOpened()

	var listeners []func()

	// Subscriptions are taken before Start returns so nothing published
	// afterwards is missed.
	if a.r.bus != nil {
		msgs, unsubscribe := a.r.bus.Subscribe()
		listeners = append(listeners, func() {
			defer unsubscribe()
			a.listenMessages(msgs, sess)
		})
	}
	if a.r.signals != nil {
		notes, unsubscribe, err := a.r.signals.Subscribe(a.ctx, sess.ID)
		if err != nil {
			a.r.logger.WarnContext(a.ctx, "signal subscription failed, relying on direct reads",
				"attempt_id", a.id,
				"error", err,
			)
			notes, unsubscribe = nil, func() {}
		}
		listeners = append(listeners, func() {
			defer unsubscribe()
			a.listenStore(notes, sess.ID)
		})
	}
	listeners = append(listeners, func() { a.poll(sess.ID) })

	a.wg.Add(len(listeners))
	for _, fn := range listeners {
		go func() {
			defer a.wg.Done()
			fn()
		}()
	}

	if d := a.r.maxDuration; d > 0 {
		t := time.AfterFunc(d, func() {
			a.settle(settlement{state: StateExpired, channel: ChannelTimer, message: MsgExpired})
		})
		a.mu.Lock()
		a.expiry = t
		a.mu.Unlock()
		if a.resolved.Load() {
			t.Stop()
		}
	}
}

func (a *Attempt) poll(sessionID string) {
	ticker := time.NewTicker(a.r.pollIntervalFor(a.flow))
	defer ticker.Stop()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			res, err := a.r.provider.Status(a.ctx, sessionID)
			if err != nil {
				if a.ctx.Err() != nil {
					return
				}
				a.r.metrics.IncPollError()
				a.r.logger.DebugContext(a.ctx, "status poll failed",
					"attempt_id", a.id,
					"session_id", sessionID,
					"error", err,
				)
				continue
			}
			a.observe(ChannelPoll, res.Status)
		}
	}
}

func (a *Attempt) listenStore(notes <-chan []byte, sessionID string) {
	var tick <-chan time.Time
	if d := a.r.storePollInterval; d > 0 {
		t := time.NewTicker(d)
		defer t.Stop()
		tick = t.C
		// A signal written before the subscription existed is only visible to a read.
		a.readStore(sessionID)
	}
	for {
		select {
		case <-a.ctx.Done():
			return
		case raw, ok := <-notes:
			if !ok {
				notes = nil
				continue
			}
			a.handlePayload(ChannelStorage, raw, sessionID)
			a.deleteSignal(sessionID)
		case <-tick:
			a.readStore(sessionID)
		}
	}
}

func (a *Attempt) readStore(sessionID string) {
	if a.resolved.Load() {
		return
	}
	raw, err := a.r.signals.Get(a.ctx, sessionID)
	if err != nil {
		a.r.logger.DebugContext(a.ctx, "signal read failed", "attempt_id", a.id, "error", err)
		return
	}
	if raw == nil {
		return
	}
	a.deleteSignal(sessionID)
	a.handlePayload(ChannelStorage, raw, sessionID)
}

func (a *Attempt) deleteSignal(sessionID string) {
	if err := a.r.signals.Delete(context.WithoutCancel(a.ctx), sessionID); err != nil {
		a.r.logger.DebugContext(a.ctx, "signal delete failed", "attempt_id", a.id, "error", err)
	}
}

func (a *Attempt) listenMessages(msgs <-chan messaging.Message, sess *models.Session) {
	allowed := []string{a.ownOrigin, sess.URL}
	for {
		select {
		case <-a.ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			sig, err := broadcast.Decode(msg.Data)
			if err != nil {
				a.r.metrics.IncDropped(string(ChannelMessage), "malformed")
				continue
			}
			if sig.SessionID != sess.ID {
				continue
			}
			if !messaging.OriginAllowed(msg.Origin, allowed...) {
				a.r.metrics.IncDropped(string(ChannelMessage), "origin")
				a.r.logger.WarnContext(a.ctx, "ignoring message from untrusted origin",
					"attempt_id", a.id,
					"origin", msg.Origin,
				)
				a.emit(audit.EventSignalRejected, ChannelMessage, models.ParseStatus(sig.Status), "origin "+msg.Origin)
				continue
			}
			a.confirm(ChannelMessage, sess.ID, models.ParseStatus(sig.Status))
		}
	}
}

func (a *Attempt) handlePayload(ch Channel, raw []byte, sessionID string) {
	sig, err := broadcast.Decode(raw)
	if err != nil {
		a.r.metrics.IncDropped(string(ch), "malformed")
		return
	}
	if sig.SessionID != sessionID {
		a.r.metrics.IncDropped(string(ch), "foreign_session")
		return
	}
	a.confirm(ch, sessionID, models.ParseStatus(sig.Status))
}

// confirm observes a relayed status. Terminal statuses are replaced by the
// provider's own report; the relayed status stands only when the provider
// cannot be reached.
func (a *Attempt) confirm(ch Channel, sessionID string, claimed models.Status) {
	if a.resolved.Load() || !claimed.IsTerminal() {
		a.observe(ch, claimed)
		return
	}
	res, err := a.r.provider.Status(a.ctx, sessionID)
	if err != nil {
		if a.ctx.Err() != nil {
			return
		}
		a.r.logger.WarnContext(a.ctx, "provider unavailable, using relayed status",
			"attempt_id", a.id,
			"session_id", sessionID,
			"channel", ch,
			"status", claimed,
			"error", err,
		)
		a.observe(ch, claimed)
		return
	}
	if !res.Status.IsTerminal() || res.Status.IsApproved() != claimed.IsApproved() {
		a.r.metrics.IncDropped(string(ch), "unconfirmed")
		a.r.logger.WarnContext(a.ctx, "relayed status not confirmed by provider",
			"attempt_id", a.id,
			"session_id", sessionID,
			"channel", ch,
			"claimed", claimed,
			"status", res.Status,
		)
		a.emit(audit.EventSignalRejected, ch, claimed, "provider reports "+string(res.Status))
	}
	a.observe(ch, res.Status)
}

// observe reconciles one status report from ch.
func (a *Attempt) observe(ch Channel, status models.Status) {
	a.r.metrics.IncSignal(string(ch), string(status))
	if a.resolved.Load() {
		a.r.metrics.IncDuplicate(string(ch))
		return
	}
	switch {
	case status.IsApproved():
		if !a.settle(settlement{state: StateResolved, channel: ch, status: status, message: MsgApproved}) {
			a.r.metrics.IncDuplicate(string(ch))
		}
	case status.IsNegative():
		if !a.settle(settlement{state: StateDeclined, channel: ch, status: status, message: MsgDeclined}) {
			a.r.metrics.IncDuplicate(string(ch))
		}
	case status != "":
		a.mu.Lock()
		if a.state == StateActive {
			a.lastStatus = status
		}
		a.mu.Unlock()
	}
}

// settle takes the resolution token and applies the outcome. It returns false
// if the attempt had already settled.
func (a *Attempt) settle(s settlement) bool {
	if !a.resolved.CompareAndSwap(false, true) {
		return false
	}
	a.cancel()

	now := a.r.now()
	a.mu.Lock()
	a.state = s.state
	a.channel = s.channel
	if s.status != "" {
		a.lastStatus = s.status
	}
	if s.sessionID != "" {
		a.sessionID = s.sessionID
	}
	a.message = s.message
	a.fromCache = s.fromCache
	a.settledAt = now
	wasActive := a.active
	expiry := a.expiry
	sessionID := a.sessionID
	a.mu.Unlock()

	if expiry != nil {
		expiry.Stop()
	}
	close(a.settledCh)

	if wasActive {
		a.r.metrics.AttemptSettled()
	}
	a.r.metrics.IncOutcome(string(s.state))
	a.r.metrics.ObserveResolution(now.Sub(a.startedAt))
	a.r.logger.InfoContext(a.ctx, "verification attempt settled",
		"attempt_id", a.id,
		"session_id", sessionID,
		"state", s.state,
		"channel", s.channel,
		"from_cache", s.fromCache,
	)

	effects := context.WithoutCancel(a.ctx)
	switch s.state {
	case StateResolved:
		action := audit.EventVerificationApproved
		if s.fromCache {
			action = audit.EventVerificationCacheHit
		} else if err := a.r.cache.Put(effects, a.subject, sessionID, models.StatusApproved); err != nil {
			a.r.logger.ErrorContext(effects, "failed to cache approved verification",
				"attempt_id", a.id,
				"session_id", sessionID,
				"error", err,
			)
		}
		a.emit(action, s.channel, models.StatusApproved, "")
		if a.onComplete != nil {
			a.onComplete(Completion{
				AttemptID:  a.id,
				SessionID:  sessionID,
				SubjectKey: a.subject,
				FromCache:  s.fromCache,
				Channel:    s.channel,
			})
		}
		a.scheduleTeardown(a.r.closeDelay)
	case StateDeclined:
		a.emit(audit.EventVerificationDeclined, s.channel, s.status, "")
		a.scheduleTeardown(0)
	case StateFailed:
		a.emit(audit.EventVerificationFailed, s.channel, "", s.reason)
		a.scheduleTeardown(0)
	case StateExpired:
		a.emit(audit.EventVerificationExpired, s.channel, "", "")
		a.scheduleTeardown(0)
	default:
		a.emit(audit.EventVerificationCancelled, s.channel, "", "")
		a.scheduleTeardown(0)
	}
	return true
}

func (a *Attempt) scheduleTeardown(delay time.Duration) {
	if delay <= 0 {
		go a.teardown()
		return
	}
	t := time.AfterFunc(delay, a.teardown)
	a.mu.Lock()
	a.teardownTimer = t
	a.mu.Unlock()
}

func (a *Attempt) teardown() {
	a.teardownOnce.Do(func() {
		a.cancel()
		a.wg.Wait()
		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()
		close(a.closedCh)
		if a.onClosed != nil {
			a.onClosed(a)
		}
	})
}

func (a *Attempt) emit(action audit.AuditEvent, ch Channel, status models.Status, reason string) {
	if a.r.audit == nil {
		return
	}
	a.mu.RLock()
	sessionID := a.sessionID
	fromCache := a.fromCache
	a.mu.RUnlock()
	err := a.r.audit.Emit(context.WithoutCancel(a.ctx), audit.Event{
		Action:      string(action),
		AttemptID:   a.id,
		SessionID:   sessionID,
		SubjectHash: audit.HashSubject(a.subject),
		Channel:     string(ch),
		Status:      string(status),
		FromCache:   fromCache,
		Reason:      reason,
		RequestID:   a.requestID,
	})
	if err != nil {
		a.r.logger.DebugContext(a.ctx, "audit emit failed", "action", action, "error", err)
	}
}

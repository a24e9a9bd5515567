// Package reconciler drives verification attempts from initiation to a single
// authoritative outcome.
//
// An attempt listens on three channels at once: provider status polling, the
// local broadcast store and cross-window messages. Whichever channel first
// reports a terminal status wins the attempt's resolution token; every later
// signal is a no-op. The token is taken before any side effect, so the session
// cache is written and the completion callback invoked at most once.
package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"verigate/internal/verification/broadcast"
	"verigate/internal/verification/cache"
	"verigate/internal/verification/messaging"
	"verigate/internal/verification/metrics"
	"verigate/internal/verification/models"
	"verigate/internal/verification/provider"
	dErrors "verigate/pkg/domain-errors"
	audit "verigate/pkg/platform/audit"
	"verigate/pkg/requestcontext"
)

const (
	// DefaultStorePollInterval is how often the broadcast key is read directly.
	DefaultStorePollInterval = time.Second
	// DefaultCloseDelay is how long a settled attempt stays live before teardown.
	DefaultCloseDelay = 800 * time.Millisecond
)

// SessionProvider creates provider sessions and reports their status.
type SessionProvider interface {
	CreateSession(ctx context.Context, req models.CreateSessionRequest) (*models.Session, error)
	Status(ctx context.Context, sessionID string) (*models.StatusResult, error)
}

// Completion is passed to the completion callback exactly once per approved attempt.
type Completion struct {
	AttemptID  string
	SessionID  string
	SubjectKey string
	FromCache  bool
	Channel    Channel
}

// CompletionFunc receives the Completion of an approved attempt.
type CompletionFunc func(Completion)

// StartRequest describes a new attempt.
type StartRequest struct {
	// AttemptID is generated when empty.
	AttemptID string
	Subject   string
	Flow      models.Flow
	// CallbackURL is handed to the provider as the post-session redirect.
	CallbackURL string
	Metadata    map[string]string
	// OwnOrigin is the origin of the initiating page. Cross-window messages are
	// accepted from it and from the session URL's origin.
	OwnOrigin string
	// OnClosed runs once after the attempt has been torn down.
	OnClosed func(*Attempt)
}

// Reconciler starts attempts against a SessionProvider and settles each one
// from the first terminal status reported on any channel.
type Reconciler struct {
	provider SessionProvider
	cache    cache.Store
	signals  broadcast.Store
	bus      *messaging.Bus
	audit    audit.Emitter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time

	pollInterval      time.Duration
	storePollInterval time.Duration
	closeDelay        time.Duration
	maxDuration       time.Duration
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithSignalStore enables the local broadcast channel.
func WithSignalStore(s broadcast.Store) Option {
	return func(r *Reconciler) {
		r.signals = s
	}
}

// WithMessageBus enables the cross-window message channel.
func WithMessageBus(b *messaging.Bus) Option {
	return func(r *Reconciler) {
		r.bus = b
	}
}

func WithAudit(e audit.Emitter) Option {
	return func(r *Reconciler) {
		r.audit = e
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// WithPollInterval overrides the per-flow provider polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(r *Reconciler) {
		r.pollInterval = d
	}
}

// WithStorePollInterval sets how often the broadcast key is read directly.
// Zero disables direct reads and relies on notifications alone.
func WithStorePollInterval(d time.Duration) Option {
	return func(r *Reconciler) {
		r.storePollInterval = d
	}
}

// WithCloseDelay sets the pause between approval and teardown.
func WithCloseDelay(d time.Duration) Option {
	return func(r *Reconciler) {
		r.closeDelay = d
	}
}

// WithMaxDuration bounds how long an attempt may stay active. Zero means unbounded.
func WithMaxDuration(d time.Duration) Option {
	return func(r *Reconciler) {
		r.maxDuration = d
	}
}

func New(p SessionProvider, store cache.Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		provider:          p,
		cache:             store,
		logger:            slog.Default(),
		tracer:            otel.Tracer("verigate/reconciler"),
		now:               time.Now,
		storePollInterval: DefaultStorePollInterval,
		closeDelay:        DefaultCloseDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start runs one attempt.
//
// On a cache hit the attempt resolves before Start returns, onComplete is
// called synchronously with FromCache set and the provider is not contacted.
// If session creation fails the returned attempt is in StateFailed and the
// error describes the failure. Otherwise the attempt is active and onComplete
// is called from a listener goroutine once it is approved.
func (r *Reconciler) Start(ctx context.Context, req StartRequest, onComplete CompletionFunc) (*Attempt, error) {
	if strings.TrimSpace(req.Subject) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "subject is required")
	}
	ctx, span := r.tracer.Start(ctx, "reconciler.Start")
	defer span.End()

	a := r.newAttempt(ctx, req, onComplete)
	span.SetAttributes(
		attribute.String("verification.attempt_id", a.id),
		attribute.String("verification.flow", string(a.flow)),
	)
	r.metrics.IncAttemptStarted(string(a.flow))
	a.emit(audit.EventVerificationStarted, "", "", "")

	a.setState(StateCheckingCache)
	hit, err := r.cache.Get(ctx, a.subject)
	if err != nil {
		r.logger.WarnContext(ctx, "session cache lookup failed, continuing without cache",
			"attempt_id", a.id,
			"error", err,
		)
	}
	if hit != nil && hit.Status.IsApproved() {
		a.resolveFromCache(hit.SessionID)
		span.SetAttributes(attribute.Bool("verification.from_cache", true))
		return a, nil
	}

	a.setState(StateCreating)
	sess, err := r.provider.CreateSession(ctx, models.CreateSessionRequest{
		SubjectIdentifier: a.subject,
		CallbackURL:       req.CallbackURL,
		Metadata:          req.Metadata,
	})
	if err == nil && (sess == nil || sess.ID == "") {
		err = &provider.Error{Category: provider.CategoryContractMismatch, Operation: "create_session", Message: "empty session"}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create session failed")
		a.settle(settlement{
			state:   StateFailed,
			channel: ChannelCreate,
			message: createFailureMessage(err),
			reason:  err.Error(),
		})
		return a, startError(err)
	}

	a.activate(sess)
	span.SetAttributes(attribute.String("verification.session_id", sess.ID))
	return a, nil
}

func (r *Reconciler) newAttempt(ctx context.Context, req StartRequest, onComplete CompletionFunc) *Attempt {
	id := req.AttemptID
	if id == "" {
		id = uuid.NewString()
	}
	flow := req.Flow
	if flow == "" {
		flow = models.FlowCaptcha
	}
	// Listeners outlive the request that started the attempt.
	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &Attempt{
		id:         id,
		subject:    req.Subject,
		flow:       flow,
		ownOrigin:  req.OwnOrigin,
		requestID:  requestcontext.RequestID(ctx),
		r:          r,
		onComplete: onComplete,
		onClosed:   req.OnClosed,
		ctx:        listenCtx,
		cancel:     cancel,
		state:      StateIdle,
		startedAt:  r.now(),
		settledCh:  make(chan struct{}),
		closedCh:   make(chan struct{}),
	}
}

func (r *Reconciler) pollIntervalFor(flow models.Flow) time.Duration {
	if r.pollInterval > 0 {
		return r.pollInterval
	}
	return flow.PollInterval()
}

func startError(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if provider.CategoryOf(err) == provider.CategoryMisconfigured {
		return dErrors.Wrap(err, dErrors.CodeMisconfigured, "server is not configured for verification")
	}
	return dErrors.Wrap(err, dErrors.CodeUpstreamFailed, "failed to create verification session")
}

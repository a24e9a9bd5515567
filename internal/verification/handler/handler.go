// Package handler exposes the verification gateway over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"verigate/internal/verification/broadcast"
	"verigate/internal/verification/callback"
	"verigate/internal/verification/messaging"
	"verigate/internal/verification/models"
	"verigate/internal/verification/reconciler"
	"verigate/pkg/platform/audit"
	"verigate/pkg/platform/httputil"
	"verigate/pkg/platform/middleware/ratelimit"
)

// SessionService proxies the verification provider.
type SessionService interface {
	CreateSession(ctx context.Context, req models.CreateSessionRequest) (*models.Session, error)
	Status(ctx context.Context, sessionID string) (*models.StatusResult, error)
	Decision(ctx context.Context, sessionID string) (map[string]any, error)
	Submit(ctx context.Context, email, sessionID string) error
}

// AttemptManager starts and tracks reconciled verification attempts.
type AttemptManager interface {
	Start(ctx context.Context, req reconciler.StartRequest, onComplete reconciler.CompletionFunc) (*reconciler.Snapshot, error)
	Get(id string) (*reconciler.Snapshot, error)
	Check(ctx context.Context, id string) (reconciler.CheckResult, error)
	Close(id string) (*reconciler.Snapshot, error)
}

// Handler serves the session proxy, attempt, callback and relay endpoints.
type Handler struct {
	sessions     SessionService
	attempts     AttemptManager
	signals      broadcast.Store
	bus          *messaging.Bus
	signer       *callback.Signer
	audit        audit.Emitter
	relayLimiter *ratelimit.Limiter
	publicOrigin string
	logger       *slog.Logger
}

type Option func(*Handler)

func WithSignalStore(s broadcast.Store) Option {
	return func(h *Handler) {
		h.signals = s
	}
}

func WithMessageBus(b *messaging.Bus) Option {
	return func(h *Handler) {
		h.bus = b
	}
}

// WithSigner makes the callback endpoint require a valid signed token.
func WithSigner(s *callback.Signer) Option {
	return func(h *Handler) {
		h.signer = s
	}
}

func WithAudit(e audit.Emitter) Option {
	return func(h *Handler) {
		h.audit = e
	}
}

// WithRelayLimiter rate limits the unauthenticated callback and message endpoints.
func WithRelayLimiter(l *ratelimit.Limiter) Option {
	return func(h *Handler) {
		h.relayLimiter = l
	}
}

// WithPublicOrigin sets the origin the gateway is served from. Messages
// relayed by the callback page carry it.
func WithPublicOrigin(origin string) Option {
	return func(h *Handler) {
		h.publicOrigin = origin
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func New(sessions SessionService, attempts AttemptManager, opts ...Option) *Handler {
	h := &Handler{
		sessions: sessions,
		attempts: attempts,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the verification routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(noStore)

		r.Post("/api/sessions", h.handleCreateSession)
		r.Get("/api/sessions/{id}/status", h.handleSessionStatus)
		r.Get("/api/sessions/{id}/decision", h.handleSessionDecision)
		r.Post("/api/captcha/submit", h.handleSubmit)

		r.Post("/api/attempts", h.handleStartAttempt)
		r.Get("/api/attempts/{id}", h.handleGetAttempt)
		r.Post("/api/attempts/{id}/check", h.handleCheckAttempt)
		r.Delete("/api/attempts/{id}", h.handleCloseAttempt)

		r.Group(func(r chi.Router) {
			if h.relayLimiter != nil {
				r.Use(h.relayLimiter.Middleware)
			}
			r.Get(callback.Path, h.handleCallback)
			r.Post("/api/messages", h.handleRelayMessage)
		})
	})
}

func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.NoStore(w)
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) emit(ctx context.Context, event audit.Event) {
	if h.audit == nil {
		return
	}
	if err := h.audit.Emit(context.WithoutCancel(ctx), event); err != nil {
		h.logger.DebugContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}

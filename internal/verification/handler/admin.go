package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/email"
	"verigate/pkg/platform/audit"
	"verigate/pkg/platform/httputil"
	"verigate/pkg/platform/middleware/admin"
	"verigate/pkg/requestcontext"
)

// CacheEvicter drops cached verifications.
type CacheEvicter interface {
	Evict(ctx context.Context, subjectKey string) error
}

// AuditLister reads the audit trail of one attempt.
type AuditLister interface {
	List(ctx context.Context, attemptID string) ([]audit.Event, error)
}

// Admin serves operator endpoints behind the admin token.
type Admin struct {
	cache  CacheEvicter
	events AuditLister
	token  string
	logger *slog.Logger
}

func NewAdmin(cache CacheEvicter, events AuditLister, token string, logger *slog.Logger) *Admin {
	return &Admin{cache: cache, events: events, token: token, logger: logger}
}

func (a *Admin) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(noStore)
		r.Use(admin.RequireAdminToken(a.token, a.logger))
		r.Delete("/cache", a.handleEvict)
		r.Get("/attempts/{id}/audit", a.handleAudit)
	})
}

func (a *Admin) handleEvict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := strings.TrimSpace(r.URL.Query().Get("subject"))
	if subject == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "subject is required"))
		return
	}
	if err := a.cache.Evict(ctx, subject); err != nil {
		a.logger.ErrorContext(ctx, "failed to evict cached verification",
			"request_id", requestcontext.RequestID(ctx),
			"subject", email.Mask(subject),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	a.logger.InfoContext(ctx, "evicted cached verification",
		"request_id", requestcontext.RequestID(ctx),
		"subject", email.Mask(subject),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (a *Admin) handleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	events, err := a.events.List(ctx, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

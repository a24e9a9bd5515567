// Package service adapts the provider client to the reconciler's session
// contract and implements the decision display and gated submit operations.
package service

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"strings"
	"time"

	"verigate/internal/verification/models"
	"verigate/internal/verification/provider"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/sentinel"
)

// DefaultDecisionTTL is how long a decision stays viewable after the session was created.
const DefaultDecisionTTL = 60 * time.Minute

// ProviderClient is the subset of the provider API the service uses.
type ProviderClient interface {
	CreateSession(ctx context.Context, in provider.CreateSessionInput) (*provider.CreatedSession, error)
	Decision(ctx context.Context, sessionID string) (*provider.Decision, error)
}

type Service struct {
	client      ProviderClient
	logger      *slog.Logger
	now         func() time.Time
	decisionTTL time.Duration
	source      string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithDecisionTTL overrides DefaultDecisionTTL.
func WithDecisionTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.decisionTTL = d
		}
	}
}

// WithSource sets metadata.source on sessions created without one.
func WithSource(source string) Option {
	return func(s *Service) {
		s.source = source
	}
}

func New(client ProviderClient, opts ...Option) *Service {
	s := &Service{
		client:      client,
		logger:      slog.Default(),
		now:         time.Now,
		decisionTTL: DefaultDecisionTTL,
		source:      "verigate",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession opens a provider session for the subject.
func (s *Service) CreateSession(ctx context.Context, req models.CreateSessionRequest) (*models.Session, error) {
	subject := strings.TrimSpace(req.SubjectIdentifier)
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email is required")
	}
	metadata := maps.Clone(req.Metadata)
	if metadata == nil {
		metadata = map[string]string{}
	}
	if _, ok := metadata["source"]; !ok && s.source != "" {
		metadata["source"] = s.source
	}

	created, err := s.client.CreateSession(ctx, provider.CreateSessionInput{
		Email:    subject,
		Callback: req.CallbackURL,
		Metadata: metadata,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create verification session", "error", err)
		return nil, translate(err, "failed to create verification session")
	}
	return &models.Session{ID: created.SessionID, URL: created.URL}, nil
}

// Status reports whether sessionID has been approved.
func (s *Service) Status(ctx context.Context, sessionID string) (*models.StatusResult, error) {
	if sessionID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "session id is required")
	}
	d, err := s.client.Decision(ctx, sessionID)
	if err != nil {
		return nil, translate(err, "failed to retrieve verification decision")
	}
	status := models.ParseStatus(d.Status)
	return &models.StatusResult{
		Verified:          status.IsApproved(),
		Status:            status,
		SubjectIdentifier: d.Email,
	}, nil
}

// Decision returns the provider's decision document for display with
// session_number removed. Decisions for sessions created more than the
// decision TTL ago are gone.
func (s *Service) Decision(ctx context.Context, sessionID string) (map[string]any, error) {
	if sessionID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "session id is required")
	}
	d, err := s.client.Decision(ctx, sessionID)
	if err != nil {
		return nil, translate(err, "failed to fetch decision data")
	}
	if !d.CreatedAt.IsZero() && s.now().Sub(d.CreatedAt) > s.decisionTTL {
		return nil, dErrors.Wrap(sentinel.ErrExpired, dErrors.CodeGone, "verification session has expired")
	}
	out := maps.Clone(d.Raw)
	delete(out, "session_number")
	return out, nil
}

// Submit accepts a form submission only when sessionID is approved and, if the
// decision names an email, it matches email case-insensitively.
func (s *Service) Submit(ctx context.Context, email, sessionID string) error {
	email = strings.TrimSpace(email)
	if email == "" || sessionID == "" {
		return dErrors.New(dErrors.CodeValidation, "email and verification session are required")
	}
	d, err := s.client.Decision(ctx, sessionID)
	if err != nil {
		s.logger.WarnContext(ctx, "decision lookup failed during submit", "error", err)
		if provider.CategoryOf(err) == provider.CategoryMisconfigured {
			return translate(err, "")
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "could not verify session")
	}
	if !models.ParseStatus(d.Status).IsApproved() {
		return dErrors.New(dErrors.CodeBadRequest, "verification not completed successfully")
	}
	if d.Email != "" && !strings.EqualFold(d.Email, email) {
		return dErrors.New(dErrors.CodeBadRequest, "email does not match verified session")
	}
	return nil
}

func translate(err error, msg string) error {
	var pe *provider.Error
	if !errors.As(err, &pe) {
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
	switch pe.Category {
	case provider.CategoryMisconfigured:
		return dErrors.Wrap(err, dErrors.CodeMisconfigured, "server is not configured for verification")
	case provider.CategoryNotFound:
		return dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "verification session not found")
	case provider.CategoryTimeout:
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	case provider.CategoryRateLimited:
		return dErrors.Wrap(err, dErrors.CodeRateLimited, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeUpstreamFailed, msg)
	}
}

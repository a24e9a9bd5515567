// Package cache stores the most recent approved verification per subject so a
// returning user skips the provider round trip while the entry is fresh.
//
// Entries live for TTL (48h by default). A read that finds an expired entry
// deletes it and reports a miss. Only Approved outcomes may be stored: caching
// a Declined or Pending result would short-circuit later attempts.
package cache

import (
	"context"
	"strings"
	"time"

	"verigate/internal/verification/metrics"
	"verigate/internal/verification/models"
	dErrors "verigate/pkg/domain-errors"
)

// DefaultTTL is how long an approved verification short-circuits new attempts.
const DefaultTTL = 48 * time.Hour

// ErrNotCacheable is returned by Put for any status other than Approved.
var ErrNotCacheable = dErrors.New(dErrors.CodeInvalidState, "only approved verifications can be cached")

// Store is the subject-keyed verification cache. Subject keys are
// case-sensitive. Get returns nil, nil on a miss.
type Store interface {
	Get(ctx context.Context, subjectKey string) (*models.VerifiedSession, error)
	Put(ctx context.Context, subjectKey, sessionID string, status models.Status) error
	Evict(ctx context.Context, subjectKey string) error
}

type options struct {
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
}

// Option configures a Store implementation.
type Option func(*options)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock overrides the time source used for VerifiedAt and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func newOptions(opts []Option) options {
	o := options{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func validatePut(subjectKey, sessionID string, status models.Status) error {
	if strings.TrimSpace(subjectKey) == "" {
		return dErrors.New(dErrors.CodeValidation, "subject key is required")
	}
	if sessionID == "" {
		return dErrors.New(dErrors.CodeValidation, "session id is required")
	}
	if !status.IsApproved() {
		return ErrNotCacheable
	}
	return nil
}

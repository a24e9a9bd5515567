// Package callback builds and verifies the provider callback URL.
//
// When a signing key is configured every callback URL carries a short-lived
// HS256 token bound to the attempt it was issued for. The HTTP layer also
// checks that the attempt owns the session named in the callback.
package callback

import (
	"errors"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "verigate/pkg/domain-errors"
)

const (
	// Path is where the provider redirects after a session finishes.
	Path = "/verification/callback"

	ParamAttempt = "attempt"
	ParamToken   = "cb"
	ParamSession = "verificationSessionId"
	ParamStatus  = "status"

	DefaultTokenTTL = 2 * time.Hour
)

type Claims struct {
	AttemptID string `json:"attempt_id"`
	jwt.RegisteredClaims
}

// Signer issues and validates callback tokens. A Signer with an empty key is
// disabled: it signs nothing and accepts everything.
type Signer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(key, issuer string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Signer{key: []byte(key), issuer: issuer, ttl: ttl, now: time.Now}
}

func (s *Signer) Enabled() bool {
	return s != nil && len(s.key) > 0
}

// Sign returns a token bound to attemptID, or "" when signing is disabled.
func (s *Signer) Sign(attemptID string) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		AttemptID: attemptID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.key)
}

// Verify checks that token is valid and was issued for attemptID.
func (s *Signer) Verify(token, attemptID string) error {
	if !s.Enabled() {
		return nil
	}
	if token == "" {
		return dErrors.New(dErrors.CodeForbidden, "missing callback token")
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.key, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return dErrors.New(dErrors.CodeForbidden, "callback token has expired")
		}
		return dErrors.New(dErrors.CodeForbidden, "invalid callback token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.AttemptID != attemptID {
		return dErrors.New(dErrors.CodeForbidden, "callback token does not match attempt")
	}
	return nil
}

// URL returns the callback URL for attemptID under origin.
func (s *Signer) URL(origin, attemptID string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeMisconfigured, "invalid public origin")
	}
	u.Path = Path
	q := url.Values{}
	q.Set(ParamAttempt, attemptID)
	token, err := s.Sign(attemptID)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign callback")
	}
	if token != "" {
		q.Set(ParamToken, token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

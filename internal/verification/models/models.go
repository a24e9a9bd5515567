// Package models holds the verification domain types shared by the cache,
// the reconciler and the HTTP layer.
package models

import (
	"strings"
	"time"
)

// Status is a verification outcome as reported by the session provider.
// Unknown provider values are carried through unchanged.
type Status string

const (
	StatusApproved Status = "Approved"
	StatusDeclined Status = "Declined"
	StatusRejected Status = "Rejected"
	StatusPending  Status = "Pending"
	StatusInReview Status = "In Review"
)

// ParseStatus normalizes provider spellings ("approved", "in_review", "In Review")
// onto the canonical values. Unrecognized strings are returned trimmed.
func ParseStatus(raw string) Status {
	trimmed := strings.TrimSpace(raw)
	key := strings.ToLower(strings.NewReplacer("_", "", " ", "", "-", "").Replace(trimmed))
	switch key {
	case "approved":
		return StatusApproved
	case "declined":
		return StatusDeclined
	case "rejected":
		return StatusRejected
	case "pending", "notstarted", "inprogress":
		return StatusPending
	case "inreview":
		return StatusInReview
	default:
		return Status(trimmed)
	}
}

func (s Status) String() string {
	return string(s)
}

func (s Status) IsApproved() bool {
	return s == StatusApproved
}

// IsNegative reports a terminal negative business outcome.
func (s Status) IsNegative() bool {
	return s == StatusDeclined || s == StatusRejected
}

// IsTerminal reports whether no further change is expected.
func (s Status) IsTerminal() bool {
	return s.IsApproved() || s.IsNegative()
}

// VerifiedSession is a cached verification outcome for one subject.
type VerifiedSession struct {
	SessionID  string    `json:"session_id"`
	SubjectKey string    `json:"subject_key"`
	VerifiedAt time.Time `json:"verified_at"`
	Status     Status    `json:"status"`
}

// Expired reports whether the entry is past its TTL at now. An entry aged
// exactly ttl is expired.
func (v VerifiedSession) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(v.VerifiedAt) >= ttl
}

// Session is a verification session issued by the provider.
type Session struct {
	ID  string `json:"session_id"`
	URL string `json:"session_url"`
}

// CreateSessionRequest describes a new provider session.
type CreateSessionRequest struct {
	SubjectIdentifier string
	CallbackURL       string
	Metadata          map[string]string
}

// StatusResult is the provider's view of a session's progress.
type StatusResult struct {
	Verified          bool   `json:"verified"`
	Status            Status `json:"status"`
	SubjectIdentifier string `json:"subject_identifier,omitempty"`
}

// Flow selects the polling cadence of an attempt.
type Flow string

const (
	// FlowCaptcha is the one-click liveness check embedded in a form.
	FlowCaptcha Flow = "captcha"
	// FlowLongForm is the full document + biometric workflow.
	FlowLongForm Flow = "long_form"
)

// ParseFlow defaults unknown values to FlowCaptcha.
func ParseFlow(raw string) Flow {
	if strings.EqualFold(strings.TrimSpace(raw), string(FlowLongForm)) {
		return FlowLongForm
	}
	return FlowCaptcha
}

// PollInterval is the provider status polling period for the flow.
func (f Flow) PollInterval() time.Duration {
	if f == FlowLongForm {
		return 30 * time.Second
	}
	return 3 * time.Second
}

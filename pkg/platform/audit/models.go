package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers final verification outcomes.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers rejected or forged signals.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine attempt lifecycle events. These may be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted by the reconciler and the HTTP layer. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string        `json:"id,omitempty"`
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	AttemptID string        `json:"attempt_id,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
	// SubjectHash is a SHA-256 hash of the subject key. Raw subjects are never stored.
	SubjectHash string `json:"subject_hash,omitempty"`
	// Channel names the signal channel that produced the event (poll, storage, message, check).
	Channel   string `json:"channel,omitempty"`
	Status    string `json:"status,omitempty"`
	FromCache bool   `json:"from_cache,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	EventVerificationStarted   AuditEvent = "verification_started"
	EventVerificationCacheHit  AuditEvent = "verification_cache_hit"
	EventVerificationApproved  AuditEvent = "verification_approved"
	EventVerificationDeclined  AuditEvent = "verification_declined"
	EventVerificationFailed    AuditEvent = "verification_failed"
	EventVerificationCancelled AuditEvent = "verification_cancelled"
	EventVerificationExpired   AuditEvent = "verification_expired"

	EventSignalRejected   AuditEvent = "signal_rejected"
	EventCallbackRejected AuditEvent = "callback_rejected"
	EventSubmitAccepted   AuditEvent = "submit_accepted"
	EventSubmitRejected   AuditEvent = "submit_rejected"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventVerificationApproved: CategoryCompliance,
	EventVerificationDeclined: CategoryCompliance,
	EventSubmitAccepted:       CategoryCompliance,

	EventSignalRejected:   CategorySecurity,
	EventCallbackRejected: CategorySecurity,
	EventSubmitRejected:   CategorySecurity,

	EventVerificationStarted:   CategoryOperations,
	EventVerificationCacheHit:  CategoryOperations,
	EventVerificationFailed:    CategoryOperations,
	EventVerificationCancelled: CategoryOperations,
	EventVerificationExpired:   CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// HashSubject returns the hex SHA-256 of a subject key, or "" for an empty key.
func HashSubject(subject string) string {
	if subject == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(subject))
	return hex.EncodeToString(sum[:])
}

// Normalize fills the derived fields of e.
func Normalize(e Event, now time.Time) Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	if e.Category == "" {
		e.Category = AuditEvent(e.Action).Category()
	}
	return e
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Emitter is what producers of audit events depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

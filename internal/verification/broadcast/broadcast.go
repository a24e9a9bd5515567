// Package broadcast is the same-origin signal channel between the provider
// callback page and waiting attempts.
//
// The callback writes a small JSON payload under callback-<sessionId> and
// notifies subscribers. Attempts listen for the notification and also read the
// key on a timer, because notifications are not guaranteed to be delivered.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SignalType is the only payload type attempts act on.
const SignalType = "VERIFICATION_SUCCESS"

// DefaultRetention bounds how long an unread signal is kept.
const DefaultRetention = 10 * time.Minute

// ErrMalformed marks payloads that cannot be trusted. Callers drop them.
var ErrMalformed = errors.New("malformed signal payload")

// Signal is the wire payload: {"type":"VERIFICATION_SUCCESS","sessionId":"…","status":"…"}.
type Signal struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
}

// Key returns the per-session storage key.
func Key(sessionID string) string {
	return "callback-" + sessionID
}

// Decode parses and validates a raw payload.
func Decode(raw []byte) (Signal, error) {
	var sig Signal
	if err := json.Unmarshal(raw, &sig); err != nil {
		return Signal{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if sig.Type != SignalType {
		return Signal{}, fmt.Errorf("%w: unexpected type %q", ErrMalformed, sig.Type)
	}
	if sig.SessionID == "" {
		return Signal{}, fmt.Errorf("%w: missing sessionId", ErrMalformed)
	}
	return sig, nil
}

// Store holds the latest raw payload per session and fans out notifications.
type Store interface {
	// Put stores raw under Key(sessionID) and notifies subscribers of that session.
	Put(ctx context.Context, sessionID string, raw []byte) error
	// Get returns the stored payload, or nil when none is present.
	Get(ctx context.Context, sessionID string) ([]byte, error)
	Delete(ctx context.Context, sessionID string) error
	// Subscribe delivers payloads Put for sessionID until cancel is called or
	// ctx is done. The returned channel is closed on cancellation.
	Subscribe(ctx context.Context, sessionID string) (<-chan []byte, func(), error)
}

// Publish encodes sig and writes it to store.
func Publish(ctx context.Context, store Store, sig Signal) error {
	if sig.Type == "" {
		sig.Type = SignalType
	}
	raw, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}
	return store.Put(ctx, sig.SessionID, raw)
}

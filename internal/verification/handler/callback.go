package handler

import (
	"context"
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"strings"

	"verigate/internal/verification/broadcast"
	"verigate/internal/verification/callback"
	"verigate/internal/verification/messaging"
	"verigate/internal/verification/models"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/audit"
	"verigate/pkg/platform/httputil"
	"verigate/pkg/requestcontext"
)

const maxMessageBytes = 4 << 10

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Verification</title></head>
<body>
<p>{{.Message}}</p>
<p>You can close this window.</p>
</body>
</html>
`))

// handleCallback is where the provider redirects the verification window. It
// writes the outcome to both the broadcast store and the message bus.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	q := r.URL.Query()
	attemptID := q.Get(callback.ParamAttempt)
	sessionID := strings.TrimSpace(q.Get(callback.ParamSession))

	if err := h.authorizeRelay(q.Get(callback.ParamToken), attemptID, sessionID); err != nil {
		h.rejectRelay(ctx, w, audit.EventCallbackRejected, attemptID, sessionID, err)
		return
	}
	if sessionID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "verificationSessionId is required"))
		return
	}

	rawStatus := q.Get(callback.ParamStatus)
	status := CallbackStatus(rawStatus)
	if rawStatus != "" {
		h.relaySignal(ctx, broadcast.Signal{Type: broadcast.SignalType, SessionID: sessionID, Status: string(status)})
	}

	h.logger.InfoContext(ctx, "verification callback received",
		"request_id", requestID,
		"attempt_id", attemptID,
		"session_id", sessionID,
		"status", status,
	)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = callbackPage.Execute(w, struct{ Message string }{Message: callbackMessage(status)})
}

// authorizeRelay checks the callback token for attemptID and, once sessionID
// is known, that the attempt was issued for that session. It accepts
// everything when signing is disabled.
func (h *Handler) authorizeRelay(token, attemptID, sessionID string) error {
	if !h.signer.Enabled() {
		return nil
	}
	if err := h.signer.Verify(token, attemptID); err != nil {
		return err
	}
	if sessionID == "" || h.attempts == nil {
		return nil
	}
	snap, err := h.attempts.Get(attemptID)
	if err != nil || snap.SessionID != sessionID {
		return dErrors.New(dErrors.CodeForbidden, "callback session does not match attempt")
	}
	return nil
}

func (h *Handler) rejectRelay(ctx context.Context, w http.ResponseWriter, action audit.AuditEvent, attemptID, sessionID string, err error) {
	requestID := requestcontext.RequestID(ctx)
	h.logger.WarnContext(ctx, "rejected unauthorized relay",
		"request_id", requestID,
		"attempt_id", attemptID,
		"session_id", sessionID,
		"error", err,
	)
	h.emit(ctx, audit.Event{
		Action:    string(action),
		AttemptID: attemptID,
		SessionID: sessionID,
		Reason:    err.Error(),
		RequestID: requestID,
	})
	httputil.WriteError(w, err)
}

// relaySignal writes sig to both local signal channels.
func (h *Handler) relaySignal(ctx context.Context, sig broadcast.Signal) {
	if h.signals != nil {
		if err := broadcast.Publish(ctx, h.signals, sig); err != nil {
			h.logger.ErrorContext(ctx, "failed to store verification signal",
				"request_id", requestcontext.RequestID(ctx),
				"session_id", sig.SessionID,
				"error", err,
			)
		}
	}
	if h.bus != nil {
		if raw, err := json.Marshal(sig); err == nil {
			h.bus.Publish(messaging.Message{Origin: h.publicOrigin, Data: raw})
		}
	}
}

// handleRelayMessage forwards a cross-window message. The sender's origin is
// taken from the Origin header; listeners decide whether to trust it. With
// signing enabled the sender must present the attempt and token of its
// callback URL.
func (h *Handler) handleRelayMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes+1))
	if err != nil || len(raw) > maxMessageBytes {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "message body too large or unreadable"))
		return
	}
	sig, err := broadcast.Decode(raw)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed verification message"))
		return
	}
	q := r.URL.Query()
	attemptID := q.Get(callback.ParamAttempt)
	if err := h.authorizeRelay(q.Get(callback.ParamToken), attemptID, sig.SessionID); err != nil {
		h.rejectRelay(ctx, w, audit.EventSignalRejected, attemptID, sig.SessionID, err)
		return
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = requestcontext.Origin(ctx)
	}
	if h.bus == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "message relay is disabled"))
		return
	}
	delivered := h.bus.Publish(messaging.Message{Origin: origin, Data: raw})
	httputil.WriteJSON(w, http.StatusAccepted, map[string]int{"delivered": delivered})
}

// CallbackStatus maps the provider's redirect status parameter onto a
// verification status. A missing parameter reads as pending.
func CallbackStatus(raw string) models.Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return models.StatusPending
	case s == "approved", s == "success", s == "completed":
		return models.StatusApproved
	case s == "rejected", s == "declined", s == "failed":
		return models.StatusDeclined
	case strings.Contains(s, "review"):
		return models.StatusInReview
	default:
		return models.ParseStatus(raw)
	}
}

func callbackMessage(status models.Status) string {
	switch {
	case status.IsApproved():
		return "Verification complete."
	case status.IsNegative():
		return "Verification was declined."
	default:
		return "Verification submitted. We are reviewing your result."
	}
}

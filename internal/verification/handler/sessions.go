package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"verigate/internal/verification/models"
	"verigate/pkg/email"
	"verigate/pkg/platform/audit"
	"verigate/pkg/platform/httputil"
	"verigate/pkg/platform/middleware/device"
	"verigate/pkg/requestcontext"
)

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateSessionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	sess, err := h.sessions.CreateSession(ctx, models.CreateSessionRequest{
		SubjectIdentifier: req.Email,
		CallbackURL:       req.Callback,
		Metadata:          withDevice(r, req.Metadata),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create verification session",
			"request_id", requestID,
			"subject", email.Mask(req.Email),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sess)
}

func (h *Handler) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	res, err := h.sessions.Status(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to fetch session status",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleSessionDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	decision, err := h.sessions.Decision(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to fetch session decision",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, decision)
}

// handleSubmit accepts a form submission only for an approved session that
// belongs to the submitting email.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	event := audit.Event{
		SessionID:   req.SessionID,
		SubjectHash: audit.HashSubject(req.Email),
		RequestID:   requestID,
	}
	if err := h.sessions.Submit(ctx, req.Email, req.SessionID); err != nil {
		h.logger.WarnContext(ctx, "submission rejected",
			"request_id", requestID,
			"session_id", req.SessionID,
			"error", err,
		)
		event.Action = string(audit.EventSubmitRejected)
		event.Reason = err.Error()
		h.emit(ctx, event)
		httputil.WriteError(w, err)
		return
	}

	event.Action = string(audit.EventSubmitAccepted)
	h.emit(ctx, event)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Form submitted successfully.",
	})
}

// withDevice copies metadata and adds the caller's device label.
func withDevice(r *http.Request, metadata map[string]string) map[string]string {
	out := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	if label := device.FromContext(r.Context()).Label; label != "" {
		if _, set := out["device"]; !set {
			out["device"] = label
		}
	}
	return out
}

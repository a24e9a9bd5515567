package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"verigate/internal/verification/models"
	"verigate/internal/verification/reconciler"
	"verigate/pkg/email"
	"verigate/pkg/platform/httputil"
	"verigate/pkg/requestcontext"
)

func (h *Handler) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[StartAttemptRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	snap, err := h.attempts.Start(ctx, reconciler.StartRequest{
		Subject:   req.Email,
		Flow:      models.ParseFlow(req.Flow),
		Metadata:  withDevice(r, req.Metadata),
		OwnOrigin: h.publicOrigin,
	}, h.completed(req.Email))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to start verification attempt",
			"request_id", requestID,
			"subject", email.Mask(req.Email),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusCreated
	if snap.State == reconciler.StateResolved {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, snap)
}

func (h *Handler) completed(subject string) reconciler.CompletionFunc {
	return func(c reconciler.Completion) {
		h.logger.Info("verification completed",
			"attempt_id", c.AttemptID,
			"session_id", c.SessionID,
			"subject", email.Mask(subject),
			"channel", c.Channel,
			"from_cache", c.FromCache,
		)
	}
}

func (h *Handler) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	snap, err := h.attempts.Get(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// handleCheckAttempt is the user's "I'm done" action.
func (h *Handler) handleCheckAttempt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.attempts.Check(ctx, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleCloseAttempt(w http.ResponseWriter, r *http.Request) {
	snap, err := h.attempts.Close(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

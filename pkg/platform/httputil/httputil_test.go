package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "verigate/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		status      int
		code        string
		description string
	}{
		{name: "internal error omits description", err: dErrors.New(dErrors.CodeInternal, "db failed"), status: http.StatusInternalServerError, code: "internal_error"},
		{name: "bad request includes description", err: dErrors.New(dErrors.CodeBadRequest, "invalid input"), status: http.StatusBadRequest, code: "bad_request", description: "invalid input"},
		{name: "expired decision is gone", err: dErrors.New(dErrors.CodeGone, "verification session has expired"), status: http.StatusGone, code: string(dErrors.CodeGone), description: "verification session has expired"},
		{name: "misconfiguration is a 500 with description", err: dErrors.New(dErrors.CodeMisconfigured, "server is not configured for verification"), status: http.StatusInternalServerError, code: string(dErrors.CodeMisconfigured), description: "server is not configured for verification"},
		{name: "plain error is internal", err: assert.AnError, status: http.StatusInternalServerError, code: "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.code, body["error"])
			desc, ok := body["error_description"]
			if tt.description == "" {
				assert.False(t, ok)
				return
			}
			assert.Equal(t, tt.description, desc)
		})
	}
}

func TestNoStore(t *testing.T) {
	w := httptest.NewRecorder()
	NoStore(w)
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")
	assert.Equal(t, "no-cache", w.Header().Get("Pragma"))
}

type sessionRequest struct {
	Email string `json:"email"`
}

func (r *sessionRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	decode := func(body string) (*sessionRequest, *httptest.ResponseRecorder, bool) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(body))
		req, ok := DecodeAndPrepare[sessionRequest](w, r, nil, r.Context(), "req-1")
		return req, w, ok
	}

	t.Run("valid body is normalized", func(t *testing.T) {
		req, _, ok := decode(`{"email":"  a@example.com "}`)
		require.True(t, ok)
		assert.Equal(t, "a@example.com", req.Email)
	})

	t.Run("malformed JSON is a bad request", func(t *testing.T) {
		_, w, ok := decode(`{"email":`)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation error is written as is", func(t *testing.T) {
		_, w, ok := decode(`{"email":" "}`)
		assert.False(t, ok)
		assert.Equal(t, dErrors.ToHTTPStatus(dErrors.CodeValidation), w.Code)
		assert.Contains(t, w.Body.String(), "email is required")
	})
}

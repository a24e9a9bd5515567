package admin

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireAdminToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		expected string
		header   string
		status   int
	}{
		{name: "matching token passes", expected: "secret", header: "secret", status: http.StatusNoContent},
		{name: "wrong token is unauthorized", expected: "secret", header: "nope", status: http.StatusUnauthorized},
		{name: "missing token is unauthorized", expected: "secret", status: http.StatusUnauthorized},
		{name: "unset token disables routes", expected: "", header: "", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/x", nil)
			if tt.header != "" {
				req.Header.Set(HeaderToken, tt.header)
			}
			w := httptest.NewRecorder()
			RequireAdminToken(tt.expected, logger)(ok).ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

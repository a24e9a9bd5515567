package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ClientSuite struct {
	suite.Suite
	server  *httptest.Server
	handler http.HandlerFunc
	client  *Client
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handler(w, r)
	}))
	var err error
	s.client, err = New(Config{BaseURL: s.server.URL + "/", APIKey: "key-1", WorkflowID: "wf-1", Timeout: time.Second})
	s.Require().NoError(err)
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientSuite) TestCreateSession() {
	var got map[string]any
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		s.Equal(http.MethodPost, r.Method)
		s.Equal("/v2/session/", r.URL.Path)
		s.Equal("key-1", r.Header.Get("X-Api-Key"))
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"session_id":"s1","url":"https://verify.example/s1"}`))
	}

	out, err := s.client.CreateSession(context.Background(), CreateSessionInput{
		Email:    "a@b.com",
		Callback: "https://app.example/verification/callback",
		Metadata: map[string]string{"source": "captcha"},
	})
	s.Require().NoError(err)
	s.Equal("s1", out.SessionID)
	s.Equal("https://verify.example/s1", out.URL)

	s.Equal("wf-1", got["workflow_id"])
	s.Equal("a@b.com", got["vendor_data"])
	s.Equal("https://app.example/verification/callback", got["callback"])
	s.Equal(map[string]any{"source": "captcha"}, got["metadata"])
	s.Equal(map[string]any{"email": "a@b.com", "email_lang": "en"}, got["contact_details"])
}

func (s *ClientSuite) TestCreateSessionMissingFields() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"session_id":"s1"}`))
	}
	_, err := s.client.CreateSession(context.Background(), CreateSessionInput{Email: "a@b.com"})
	s.Equal(CategoryContractMismatch, CategoryOf(err))
}

func (s *ClientSuite) TestDecision() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		s.Equal(http.MethodGet, r.Method)
		s.Equal("/v2/session/s1/decision/", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"session_id":"s1",
			"session_number":42,
			"status":"Approved",
			"created_at":"2025-03-01T10:00:00Z",
			"contact_details":{"email":"A@B.com"}
		}`))
	}

	d, err := s.client.Decision(context.Background(), "s1")
	s.Require().NoError(err)
	s.Equal("Approved", d.Status)
	s.Equal("A@B.com", d.Email)
	s.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), d.CreatedAt)
	s.EqualValues(42, d.Raw["session_number"])
}

func (s *ClientSuite) TestDecisionFallsBackToTopLevelEmail() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"Pending","email":"x@y.com"}`))
	}
	d, err := s.client.Decision(context.Background(), "s1")
	s.Require().NoError(err)
	s.Equal("x@y.com", d.Email)
	s.True(d.CreatedAt.IsZero())
}

func (s *ClientSuite) TestStatusCodesAreCategorized() {
	tests := []struct {
		code int
		want Category
	}{
		{http.StatusUnauthorized, CategoryAuthentication},
		{http.StatusForbidden, CategoryAuthentication},
		{http.StatusNotFound, CategoryNotFound},
		{http.StatusTooManyRequests, CategoryRateLimited},
		{http.StatusBadGateway, CategoryOutage},
		{http.StatusBadRequest, CategoryBadData},
	}
	for _, tt := range tests {
		s.Run(http.StatusText(tt.code), func() {
			s.handler = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
			}
			_, err := s.client.Decision(context.Background(), "s1")
			var pe *Error
			s.Require().True(errors.As(err, &pe))
			s.Equal(tt.want, pe.Category)
			s.Equal(tt.code, pe.StatusCode)
		})
	}
}

func (s *ClientSuite) TestMalformedBody() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}
	_, err := s.client.Decision(context.Background(), "s1")
	s.Equal(CategoryContractMismatch, CategoryOf(err))
}

func (s *ClientSuite) TestTimeout() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.client.Decision(ctx, "s1")
	s.Equal(CategoryTimeout, CategoryOf(err))
	s.True(IsRetryable(err))
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.Equal(t, CategoryMisconfigured, CategoryOf(err))
}

func TestMissingCredentials(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
	}))
	defer srv.Close()

	noKey, err := New(Config{BaseURL: srv.URL, WorkflowID: "wf"})
	require.NoError(t, err)
	_, err = noKey.Decision(context.Background(), "s1")
	assert.Equal(t, CategoryMisconfigured, CategoryOf(err))

	noWorkflow, err := New(Config{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)
	_, err = noWorkflow.CreateSession(context.Background(), CreateSessionInput{Email: "a@b.com"})
	assert.Equal(t, CategoryMisconfigured, CategoryOf(err))

	assert.Zero(t, calls)
}

func TestErrorRetryable(t *testing.T) {
	assert.True(t, (&Error{Category: CategoryOutage}).Retryable())
	assert.False(t, (&Error{Category: CategoryAuthentication}).Retryable())
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.Equal(t, CategoryInternal, CategoryOf(errors.New("plain")))
}

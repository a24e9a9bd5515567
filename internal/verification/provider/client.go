// Package provider is the HTTP client for the external verification provider.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"verigate/internal/verification/metrics"
)

const (
	opCreateSession = "create_session"
	opDecision      = "decision"

	maxResponseBytes = 1 << 20
)

// Config holds provider connection settings.
type Config struct {
	BaseURL    string
	APIKey     string
	WorkflowID string
	Timeout    time.Duration
}

// Client talks to the provider's session API.
type Client struct {
	baseURL    string
	apiKey     string
	workflowID string
	http       *http.Client
	tracer     trace.Tracer
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(cl *Client) {
		cl.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// New builds a Client. A missing base URL is a configuration error; a missing
// API key or workflow id is reported on the first call that needs it.
func New(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, &Error{Category: CategoryMisconfigured, Operation: "init", Message: "base URL is required"}
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, &Error{Category: CategoryMisconfigured, Operation: "init", Message: "invalid base URL", Err: err}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		workflowID: cfg.WorkflowID,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tracer: otel.Tracer("verigate/provider"),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateSessionInput is the body of a new provider session.
type CreateSessionInput struct {
	Email      string
	VendorData string
	Callback   string
	Metadata   map[string]string
}

// CreatedSession is the provider's answer to a session creation.
type CreatedSession struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type createSessionBody struct {
	WorkflowID     string            `json:"workflow_id"`
	VendorData     string            `json:"vendor_data"`
	Callback       string            `json:"callback,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	ContactDetails contactDetails    `json:"contact_details"`
}

type contactDetails struct {
	Email     string `json:"email"`
	EmailLang string `json:"email_lang,omitempty"`
}

// CreateSession opens a hosted verification session.
func (c *Client) CreateSession(ctx context.Context, in CreateSessionInput) (_ *CreatedSession, err error) {
	ctx, span := c.tracer.Start(ctx, "provider.CreateSession")
	start := time.Now()
	defer func() { c.finish(span, opCreateSession, start, err) }()

	if err := c.requireCredentials(opCreateSession, true); err != nil {
		return nil, err
	}
	vendor := in.VendorData
	if vendor == "" {
		vendor = in.Email
	}
	body, err := json.Marshal(createSessionBody{
		WorkflowID: c.workflowID,
		VendorData: vendor,
		Callback:   in.Callback,
		Metadata:   in.Metadata,
		ContactDetails: contactDetails{
			Email:     in.Email,
			EmailLang: "en",
		},
	})
	if err != nil {
		return nil, &Error{Category: CategoryInternal, Operation: opCreateSession, Message: "encode request", Err: err}
	}

	var out CreatedSession
	if err := c.do(ctx, opCreateSession, http.MethodPost, "/v2/session/", body, &out); err != nil {
		return nil, err
	}
	if out.SessionID == "" || out.URL == "" {
		return nil, &Error{Category: CategoryContractMismatch, Operation: opCreateSession, Message: "response is missing session_id or url"}
	}
	span.SetAttributes(attribute.String("verification.session_id", out.SessionID))
	return &out, nil
}

// Decision is the provider's decision document. Raw holds every field as
// returned; the typed fields are extracted for convenience.
type Decision struct {
	Raw       map[string]any
	Status    string
	Email     string
	CreatedAt time.Time
}

// Decision fetches the current decision for sessionID.
func (c *Client) Decision(ctx context.Context, sessionID string) (_ *Decision, err error) {
	ctx, span := c.tracer.Start(ctx, "provider.Decision",
		trace.WithAttributes(attribute.String("verification.session_id", sessionID)))
	start := time.Now()
	defer func() { c.finish(span, opDecision, start, err) }()

	if sessionID == "" {
		return nil, &Error{Category: CategoryBadData, Operation: opDecision, Message: "session id is required"}
	}
	if err := c.requireCredentials(opDecision, false); err != nil {
		return nil, err
	}

	var raw map[string]any
	path := "/v2/session/" + url.PathEscape(sessionID) + "/decision/"
	if err := c.do(ctx, opDecision, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return decisionFromRaw(raw), nil
}

func decisionFromRaw(raw map[string]any) *Decision {
	d := &Decision{Raw: raw}
	if s, ok := raw["status"].(string); ok {
		d.Status = s
	}
	if contact, ok := raw["contact_details"].(map[string]any); ok {
		if e, ok := contact["email"].(string); ok {
			d.Email = e
		}
	}
	if d.Email == "" {
		if e, ok := raw["email"].(string); ok {
			d.Email = e
		}
	}
	if ts, ok := raw["created_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			d.CreatedAt = t
		}
	}
	return d
}

func (c *Client) requireCredentials(op string, needWorkflow bool) error {
	if c.apiKey == "" {
		return &Error{Category: CategoryMisconfigured, Operation: op, Message: "API key is not configured"}
	}
	if needWorkflow && c.workflowID == "" {
		return &Error{Category: CategoryMisconfigured, Operation: op, Message: "workflow id is not configured"}
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Category: CategoryInternal, Operation: op, Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportError(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WarnContext(ctx, "provider returned error status",
			"operation", op,
			"status", resp.StatusCode,
			"body", truncate(string(payload), 256),
		)
		return &Error{
			Category:   categoryForStatus(resp.StatusCode),
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &Error{Category: CategoryContractMismatch, Operation: op, StatusCode: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}

func transportError(op string, err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Category: CategoryTimeout, Operation: op, Message: "request timed out", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Category: CategoryInternal, Operation: op, Message: "request cancelled", Err: err}
	}
	return &Error{Category: CategoryOutage, Operation: op, Message: "request failed", Err: err}
}

func (c *Client) finish(span trace.Span, op string, start time.Time, err error) {
	c.metrics.ObserveProvider(op, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("%s failed", op))
	}
	span.End()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

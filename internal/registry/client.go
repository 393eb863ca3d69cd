package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"resights/internal/registry/metrics"
)

// Per-call timeouts. The shared http.Client carries no timeout of its own.
const (
	RecordTimeout    = 60 * time.Second
	GatewayTimeout   = 30 * time.Second
	ValuationTimeout = 30 * time.Second
	HealthTimeout    = 30 * time.Second
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 16 << 20

const tracerName = "resights/internal/registry"

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the shared network client for every registry component. It holds
// no mutable state and is safe for concurrent use.
type Client struct {
	auth    AuthContext
	http    Doer
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(d Doer) ClientOption {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables upstream request metrics.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracer overrides the tracer taken from the global otel provider.
func WithTracer(t trace.Tracer) ClientOption {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// NewClient constructs a client bound to auth. auth must come from NewAuthContext.
func NewClient(auth AuthContext, opts ...ClientOption) (*Client, error) {
	if !auth.Valid() {
		return nil, newError(KindConfiguration, "client", "auth context is not configured", nil)
	}
	c := &Client{
		auth:   auth,
		http:   &http.Client{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Auth returns the auth context the client is bound to.
func (c *Client) Auth() AuthContext {
	return c.auth
}

type request struct {
	method  string
	url     string
	query   url.Values
	body    any
	timeout time.Duration
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// withQuery merges extra into any query string already carried by raw.
func withQuery(raw string, extra url.Values) (string, error) {
	if len(extra) == 0 {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for key, values := range extra {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// do executes one authenticated request and returns the response whatever
// its status. Only failures to obtain a response are returned as errors.
func (c *Client) do(ctx context.Context, op string, req request) (*response, error) {
	if !c.auth.Valid() {
		return nil, newError(KindConfiguration, op, "registry API token is not configured", nil)
	}
	if req.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.timeout)
		defer cancel()
	}

	ctx, span := c.tracer.Start(ctx, "registry."+op, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.method),
			attribute.String("registry.operation", op),
		))
	defer span.End()

	target, err := withQuery(req.url, req.query)
	if err != nil {
		return nil, newError(KindInvalidRequest, op, "invalid request URL", err)
	}

	var body io.Reader
	if req.body != nil {
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return nil, newError(KindInvalidRequest, op, "request body is not JSON-serializable", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, newError(KindInvalidRequest, op, "build request", err)
	}
	httpReq.Header.Set("Authorization", c.auth.authorization())
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.ObserveRequest(op, 0, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		c.logger.WarnContext(ctx, "registry request failed",
			"operation", op,
			"method", req.method,
			"url", req.url,
			"error", err,
		)
		return nil, transportError(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	duration := time.Since(start)
	c.metrics.ObserveRequest(op, resp.StatusCode, duration)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		return nil, &Error{Kind: KindUpstream, Op: op, Message: "read response body", Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}

	c.logger.DebugContext(ctx, "registry request",
		"operation", op,
		"method", req.method,
		"url", req.url,
		"status", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
	)
	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

func transportError(op string, err error) *Error {
	msg := "registry request failed"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "registry request timed out"
	} else if errors.Is(err, context.Canceled) {
		msg = "registry request canceled"
	}
	return &Error{Kind: KindUpstream, Op: op, Message: msg, Err: err}
}

// upstreamError reports a non-success response verbatim.
func upstreamError(op string, resp *response) *Error {
	return &Error{
		Kind:    KindUpstream,
		Op:      op,
		Message: fmt.Sprintf("registry returned %s", statusText(resp.status)),
		Status:  resp.status,
		Body:    string(resp.body),
	}
}

// authAwareError distinguishes credential rejection from other failures.
func authAwareError(op string, resp *response) *Error {
	if resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden {
		return &Error{
			Kind:    KindUnauthorized,
			Op:      op,
			Message: "registry rejected the API token",
			Status:  resp.status,
			Body:    string(resp.body),
		}
	}
	return upstreamError(op, resp)
}

func statusText(status int) string {
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("%d %s", status, text)
	}
	return fmt.Sprintf("status %d", status)
}

// Health probes the registry liveness endpoint, which is served from the
// registry root rather than the versioned API base.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, "health", request{
		method:  http.MethodGet,
		url:     c.auth.HealthRoot() + "/health",
		timeout: HealthTimeout,
	})
	if err != nil {
		return err
	}
	if !resp.ok() {
		return upstreamError("health", resp)
	}
	return nil
}

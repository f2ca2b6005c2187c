// Package httpapi implements the backend API port over HTTP/JSON.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ragdesk/console/internal/core/domain"
	"github.com/ragdesk/console/internal/core/ports"
	"github.com/ragdesk/console/internal/pkg/auth"
)

const (
	defaultBaseURL = "http://localhost:8000/api/v1"
	defaultTimeout = 15 * time.Second
	userAgent      = "ragdesk-console/1.0"
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client. Its transport is wrapped for
// tracing.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithTokenSource sets where the bearer token comes from.
func WithTokenSource(src ports.TokenSource) ClientOption {
	return func(c *Client) {
		c.tokens = src
	}
}

// Client talks to the RAG platform backend.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	tokens     ports.TokenSource
}

// Ensure Client implements APIClient
var _ ports.APIClient = (*Client)(nil)

// NewClient creates a new backend API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	var hc http.Client
	if c.httpClient != nil {
		hc = *c.httpClient
	} else {
		hc.Timeout = c.timeout
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc.Transport = otelhttp.NewTransport(base)
	c.httpClient = &hc
	return c
}

// SetTokenSource replaces the bearer token source. It must be called before
// the client is shared between goroutines.
func (c *Client) SetTokenSource(src ports.TokenSource) {
	c.tokens = src
}

// Login exchanges credentials for a token pair and the user record.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResult, error) {
	var result domain.LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", creds, &result, false); err != nil {
		return nil, err
	}
	return &result, nil
}

// Logout revokes the current access token.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, true)
}

// CurrentPrincipal returns the user the access token belongs to.
func (c *Client) CurrentPrincipal(ctx context.Context) (*domain.Principal, error) {
	var p domain.Principal
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &p, true); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetTenant fetches a tenant by id.
func (c *Client) GetTenant(ctx context.Context, tenantID string) (*domain.TenantRecord, error) {
	var rec domain.TenantRecord
	if err := c.do(ctx, http.MethodGet, "/tenants/"+url.PathEscape(tenantID), nil, &rec, true); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateTenant patches a tenant's top-level attributes.
func (c *Client) UpdateTenant(ctx context.Context, tenantID string, patch domain.TenantPatch) (*domain.TenantRecord, error) {
	var rec domain.TenantRecord
	if err := c.do(ctx, http.MethodPatch, "/tenants/"+url.PathEscape(tenantID), patch, &rec, true); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateTenantSettings patches a tenant's settings bundle.
func (c *Client) UpdateTenantSettings(ctx context.Context, tenantID string, patch domain.SettingsPatch) (*domain.TenantRecord, error) {
	var rec domain.TenantRecord
	if err := c.do(ctx, http.MethodPatch, "/tenants/"+url.PathEscape(tenantID)+"/settings", patch, &rec, true); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, authenticated bool) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, in != nil, authenticated)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("request failed: %w", ctx.Err())
		}
		return domain.ErrUnavailable(fmt.Sprintf("backend unreachable: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseErrorResponse(resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return domain.ErrServer(fmt.Sprintf("failed to unmarshal response: %v", err))
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, hasBody, authenticated bool) {
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	id := RequestIDFromContext(req.Context())
	if id == "" {
		id = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", id)

	if authenticated && c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", auth.BearerHeader(token))
		}
	}
}

type requestIDKey struct{}

// ContextWithRequestID makes outgoing calls made with ctx carry id, so a
// console request and the backend calls it causes share one id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id set by ContextWithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

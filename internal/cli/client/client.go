package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ContentTypeJSON is the only request content type the API accepts
const ContentTypeJSON = "application/json"

const defaultTimeout = 30 * time.Second

// Middleware wraps the transport used for every API call. Middlewares are
// applied once, when the client is constructed.
type Middleware func(next http.RoundTripper) http.RoundTripper

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Transport becomes
// the innermost element of the middleware chain.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithCookieJar sets the jar holding the session cookies
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) {
		c.jar = jar
	}
}

// WithMiddleware appends middlewares to the chain. The first middleware
// registered is the outermost one.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *Client) {
		c.middlewares = append(c.middlewares, mw...)
	}
}

// Client represents an HTTP client for the ThriveBase API
type Client struct {
	baseURL     string
	httpClient  *http.Client
	jar         http.CookieJar
	middlewares []Middleware
}

// New creates a new API client and builds its middleware chain
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	// Copy so the caller's client is never mutated
	hc := *c.httpClient
	if c.jar != nil {
		hc.Jar = c.jar
	}

	transport := hc.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		transport = c.middlewares[i](transport)
	}
	hc.Transport = transport
	c.httpClient = &hc

	return c
}

// BaseURL returns the API base URL without trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL joins path onto the base URL
func (c *Client) URL(path string) string {
	return c.baseURL + path
}

// Do sends req through the middleware chain
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// APIError is returned for any non-2xx response
type APIError struct {
	StatusCode int
	Message    string
	Detail     string
	Body       string
}

func (e *APIError) Error() string {
	if msg := e.ServerMessage(); msg != "" {
		return fmt.Sprintf("request failed (status %d): %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("request failed (status %d): %s", e.StatusCode, e.Body)
}

// ServerMessage returns the human readable message supplied by the server, if any
func (e *APIError) ServerMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Detail
}

// AsAPIError unwraps err into an *APIError
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsStatus reports whether err is an APIError with the given status code
func IsStatus(err error, status int) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.StatusCode == status
}

func newAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}

	var parsed struct {
		Message string          `json:"message"`
		Detail  json.RawMessage `json:"detail"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Message = parsed.Message
		if apiErr.Message == "" {
			apiErr.Message = parsed.Error
		}
		// detail is usually a string but validation errors carry an array
		var detail string
		if err := json.Unmarshal(parsed.Detail, &detail); err == nil {
			apiErr.Detail = detail
		} else if len(parsed.Detail) > 0 {
			apiErr.Detail = string(parsed.Detail)
		}
	}

	return apiErr
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPut, path, body, out)
}

func (c *Client) delete(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, out)
}

// doJSON performs a JSON request and decodes a 2xx body into out
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", ContentTypeJSON)
	req.Header.Set("Accept", ContentTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/incidentops/console/internal/config"
	"github.com/incidentops/console/internal/constants"
	"github.com/incidentops/console/internal/events"
	consolehttp "github.com/incidentops/console/internal/http"
)

// retryLogger adapts zerolog to the retryablehttp.LeveledLogger interface.
// Only warnings and errors are surfaced; per-attempt debug chatter is noise.
type retryLogger struct {
	log zerolog.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{})  {}
func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {}

// Client is the console API client. All request paths are rooted under
// /api/ and percent-encoded segment by segment.
//
// Methods that return a *Response together with a non-nil error do so when
// the console answered with a non-2xx status; the response carries the
// status and headers for callers that need them (the download pre-check).
type Client struct {
	httpClient *nethttp.Client
	baseURL    string
	token      string
	bus        *events.EventBus
	log        zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithEventBus attaches an event bus; unauthorized downloads and poll
// progress are published to it.
func WithEventBus(bus *events.EventBus) Option {
	return func(c *Client) { c.bus = bus }
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithHTTPClient replaces the underlying HTTP client. Used by tests and by
// callers with special transport needs.
func WithHTTPClient(hc *nethttp.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a console API client from configuration.
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("console URL is empty")
	}

	c := &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		token:   cfg.APIToken,
		log:     zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		httpClient, err := consolehttp.NewClient()
		if err != nil {
			return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
		}

		// Transport-level retry for transient failures. Poll and engine
		// level logic never retries; a settled failure is terminal there.
		retryClient := retryablehttp.NewClient()
		retryClient.HTTPClient = httpClient
		retryClient.RetryMax = constants.TransportRetryMax
		retryClient.RetryWaitMin = constants.TransportRetryWaitMin
		retryClient.RetryWaitMax = constants.TransportRetryWaitMax
		retryClient.Logger = &retryLogger{log: c.log}

		c.httpClient = retryClient.StandardClient()
	}

	return c, nil
}

// Response is a decoded console API response.
type Response struct {
	StatusCode int
	Header     nethttp.Header
	Body       []byte
	// Data holds the decoded JSON object, or nil when the body is empty or
	// not a JSON object.
	Data map[string]interface{}
}

// State returns the "state" field of the response body, or "".
func (r *Response) State() string {
	if r == nil || r.Data == nil {
		return ""
	}
	s, _ := r.Data["state"].(string)
	return s
}

// reasonKey threads an access reason through a context. The original design
// read a free-floating global here; an explicit context value keeps the
// reason scoped to the call chain that set it.
type reasonKey struct{}

// WithReason returns a context carrying an access reason. The client
// attaches it as a "reason" query parameter on GET/HEAD/DELETE and as a
// base64-encoded header on POST/PATCH.
func WithReason(ctx context.Context, reason string) context.Context {
	return context.WithValue(ctx, reasonKey{}, reason)
}

// ReasonFrom extracts the access reason from a context, if any.
func ReasonFrom(ctx context.Context) string {
	reason, _ := ctx.Value(reasonKey{}).(string)
	return reason
}

// EncodePath percent-encodes every /-delimited segment of path
// independently, preserving the slashes themselves.
func EncodePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// buildURL roots path under the API prefix and appends query parameters.
func (c *Client) buildURL(path string, params url.Values) string {
	full := c.baseURL + constants.APIRoot + EncodePath(strings.TrimPrefix(path, "/"))
	if len(params) > 0 {
		full += "?" + params.Encode()
	}
	return full
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (*Response, error) {
	return c.doQuery(ctx, nethttp.MethodGet, path, params)
}

// Head issues a HEAD request.
func (c *Client) Head(ctx context.Context, path string, params url.Values) (*Response, error) {
	return c.doQuery(ctx, nethttp.MethodHead, path, params)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, params url.Values) (*Response, error) {
	return c.doQuery(ctx, nethttp.MethodDelete, path, params)
}

// doQuery handles the query-parameter request family. The ambient reason,
// when present on the context, rides along as a query parameter.
func (c *Client) doQuery(ctx context.Context, method, path string, params url.Values) (*Response, error) {
	merged := url.Values{}
	for k, vs := range params {
		merged[k] = vs
	}
	if reason := ReasonFrom(ctx); reason != "" {
		merged.Set("reason", reason)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.buildURL(path, merged), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	return c.send(req, path)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, payload interface{}) (*Response, error) {
	return c.doBody(ctx, nethttp.MethodPost, path, payload)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, payload interface{}) (*Response, error) {
	return c.doBody(ctx, nethttp.MethodPatch, path, payload)
}

func (c *Client) doBody(ctx context.Context, method, path string, payload interface{}) (*Response, error) {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.buildURL(path, nil), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// The body is already spoken for, so the reason travels in a header.
	if reason := ReasonFrom(ctx); reason != "" {
		req.Header.Set(constants.ReasonHeader, base64.StdEncoding.EncodeToString([]byte(reason)))
	}

	return c.send(req, path)
}

// PostFiles issues a multipart POST carrying a JSON payload part plus one
// file part per entry in files, keyed by form field name.
func (c *Client) PostFiles(ctx context.Context, path string, payload interface{}, files map[string]io.Reader) (*Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		part, err := mw.CreateFormField("_params_")
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(jsonData); err != nil {
			return nil, err
		}
	}

	for name, r := range files {
		part, err := mw.CreateFormFile(name, name)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, r); err != nil {
			return nil, fmt.Errorf("failed to write file part %s: %w", name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPost, c.buildURL(path, nil), &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	if reason := ReasonFrom(ctx); reason != "" {
		req.Header.Set(constants.ReasonHeader, base64.StdEncoding.EncodeToString([]byte(reason)))
	}

	return c.send(req, path)
}

// send dispatches a prepared request and decodes the response.
func (c *Client) send(req *nethttp.Request, path string) (*Response, error) {
	c.applyCommonHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Str("method", req.Method).Str("path", path).Err(err).Msg("API call failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
	}

	if req.Method != nethttp.MethodHead {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		out.Body = body

		var data map[string]interface{}
		if json.Unmarshal(body, &data) == nil {
			out.Data = data
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, &StatusError{
			Method:     req.Method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(out.Body)),
		}
	}

	return out, nil
}

func (c *Client) applyCommonHeaders(req *nethttp.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}
	req.Header.Set("Accept", "application/json")
}

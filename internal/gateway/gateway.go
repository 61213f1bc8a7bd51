// package gateway is the single point through which playsync talks to the backend.
//
// Every call returns either a [*Response] for a 2xx status or a [*Failure] classified as
// unauthenticated, network or server error. Nothing is retried here; callers decide.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playsync/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// AuthMode selects whether a request carries the bearer credential.
type AuthMode int

const (
	AuthRequired AuthMode = iota // zero value: attach the credential or fail as unauthenticated
	AuthNone
)

// RequestIDHeader carries a per-call id that is also logged.
const RequestIDHeader = "X-Request-ID"

// Request describes one call.
type Request struct {
	Method string
	Path   string
	Body   any // []byte and [json.RawMessage] are sent as-is, anything else is JSON encoded
	Query  url.Values
	Auth   AuthMode
}

// Response represents a successful (2xx) response. The body is returned unchanged.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Gateway issues requests against the backend.
type Gateway struct {
	baseURL     string
	httpClient  *http.Client
	credentials oauth2.TokenSource
	limiter     *rate.Limiter
	logger      *log.Logger
}

// Option configures a [Gateway].
type Option func(*Gateway)

// WithCredentials sets the bearer credential source.
func WithCredentials(ts oauth2.TokenSource) Option {
	return func(g *Gateway) { g.credentials = ts }
}

// WithRateLimit limits outgoing requests to rps per second. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(g *Gateway) {
		if rps <= 0 {
			g.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithLogger(l *log.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGateway creates a gateway for baseURL. The client defaults to [http.DefaultClient].
func NewGateway(baseURL string, client *http.Client, opts ...Option) *Gateway {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	if client == nil {
		client = http.DefaultClient
	}

	g := &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		logger:     shared.NopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BaseURL returns the configured backend URL.
func (g *Gateway) BaseURL() string { return g.baseURL }

// Call performs an authorized request.
func (g *Gateway) Call(ctx context.Context, method, path string, body any, query url.Values) (*Response, error) {
	return g.Do(ctx, Request{Method: method, Path: path, Body: body, Query: query})
}

// Do performs req. The returned error is always a [*Failure].
func (g *Gateway) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	fail := func(kind Kind, err error) *Failure {
		return &Failure{Kind: kind, Method: req.Method, Path: req.Path, Err: err}
	}

	var token *oauth2.Token
	if req.Auth == AuthRequired {
		tok, err := g.credential()
		if err != nil {
			g.logger.Debug("request not sent", "method", req.Method, "path", req.Path, "reason", err)
			return nil, fail(KindUnauthenticated, err)
		}
		token = tok
	}

	httpReq, err := g.newRequest(ctx, req)
	if err != nil {
		return nil, fail(KindInvalidRequest, err)
	}
	if token != nil {
		token.SetAuthHeader(httpReq)
	}

	requestID := shared.GenerateID()
	httpReq.Header.Set(RequestIDHeader, requestID)
	logger := g.logger.With("request_id", requestID, "method", req.Method, "path", req.Path)

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, g.networkFailure(logger, req, err)
		}
	}

	start := time.Now()
	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, g.networkFailure(logger, req, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, g.networkFailure(logger, req, fmt.Errorf("failed to read response: %w", err))
	}

	logger.Debug("response", "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f := fail(KindServer, nil)
		f.Status = resp.StatusCode
		f.Body = body
		logger.Warn("server rejected request", "status", resp.StatusCode, "detail", f.Detail())
		return nil, f
	}

	apiResp := &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: body}
	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}
	return apiResp, nil
}

func (g *Gateway) credential() (*oauth2.Token, error) {
	if g.credentials == nil {
		return nil, shared.ErrMissingCredentials
	}
	tok, err := g.credentials.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, shared.ErrMissingCredentials
	}
	if !tok.Valid() {
		return nil, shared.ErrTokenExpired
	}
	return tok, nil
}

func (g *Gateway) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	u, err := url.Parse(g.baseURL + req.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", req.Path, err)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	switch b := req.Body.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(b)
	case json.RawMessage:
		body = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

func (g *Gateway) networkFailure(logger *log.Logger, req Request, err error) *Failure {
	if errors.Is(err, context.Canceled) {
		logger.Debug("request canceled", "err", err)
	} else {
		logger.Warn("no response", "err", err)
	}
	return &Failure{
		Kind:   KindNetwork,
		Status: NetworkErrorStatus,
		Body:   bytes.Clone(networkErrorBody),
		Method: req.Method,
		Path:   req.Path,
		Err:    err,
	}
}

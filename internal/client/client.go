// Package client sends requests to the REST backend on behalf of the session store and the CLI.
//
// Every request goes to {baseURL}/api, carries the ambient identification headers of the stored user
// (user-id and username, which assert an identity without proving it) and, for reads, a cache-busting
// timestamp. Failures are classified (see errors.go) and returned; the client never changes session state.
// Interested parties register with OnUnauthorized to learn about 401 responses.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/IlyaErmolovich/gc-frontend/internal/storage"
	"github.com/IlyaErmolovich/gc-frontend/internal/types"
)

const (
	// DefaultTimeout leaves room for backends on free hosting tiers that spin up on the first request
	DefaultTimeout = 30 * time.Second

	apiPrefix = "/api"

	// CacheBustParam is the query parameter added to reads
	CacheBustParam = "t"

	HeaderUserID    = "user-id"
	HeaderUsername  = "username"
	HeaderRequestID = "X-Request-ID"

	maxResponseBytes = 10 << 20
)

// UnauthorizedFunc is called synchronously, before the request returns, for each 401 on a session request
type UnauthorizedFunc func(ctx context.Context, err *Error)

// Client handles communication with the backend API
type Client struct {
	baseURL    string
	httpClient *http.Client
	storage    storage.Store
	logger     *slog.Logger
	buster     *cacheBuster

	mu           sync.RWMutex
	unauthorized []UnauthorizedFunc
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client (its Timeout is kept as given)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock sets the time source of the cache-busting parameter
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.buster = newCacheBuster(now) }
}

// New creates a client for the backend at baseURL. store may be nil, in which case requests are sent without identification headers.
func New(baseURL string, store storage.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + apiPrefix,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		storage: store,
		logger:  slog.Default(),
		buster:  newCacheBuster(time.Now),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL is the URL every request path is appended to (it ends in /api)
func (c *Client) BaseURL() string {
	return c.baseURL
}

// OnUnauthorized registers fn to be told about 401 responses.
func (c *Client) OnUnauthorized(fn UnauthorizedFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unauthorized = append(c.unauthorized, fn)
}

func (c *Client) notifyUnauthorized(ctx context.Context, err *Error) {
	c.mu.RLock()
	subscribers := make([]UnauthorizedFunc, len(c.unauthorized))
	copy(subscribers, c.unauthorized)
	c.mu.RUnlock()

	for _, fn := range subscribers {
		fn(ctx, err)
	}
}

// RequestOptions adjust a single request
type RequestOptions struct {
	Header http.Header
	Query  url.Values

	// NoCacheBust leaves the timestamp parameter off a read
	NoCacheBust bool

	// Public marks requests that do not rely on an existing session (login, register):
	// a 401 there means bad credentials, so unauthorized subscribers are not notified.
	Public bool
}

// Response is a successful (status < 400) backend response with its body already read
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DecodeJSON unmarshals the response body into v
func (r *Response) DecodeJSON(v any) error {
	if len(r.Body) == 0 {
		return io.ErrUnexpectedEOF
	}
	return json.Unmarshal(r.Body, v)
}

// Request sends a JSON request. body is encoded when non-nil.
func (c *Client) Request(ctx context.Context, method, path string, body any, opts *RequestOptions) (*Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, newInternalError(err, "marshaling request body for "+path)
		}
		reader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, reader, opts)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, path, opts)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, opts *RequestOptions) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, newInternalError(err, "creating "+method+" "+path+" request")
	}

	q := req.URL.Query()
	for k, vs := range opts.Query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if (method == http.MethodGet || method == http.MethodHead) && !opts.NoCacheBust {
		q.Set(CacheBustParam, strconv.FormatInt(c.buster.next(), 10))
	}
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, uuid.NewString())
	c.setIdentity(ctx, req)

	for k, vs := range opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// setIdentity adds the stored user's id and username to the request.
// A missing or unreadable record means the request goes out anonymously.
func (c *Client) setIdentity(ctx context.Context, req *http.Request) {
	if c.storage == nil {
		return
	}

	var user types.User
	ok, err := storage.GetJSON(ctx, c.storage, storage.KeyUserData, &user)
	if err != nil {
		c.logger.Debug("ignoring unreadable stored user",
			slog.String("component", "client.setIdentity"),
			slog.String("error", err.Error()),
		)
		return
	}
	if !ok || user.ID == 0 {
		return
	}

	req.Header.Set(HeaderUserID, strconv.FormatInt(user.ID, 10))
	req.Header.Set(HeaderUsername, user.Username)
}

func (c *Client) do(req *http.Request, path string, opts *RequestOptions) (*Response, error) {
	ctx := req.Context()

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("request failed",
			slog.String("component", "client"),
			slog.String("method", req.Method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, newNetworkError(req.Method, path, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, newNetworkError(req.Method, path, err)
	}

	if res.StatusCode >= http.StatusBadRequest {
		apiErr := newAPIError(req.Method, path, res.StatusCode, body)

		c.logger.Warn("api error response",
			slog.String("component", "client"),
			slog.String("method", req.Method),
			slog.String("path", path),
			slog.Int("status", res.StatusCode),
			slog.String("message", apiErr.ServerMessage),
		)

		if apiErr.Kind == KindUnauthorized && !opts.Public && !unauthorizedEventsSuppressed(ctx) {
			c.notifyUnauthorized(ctx, apiErr)
		}
		return nil, apiErr
	}

	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       body,
	}, nil
}

// cacheBuster hands out strictly increasing millisecond timestamps
type cacheBuster struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func newCacheBuster(now func() time.Time) *cacheBuster {
	return &cacheBuster{now: now}
}

func (b *cacheBuster) next() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	ts := b.now().UnixMilli()
	if ts <= b.last {
		ts = b.last + 1
	}
	b.last = ts
	return ts
}

// Package apiclient is the typed gateway to the task-management REST API.
// Every call returns either a decoded payload or an error; HTTP-level failures
// are *APIError and network failures are *TransportError.
package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/publicsuffix"
)

const (
	maxResponseSize = 4 << 20 // 4 MiB

	// DefaultGzipThreshold is the body size from which requests are sent
	// gzip-compressed.
	DefaultGzipThreshold = 1 << 10

	headerRequestID      = "X-Request-ID"
	headerIdempotencyKey = "Idempotency-Key"
	headerTimezone       = "X-Timezone"

	tracerName = "github.com/yukikurage/task-management-front/apiclient"
)

// Client issues credential-bearing requests against the backend. The session
// cookie set by Login is stored in the client's jar and sent on every call.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	jar      *sessionJar
	log      *log.Logger
	tracer   trace.Tracer
	loc      *time.Location
	timeout  time.Duration
	gzipFrom int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient supplies the http.Client to start from. The client is
// copied, so the caller's value is never modified. Its jar, if any, keeps the
// session; otherwise a fresh one is created.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for request metrics.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithTracerProvider sets the provider request spans are created from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithLocation sets the viewer time zone sent with every request.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithTimeout bounds each request. Zero leaves requests unbounded. It applies
// regardless of where WithHTTPClient appears among the options.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithGzipThreshold sends request bodies of at least n bytes gzip-compressed.
// A negative n disables compression.
func WithGzipThreshold(n int) Option {
	return func(c *Client) {
		c.gzipFrom = n
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	c := &Client{
		baseURL:  u,
		http:     &http.Client{},
		log:      log.StandardLogger(),
		tracer:   otel.Tracer(tracerName),
		loc:      time.Local,
		gzipFrom: DefaultGzipThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := *c.http
	inner := hc.Jar
	if inner == nil {
		if inner, err = newCookieJar(); err != nil {
			return nil, err
		}
	}
	c.jar = &sessionJar{inner: inner}
	hc.Jar = c.jar
	if c.timeout > 0 {
		hc.Timeout = c.timeout
	}
	c.http = &hc
	return c, nil
}

func newCookieJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return jar, nil
}

// sessionJar lets the cookie store be replaced while requests are in flight.
type sessionJar struct {
	mu    sync.RWMutex
	inner http.CookieJar
}

func (j *sessionJar) current() http.CookieJar {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.inner
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.current().SetCookies(u, cookies)
}

func (j *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	return j.current().Cookies(u)
}

func (j *sessionJar) reset(inner http.CookieJar) {
	j.mu.Lock()
	j.inner = inner
	j.mu.Unlock()
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// Location returns the viewer time zone.
func (c *Client) Location() *time.Location { return c.loc }

// Cookies returns the session cookies currently held for the API host.
func (c *Client) Cookies() []*http.Cookie {
	return c.jar.Cookies(c.baseURL)
}

// SetCookies restores previously saved session cookies.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.jar.SetCookies(c.baseURL, cookies)
}

// ClearSession drops every cookie held for the API host.
func (c *Client) ClearSession() {
	jar, err := newCookieJar()
	if err != nil {
		c.log.WithError(err).Warn("apiclient: unable to reset cookie jar")
		return
	}
	c.jar.reset(jar)
}

type request struct {
	method     string
	route      string
	path       string
	query      any
	body       any
	idempotent bool
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	metrics, ctx := newRequestMetrics(ctx, c.tracer, c.log, r.method, r.route)

	target := *c.baseURL
	target.Path = c.baseURL.Path + r.path
	if r.query != nil {
		vals, err := query.Values(r.query)
		if err != nil {
			metrics.Finish(0, err)
			return fmt.Errorf("encode query: %w", err)
		}
		target.RawQuery = vals.Encode()
	}

	var (
		body     io.Reader
		encoding string
	)
	if r.body != nil {
		encodeStart := time.Now()
		data, err := sonic.ConfigStd.Marshal(r.body)
		if err == nil && c.gzipFrom >= 0 && len(data) >= c.gzipFrom {
			data, err = compress(data)
			encoding = "gzip"
		}
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.Finish(0, err)
			return fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target.String(), body)
	if err != nil {
		metrics.Finish(0, err)
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}
	req.Header.Set(headerRequestID, uuid.NewString())
	req.Header.Set(headerTimezone, c.loc.String())
	if r.idempotent {
		req.Header.Set(headerIdempotencyKey, uuid.NewString())
	}

	sendStart := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveRoundTrip(time.Since(sendStart))
	if err != nil {
		terr := &TransportError{Method: r.method, Path: r.path, Err: err}
		metrics.Finish(0, terr)
		return terr
	}
	defer resp.Body.Close()

	decodeStart := time.Now()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		terr := &TransportError{Method: r.method, Path: r.path, Err: err}
		metrics.Finish(resp.StatusCode, terr)
		return terr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(r.method, r.path, resp.StatusCode, data)
		metrics.Finish(resp.StatusCode, apiErr)
		return apiErr
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := sonic.ConfigStd.Unmarshal(data, out); err != nil {
			err = fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
			metrics.Finish(resp.StatusCode, err)
			return err
		}
	}
	metrics.ObserveDecode(time.Since(decodeStart), len(data))
	metrics.Finish(resp.StatusCode, nil)
	return nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var errMissingID = errors.New("id must be positive")

func idPath(prefix string, id int64, suffix string) (string, error) {
	if id <= 0 {
		return "", errMissingID
	}
	return fmt.Sprintf("%s/%d%s", prefix, id, suffix), nil
}

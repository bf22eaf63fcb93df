package apiclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/yukikurage/task-management-front/domain"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	header http.Header
	body   string
}

type stubServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
}

func (s *stubServer) last() recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return recordedRequest{}
	}
	return s.requests[len(s.requests)-1]
}

func newStubServer(t *testing.T, register func(e *echo.Echo)) *stubServer {
	t.Helper()
	s := &stubServer{}
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var body []byte
			if c.Request().Body != nil {
				body, _ = io.ReadAll(c.Request().Body)
				c.Request().Body = io.NopCloser(bytes.NewReader(body))
			}
			s.mu.Lock()
			s.requests = append(s.requests, recordedRequest{
				method: c.Request().Method,
				path:   c.Request().URL.Path,
				query:  c.Request().URL.RawQuery,
				header: c.Request().Header.Clone(),
				body:   string(body),
			})
			s.mu.Unlock()
			return next(c)
		}
	})
	register(e)
	s.Server = httptest.NewServer(e)
	t.Cleanup(s.Close)
	return s
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	logger, _ := test.NewNullLogger()
	opts = append([]Option{WithLogger(logger), WithLocation(time.UTC)}, opts...)
	c, err := New(baseURL, opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewRejectsRelativeBaseURL(t *testing.T) {
	if _, err := New("/api"); err == nil {
		t.Fatalf("expected relative base url to be rejected")
	}
}

func TestListTasksEncodesQuery(t *testing.T) {
	srv := newStubServer(t, func(e *echo.Echo) {
		e.GET("/api/tasks", func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]any{"tasks": []map[string]any{{"id": 1, "title": "Write report"}}})
		})
	})
	c := newTestClient(t, srv.URL)

	tasks, err := c.ListTasks(context.Background(), TaskQuery{OrganizationID: 7, DueToday: true, Sort: SortDueDate})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Write report" {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}
	got := srv.last().query
	for _, want := range []string{"organization_id=7", "due_today=true", "sort=due_date"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected query %q to contain %q", got, want)
		}
	}
	if strings.Contains(got, "assigned_to_me") {
		t.Fatalf("expected unset filter to be omitted, got %q", got)
	}
	if tz := srv.last().header.Get(headerTimezone); tz != "UTC" {
		t.Fatalf("expected viewer time zone header, got %q", tz)
	}
}

func TestListTasksEmptyIsNonNil(t *testing.T) {
	srv := newStubServer(t, func(e *echo.Echo) {
		e.GET("/api/tasks", func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]any{})
		})
	})
	c := newTestClient(t, srv.URL)
	tasks, err := c.ListTasks(context.Background(), TaskQuery{})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if tasks == nil {
		t.Fatalf("expected empty slice, got nil")
	}
}

func TestSessionCookieIsSentAfterLogin(t *testing.T) {
	srv := newStubServer(t, func(e *echo.Echo) {
		e.POST("/api/auth/login", func(c echo.Context) error {
			c.SetCookie(&http.Cookie{Name: "session", Value: "abc", Path: "/", HttpOnly: true})
			return c.JSON(http.StatusOK, domain.User{ID: 1, Username: "ann"})
		})
		e.GET("/api/auth/me", func(c echo.Context) error {
			ck, err := c.Cookie("session")
			if err != nil || ck.Value != "abc" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			return c.JSON(http.StatusOK, domain.User{ID: 1, Username: "ann"})
		})
	})
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	if _, err := c.Me(ctx); !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized before login, got %v", err)
	}
	if _, err := c.Login(ctx, domain.Credentials{Username: "ann", Password: "pw"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	me, err := c.Me(ctx)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.Username != "ann" {
		t.Fatalf("unexpected user: %#v", me)
	}
	if len(c.Cookies()) != 1 {
		t.Fatalf("expected session cookie to be retained, got %d", len(c.Cookies()))
	}

	restored := newTestClient(t, srv.URL)
	restored.SetCookies(c.Cookies())
	if _, err := restored.Me(ctx); err != nil {
		t.Fatalf("expected restored cookies to authenticate: %v", err)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	srv := newStubServer(t, func(e *echo.Echo) {
		e.GET("/api/organizations/:id", func(c echo.Context) error {
			if c.Param("id") == "1" {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "organization not found", "code": "not_found"})
			}
			return c.String(http.StatusForbidden, "not a member")
		})
	})
	c := newTestClient(t, srv.URL)

	_, err := c.GetOrganization(context.Background(), 1)
	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Code != "not_found" || apiErr.Message != "organization not found" {
		t.Fatalf("unexpected api error: %#v", apiErr)
	}
	if IsTransport(err) {
		t.Fatalf("api error must not be classified as transport")
	}

	_, err = c.GetOrganization(context.Background(), 2)
	if !IsStatus(err, http.StatusForbidden) {
		t.Fatalf("expected 403, got %v", err)
	}
	if apiErr, _ := AsAPIError(err); apiErr.Message != "not a member" {
		t.Fatalf("expected plain text message, got %q", apiErr.Message)
	}
}

func TestTransportErrorOnUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url)
	_, err := c.Me(context.Background())
	if !IsTransport(err) {
		t.Fatalf("expected transport error, got %T %v", err, err)
	}
	if _, ok := AsAPIError(err); ok {
		t.Fatalf("transport error must not be an api error")
	}
}

func TestInvalidIDIsRejectedLocally(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	if _, err := c.GetTask(context.Background(), 0); err == nil {
		t.Fatalf("expected id validation error")
	}
}

func TestCreateTaskSendsIdempotencyKeyAndBody(t *testing.T) {
	srv := newStubServer(t, func(e *echo.Echo) {
		e.POST("/api/tasks", func(c echo.Context) error {
			return c.JSON(http.StatusCreated, map[string]any{"id": 11, "title": "Write report", "organization_id": 7})
		})
	})
	c := newTestClient(t, srv.URL)
	due := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	task, err := c.CreateTask(context.Background(), domain.TaskInput{Title: "Write report", DueDate: &due, OrganizationID: 7})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.ID != 11 {
		t.Fatalf("unexpected task: %#v", task)
	}
	req := srv.last()
	if req.header.Get(headerIdempotencyKey) == "" {
		t.Fatalf("expected idempotency key header")
	}
	if req.header.Get(headerRequestID) == "" {
		t.Fatalf("expected request id header")
	}
	if !strings.Contains(req.body, `"due_date":"2025-03-01T00:00:00Z"`) || !strings.Contains(req.body, `"organization_id":7`) {
		t.Fatalf("unexpected body: %s", req.body)
	}
}

func TestAssignSendsUserIDs(t *testing.T) {
	srv := newStubServer(t, func(e *echo.Echo) {
		e.POST("/api/tasks/:id/assign", func(c echo.Context) error {
			return c.NoContent(http.StatusNoContent)
		})
	})
	c := newTestClient(t, srv.URL)
	if err := c.AssignUsers(context.Background(), 3, []int64{4, 5}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	req := srv.last()
	if req.path != "/api/tasks/3/assign" || !strings.Contains(req.body, `"user_ids":[4,5]`) {
		t.Fatalf("unexpected request: %#v", req)
	}
}

func TestRequestMetricsSpanAndLog(t *testing.T) {
	srv := newStubServer(t, func(e *echo.Echo) {
		e.GET("/api/tasks/:id", func(c echo.Context) error {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "missing"})
		})
	})
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	c := newTestClient(t, srv.URL, WithTracerProvider(tp), WithLogger(logger))

	if _, err := c.GetTask(context.Background(), 5); err == nil {
		t.Fatalf("expected not found")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != requestSpanName {
		t.Fatalf("unexpected span name %s", span.Name)
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes {
		attrs[kv.Key] = kv.Value
	}
	if attrs["http.route"].AsString() != "/api/tasks/{id}" {
		t.Fatalf("unexpected route attribute %v", attrs["http.route"])
	}
	if attrs["http.status_code"].AsInt64() != http.StatusNotFound {
		t.Fatalf("unexpected status attribute %v", attrs["http.status_code"])
	}
	if span.Status.Code != codes.Error {
		t.Fatalf("expected error status, got %v", span.Status.Code)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Message != requestEventName {
		t.Fatalf("expected metrics log entry, got %#v", entry)
	}
	if entry.Data["status"] != http.StatusNotFound {
		t.Fatalf("unexpected status field %v", entry.Data["status"])
	}
	if entry.Data["trace_id"] == nil {
		t.Fatalf("expected trace id to be logged")
	}
}

func TestRequestBodyCompression(t *testing.T) {
	srv := newStubServer(t, func(e *echo.Echo) {
		e.POST("/api/tasks", func(c echo.Context) error {
			return c.JSON(http.StatusCreated, domain.Task{ID: 1, Title: "ok"})
		})
	})
	long := strings.Repeat("x", 4*DefaultGzipThreshold)

	tests := map[string]struct {
		opts        []Option
		description string
		gzipped     bool
	}{
		"small body stays plain": {description: "short"},
		"large body is gzipped":  {description: long, gzipped: true},
		"custom threshold":       {opts: []Option{WithGzipThreshold(16)}, description: "just over sixteen bytes", gzipped: true},
		"disabled":               {opts: []Option{WithGzipThreshold(-1)}, description: long},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, srv.URL, tc.opts...)
			in := domain.TaskInput{Title: "Report", Description: tc.description, OrganizationID: 3}
			if _, err := c.CreateTask(context.Background(), in); err != nil {
				t.Fatalf("create task: %v", err)
			}
			req := srv.last()
			body := []byte(req.body)
			if got := req.header.Get("Content-Encoding"); (got == "gzip") != tc.gzipped {
				t.Fatalf("unexpected Content-Encoding %q", got)
			}
			if tc.gzipped {
				zr, err := gzip.NewReader(bytes.NewReader(body))
				if err != nil {
					t.Fatalf("gzip reader: %v", err)
				}
				if body, err = io.ReadAll(zr); err != nil {
					t.Fatalf("inflate: %v", err)
				}
			}
			if !strings.Contains(string(body), tc.description) {
				t.Fatalf("body does not carry the description: %q", body)
			}
		})
	}
}

func TestTimeoutAppliesRegardlessOfOptionOrder(t *testing.T) {
	tests := map[string][]Option{
		"timeout first": {WithTimeout(time.Second), WithHTTPClient(&http.Client{})},
		"timeout last":  {WithHTTPClient(&http.Client{}), WithTimeout(time.Second)},
	}
	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, "http://example.test", opts...)
			if c.http.Timeout != time.Second {
				t.Fatalf("expected 1s timeout, got %v", c.http.Timeout)
			}
		})
	}
}

func TestCallerHTTPClientIsNotModified(t *testing.T) {
	hc := &http.Client{Timeout: time.Minute}
	c := newTestClient(t, "http://example.test", WithHTTPClient(hc), WithTimeout(time.Second))
	if hc.Timeout != time.Minute {
		t.Fatalf("caller timeout changed to %v", hc.Timeout)
	}
	if hc.Jar != nil {
		t.Fatalf("caller client gained a cookie jar")
	}
	if c.http == hc {
		t.Fatalf("client shares the caller's http.Client")
	}
}

func TestClearSessionWhileRequestsRun(t *testing.T) {
	srv := newStubServer(t, func(e *echo.Echo) {
		e.GET("/api/auth/me", func(c echo.Context) error {
			c.SetCookie(&http.Cookie{Name: "session", Value: "abc", Path: "/"})
			return c.JSON(http.StatusOK, domain.User{ID: 1, Username: "ann"})
		})
	})
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, _ = c.Me(ctx)
			}
		}()
	}
	for i := 0; i < 10; i++ {
		c.ClearSession()
	}
	wg.Wait()

	c.ClearSession()
	if got := len(c.Cookies()); got != 0 {
		t.Fatalf("expected no cookies after ClearSession, got %d", got)
	}
}

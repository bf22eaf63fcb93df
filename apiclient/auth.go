package apiclient

import (
	"context"
	"net/http"

	"github.com/yukikurage/task-management-front/domain"
)

// Signup creates an account.
func (c *Client) Signup(ctx context.Context, creds domain.Credentials) (domain.User, error) {
	var u domain.User
	err := c.do(ctx, request{method: http.MethodPost, route: "/api/auth/signup", path: "/api/auth/signup", body: creds}, &u)
	return u, err
}

// Login starts a session; the session cookie is retained by the client.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (domain.User, error) {
	var u domain.User
	err := c.do(ctx, request{method: http.MethodPost, route: "/api/auth/login", path: "/api/auth/login", body: creds}, &u)
	return u, err
}

// Logout ends the session and drops local cookies even when the call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, request{method: http.MethodPost, route: "/api/auth/logout", path: "/api/auth/logout"}, nil)
	c.ClearSession()
	return err
}

// Me returns the identity bound to the current session.
func (c *Client) Me(ctx context.Context) (domain.User, error) {
	var u domain.User
	err := c.do(ctx, request{method: http.MethodGet, route: "/api/auth/me", path: "/api/auth/me"}, &u)
	return u, err
}

// HealthStatus is the liveness probe payload.
type HealthStatus struct {
	Status string `json:"status"`
}

// Health calls the liveness probe.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var h HealthStatus
	err := c.do(ctx, request{method: http.MethodGet, route: "/health", path: "/health"}, &h)
	return h, err
}

package apiclient

import (
	"context"
	"net/http"

	"github.com/yukikurage/task-management-front/domain"
)

type organizationsResponse struct {
	Organizations []domain.Organization `json:"organizations"`
}

type createOrganizationRequest struct {
	Name string `json:"name"`
}

type joinOrganizationRequest struct {
	InviteCode string `json:"invite_code"`
}

type joinOrganizationResponse struct {
	Organization domain.Organization `json:"organization"`
}

// ListOrganizations returns the organizations the caller belongs to.
func (c *Client) ListOrganizations(ctx context.Context) ([]domain.Organization, error) {
	var resp organizationsResponse
	if err := c.do(ctx, request{method: http.MethodGet, route: "/api/organizations", path: "/api/organizations"}, &resp); err != nil {
		return nil, err
	}
	if resp.Organizations == nil {
		resp.Organizations = []domain.Organization{}
	}
	return resp.Organizations, nil
}

// CreateOrganization creates an organization owned by the caller.
func (c *Client) CreateOrganization(ctx context.Context, name string) (domain.Organization, error) {
	var org domain.Organization
	err := c.do(ctx, request{
		method:     http.MethodPost,
		route:      "/api/organizations",
		path:       "/api/organizations",
		body:       createOrganizationRequest{Name: name},
		idempotent: true,
	}, &org)
	return org, err
}

// JoinOrganization joins the organization identified by an invite code.
func (c *Client) JoinOrganization(ctx context.Context, inviteCode string) (domain.Organization, error) {
	var resp joinOrganizationResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/api/organizations/join",
		path:   "/api/organizations/join",
		body:   joinOrganizationRequest{InviteCode: inviteCode},
	}, &resp)
	return resp.Organization, err
}

// GetOrganization returns the organization with its members and the caller's role.
func (c *Client) GetOrganization(ctx context.Context, id int64) (domain.OrganizationDetail, error) {
	var detail domain.OrganizationDetail
	path, err := idPath("/api/organizations", id, "")
	if err != nil {
		return detail, err
	}
	err = c.do(ctx, request{method: http.MethodGet, route: "/api/organizations/{id}", path: path}, &detail)
	return detail, err
}

// RegenerateInviteCode rotates the invite code. Only owners may call it.
func (c *Client) RegenerateInviteCode(ctx context.Context, id int64) (domain.Organization, error) {
	var org domain.Organization
	path, err := idPath("/api/organizations", id, "/regenerate-code")
	if err != nil {
		return org, err
	}
	err = c.do(ctx, request{method: http.MethodPost, route: "/api/organizations/{id}/regenerate-code", path: path}, &org)
	return org, err
}

package orchestrator

import (
	"context"
	"strings"

	"github.com/yukikurage/task-management-front/domain"
	"github.com/yukikurage/task-management-front/refresh"
)

type OrganizationJoiner interface {
	JoinOrganization(ctx context.Context, inviteCode string) (domain.Organization, error)
}

type InviteCodeRegenerator interface {
	RegenerateInviteCode(ctx context.Context, id int64) (domain.Organization, error)
}

// OrganizationCache is the slice of orgcache the organization dialogs use.
type OrganizationCache interface {
	MemberSource
	InvalidateList(ctx context.Context)
	Invalidate(ctx context.Context, id int64)
}

type listInvalidator interface {
	InvalidateList(ctx context.Context)
}

type inviteCodeForm struct {
	InviteCode string `json:"invite_code" validate:"required" msg:"enter_invite_code"`
}

// CreateOrganization is the new-organization dialog.
type CreateOrganization struct {
	Modal
	creator OrganizationCreator
	cache   listInvalidator

	OnCreated func(domain.Organization)

	name string
}

func NewCreateOrganization(creator OrganizationCreator, cache listInvalidator, deps Deps) *CreateOrganization {
	return &CreateOrganization{Modal: newModal(deps, "create_organization"), creator: creator, cache: cache}
}

func (d *CreateOrganization) Open() { d.activate() }

func (d *CreateOrganization) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

func (d *CreateOrganization) SetName(name string) {
	d.mu.Lock()
	d.name = name
	d.mu.Unlock()
}

func (d *CreateOrganization) Submit(ctx context.Context) (domain.Organization, error) {
	release, err := d.begin()
	if err != nil {
		return domain.Organization{}, err
	}
	defer release()

	d.mu.Lock()
	form := orgNameForm{Name: strings.TrimSpace(d.name)}
	d.mu.Unlock()
	if err := validateForm(&form, d.lang); err != nil {
		return domain.Organization{}, d.invalid(err)
	}
	org, err := d.creator.CreateOrganization(ctx, form.Name)
	if err != nil {
		return domain.Organization{}, d.fail(err, msgCreateOrgFailed, msgCreateOrgError)
	}
	if d.cache != nil {
		d.cache.InvalidateList(ctx)
	}

	d.mu.Lock()
	d.name = ""
	onCreated := d.OnCreated
	d.mu.Unlock()
	if onCreated != nil {
		onCreated(org)
	}
	d.succeed(refresh.TopicOrganizations)
	return org, nil
}

// JoinOrganization joins an organization by invite code.
type JoinOrganization struct {
	Modal
	joiner OrganizationJoiner
	cache  listInvalidator

	OnJoined func(domain.Organization)

	code string
}

func NewJoinOrganization(joiner OrganizationJoiner, cache listInvalidator, deps Deps) *JoinOrganization {
	return &JoinOrganization{Modal: newModal(deps, "join_organization"), joiner: joiner, cache: cache}
}

func (d *JoinOrganization) Open() { d.activate() }

func (d *JoinOrganization) SetInviteCode(code string) {
	d.mu.Lock()
	d.code = code
	d.mu.Unlock()
}

func (d *JoinOrganization) InviteCode() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.code
}

func (d *JoinOrganization) Submit(ctx context.Context) (domain.Organization, error) {
	release, err := d.begin()
	if err != nil {
		return domain.Organization{}, err
	}
	defer release()

	d.mu.Lock()
	form := inviteCodeForm{InviteCode: strings.TrimSpace(d.code)}
	d.mu.Unlock()
	if err := validateForm(&form, d.lang); err != nil {
		return domain.Organization{}, d.invalid(err)
	}
	org, err := d.joiner.JoinOrganization(ctx, form.InviteCode)
	if err != nil {
		return domain.Organization{}, d.fail(err, msgJoinFailed, msgJoinError)
	}
	if d.cache != nil {
		d.cache.InvalidateList(ctx)
	}

	d.mu.Lock()
	d.code = ""
	onJoined := d.OnJoined
	d.mu.Unlock()
	if onJoined != nil {
		onJoined(org)
	}
	// the new organization's tasks become visible too
	d.succeed(refresh.TopicOrganizations, refresh.TopicTasks)
	return org, nil
}

// OrganizationDetail shows an organization, its members and the caller's
// role. Owners can rotate the invite code; the dialog stays open afterwards
// and shows the new code.
type OrganizationDetail struct {
	Modal
	cache       OrganizationCache
	regenerator InviteCodeRegenerator

	orgID  int64
	detail *domain.OrganizationDetail
}

func NewOrganizationDetail(cache OrganizationCache, regenerator InviteCodeRegenerator, deps Deps) *OrganizationDetail {
	return &OrganizationDetail{Modal: newModal(deps, "organization_detail"), cache: cache, regenerator: regenerator}
}

func (d *OrganizationDetail) Open(ctx context.Context, orgID int64) error {
	d.mu.Lock()
	d.orgID = orgID
	d.detail = nil
	d.mu.Unlock()
	d.activate()

	detail, err := d.cache.Organization(ctx, orgID)
	if err != nil {
		return d.fail(err, msgFetchOrgFailed, msgFetchOrgFailed)
	}
	d.mu.Lock()
	d.detail = &detail
	d.mu.Unlock()
	return nil
}

// Detail returns the loaded organization, or nil before it has loaded.
func (d *OrganizationDetail) Detail() *domain.OrganizationDetail {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.detail == nil {
		return nil
	}
	cp := *d.detail
	cp.Members = append([]domain.OrganizationMember(nil), d.detail.Members...)
	return &cp
}

// CanRegenerate reports whether the caller owns the organization.
func (d *OrganizationDetail) CanRegenerate() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detail != nil && d.detail.IsOwner()
}

// RegenerateInviteCode rotates the invite code and returns the new one.
func (d *OrganizationDetail) RegenerateInviteCode(ctx context.Context) (string, error) {
	if !d.CanRegenerate() {
		if !d.IsOpen() {
			return "", ErrClosed
		}
		return "", d.setErr(d.message(msgNotOwner), ErrNotOwner)
	}
	release, err := d.begin()
	if err != nil {
		return "", err
	}
	defer release()

	d.mu.Lock()
	id := d.orgID
	d.mu.Unlock()
	org, err := d.regenerator.RegenerateInviteCode(ctx, id)
	if err != nil {
		return "", d.fail(err, msgRegenerateFailed, msgRegenerateError)
	}
	d.cache.Invalidate(ctx, id)

	d.mu.Lock()
	if d.detail != nil {
		d.detail.Organization.InviteCode = org.InviteCode
		if org.Name != "" {
			d.detail.Organization.Name = org.Name
		}
	}
	onSuccess := d.OnSuccess
	d.mu.Unlock()
	if d.broker != nil {
		d.broker.Publish(refresh.TopicOrganizations)
	}
	if onSuccess != nil {
		onSuccess()
	}
	return org.InviteCode, nil
}

package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/yukikurage/task-management-front/apiclient"
	"github.com/yukikurage/task-management-front/domain"
	"github.com/yukikurage/task-management-front/refresh"
)

var (
	errRejected  = &apiclient.APIError{Status: http.StatusBadRequest, Message: "rejected", Method: http.MethodPost, Path: "/api/tasks"}
	errNetwork   = &apiclient.TransportError{Method: http.MethodPost, Path: "/api/tasks", Err: errors.New("connection refused")}
	errForbidden = &apiclient.APIError{Status: http.StatusForbidden, Message: "forbidden"}
)

// fakeAPI implements every backend interface the dialogs depend on.
type fakeAPI struct {
	mu sync.Mutex

	createTask func(in domain.TaskInput) (domain.Task, error)
	created    []domain.TaskInput
	gate       chan struct{}

	patches   map[int64]domain.TaskPatch
	updateErr error
	deleted   []int64
	deleteErr error

	assigned   map[int64][]int64
	unassigned map[int64][]int64
	assignErr  error

	orgs          []domain.Organization
	orgsErr       error
	details       map[int64]domain.OrganizationDetail
	createOrgErr  error
	joinErr       error
	regenerated   []int64
	invalidations int

	user      domain.User
	loginErr  error
	signupErr error
	meErr     error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		patches:    map[int64]domain.TaskPatch{},
		assigned:   map[int64][]int64{},
		unassigned: map[int64][]int64{},
		orgs:       []domain.Organization{{ID: 7, Name: "Acme"}, {ID: 8, Name: "Globex"}},
		details:    map[int64]domain.OrganizationDetail{},
		user:       domain.User{ID: 1, Username: "ann"},
	}
}

func (f *fakeAPI) CreateTask(ctx context.Context, in domain.TaskInput) (domain.Task, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.Task{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createTask != nil {
		t, err := f.createTask(in)
		if err == nil {
			f.created = append(f.created, in)
		}
		return t, err
	}
	f.created = append(f.created, in)
	return domain.Task{ID: int64(len(f.created)), Title: in.Title, DueDate: in.DueDate, OrganizationID: in.OrganizationID}, nil
}

func (f *fakeAPI) UpdateTask(_ context.Context, id int64, p domain.TaskPatch) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return domain.Task{}, f.updateErr
	}
	f.patches[id] = p
	t := domain.Task{ID: id, DueDate: p.DueDate}
	if p.Title != nil {
		t.Title = *p.Title
	}
	return t, nil
}

func (f *fakeAPI) DeleteTask(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAPI) AssignUsers(_ context.Context, id int64, userIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.assignErr != nil {
		return f.assignErr
	}
	f.assigned[id] = append(f.assigned[id], userIDs...)
	return nil
}

func (f *fakeAPI) UnassignUsers(_ context.Context, id int64, userIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.assignErr != nil {
		return f.assignErr
	}
	f.unassigned[id] = append(f.unassigned[id], userIDs...)
	return nil
}

func (f *fakeAPI) Organizations(context.Context) ([]domain.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orgsErr != nil {
		return nil, f.orgsErr
	}
	return append([]domain.Organization(nil), f.orgs...), nil
}

func (f *fakeAPI) Organization(_ context.Context, id int64) (domain.OrganizationDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.details[id]
	if !ok {
		return domain.OrganizationDetail{}, &apiclient.APIError{Status: http.StatusNotFound}
	}
	return d, nil
}

func (f *fakeAPI) InvalidateList(context.Context) {
	f.mu.Lock()
	f.invalidations++
	f.mu.Unlock()
}

func (f *fakeAPI) Invalidate(context.Context, int64) {
	f.mu.Lock()
	f.invalidations++
	f.mu.Unlock()
}

func (f *fakeAPI) CreateOrganization(_ context.Context, name string) (domain.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createOrgErr != nil {
		return domain.Organization{}, f.createOrgErr
	}
	org := domain.Organization{ID: int64(100 + len(f.orgs)), Name: name}
	f.orgs = append(f.orgs, org)
	return org, nil
}

func (f *fakeAPI) JoinOrganization(_ context.Context, code string) (domain.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinErr != nil {
		return domain.Organization{}, f.joinErr
	}
	return domain.Organization{ID: 50, Name: "Joined", InviteCode: code}, nil
}

func (f *fakeAPI) RegenerateInviteCode(_ context.Context, id int64) (domain.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regenerated = append(f.regenerated, id)
	return domain.Organization{ID: id, InviteCode: "NEWCODE"}, nil
}

func (f *fakeAPI) Login(_ context.Context, creds domain.Credentials) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return domain.User{}, f.loginErr
	}
	return domain.User{ID: 1, Username: creds.Username}, nil
}

func (f *fakeAPI) Signup(_ context.Context, creds domain.Credentials) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signupErr != nil {
		return domain.User{}, f.signupErr
	}
	return domain.User{ID: 2, Username: creds.Username}, nil
}

func (f *fakeAPI) Me(context.Context) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user, f.meErr
}

func testDeps() (Deps, *refresh.Broker) {
	logger, _ := test.NewNullLogger()
	broker := refresh.NewBroker()
	return Deps{Broker: broker, Logger: logger, Lang: Japanese}, broker
}

package controller

import (
	"context"
	"errors"
	"sync"

	"github.com/yukikurage/task-management-front/apiclient"
	"github.com/yukikurage/task-management-front/domain"
)

var errBackend = errors.New("backend unavailable")

type listResult struct {
	items []domain.TaskListItem
	err   error
	// gate, when set, blocks the call until closed.
	gate chan struct{}
}

type fakeTasks struct {
	mu      sync.Mutex
	respond func(q apiclient.TaskQuery, call int) listResult
	calls   []apiclient.TaskQuery
	task    domain.Task
	taskErr error
}

func (f *fakeTasks) ListTasks(ctx context.Context, q apiclient.TaskQuery) ([]domain.TaskListItem, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	n := len(f.calls)
	respond := f.respond
	f.mu.Unlock()
	if respond == nil {
		return []domain.TaskListItem{}, nil
	}
	res := respond(q, n)
	if res.gate != nil {
		select {
		case <-res.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return res.items, res.err
}

func (f *fakeTasks) GetTask(context.Context, int64) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.task, f.taskErr
}

func (f *fakeTasks) queries() []apiclient.TaskQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiclient.TaskQuery(nil), f.calls...)
}

type fakeSession struct {
	mu        sync.Mutex
	user      domain.User
	err       error
	loggedOut bool
}

func (f *fakeSession) Me(context.Context) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user, f.err
}

func (f *fakeSession) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = true
	return nil
}

type fakeOrgs struct {
	mu          sync.Mutex
	list        []domain.Organization
	detail      domain.OrganizationDetail
	err         error
	invalidated bool
}

func (f *fakeOrgs) Organizations(context.Context) ([]domain.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list, f.err
}

func (f *fakeOrgs) Organization(context.Context, int64) (domain.OrganizationDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detail, f.err
}

func (f *fakeOrgs) InvalidateAll(context.Context) {
	f.mu.Lock()
	f.invalidated = true
	f.mu.Unlock()
}

func items(titles ...string) []domain.TaskListItem {
	out := make([]domain.TaskListItem, 0, len(titles))
	for i, title := range titles {
		out = append(out, domain.TaskListItem{ID: int64(i + 1), Title: title})
	}
	return out
}

func titles(items []domain.TaskListItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Title)
	}
	return out
}

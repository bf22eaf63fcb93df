package controller

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/yukikurage/task-management-front/apiclient"
	"github.com/yukikurage/task-management-front/domain"
	"github.com/yukikurage/task-management-front/refresh"
)

func TestOrganizationHomeAssignedToggle(t *testing.T) {
	tasks := &fakeTasks{respond: func(q apiclient.TaskQuery, _ int) listResult {
		switch {
		case q.AssignedToMe && q.DueToday:
			return listResult{items: items("mine today")}
		case q.AssignedToMe:
			return listResult{items: items("mine")}
		case q.DueToday:
			return listResult{items: items("everyone today")}
		default:
			return listResult{items: items("everyone")}
		}
	}}
	orgs := &fakeOrgs{detail: domain.OrganizationDetail{
		Organization: domain.Organization{ID: 3, Name: "Acme"},
		Members:      []domain.OrganizationMember{{UserID: 1, Role: domain.RoleOwner}},
		YourRole:     domain.RoleOwner,
	}}
	logger, _ := test.NewNullLogger()
	o := NewOrganizationHome(tasks, orgs, refresh.NewBroker(), 3, logger, nil)
	o.Mount(context.Background())
	defer o.Unmount()
	o.Wait()

	snap := o.Snapshot()
	if snap.State != Loaded || snap.Organization == nil || snap.Organization.Organization.Name != "Acme" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if titles(snap.Today)[0] != "everyone today" || titles(snap.All)[0] != "everyone" {
		t.Fatalf("unexpected lists %v / %v", titles(snap.Today), titles(snap.All))
	}
	for _, q := range tasks.queries() {
		if q.OrganizationID != 3 {
			t.Fatalf("expected organization filter, got %+v", q)
		}
		if !q.DueToday && q.Sort != apiclient.SortDueDate {
			t.Fatalf("expected full list sorted by due date, got %+v", q)
		}
	}

	o.SetAssignedOnly(true)
	o.Wait()
	snap = o.Snapshot()
	if !snap.AssignedOnly || titles(snap.Today)[0] != "mine today" || titles(snap.All)[0] != "mine" {
		t.Fatalf("unexpected filtered lists %v / %v", titles(snap.Today), titles(snap.All))
	}

	before := len(tasks.queries())
	o.SetAssignedOnly(true)
	o.Wait()
	if len(tasks.queries()) != before {
		t.Fatalf("unchanged toggle must not re-fetch")
	}
}

func TestOrganizationHomeDetailFailureIsIndependent(t *testing.T) {
	tasks := &fakeTasks{respond: func(apiclient.TaskQuery, int) listResult {
		return listResult{items: items("a")}
	}}
	orgs := &fakeOrgs{err: errBackend}
	logger, _ := test.NewNullLogger()
	o := NewOrganizationHome(tasks, orgs, nil, 3, logger, nil)
	o.Mount(context.Background())
	defer o.Unmount()
	o.Wait()

	snap := o.Snapshot()
	if snap.State != Loaded || snap.Organization != nil || len(snap.All) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestOrganizationHomeOpenTask(t *testing.T) {
	tasks := &fakeTasks{task: domain.Task{ID: 9, Title: "Ship"}}
	logger, _ := test.NewNullLogger()
	o := NewOrganizationHome(tasks, &fakeOrgs{}, nil, 3, logger, nil)

	if _, err := o.OpenTask(context.Background(), 9); err != ErrUnmounted {
		t.Fatalf("expected ErrUnmounted, got %v", err)
	}
	o.Mount(context.Background())
	defer o.Unmount()
	task, err := o.OpenTask(context.Background(), 9)
	if err != nil || task.Title != "Ship" {
		t.Fatalf("unexpected task %+v (%v)", task, err)
	}
}

package mockapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/crypto/bcrypt"

	"github.com/yukikurage/task-management-front/apiclient"
	"github.com/yukikurage/task-management-front/controller"
	"github.com/yukikurage/task-management-front/domain"
	"github.com/yukikurage/task-management-front/mockapi"
	"github.com/yukikurage/task-management-front/orchestrator"
	"github.com/yukikurage/task-management-front/orgcache"
	"github.com/yukikurage/task-management-front/refresh"
)

// session is one signed-in client with the shared plumbing a shell would
// build around it.
type session struct {
	api    *apiclient.Client
	user   domain.User
	broker *refresh.Broker
	orgs   *orgcache.Cache
	deps   orchestrator.Deps
}

type env struct {
	t   *testing.T
	url string
	now func() time.Time
}

func newEnv(t *testing.T, now func() time.Time) *env {
	t.Helper()
	logger, _ := test.NewNullLogger()
	srv, err := mockapi.New(mockapi.Config{Logger: logger, Now: now, BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("mockapi: %v", err)
	}
	ts := httptest.NewServer(srv.Echo())
	t.Cleanup(ts.Close)
	return &env{t: t, url: ts.URL, now: now}
}

func (e *env) client(loc *time.Location) *apiclient.Client {
	e.t.Helper()
	logger, _ := test.NewNullLogger()
	c, err := apiclient.New(e.url, apiclient.WithLogger(logger), apiclient.WithLocation(loc))
	if err != nil {
		e.t.Fatalf("client: %v", err)
	}
	return c
}

func (e *env) signup(username string, loc *time.Location) *session {
	e.t.Helper()
	c := e.client(loc)
	u, err := c.Signup(context.Background(), domain.Credentials{Username: username, Password: "secret123"})
	if err != nil {
		e.t.Fatalf("signup %s: %v", username, err)
	}
	logger, _ := test.NewNullLogger()
	broker := refresh.NewBroker()
	return &session{
		api:    c,
		user:   u,
		broker: broker,
		orgs:   orgcache.New(c, orgcache.WithScope(username), orgcache.WithLogger(logger)),
		deps:   orchestrator.Deps{Broker: broker, Logger: logger},
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestDueTodayHonoursViewerTimezone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// 2025-03-01 01:00 in Tokyo is still 2025-02-28 in UTC.
	now := time.Date(2025, 3, 1, 1, 0, 0, 0, tokyo)
	e := newEnv(t, func() time.Time { return now })
	s := e.signup("ann", tokyo)
	ctx := context.Background()
	org, err := s.api.CreateOrganization(ctx, "Acme")
	if err != nil {
		t.Fatalf("create org: %v", err)
	}

	dues := map[string]time.Time{
		"morning":   time.Date(2025, 3, 1, 0, 30, 0, 0, tokyo),
		"night":     time.Date(2025, 3, 1, 23, 59, 0, 0, tokyo),
		"yesterday": time.Date(2025, 2, 28, 23, 59, 0, 0, tokyo),
		"tomorrow":  time.Date(2025, 3, 2, 0, 0, 0, 0, tokyo),
	}
	for title, due := range dues {
		due := due
		if _, err := s.api.CreateTask(ctx, domain.TaskInput{Title: title, DueDate: &due, OrganizationID: org.ID}); err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
	}
	if _, err := s.api.CreateTask(ctx, domain.TaskInput{Title: "undated", OrganizationID: org.ID}); err != nil {
		t.Fatalf("create undated: %v", err)
	}

	var (
		mu   sync.Mutex
		last controller.HomeSnapshot
	)
	home := controller.NewHome(s.api, s.broker, org.ID, nil, func(snap controller.HomeSnapshot) {
		mu.Lock()
		last = snap
		mu.Unlock()
	})
	home.Mount(ctx)
	defer home.Unmount()
	home.Wait()

	mu.Lock()
	defer mu.Unlock()
	if last.State != controller.Loaded {
		t.Fatalf("expected loaded, got %v (%v)", last.State, last.Err)
	}
	if len(last.Today) != 2 {
		t.Fatalf("expected 2 tasks due today, got %+v", last.Today)
	}
	for _, item := range last.Today {
		if !domain.DueOn(item.DueDate, now, tokyo) {
			t.Fatalf("%q is not due on the viewer's day", item.Title)
		}
	}
}

func TestCreatedTaskIsListedImmediately(t *testing.T) {
	e := newEnv(t, time.Now)
	s := e.signup("ann", time.UTC)
	ctx := context.Background()
	org, _ := s.api.CreateOrganization(ctx, "Acme")

	create := orchestrator.NewTaskCreate(s.api, s.orgs, s.api, time.UTC, s.deps)
	if err := create.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	create.SetForm(orchestrator.TaskForm{OrganizationID: org.ID, Title: "Fresh"})
	task, err := create.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	items, err := s.api.ListTasks(ctx, apiclient.TaskQuery{OrganizationID: org.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ID != task.ID {
		t.Fatalf("created task missing from list: %+v", items)
	}
}

func TestDeletedTaskLeavesEveryView(t *testing.T) {
	e := newEnv(t, time.Now)
	s := e.signup("ann", time.UTC)
	ctx := context.Background()
	org, _ := s.api.CreateOrganization(ctx, "Acme")
	doomed, _ := s.api.CreateTask(ctx, domain.TaskInput{Title: "Doomed", OrganizationID: org.ID})
	keep, _ := s.api.CreateTask(ctx, domain.TaskInput{Title: "Keep", OrganizationID: org.ID})

	var (
		mu   sync.Mutex
		last controller.OrganizationHomeSnapshot
	)
	view := controller.NewOrganizationHome(s.api, s.orgs, s.broker, org.ID, nil, func(snap controller.OrganizationHomeSnapshot) {
		mu.Lock()
		last = snap
		mu.Unlock()
	})
	view.Mount(ctx)
	defer view.Unmount()
	view.Wait()

	listed := func(id int64) bool {
		mu.Lock()
		defer mu.Unlock()
		for _, item := range last.All {
			if item.ID == id {
				return true
			}
		}
		return false
	}
	if !listed(doomed.ID) || !listed(keep.ID) {
		t.Fatal("initial list incomplete")
	}

	del := orchestrator.NewTaskDelete(s.api, s.deps)
	del.Confirm = func(string) bool { return true }
	del.Open(doomed, s.user)
	if err := del.Submit(ctx); err != nil {
		t.Fatalf("delete: %v", err)
	}

	eventually(t, func() bool { return !listed(doomed.ID) })
	if !listed(keep.ID) {
		t.Fatal("unrelated task disappeared")
	}
	if _, err := s.api.GetTask(ctx, doomed.ID); !apiclient.IsStatus(err, http.StatusNotFound) {
		t.Fatalf("expected deleted task to 404, got %v", err)
	}
}

func TestAssigningNonMemberIsRejected(t *testing.T) {
	e := newEnv(t, time.Now)
	owner := e.signup("owner", time.UTC)
	member := e.signup("member", time.UTC)
	outsider := e.signup("outsider", time.UTC)
	ctx := context.Background()

	org, _ := owner.api.CreateOrganization(ctx, "Acme")
	if _, err := member.api.JoinOrganization(ctx, org.InviteCode); err != nil {
		t.Fatalf("join: %v", err)
	}
	task, _ := owner.api.CreateTask(ctx, domain.TaskInput{Title: "Ship", OrganizationID: org.ID})

	err := owner.api.AssignUsers(ctx, task.ID, []int64{outsider.user.ID})
	if !apiclient.IsStatus(err, http.StatusBadRequest) {
		t.Fatalf("expected non-member assignment to be rejected, got %v", err)
	}

	assign := orchestrator.NewAssignUsers(owner.api, owner.orgs, owner.deps)
	if err := assign.Open(ctx, task); err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, m := range assign.Candidates() {
		if m.UserID == outsider.user.ID {
			t.Fatal("non-member offered as assignee")
		}
	}
	if len(assign.Candidates()) != 2 {
		t.Fatalf("expected both members offered, got %+v", assign.Candidates())
	}
}

func TestUnassigningLastAssigneeEmptiesBadges(t *testing.T) {
	e := newEnv(t, time.Now)
	s := e.signup("ann", time.UTC)
	ctx := context.Background()
	org, _ := s.api.CreateOrganization(ctx, "Acme")
	task, _ := s.api.CreateTask(ctx, domain.TaskInput{Title: "Solo", OrganizationID: org.ID})
	if err := s.api.AssignUsers(ctx, task.ID, []int64{s.user.ID}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	var (
		mu   sync.Mutex
		last controller.TaskDetailSnapshot
	)
	detail := controller.NewTaskDetail(s.api, s.api, s.broker, task.ID, nil, func(snap controller.TaskDetailSnapshot) {
		mu.Lock()
		last = snap
		mu.Unlock()
	})
	detail.Mount(ctx)
	defer detail.Unmount()
	detail.Wait()

	mu.Lock()
	loaded := *last.Task
	assigned := len(last.AssignedUserIDs())
	mu.Unlock()
	if assigned != 1 {
		t.Fatalf("expected one assignee before unassign, got %d", assigned)
	}

	unassign := orchestrator.NewUnassignUser(s.api, s.deps)
	unassign.Open(loaded)
	if err := unassign.Submit(ctx, s.user.ID); err != nil {
		t.Fatalf("unassign: %v", err)
	}

	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last.Task != nil && len(last.AssignedUserIDs()) == 0
	})
	fresh, err := s.api.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(fresh.Assignments) != 0 || len(fresh.AssignedUserIDs()) != 0 {
		t.Fatalf("expected an empty assignment list, got %+v", fresh.Assignments)
	}
}

func TestDraftAcceptWithUnknownOrganizationFailsEveryDraft(t *testing.T) {
	e := newEnv(t, time.Now)
	s := e.signup("ann", time.UTC)
	ctx := context.Background()
	if _, err := s.api.CreateOrganization(ctx, "Acme"); err != nil {
		t.Fatalf("create org: %v", err)
	}

	drafts, err := s.api.GenerateTasks(ctx, "write report\nreview PR\nbook room")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	accept := orchestrator.NewTaskDraftAccept(s.api, s.orgs, 2, s.deps)
	if err := accept.Open(ctx, drafts); err != nil {
		t.Fatalf("open: %v", err)
	}
	accept.SelectOrganization(999)

	created, err := accept.Submit(ctx)
	var batch *orchestrator.BatchError
	if !errors.As(err, &batch) {
		t.Fatalf("expected batch error, got %v", err)
	}
	if batch.Failed != 3 || batch.Total != 3 || len(created) != 0 {
		t.Fatalf("unexpected outcome: %+v created=%d", batch, len(created))
	}
	if got := accept.Err(); got != "3個のタスクの作成に失敗しました。" {
		t.Fatalf("unexpected message %q", got)
	}
	if len(accept.Drafts()) != 3 {
		t.Fatalf("drafts dropped: %d left", len(accept.Drafts()))
	}
	if !accept.IsOpen() {
		t.Fatal("dialog closed after failure")
	}
	items, _ := s.api.ListTasks(ctx, apiclient.TaskQuery{})
	if len(items) != 0 {
		t.Fatalf("unexpected tasks created: %+v", items)
	}
}

func TestLoginShowsUsernameInSidebar(t *testing.T) {
	e := newEnv(t, time.Now)
	e.signup("ann", time.UTC)
	ctx := context.Background()

	c := e.client(time.UTC)
	logger, _ := test.NewNullLogger()
	broker := refresh.NewBroker()
	login := orchestrator.NewLogin(c, orchestrator.Deps{Broker: broker, Logger: logger})
	login.Open()
	login.SetCredentials("ann", "secret123")
	user, err := login.Submit(ctx)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	me, err := c.Me(ctx)
	if err != nil || me.Username != user.Username {
		t.Fatalf("me = %+v, %v", me, err)
	}

	var (
		unauthorized atomic.Bool
		mu           sync.Mutex
		last         controller.SidebarSnapshot
	)
	sidebar := controller.NewSidebar(c, orgcache.New(c), broker, logger, func(snap controller.SidebarSnapshot) {
		mu.Lock()
		last = snap
		mu.Unlock()
	})
	sidebar.OnUnauthorized = func(error) { unauthorized.Store(true) }
	sidebar.Mount(ctx)
	defer sidebar.Unmount()
	sidebar.Wait()

	mu.Lock()
	defer mu.Unlock()
	if last.User == nil || last.User.Username != "ann" {
		t.Fatalf("sidebar shows %+v", last.User)
	}
	if unauthorized.Load() {
		t.Fatal("signed-in session treated as unauthorized")
	}
}

func TestSidebarRedirectsWithoutSession(t *testing.T) {
	e := newEnv(t, time.Now)
	c := e.client(time.UTC)
	logger, _ := test.NewNullLogger()

	redirected := make(chan error, 1)
	sidebar := controller.NewSidebar(c, orgcache.New(c), refresh.NewBroker(), logger, nil)
	sidebar.OnUnauthorized = func(err error) { redirected <- err }
	sidebar.Mount(context.Background())
	defer sidebar.Unmount()

	select {
	case err := <-redirected:
		if !apiclient.IsUnauthorized(err) {
			t.Fatalf("expected 401 cause, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sidebar did not redirect to login")
	}
}

func TestWriteReportDueDateRoundTrip(t *testing.T) {
	e := newEnv(t, time.Now)
	s := e.signup("ann", time.UTC)
	ctx := context.Background()

	var org domain.Organization
	for i := 0; i < 7; i++ {
		var err error
		if org, err = s.api.CreateOrganization(ctx, "Org"); err != nil {
			t.Fatalf("create org: %v", err)
		}
	}
	if org.ID != 7 {
		t.Fatalf("expected organization 7, got %d", org.ID)
	}

	create := orchestrator.NewTaskCreate(s.api, s.orgs, s.api, time.UTC, s.deps)
	if err := create.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	create.SetForm(orchestrator.TaskForm{OrganizationID: 7, Title: "Write report", DueDate: "2025-03-01"})
	if _, err := create.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}

	items, err := s.api.ListTasks(ctx, apiclient.TaskQuery{OrganizationID: 7})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Write report" {
		t.Fatalf("unexpected items %+v", items)
	}
	if got := items[0].DueDate.UTC().Format(time.RFC3339); got != "2025-03-01T00:00:00Z" {
		t.Fatalf("unexpected due date %s", got)
	}
}

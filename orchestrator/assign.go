package orchestrator

import (
	"context"
	"sort"

	"github.com/yukikurage/task-management-front/domain"
	"github.com/yukikurage/task-management-front/refresh"
)

type Assigner interface {
	AssignUsers(ctx context.Context, taskID int64, userIDs []int64) error
}

type Unassigner interface {
	UnassignUsers(ctx context.Context, taskID int64, userIDs []int64) error
}

// MemberSource loads an organization with its members, normally through
// orgcache.
type MemberSource interface {
	Organization(ctx context.Context, id int64) (domain.OrganizationDetail, error)
}

type selectionForm struct {
	UserIDs []int64 `json:"user_ids" validate:"required,min=1" msg:"select_users"`
}

// AssignUsers picks members of the task's organization who are not yet
// assigned and assigns them in one call.
type AssignUsers struct {
	Modal
	assigner Assigner
	members  MemberSource

	task       domain.Task
	candidates []domain.OrganizationMember
	selected   map[int64]struct{}
}

func NewAssignUsers(assigner Assigner, members MemberSource, deps Deps) *AssignUsers {
	return &AssignUsers{Modal: newModal(deps, "assign_users"), assigner: assigner, members: members}
}

// Open loads the organization's members. Members already assigned to task
// are not offered.
func (d *AssignUsers) Open(ctx context.Context, task domain.Task) error {
	d.mu.Lock()
	d.task = task
	d.candidates = nil
	d.selected = make(map[int64]struct{})
	d.mu.Unlock()
	d.activate()

	detail, err := d.members.Organization(ctx, task.OrganizationID)
	if err != nil {
		return d.fail(err, msgFetchMembersFailed, msgFetchMembersFailed)
	}
	candidates := make([]domain.OrganizationMember, 0, len(detail.Members))
	for _, m := range detail.Members {
		if !task.IsAssigned(m.UserID) {
			candidates = append(candidates, m)
		}
	}
	d.mu.Lock()
	d.candidates = candidates
	d.mu.Unlock()
	return nil
}

// Candidates returns the members that may be selected.
func (d *AssignUsers) Candidates() []domain.OrganizationMember {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.OrganizationMember(nil), d.candidates...)
}

// Toggle flips the selection of userID. Users that are not candidates cannot
// be selected; Toggle reports whether userID is selected afterwards.
func (d *AssignUsers) Toggle(userID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.selected[userID]; ok {
		delete(d.selected, userID)
		return false
	}
	for _, m := range d.candidates {
		if m.UserID == userID {
			d.selected[userID] = struct{}{}
			return true
		}
	}
	return false
}

// Selected returns the selected user ids in ascending order.
func (d *AssignUsers) Selected() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selectedLocked()
}

func (d *AssignUsers) selectedLocked() []int64 {
	ids := make([]int64, 0, len(d.selected))
	for id := range d.selected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (d *AssignUsers) Submit(ctx context.Context) error {
	release, err := d.begin()
	if err != nil {
		return err
	}
	defer release()

	d.mu.Lock()
	form := selectionForm{UserIDs: d.selectedLocked()}
	taskID := d.task.ID
	d.mu.Unlock()
	if err := validateForm(&form, d.lang); err != nil {
		return d.setErr(d.message(msgSelectUsers), ErrNoSelection)
	}

	if err := d.assigner.AssignUsers(ctx, taskID, form.UserIDs); err != nil {
		return d.fail(err, msgAssignFailed, msgAssignError)
	}
	d.mu.Lock()
	d.selected = make(map[int64]struct{})
	d.mu.Unlock()
	d.succeed(refresh.TopicTasks, refresh.TaskTopic(taskID))
	return nil
}

// UnassignUser removes one assignee from a task.
type UnassignUser struct {
	Modal
	unassigner Unassigner

	task domain.Task
}

func NewUnassignUser(unassigner Unassigner, deps Deps) *UnassignUser {
	return &UnassignUser{Modal: newModal(deps, "unassign_user"), unassigner: unassigner}
}

func (d *UnassignUser) Open(task domain.Task) {
	d.mu.Lock()
	d.task = task
	d.mu.Unlock()
	d.activate()
}

// Submit unassigns userID. The task detail view refreshes on success.
func (d *UnassignUser) Submit(ctx context.Context, userID int64) error {
	release, err := d.begin()
	if err != nil {
		return err
	}
	defer release()

	d.mu.Lock()
	taskID := d.task.ID
	d.mu.Unlock()
	if err := validateForm(&selectionForm{UserIDs: []int64{userID}}, d.lang); err != nil || userID <= 0 {
		return d.setErr(d.message(msgSelectUsers), ErrNoSelection)
	}
	if err := d.unassigner.UnassignUsers(ctx, taskID, []int64{userID}); err != nil {
		return d.fail(err, msgUnassignFailed, msgUnassignError)
	}
	d.succeed(refresh.TopicTasks, refresh.TaskTopic(taskID))
	return nil
}

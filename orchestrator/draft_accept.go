package orchestrator

import (
	"context"
	"fmt"

	"github.com/yukikurage/task-management-front/domain"
	"github.com/yukikurage/task-management-front/refresh"
)

// BatchError reports a partially or fully failed draft submission.
type BatchError struct {
	Failed int
	Total  int
	Errs   []error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%d of %d task creations failed", e.Failed, e.Total)
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error { return e.Errs }

type draftTarget struct {
	OrganizationID int64 `json:"organization_id" validate:"required,gt=0" msg:"select_organization"`
}

// TaskDraftAccept creates one task per accepted draft under the selected
// organization. Creations run in parallel; tasks already created are kept
// when others fail, and only the failed drafts remain for another attempt.
type TaskDraftAccept struct {
	Modal
	tasks   TaskCreator
	orgs    OrganizationLister
	workers int

	DefaultOrganizationID int64
	// OnCreated receives the tasks created by a submit, also a partial one.
	OnCreated func([]domain.Task)

	drafts        []domain.TaskDraft
	orgID         int64
	organizations []domain.Organization
}

func NewTaskDraftAccept(tasks TaskCreator, orgs OrganizationLister, workers int, deps Deps) *TaskDraftAccept {
	if workers <= 0 {
		workers = DefaultDraftWorkers
	}
	return &TaskDraftAccept{Modal: newModal(deps, "task_draft_accept"), tasks: tasks, orgs: orgs, workers: workers}
}

// Open shows drafts for review and loads the organizations to choose from.
func (d *TaskDraftAccept) Open(ctx context.Context, drafts []domain.TaskDraft) error {
	d.mu.Lock()
	d.drafts = append([]domain.TaskDraft(nil), drafts...)
	d.mu.Unlock()
	d.activate()

	orgs, err := d.orgs.Organizations(ctx)
	if err != nil {
		d.logger.WithError(err).Warn("orchestrator: failed to fetch organizations")
		return nil
	}
	d.mu.Lock()
	d.organizations = orgs
	if d.orgID == 0 || !containsOrg(orgs, d.orgID) {
		d.orgID = pickOrganization(orgs, d.DefaultOrganizationID)
		if d.orgID == 0 {
			d.orgID = d.DefaultOrganizationID
		}
	}
	d.mu.Unlock()
	return nil
}

func (d *TaskDraftAccept) Drafts() []domain.TaskDraft {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.TaskDraft(nil), d.drafts...)
}

// Reject drops the draft at index i without any backend call.
func (d *TaskDraftAccept) Reject(i int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.drafts) {
		return
	}
	d.drafts = append(d.drafts[:i], d.drafts[i+1:]...)
}

func (d *TaskDraftAccept) Organizations() []domain.Organization {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.Organization(nil), d.organizations...)
}

func (d *TaskDraftAccept) OrganizationID() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.orgID
}

func (d *TaskDraftAccept) SelectOrganization(id int64) {
	d.mu.Lock()
	d.orgID = id
	d.mu.Unlock()
}

// Close discards the drafts along with the dialog.
func (d *TaskDraftAccept) Close() {
	d.mu.Lock()
	d.drafts = nil
	d.orgID = 0
	d.mu.Unlock()
	d.Modal.Close()
}

// Submit creates every remaining draft. On partial failure it returns the
// created tasks together with a *BatchError and keeps the failed drafts.
func (d *TaskDraftAccept) Submit(ctx context.Context) ([]domain.Task, error) {
	release, err := d.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	d.mu.Lock()
	target := draftTarget{OrganizationID: d.orgID}
	drafts := append([]domain.TaskDraft(nil), d.drafts...)
	d.mu.Unlock()
	if err := validateForm(&target, d.lang); err != nil {
		return nil, d.invalid(err)
	}
	if len(drafts) == 0 {
		return nil, d.setErr(d.message(msgNoDrafts), ErrNoSelection)
	}

	created := make([]domain.Task, len(drafts))
	errs := runJobs(ctx, d.logger, d.workers, len(drafts), func(ctx context.Context, i int) error {
		task, err := d.tasks.CreateTask(ctx, drafts[i].Input(target.OrganizationID))
		if err != nil {
			return err
		}
		created[i] = task
		return nil
	})

	var (
		ok     []domain.Task
		failed []domain.TaskDraft
		causes []error
	)
	for i, err := range errs {
		if err != nil {
			failed = append(failed, drafts[i])
			causes = append(causes, err)
			continue
		}
		ok = append(ok, created[i])
	}

	d.mu.Lock()
	onCreated := d.OnCreated
	d.mu.Unlock()
	if onCreated != nil && len(ok) > 0 {
		onCreated(ok)
	}

	if len(failed) > 0 {
		d.mu.Lock()
		d.drafts = failed
		d.mu.Unlock()
		if len(ok) > 0 && d.broker != nil {
			d.broker.Publish(refresh.TopicTasks)
		}
		batchErr := &BatchError{Failed: len(failed), Total: len(drafts), Errs: causes}
		d.logger.WithError(batchErr).Warn("orchestrator: draft submission incomplete")
		return ok, d.setErr(d.message(msgDraftsFailed, len(failed)), batchErr)
	}

	d.Close()
	d.succeed(refresh.TopicTasks)
	return ok, nil
}

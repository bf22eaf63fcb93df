package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/yukikurage/task-management-front/domain"
	"github.com/yukikurage/task-management-front/refresh"
)

type TaskCreator interface {
	CreateTask(ctx context.Context, in domain.TaskInput) (domain.Task, error)
}

type OrganizationCreator interface {
	CreateOrganization(ctx context.Context, name string) (domain.Organization, error)
}

// OrganizationLister reads the caller's organizations through the shared
// cache and lets dialogs invalidate it after a mutation.
type OrganizationLister interface {
	Organizations(ctx context.Context) ([]domain.Organization, error)
	InvalidateList(ctx context.Context)
}

// TaskForm holds the fields of the create and edit dialogs. DueDate is a
// picker value, see domain.ParsePickerValue.
type TaskForm struct {
	OrganizationID int64  `json:"organization_id" validate:"required,gt=0" msg:"select_organization"`
	Title          string `json:"title" validate:"required" msg:"enter_title"`
	Description    string `json:"description"`
	DueDate        string `json:"due_date"`
}

func (f TaskForm) normalized() TaskForm {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.DueDate = strings.TrimSpace(f.DueDate)
	return f
}

type orgNameForm struct {
	Name string `json:"name" validate:"required" msg:"enter_org_name"`
}

// TaskCreate is the new-task dialog.
type TaskCreate struct {
	Modal
	tasks   TaskCreator
	orgs    OrganizationLister
	newOrgs OrganizationCreator
	loc     *time.Location

	// DefaultOrganizationID is preselected on open when the caller belongs
	// to it; otherwise the first organization is.
	DefaultOrganizationID int64
	// OnCreated receives the created task before OnSuccess runs.
	OnCreated func(domain.Task)

	form          TaskForm
	organizations []domain.Organization
}

func NewTaskCreate(tasks TaskCreator, orgs OrganizationLister, newOrgs OrganizationCreator, loc *time.Location, deps Deps) *TaskCreate {
	if loc == nil {
		loc = time.Local
	}
	return &TaskCreate{Modal: newModal(deps, "task_create"), tasks: tasks, orgs: orgs, newOrgs: newOrgs, loc: loc}
}

// Open activates the dialog and loads the organizations to choose from. The
// dialog stays open when they cannot be loaded.
func (d *TaskCreate) Open(ctx context.Context) error {
	d.activate()
	orgs, err := d.orgs.Organizations(ctx)
	if err != nil {
		return d.fail(err, msgFetchOrgsFailed, msgFetchOrgsFailed)
	}
	d.mu.Lock()
	d.organizations = orgs
	if d.form.OrganizationID == 0 || !containsOrg(orgs, d.form.OrganizationID) {
		d.form.OrganizationID = pickOrganization(orgs, d.DefaultOrganizationID)
	}
	d.mu.Unlock()
	return nil
}

// Close dismisses the dialog and discards the form, so the next Open starts
// from an empty form with the default organization.
func (d *TaskCreate) Close() {
	d.mu.Lock()
	d.form = TaskForm{}
	d.organizations = nil
	d.mu.Unlock()
	d.Modal.Close()
}

func (d *TaskCreate) Organizations() []domain.Organization {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.Organization(nil), d.organizations...)
}

// NeedsOrganization reports whether the caller has no organization to create
// the task in, in which case the dialog offers to create one inline.
func (d *TaskCreate) NeedsOrganization() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open && len(d.organizations) == 0
}

func (d *TaskCreate) Form() TaskForm {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.form
}

func (d *TaskCreate) SetForm(f TaskForm) {
	d.mu.Lock()
	d.form = f
	d.mu.Unlock()
}

// CreateInlineOrganization creates an organization from inside the dialog
// and selects it. The dialog stays open.
func (d *TaskCreate) CreateInlineOrganization(ctx context.Context, name string) (domain.Organization, error) {
	release, err := d.begin()
	if err != nil {
		return domain.Organization{}, err
	}
	defer release()

	form := orgNameForm{Name: strings.TrimSpace(name)}
	if err := validateForm(&form, d.lang); err != nil {
		return domain.Organization{}, d.invalid(err)
	}
	org, err := d.newOrgs.CreateOrganization(ctx, form.Name)
	if err != nil {
		return domain.Organization{}, d.fail(err, msgCreateOrgFailed, msgCreateOrgError)
	}
	d.orgs.InvalidateList(ctx)
	if d.broker != nil {
		d.broker.Publish(refresh.TopicOrganizations)
	}

	d.mu.Lock()
	d.organizations = append(d.organizations, org)
	d.form.OrganizationID = org.ID
	d.mu.Unlock()
	return org, nil
}

// Submit creates the task.
func (d *TaskCreate) Submit(ctx context.Context) (domain.Task, error) {
	release, err := d.begin()
	if err != nil {
		return domain.Task{}, err
	}
	defer release()

	d.mu.Lock()
	form := d.form.normalized()
	d.mu.Unlock()
	if err := validateForm(&form, d.lang); err != nil {
		return domain.Task{}, d.invalid(err)
	}
	due, err := domain.ParsePickerValue(form.DueDate, d.loc)
	if err != nil {
		return domain.Task{}, d.setErr(d.message(msgInvalidDueDate), err)
	}

	task, err := d.tasks.CreateTask(ctx, domain.TaskInput{
		Title:          form.Title,
		Description:    form.Description,
		DueDate:        due,
		OrganizationID: form.OrganizationID,
	})
	if err != nil {
		return domain.Task{}, d.fail(err, msgCreateTaskFailed, msgCreateTaskError)
	}

	d.mu.Lock()
	d.form = TaskForm{OrganizationID: form.OrganizationID}
	onCreated := d.OnCreated
	d.mu.Unlock()
	if onCreated != nil {
		onCreated(task)
	}
	d.succeed(refresh.TopicTasks)
	return task, nil
}

func containsOrg(orgs []domain.Organization, id int64) bool {
	for _, o := range orgs {
		if o.ID == id {
			return true
		}
	}
	return false
}

func pickOrganization(orgs []domain.Organization, preferred int64) int64 {
	if preferred > 0 && containsOrg(orgs, preferred) {
		return preferred
	}
	if len(orgs) > 0 {
		return orgs[0].ID
	}
	return 0
}

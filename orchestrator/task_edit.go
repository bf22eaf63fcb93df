package orchestrator

import (
	"context"
	"time"

	"github.com/yukikurage/task-management-front/domain"
	"github.com/yukikurage/task-management-front/refresh"
)

type TaskUpdater interface {
	UpdateTask(ctx context.Context, id int64, p domain.TaskPatch) (domain.Task, error)
}

type TaskDeleter interface {
	DeleteTask(ctx context.Context, id int64) error
}

type editForm struct {
	TaskID int64  `json:"id" validate:"gt=0" msg:"task_missing"`
	Title  string `json:"title" validate:"required" msg:"enter_title"`
}

// TaskEdit is the edit dialog of a loaded task.
type TaskEdit struct {
	Modal
	tasks TaskUpdater
	loc   *time.Location

	// OnUpdated receives the updated task before OnSuccess runs.
	OnUpdated func(domain.Task)

	taskID int64
	form   TaskForm
}

func NewTaskEdit(tasks TaskUpdater, loc *time.Location, deps Deps) *TaskEdit {
	if loc == nil {
		loc = time.Local
	}
	return &TaskEdit{Modal: newModal(deps, "task_edit"), tasks: tasks, loc: loc}
}

// Open activates the dialog pre-populated from task. The due date is shown
// as a date picker value in the viewer's zone.
func (d *TaskEdit) Open(task domain.Task) {
	d.mu.Lock()
	d.taskID = task.ID
	d.form = TaskForm{
		OrganizationID: task.OrganizationID,
		Title:          task.Title,
		Description:    task.Description,
		DueDate:        domain.FormatPickerValue(task.DueDate, d.loc),
	}
	d.mu.Unlock()
	d.activate()
}

func (d *TaskEdit) Form() TaskForm {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.form
}

func (d *TaskEdit) SetForm(f TaskForm) {
	d.mu.Lock()
	d.form = f
	d.mu.Unlock()
}

// Submit patches title, description and due date. An empty due date clears
// it on the backend.
func (d *TaskEdit) Submit(ctx context.Context) (domain.Task, error) {
	release, err := d.begin()
	if err != nil {
		return domain.Task{}, err
	}
	defer release()

	d.mu.Lock()
	id := d.taskID
	form := d.form.normalized()
	d.mu.Unlock()

	if err := validateForm(&editForm{TaskID: id, Title: form.Title}, d.lang); err != nil {
		return domain.Task{}, d.invalid(err)
	}
	due, err := domain.ParsePickerValue(form.DueDate, d.loc)
	if err != nil {
		return domain.Task{}, d.setErr(d.message(msgInvalidDueDate), err)
	}
	patch := domain.TaskPatch{
		Title:        &form.Title,
		Description:  &form.Description,
		DueDate:      due,
		ClearDueDate: due == nil,
	}
	task, err := d.tasks.UpdateTask(ctx, id, patch)
	if err != nil {
		return domain.Task{}, d.fail(err, msgUpdateTaskFailed, msgUpdateTaskError)
	}

	d.mu.Lock()
	onUpdated := d.OnUpdated
	d.mu.Unlock()
	if onUpdated != nil {
		onUpdated(task)
	}
	d.succeed(refresh.TopicTasks, refresh.TaskTopic(id))
	return task, nil
}

// TaskDelete deletes a task. Only its creator is offered the action, and the
// deletion runs only after Confirm approves it.
type TaskDelete struct {
	Modal
	tasks TaskDeleter

	// Confirm is asked with a localized prompt before deleting. Nil approves.
	Confirm func(prompt string) bool

	task domain.Task
	me   domain.User
}

func NewTaskDelete(tasks TaskDeleter, deps Deps) *TaskDelete {
	return &TaskDelete{Modal: newModal(deps, "task_delete"), tasks: tasks}
}

// Open activates the dialog for task as seen by me.
func (d *TaskDelete) Open(task domain.Task, me domain.User) {
	d.mu.Lock()
	d.task = task
	d.me = me
	d.mu.Unlock()
	d.activate()
}

// CanDelete reports whether the action is offered at all.
func (d *TaskDelete) CanDelete() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.task.ID > 0 && d.me.ID > 0 && d.task.CreatorID == d.me.ID
}

func (d *TaskDelete) Submit(ctx context.Context) error {
	if !d.CanDelete() {
		if !d.IsOpen() {
			return ErrClosed
		}
		return d.setErr(d.message(msgNotCreator), ErrNotCreator)
	}
	d.mu.Lock()
	confirm := d.Confirm
	id := d.task.ID
	d.mu.Unlock()
	if confirm != nil && !confirm(d.message(msgDeleteConfirm)) {
		return ErrCanceled
	}

	release, err := d.begin()
	if err != nil {
		return err
	}
	defer release()

	if err := d.tasks.DeleteTask(ctx, id); err != nil {
		return d.fail(err, msgDeleteTaskFailed, msgDeleteTaskError)
	}
	d.mu.Lock()
	d.task = domain.Task{}
	d.mu.Unlock()
	d.succeed(refresh.TopicTasks, refresh.TaskTopic(id))
	return nil
}

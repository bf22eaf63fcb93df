package controller

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/yukikurage/task-management-front/domain"
	"github.com/yukikurage/task-management-front/refresh"
)

type TaskDetailSnapshot struct {
	State State
	Task  *domain.Task
	Me    *domain.User
	Err   error
}

// IsCreator reports whether the signed-in user created the task.
func (s TaskDetailSnapshot) IsCreator() bool {
	return s.Task != nil && s.Me != nil && s.Task.CreatorID == s.Me.ID
}

// AssignedUserIDs lists the current assignees.
func (s TaskDetailSnapshot) AssignedUserIDs() []int64 {
	if s.Task == nil {
		return nil
	}
	return s.Task.AssignedUserIDs()
}

// TaskDetail keeps one task and the signed-in user loaded. It re-fetches on
// the task's own topic and on the global tasks topic.
type TaskDetail struct {
	core
	tasks    TaskSource
	users    UserSource
	taskID   int64
	listener func(TaskDetailSnapshot)

	task *domain.Task
	me   *domain.User
	err  error
}

func NewTaskDetail(tasks TaskSource, users UserSource, broker *refresh.Broker, taskID int64, logger *log.Logger, listener func(TaskDetailSnapshot)) *TaskDetail {
	d := &TaskDetail{core: newCore(broker, logger, "task_detail"), tasks: tasks, users: users, taskID: taskID, listener: listener}
	d.logger = d.logger.WithField("task_id", taskID)
	d.emit = d.notify
	d.load = d.fetch
	return d
}

func (d *TaskDetail) Mount(ctx context.Context) {
	d.mount(ctx, refresh.TopicTasks, refresh.TaskTopic(d.taskID))
}

func (d *TaskDetail) Unmount() { d.unmount() }

func (d *TaskDetail) Snapshot() TaskDetailSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *TaskDetail) snapshotLocked() TaskDetailSnapshot {
	snap := TaskDetailSnapshot{State: d.state, Err: d.err}
	if d.task != nil {
		t := *d.task
		t.Assignments = append([]domain.Assignment(nil), d.task.Assignments...)
		snap.Task = &t
	}
	if d.me != nil {
		u := *d.me
		snap.Me = &u
	}
	return snap
}

func (d *TaskDetail) notify() {
	d.mu.Lock()
	if !d.mounted || d.listener == nil {
		d.mu.Unlock()
		return
	}
	snap := d.snapshotLocked()
	d.mu.Unlock()
	d.listener(snap)
}

func (d *TaskDetail) fetch() {
	ctx, seq, ok := d.begin()
	if !ok {
		return
	}
	task, errTask, me, errMe := fetchBoth(ctx,
		func(ctx context.Context) (domain.Task, error) { return d.tasks.GetTask(ctx, d.taskID) },
		d.users.Me,
	)
	if errTask != nil {
		d.logger.WithError(errTask).Warn("controller: failed to fetch task")
	}
	if errMe != nil {
		d.logger.WithError(errMe).Warn("controller: failed to fetch current user")
	}

	d.finish(seq, errTask != nil && errMe != nil, func() {
		d.err = firstErr(errTask, errMe)
		if errTask == nil {
			d.task = &task
		}
		if errMe == nil {
			d.me = &me
		}
	})
}

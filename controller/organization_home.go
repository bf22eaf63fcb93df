package controller

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/yukikurage/task-management-front/apiclient"
	"github.com/yukikurage/task-management-front/domain"
	"github.com/yukikurage/task-management-front/refresh"
)

// OrganizationHomeSnapshot is what an organization page renders.
type OrganizationHomeSnapshot struct {
	State        State
	Organization *domain.OrganizationDetail
	Today        []domain.TaskListItem
	All          []domain.TaskListItem
	AssignedOnly bool
	Err          error
}

// OrganizationHome lists one organization's tasks due today and all of its
// tasks by due date, optionally only those assigned to the caller.
type OrganizationHome struct {
	core
	tasks    TaskSource
	orgs     OrganizationSource
	orgID    int64
	listener func(OrganizationHomeSnapshot)

	assignedOnly bool
	detail       *domain.OrganizationDetail
	today        []domain.TaskListItem
	all          []domain.TaskListItem
	err          error
}

func NewOrganizationHome(tasks TaskSource, orgs OrganizationSource, broker *refresh.Broker, orgID int64, logger *log.Logger, listener func(OrganizationHomeSnapshot)) *OrganizationHome {
	o := &OrganizationHome{
		core:     newCore(broker, logger, "organization_home"),
		tasks:    tasks,
		orgs:     orgs,
		orgID:    orgID,
		listener: listener,
	}
	o.logger = o.logger.WithField("organization_id", orgID)
	o.emit = o.notify
	o.load = o.fetch
	return o
}

func (o *OrganizationHome) Mount(ctx context.Context) {
	o.mount(ctx, refresh.TopicTasks, refresh.TopicOrganizations)
}

func (o *OrganizationHome) Unmount() { o.unmount() }

// SetAssignedOnly toggles the "assigned to me" filter and re-fetches when it
// changes.
func (o *OrganizationHome) SetAssignedOnly(on bool) {
	o.mu.Lock()
	changed := o.assignedOnly != on
	o.assignedOnly = on
	o.mu.Unlock()
	if changed {
		o.trigger()
	}
}

// OpenTask loads the full task for the detail view.
func (o *OrganizationHome) OpenTask(ctx context.Context, id int64) (domain.Task, error) {
	if !o.isMounted() {
		return domain.Task{}, ErrUnmounted
	}
	t, err := o.tasks.GetTask(ctx, id)
	if err != nil {
		o.logger.WithError(err).WithField("task_id", id).Warn("controller: failed to fetch task")
		return domain.Task{}, err
	}
	return t, nil
}

func (o *OrganizationHome) Snapshot() OrganizationHomeSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *OrganizationHome) snapshotLocked() OrganizationHomeSnapshot {
	snap := OrganizationHomeSnapshot{
		State:        o.state,
		Today:        cloneItems(o.today),
		All:          cloneItems(o.all),
		AssignedOnly: o.assignedOnly,
		Err:          o.err,
	}
	if o.detail != nil {
		d := *o.detail
		d.Members = append([]domain.OrganizationMember(nil), o.detail.Members...)
		snap.Organization = &d
	}
	return snap
}

func (o *OrganizationHome) notify() {
	o.mu.Lock()
	if !o.mounted || o.listener == nil {
		o.mu.Unlock()
		return
	}
	snap := o.snapshotLocked()
	o.mu.Unlock()
	o.listener(snap)
}

func (o *OrganizationHome) fetch() {
	ctx, seq, ok := o.begin()
	if !ok {
		return
	}
	o.mu.Lock()
	assignedOnly := o.assignedOnly
	o.mu.Unlock()

	var (
		detail                      domain.OrganizationDetail
		today, all                  []domain.TaskListItem
		errDetail, errToday, errAll error
		wg                          sync.WaitGroup
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		detail, errDetail = o.orgs.Organization(ctx, o.orgID)
	}()
	go func() {
		defer wg.Done()
		today, errToday = o.tasks.ListTasks(ctx, apiclient.TaskQuery{OrganizationID: o.orgID, DueToday: true, AssignedToMe: assignedOnly})
	}()
	go func() {
		defer wg.Done()
		all, errAll = o.tasks.ListTasks(ctx, apiclient.TaskQuery{OrganizationID: o.orgID, AssignedToMe: assignedOnly, Sort: apiclient.SortDueDate})
	}()
	wg.Wait()

	for name, err := range map[string]error{"organization": errDetail, "today": errToday, "all": errAll} {
		if err != nil {
			o.logger.WithError(err).WithField("collection", name).Warn("controller: fetch failed")
		}
	}

	o.finish(seq, errToday != nil && errAll != nil, func() {
		o.err = firstErr(errToday, errAll, errDetail)
		if errDetail == nil {
			o.detail = &detail
		}
		if errToday == nil {
			o.today = today
		}
		if errAll == nil {
			o.all = all
		}
	})
}

package controller

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/yukikurage/task-management-front/apiclient"
	"github.com/yukikurage/task-management-front/domain"
	"github.com/yukikurage/task-management-front/refresh"
)

// HomeSnapshot is what the home view renders.
type HomeSnapshot struct {
	State    State
	Today    []domain.TaskListItem
	Assigned []domain.TaskListItem
	// Organization is taken from the first listed task that embeds one.
	Organization *domain.Organization
	Err          error
}

// Home lists tasks due today and tasks assigned to the caller, optionally
// narrowed to one organization.
type Home struct {
	core
	tasks    TaskSource
	orgID    int64
	listener func(HomeSnapshot)

	today    []domain.TaskListItem
	assigned []domain.TaskListItem
	org      *domain.Organization
	err      error
}

// NewHome creates a home controller. orgID zero lists across organizations.
func NewHome(tasks TaskSource, broker *refresh.Broker, orgID int64, logger *log.Logger, listener func(HomeSnapshot)) *Home {
	h := &Home{core: newCore(broker, logger, "home"), tasks: tasks, orgID: orgID, listener: listener}
	h.emit = h.notify
	h.load = h.fetch
	return h
}

func (h *Home) Mount(ctx context.Context) { h.mount(ctx, refresh.TopicTasks) }

func (h *Home) Unmount() { h.unmount() }

// Snapshot returns a copy of the current view state.
func (h *Home) Snapshot() HomeSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

func (h *Home) snapshotLocked() HomeSnapshot {
	return HomeSnapshot{
		State:        h.state,
		Today:        cloneItems(h.today),
		Assigned:     cloneItems(h.assigned),
		Organization: h.org,
		Err:          h.err,
	}
}

func (h *Home) notify() {
	h.mu.Lock()
	if !h.mounted || h.listener == nil {
		h.mu.Unlock()
		return
	}
	snap := h.snapshotLocked()
	h.mu.Unlock()
	h.listener(snap)
}

func (h *Home) fetch() {
	ctx, seq, ok := h.begin()
	if !ok {
		return
	}
	today, errToday, assigned, errAssigned := fetchBoth(ctx,
		func(ctx context.Context) ([]domain.TaskListItem, error) {
			return h.tasks.ListTasks(ctx, apiclient.TaskQuery{OrganizationID: h.orgID, DueToday: true})
		},
		func(ctx context.Context) ([]domain.TaskListItem, error) {
			return h.tasks.ListTasks(ctx, apiclient.TaskQuery{OrganizationID: h.orgID, AssignedToMe: true, Sort: apiclient.SortDueDate})
		},
	)
	if errToday != nil {
		h.logger.WithError(errToday).Warn("controller: failed to fetch today's tasks")
	}
	if errAssigned != nil {
		h.logger.WithError(errAssigned).Warn("controller: failed to fetch assigned tasks")
	}

	h.finish(seq, errToday != nil && errAssigned != nil, func() {
		h.err = firstErr(errToday, errAssigned)
		if errToday == nil {
			h.today = today
		}
		if errAssigned == nil {
			h.assigned = assigned
		}
		if org := firstOrganization(h.today, h.assigned); org != nil {
			h.org = org
		}
	})
}

func firstOrganization(lists ...[]domain.TaskListItem) *domain.Organization {
	for _, items := range lists {
		if len(items) > 0 && items[0].Organization != nil {
			org := *items[0].Organization
			return &org
		}
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

package controller

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/yukikurage/task-management-front/domain"
	"github.com/yukikurage/task-management-front/refresh"
)

// Session is the signed-in identity as the shell sees it.
type Session interface {
	UserSource
	Logout(ctx context.Context) error
}

// Invalidator drops cached organization data for the session.
type Invalidator interface {
	InvalidateAll(ctx context.Context)
}

type SidebarSnapshot struct {
	State         State
	User          *domain.User
	Organizations []domain.Organization
	Err           error
}

// Sidebar loads the current user and the organization list side by side.
// When either cannot be fetched the session is treated as gone and
// OnUnauthorized is called, which the shell uses to send the user to login.
type Sidebar struct {
	core
	session  Session
	orgs     OrganizationSource
	listener func(SidebarSnapshot)

	// OnUnauthorized is called outside any lock. Set it before Mount.
	OnUnauthorized func(err error)

	user *domain.User
	list []domain.Organization
	err  error
}

func NewSidebar(session Session, orgs OrganizationSource, broker *refresh.Broker, logger *log.Logger, listener func(SidebarSnapshot)) *Sidebar {
	s := &Sidebar{core: newCore(broker, logger, "sidebar"), session: session, orgs: orgs, listener: listener}
	s.emit = s.notify
	s.load = s.fetch
	return s
}

func (s *Sidebar) Mount(ctx context.Context) { s.mount(ctx, refresh.TopicOrganizations) }

func (s *Sidebar) Unmount() { s.unmount() }

func (s *Sidebar) Snapshot() SidebarSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Sidebar) snapshotLocked() SidebarSnapshot {
	snap := SidebarSnapshot{State: s.state, Err: s.err}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	if s.list != nil {
		snap.Organizations = append([]domain.Organization(nil), s.list...)
	}
	return snap
}

func (s *Sidebar) notify() {
	s.mu.Lock()
	if !s.mounted || s.listener == nil {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.listener(snap)
}

func (s *Sidebar) fetch() {
	ctx, seq, ok := s.begin()
	if !ok {
		return
	}
	user, errUser, orgs, errOrgs := fetchBoth(ctx, s.session.Me, s.orgs.Organizations)
	if errUser != nil {
		s.logger.WithError(errUser).Warn("controller: failed to fetch current user")
	}
	if errOrgs != nil {
		s.logger.WithError(errOrgs).Warn("controller: failed to fetch organizations")
	}

	applied := s.finish(seq, errUser != nil && errOrgs != nil, func() {
		s.err = firstErr(errUser, errOrgs)
		if errUser == nil {
			s.user = &user
		}
		if errOrgs == nil {
			s.list = orgs
		}
	})
	if err := firstErr(errUser, errOrgs); applied && err != nil && s.OnUnauthorized != nil {
		s.OnUnauthorized(err)
	}
}

// Logout ends the session, drops cached organizations and hands control to
// OnUnauthorized.
func (s *Sidebar) Logout(ctx context.Context) error {
	err := s.session.Logout(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("controller: logout failed")
	}
	if inv, ok := s.orgs.(Invalidator); ok {
		inv.InvalidateAll(ctx)
	}
	s.mu.Lock()
	s.user = nil
	s.list = nil
	s.mu.Unlock()
	if s.OnUnauthorized != nil {
		s.OnUnauthorized(nil)
	}
	return err
}

package mockapi

import (
	"crypto/rand"
	"errors"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yukikurage/task-management-front/domain"
)

var (
	errNotFound      = errors.New("not found")
	errForbidden     = errors.New("forbidden")
	errConflict      = errors.New("conflict")
	errBadCredential = errors.New("invalid username or password")
	errNotMember     = errors.New("user is not a member of the organization")
)

const (
	inviteCodeLength   = 8
	inviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	bcryptCost         = bcrypt.DefaultCost
)

type userRecord struct {
	user domain.User
	hash []byte
}

type orgRecord struct {
	id         int64
	name       string
	inviteCode string
	members    []domain.OrganizationMember
}

func (o *orgRecord) role(userID int64) (domain.Role, bool) {
	for _, m := range o.members {
		if m.UserID == userID {
			return m.Role, true
		}
	}
	return "", false
}

type taskRecord struct {
	task      domain.Task
	assignees []int64
	createdAt time.Time
}

// store keeps every entity in memory. All methods are safe for concurrent use.
type store struct {
	mu sync.RWMutex

	users   map[int64]*userRecord
	byName  map[string]int64
	orgs    map[int64]*orgRecord
	byCode  map[string]int64
	tasks   map[int64]*taskRecord
	nextIDs map[string]int64
	cost    int
}

func newStore(cost int) *store {
	if cost <= 0 {
		cost = bcryptCost
	}
	return &store{
		users:   map[int64]*userRecord{},
		byName:  map[string]int64{},
		orgs:    map[int64]*orgRecord{},
		byCode:  map[string]int64{},
		tasks:   map[int64]*taskRecord{},
		nextIDs: map[string]int64{},
		cost:    cost,
	}
}

func (s *store) nextID(kind string) int64 {
	s.nextIDs[kind]++
	return s.nextIDs[kind]
}

func (s *store) createUser(username, password string) (domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return domain.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[strings.ToLower(username)]; ok {
		return domain.User{}, errConflict
	}
	u := domain.User{ID: s.nextID("user"), Username: username}
	s.users[u.ID] = &userRecord{user: u, hash: hash}
	s.byName[strings.ToLower(username)] = u.ID
	return u, nil
}

func (s *store) authenticate(username, password string) (domain.User, error) {
	s.mu.RLock()
	id, ok := s.byName[strings.ToLower(username)]
	var rec *userRecord
	if ok {
		rec = s.users[id]
	}
	s.mu.RUnlock()
	if rec == nil {
		return domain.User{}, errBadCredential
	}
	if err := bcrypt.CompareHashAndPassword(rec.hash, []byte(password)); err != nil {
		return domain.User{}, errBadCredential
	}
	return rec.user, nil
}

func (s *store) user(id int64) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[id]
	if !ok {
		return domain.User{}, false
	}
	return rec.user, true
}

func (s *store) userRef(id int64) *domain.User {
	rec, ok := s.users[id]
	if !ok {
		return nil
	}
	u := rec.user
	return &u
}

func newInviteCode() (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(inviteCodeAlphabet)))
	for i := 0; i < inviteCodeLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(inviteCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// uniqueCode must be called with the write lock held.
func (s *store) uniqueCode() (string, error) {
	for {
		code, err := newInviteCode()
		if err != nil {
			return "", err
		}
		if _, taken := s.byCode[code]; !taken {
			return code, nil
		}
	}
}

// orgView must be called with the lock held.
func (s *store) orgView(o *orgRecord, viewer int64) domain.Organization {
	org := domain.Organization{ID: o.id, Name: o.name, InviteCode: o.inviteCode}
	if role, ok := o.role(viewer); ok {
		org.YourRole = role
	}
	return org
}

func (s *store) members(o *orgRecord) []domain.OrganizationMember {
	out := make([]domain.OrganizationMember, 0, len(o.members))
	for _, m := range o.members {
		m.User = s.userRef(m.UserID)
		out = append(out, m)
	}
	return out
}

func (s *store) createOrganization(owner int64, name string) (domain.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, err := s.uniqueCode()
	if err != nil {
		return domain.Organization{}, err
	}
	o := &orgRecord{
		id:         s.nextID("org"),
		name:       name,
		inviteCode: code,
		members:    []domain.OrganizationMember{{UserID: owner, Role: domain.RoleOwner}},
	}
	s.orgs[o.id] = o
	s.byCode[code] = o.id
	return s.orgView(o, owner), nil
}

func (s *store) organizations(viewer int64) []domain.Organization {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Organization{}
	for _, o := range s.orgs {
		if _, ok := o.role(viewer); ok {
			out = append(out, s.orgView(o, viewer))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *store) organization(viewer, id int64) (domain.OrganizationDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orgs[id]
	if !ok {
		return domain.OrganizationDetail{}, errNotFound
	}
	role, ok := o.role(viewer)
	if !ok {
		return domain.OrganizationDetail{}, errNotFound
	}
	return domain.OrganizationDetail{
		Organization: s.orgView(o, viewer),
		Members:      s.members(o),
		YourRole:     role,
	}, nil
}

func (s *store) join(userID int64, code string) (domain.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return domain.Organization{}, errNotFound
	}
	o := s.orgs[id]
	if _, member := o.role(userID); member {
		return domain.Organization{}, errConflict
	}
	o.members = append(o.members, domain.OrganizationMember{UserID: userID, Role: domain.RoleMember})
	return s.orgView(o, userID), nil
}

func (s *store) regenerateCode(userID, id int64) (domain.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orgs[id]
	if !ok {
		return domain.Organization{}, errNotFound
	}
	role, member := o.role(userID)
	if !member {
		return domain.Organization{}, errNotFound
	}
	if role != domain.RoleOwner {
		return domain.Organization{}, errForbidden
	}
	code, err := s.uniqueCode()
	if err != nil {
		return domain.Organization{}, err
	}
	delete(s.byCode, o.inviteCode)
	o.inviteCode = code
	s.byCode[code] = o.id
	return s.orgView(o, userID), nil
}

// taskView must be called with the lock held.
func (s *store) taskView(t *taskRecord, viewer int64) domain.Task {
	task := t.task
	task.Creator = s.userRef(task.CreatorID)
	if o, ok := s.orgs[task.OrganizationID]; ok {
		org := s.orgView(o, viewer)
		task.Organization = &org
	}
	task.Assignments = make([]domain.Assignment, 0, len(t.assignees))
	for _, id := range t.assignees {
		if u := s.userRef(id); u != nil {
			task.Assignments = append(task.Assignments, domain.Assignment{User: *u})
		}
	}
	return task
}

// visibleTask must be called with the lock held.
func (s *store) visibleTask(viewer, id int64) (*taskRecord, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, errNotFound
	}
	o, ok := s.orgs[t.task.OrganizationID]
	if !ok {
		return nil, errNotFound
	}
	if _, member := o.role(viewer); !member {
		return nil, errNotFound
	}
	return t, nil
}

func (s *store) createTask(creator int64, in domain.TaskInput, now time.Time) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orgs[in.OrganizationID]
	if !ok {
		return domain.Task{}, errNotFound
	}
	if _, member := o.role(creator); !member {
		return domain.Task{}, errForbidden
	}
	t := &taskRecord{
		task: domain.Task{
			ID:             s.nextID("task"),
			Title:          in.Title,
			Description:    in.Description,
			DueDate:        in.DueDate,
			OrganizationID: in.OrganizationID,
			CreatorID:      creator,
		},
		createdAt: now,
	}
	s.tasks[t.task.ID] = t
	return s.taskView(t, creator), nil
}

type taskFilter struct {
	organizationID int64
	dueToday       bool
	assignedToMe   bool
	sortByDue      bool
	now            time.Time
	loc            *time.Location
}

func (s *store) listTasks(viewer int64, f taskFilter) []domain.TaskListItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.TaskListItem{}
	for _, t := range s.tasks {
		o, ok := s.orgs[t.task.OrganizationID]
		if !ok {
			continue
		}
		if _, member := o.role(viewer); !member {
			continue
		}
		if f.organizationID != 0 && t.task.OrganizationID != f.organizationID {
			continue
		}
		if f.dueToday && !domain.DueOn(t.task.DueDate, f.now, f.loc) {
			continue
		}
		if f.assignedToMe && !containsID(t.assignees, viewer) {
			continue
		}
		out = append(out, s.taskView(t, viewer).ListItem())
	}
	if f.sortByDue {
		domain.SortByDueDate(out)
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	}
	return out
}

func (s *store) task(viewer, id int64) (domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.visibleTask(viewer, id)
	if err != nil {
		return domain.Task{}, err
	}
	return s.taskView(t, viewer), nil
}

type taskUpdate struct {
	title        *string
	description  *string
	dueDate      *time.Time
	clearDueDate bool
}

func (s *store) updateTask(viewer, id int64, u taskUpdate) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.visibleTask(viewer, id)
	if err != nil {
		return domain.Task{}, err
	}
	if u.title != nil {
		t.task.Title = *u.title
	}
	if u.description != nil {
		t.task.Description = *u.description
	}
	switch {
	case u.dueDate != nil:
		t.task.DueDate = u.dueDate
	case u.clearDueDate:
		t.task.DueDate = nil
	}
	return s.taskView(t, viewer), nil
}

func (s *store) deleteTask(viewer, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.visibleTask(viewer, id)
	if err != nil {
		return err
	}
	if t.task.CreatorID != viewer {
		return errForbidden
	}
	delete(s.tasks, id)
	return nil
}

func (s *store) assign(viewer, id int64, userIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.visibleTask(viewer, id)
	if err != nil {
		return err
	}
	o := s.orgs[t.task.OrganizationID]
	for _, uid := range userIDs {
		if _, member := o.role(uid); !member {
			return errNotMember
		}
	}
	for _, uid := range userIDs {
		if !containsID(t.assignees, uid) {
			t.assignees = append(t.assignees, uid)
		}
	}
	return nil
}

func (s *store) unassign(viewer, id int64, userIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.visibleTask(viewer, id)
	if err != nil {
		return err
	}
	kept := t.assignees[:0]
	for _, uid := range t.assignees {
		if !containsID(userIDs, uid) {
			kept = append(kept, uid)
		}
	}
	t.assignees = kept
	return nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

package orgcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/yukikurage/task-management-front/domain"
	"github.com/yukikurage/task-management-front/refresh"
)

type fakeSource struct {
	mu         sync.Mutex
	orgs       []domain.Organization
	details    map[int64]domain.OrganizationDetail
	listCalls  int
	detailHits map[int64]int
	err        error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		orgs: []domain.Organization{{ID: 1, Name: "Acme"}, {ID: 2, Name: "Globex"}},
		details: map[int64]domain.OrganizationDetail{
			1: {
				Organization: domain.Organization{ID: 1, Name: "Acme", InviteCode: "ABC123"},
				Members:      []domain.OrganizationMember{{UserID: 10, Role: domain.RoleOwner}},
				YourRole:     domain.RoleOwner,
			},
		},
		detailHits: map[int64]int{},
	}
}

func (f *fakeSource) ListOrganizations(context.Context) ([]domain.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Organization(nil), f.orgs...), nil
}

func (f *fakeSource) GetOrganization(_ context.Context, id int64) (domain.OrganizationDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailHits[id]++
	if f.err != nil {
		return domain.OrganizationDetail{}, f.err
	}
	d, ok := f.details[id]
	if !ok {
		return domain.OrganizationDetail{}, errors.New("not found")
	}
	return d, nil
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return m, rc
}

func TestOrganizationsReadThrough(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore(0) },
		"redis": func(t *testing.T) Store {
			_, rc := setupRedis(t)
			return NewRedisStore(rc, time.Minute)
		},
	}
	for name, mk := range stores {
		t.Run(name, func(t *testing.T) {
			src := newFakeSource()
			c := New(src, WithStore(mk(t)))
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				orgs, err := c.Organizations(ctx)
				if err != nil {
					t.Fatalf("organizations: %v", err)
				}
				if len(orgs) != 2 || orgs[0].Name != "Acme" {
					t.Fatalf("unexpected organizations %+v", orgs)
				}
			}
			if src.listCalls != 1 {
				t.Fatalf("expected 1 backend call, got %d", src.listCalls)
			}

			src.orgs = append(src.orgs, domain.Organization{ID: 3, Name: "Initech"})
			c.InvalidateList(ctx)
			orgs, err := c.Organizations(ctx)
			if err != nil {
				t.Fatalf("organizations: %v", err)
			}
			if len(orgs) != 3 || src.listCalls != 2 {
				t.Fatalf("expected refetch after invalidation, got %d orgs and %d calls", len(orgs), src.listCalls)
			}
		})
	}
}

func TestOrganizationDetailInvalidation(t *testing.T) {
	src := newFakeSource()
	c := New(src)
	ctx := context.Background()

	d, err := c.Organization(ctx, 1)
	if err != nil {
		t.Fatalf("organization: %v", err)
	}
	if d.Organization.InviteCode != "ABC123" || !d.IsOwner() {
		t.Fatalf("unexpected detail %+v", d)
	}
	if _, err := c.Organizations(ctx); err != nil {
		t.Fatalf("organizations: %v", err)
	}

	src.details[1] = domain.OrganizationDetail{Organization: domain.Organization{ID: 1, Name: "Acme", InviteCode: "XYZ789"}, YourRole: domain.RoleOwner}
	if d, _ := c.Organization(ctx, 1); d.Organization.InviteCode != "ABC123" {
		t.Fatalf("expected cached invite code, got %s", d.Organization.InviteCode)
	}

	c.Invalidate(ctx, 1)
	if d, _ := c.Organization(ctx, 1); d.Organization.InviteCode != "XYZ789" {
		t.Fatalf("expected refreshed invite code, got %s", d.Organization.InviteCode)
	}
	if _, err := c.Organizations(ctx); err != nil {
		t.Fatalf("organizations: %v", err)
	}
	if src.listCalls != 2 {
		t.Fatalf("expected list to be invalidated with detail, got %d calls", src.listCalls)
	}
}

func TestErrorsAreNotCached(t *testing.T) {
	src := newFakeSource()
	src.err = errors.New("boom")
	c := New(src)
	ctx := context.Background()

	if _, err := c.Organizations(ctx); err == nil {
		t.Fatalf("expected error")
	}
	src.err = nil
	if _, err := c.Organizations(ctx); err != nil {
		t.Fatalf("organizations: %v", err)
	}
	if src.listCalls != 2 {
		t.Fatalf("expected failed fetch to be retried, got %d calls", src.listCalls)
	}
	if _, err := c.Organization(ctx, 0); err == nil {
		t.Fatalf("expected invalid id error")
	}
}

func TestScopesAreIsolated(t *testing.T) {
	_, rc := setupRedis(t)
	store := NewRedisStore(rc, time.Minute)
	ctx := context.Background()

	alice := newFakeSource()
	bob := newFakeSource()
	bob.orgs = []domain.Organization{{ID: 9, Name: "Bob's"}}

	if _, err := New(alice, WithStore(store), WithScope("alice")).Organizations(ctx); err != nil {
		t.Fatalf("alice: %v", err)
	}
	orgs, err := New(bob, WithStore(store), WithScope("bob")).Organizations(ctx)
	if err != nil {
		t.Fatalf("bob: %v", err)
	}
	if len(orgs) != 1 || orgs[0].ID != 9 {
		t.Fatalf("expected bob's own organizations, got %+v", orgs)
	}
}

func TestInvalidateAllOnRedis(t *testing.T) {
	m, rc := setupRedis(t)
	src := newFakeSource()
	c := New(src, WithStore(NewRedisStore(rc, time.Minute)), WithScope("u1"))
	other := New(newFakeSource(), WithStore(NewRedisStore(rc, time.Minute)), WithScope("u2"))
	ctx := context.Background()

	if _, err := c.Organizations(ctx); err != nil {
		t.Fatalf("organizations: %v", err)
	}
	if _, err := c.Organization(ctx, 1); err != nil {
		t.Fatalf("organization: %v", err)
	}
	if _, err := other.Organizations(ctx); err != nil {
		t.Fatalf("organizations: %v", err)
	}
	if ttl := m.TTL("tasker:orgs:u1:list"); ttl != time.Minute {
		t.Fatalf("expected ttl %v, got %v", time.Minute, ttl)
	}

	c.InvalidateAll(ctx)
	if m.Exists("tasker:orgs:u1:list") || m.Exists("tasker:orgs:u1:1") {
		t.Fatalf("expected u1 entries to be removed")
	}
	if !m.Exists("tasker:orgs:u2:list") {
		t.Fatalf("expected other scope to be kept")
	}
}

func TestCorruptEntryFallsBackToSource(t *testing.T) {
	m, rc := setupRedis(t)
	src := newFakeSource()
	c := New(src, WithStore(NewRedisStore(rc, time.Minute)), WithScope("u1"))
	if err := m.Set("tasker:orgs:u1:list", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	orgs, err := c.Organizations(context.Background())
	if err != nil {
		t.Fatalf("organizations: %v", err)
	}
	if len(orgs) != 2 || src.listCalls != 1 {
		t.Fatalf("expected fallback to source, got %+v (%d calls)", orgs, src.listCalls)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	s.Set(ctx, "k", []byte("v"))
	if _, ok := s.Get(ctx, "k"); !ok {
		t.Fatalf("expected fresh entry")
	}
	now = now.Add(time.Minute)
	if _, ok := s.Get(ctx, "k"); ok {
		t.Fatalf("expected expired entry")
	}
}

func TestFollowDropsEntriesOnRemoteSignal(t *testing.T) {
	src := newFakeSource()
	c := New(src)
	b := refresh.NewBroker()
	stop := c.Follow(b)
	defer stop()
	ctx := context.Background()

	if _, err := c.Organizations(ctx); err != nil {
		t.Fatalf("organizations: %v", err)
	}
	if _, err := c.Organization(ctx, 1); err != nil {
		t.Fatalf("organization: %v", err)
	}

	b.Deliver(refresh.TopicTasks)
	_, _ = c.Organizations(ctx)
	if src.listCalls != 1 {
		t.Fatalf("tasks signal should keep the cache, got %d list calls", src.listCalls)
	}

	b.Deliver(refresh.TopicOrganizations)
	_, _ = c.Organizations(ctx)
	_, _ = c.Organization(ctx, 1)
	if src.listCalls != 2 || src.detailHits[1] != 2 {
		t.Fatalf("expected refetch after remote signal, got %d list calls and %d detail calls", src.listCalls, src.detailHits[1])
	}

	stop()
	b.Deliver(refresh.TopicOrganizations)
	_, _ = c.Organizations(ctx)
	if src.listCalls != 2 {
		t.Fatalf("stopped cache should not be invalidated, got %d list calls", src.listCalls)
	}
}

// Package orgcache is the shared read-through accessor for organization data.
// Views read organizations through it instead of re-fetching on every open;
// mutations invalidate the affected entries explicitly.
package orgcache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/yukikurage/task-management-front/domain"
	"github.com/yukikurage/task-management-front/refresh"
)

const payloadVersion = 1

// Source loads organization data from the backend.
type Source interface {
	ListOrganizations(ctx context.Context) ([]domain.Organization, error)
	GetOrganization(ctx context.Context, id int64) (domain.OrganizationDetail, error)
}

type cachedList struct {
	Version       int                   `json:"version"`
	CachedAt      time.Time             `json:"cachedAt"`
	Organizations []domain.Organization `json:"organizations"`
}

type cachedDetail struct {
	Version  int                       `json:"version"`
	CachedAt time.Time                 `json:"cachedAt"`
	Detail   domain.OrganizationDetail `json:"detail"`
}

// Cache reads organizations through a Store. Entries are scoped so that two
// sessions sharing a Redis instance never see each other's lists.
type Cache struct {
	src    Source
	store  Store
	mu     sync.RWMutex
	scope  string
	logger *log.Logger
	now    func() time.Time
}

type Option func(*Cache)

// WithStore replaces the default in-memory store.
func WithStore(s Store) Option {
	return func(c *Cache) {
		if s != nil {
			c.store = s
		}
	}
}

// WithScope sets the key namespace, usually the signed-in user.
func WithScope(scope string) Option {
	return func(c *Cache) {
		if scope != "" {
			c.scope = scope
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(src Source, opts ...Option) *Cache {
	if src == nil {
		panic("orgcache.New: source is nil")
	}
	c := &Cache{
		src:    src,
		store:  NewMemoryStore(0),
		scope:  "default",
		logger: log.StandardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetScope switches the namespace, e.g. after a different user signs in.
func (c *Cache) SetScope(scope string) {
	if scope == "" {
		return
	}
	c.mu.Lock()
	c.scope = scope
	c.mu.Unlock()
}

// Organizations returns the caller's organizations.
func (c *Cache) Organizations(ctx context.Context) ([]domain.Organization, error) {
	key := c.listKey()
	if data, ok := c.store.Get(ctx, key); ok {
		var cl cachedList
		if err := sonic.ConfigStd.Unmarshal(data, &cl); err == nil && cl.Version == payloadVersion {
			return cl.Organizations, nil
		}
		c.store.Delete(ctx, key)
	}

	orgs, err := c.src.ListOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	c.put(ctx, key, cachedList{Version: payloadVersion, CachedAt: c.now().UTC(), Organizations: orgs})
	return orgs, nil
}

// Organization returns detail, members and the caller's role for id.
func (c *Cache) Organization(ctx context.Context, id int64) (domain.OrganizationDetail, error) {
	if id <= 0 {
		return domain.OrganizationDetail{}, errors.New("organization id must be positive")
	}
	key := c.detailKey(id)
	if data, ok := c.store.Get(ctx, key); ok {
		var cd cachedDetail
		if err := sonic.ConfigStd.Unmarshal(data, &cd); err == nil && cd.Version == payloadVersion {
			return cd.Detail, nil
		}
		c.store.Delete(ctx, key)
	}

	detail, err := c.src.GetOrganization(ctx, id)
	if err != nil {
		return domain.OrganizationDetail{}, err
	}
	c.put(ctx, key, cachedDetail{Version: payloadVersion, CachedAt: c.now().UTC(), Detail: detail})
	return detail, nil
}

// InvalidateList drops the organization list.
func (c *Cache) InvalidateList(ctx context.Context) {
	c.store.Delete(ctx, c.listKey())
}

// Invalidate drops the detail of id together with the list, whose entries
// embed names and invite codes.
func (c *Cache) Invalidate(ctx context.Context, id int64) {
	c.store.Delete(ctx, c.listKey(), c.detailKey(id))
}

// InvalidateAll drops every entry of the current scope.
func (c *Cache) InvalidateAll(ctx context.Context) {
	c.store.DeletePrefix(ctx, c.prefix())
}

// Follow drops the cached entries whenever an organizations signal arrives
// from another process, so the subscribers it wakes read fresh data. Local
// mutations invalidate explicitly and do not go through here.
func (c *Cache) Follow(b *refresh.Broker) (stop func()) {
	return b.OnDeliver(func(topics []string) {
		for _, t := range topics {
			if t == refresh.TopicOrganizations {
				c.InvalidateAll(context.Background())
				return
			}
		}
	})
}

func (c *Cache) put(ctx context.Context, key string, v any) {
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("orgcache: encode entry")
		return
	}
	c.store.Set(ctx, key, data)
}

func (c *Cache) prefix() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return "tasker:orgs:" + c.scope + ":"
}

func (c *Cache) listKey() string {
	return c.prefix() + "list"
}

func (c *Cache) detailKey(id int64) string {
	return c.prefix() + strconv.FormatInt(id, 10)
}

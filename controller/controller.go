// Package controller keeps per-view copies of task and organization data in
// sync with the backend. A controller fetches on Mount, on refresh signals and
// on filter changes, and hands immutable snapshots to its listener.
package controller

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/yukikurage/task-management-front/apiclient"
	"github.com/yukikurage/task-management-front/domain"
	"github.com/yukikurage/task-management-front/refresh"
)

// State is the load state of a controller.
type State int

const (
	Idle State = iota
	Loading
	Loaded
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// ErrUnmounted is returned by operations on a controller that is not mounted.
var ErrUnmounted = errors.New("controller is not mounted")

// TaskSource lists and loads tasks.
type TaskSource interface {
	ListTasks(ctx context.Context, q apiclient.TaskQuery) ([]domain.TaskListItem, error)
	GetTask(ctx context.Context, id int64) (domain.Task, error)
}

// UserSource resolves the signed-in user.
type UserSource interface {
	Me(ctx context.Context) (domain.User, error)
}

// OrganizationSource reads organizations, normally through orgcache.
type OrganizationSource interface {
	Organizations(ctx context.Context) ([]domain.Organization, error)
	Organization(ctx context.Context, id int64) (domain.OrganizationDetail, error)
}

// core is the lifecycle shared by every controller: mount state, load
// sequencing and refresh subscription.
type core struct {
	mu      sync.Mutex
	state   State
	seq     uint64
	mounted bool
	ctx     context.Context
	cancel  context.CancelFunc
	unsub   func()
	loads   sync.WaitGroup

	broker *refresh.Broker
	logger *log.Entry
	emit   func()
	load   func()
}

func newCore(broker *refresh.Broker, logger *log.Logger, name string) core {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return core{broker: broker, logger: logger.WithField("controller", name)}
}

// mount subscribes to topics and starts the first load.
func (c *core) mount(parent context.Context, topics ...string) {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return
	}
	c.mounted = true
	c.ctx, c.cancel = context.WithCancel(parent)
	if c.broker != nil && len(topics) > 0 {
		ch, unsub := c.broker.Subscribe(topics...)
		c.unsub = unsub
		go c.watch(c.ctx, ch)
	}
	c.mu.Unlock()
	c.trigger()
}

func (c *core) watch(ctx context.Context, ch <-chan refresh.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			c.logger.WithFields(log.Fields{"topic": sig.Topic, "seq": sig.Seq}).Debug("controller: refresh signal")
			c.trigger()
		}
	}
}

// unmount stops delivery: in-flight requests are cancelled and their results
// are dropped, even if the controller is mounted again before they return.
func (c *core) unmount() {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	c.mounted = false
	c.seq++
	c.cancel()
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (c *core) trigger() {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	c.loads.Add(1)
	c.mu.Unlock()
	go func() {
		defer c.loads.Done()
		c.load()
	}()
}

// begin starts a load round. It returns false when the controller is not
// mounted.
func (c *core) begin() (context.Context, uint64, bool) {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return nil, 0, false
	}
	c.seq++
	seq := c.seq
	ctx := c.ctx
	c.state = Loading
	c.mu.Unlock()
	c.emit()
	return ctx, seq, true
}

// finish applies a round's results unless the controller was unmounted or a
// newer round has started since. failed marks a round where every fetch
// failed.
func (c *core) finish(seq uint64, failed bool, apply func()) bool {
	c.mu.Lock()
	if !c.mounted || seq != c.seq {
		c.mu.Unlock()
		c.logger.WithField("seq", seq).Debug("controller: discarding stale response")
		return false
	}
	apply()
	if failed {
		c.state = Error
	} else {
		c.state = Loaded
	}
	c.mu.Unlock()
	c.emit()
	return true
}

func (c *core) isMounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted
}

// Refresh re-fetches, as a refresh signal would.
func (c *core) Refresh() { c.trigger() }

// Wait blocks until loads started so far have completed.
func (c *core) Wait() { c.loads.Wait() }

// State returns the current load state.
func (c *core) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func fetchBoth[A, B any](ctx context.Context, fa func(context.Context) (A, error), fb func(context.Context) (B, error)) (A, error, B, error) {
	var (
		a    A
		b    B
		errA error
		errB error
		wg   sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		a, errA = fa(ctx)
	}()
	go func() {
		defer wg.Done()
		b, errB = fb(ctx)
	}()
	wg.Wait()
	return a, errA, b, errB
}

func cloneItems(items []domain.TaskListItem) []domain.TaskListItem {
	if items == nil {
		return nil
	}
	return append([]domain.TaskListItem(nil), items...)
}

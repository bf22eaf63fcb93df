// Package refresh carries "something changed, re-fetch" notifications from
// mutations to the controllers that display the affected data.
package refresh

import (
	"strconv"
	"sync"
)

const (
	TopicTasks         = "tasks"
	TopicOrganizations = "organizations"

	taskTopicPrefix = "task:"
)

// TaskTopic is the topic for a single task's detail view.
func TaskTopic(id int64) string {
	return taskTopicPrefix + strconv.FormatInt(id, 10)
}

// Signal is delivered to subscribers. Seq counts publishes on Topic and only
// ever grows.
type Signal struct {
	Topic string
	Seq   uint64
}

// Forwarder receives every local publish, e.g. to fan it out to other
// processes.
type Forwarder interface {
	Forward(topics []string)
}

// Broker fans out signals per topic. Each subscription holds at most one
// pending signal; a slow subscriber sees the latest one rather than a backlog.
type Broker struct {
	mu        sync.Mutex
	seq       map[string]uint64
	subs      map[string]map[chan Signal]struct{}
	forwarder Forwarder
	hookID    uint64
	hooks     map[uint64]func(topics []string)
}

func NewBroker() *Broker {
	return &Broker{
		seq:  make(map[string]uint64),
		subs:  make(map[string]map[chan Signal]struct{}),
		hooks: make(map[uint64]func(topics []string)),
	}
}

// OnDeliver registers fn to run for every signal that arrives through
// Deliver, before any subscriber is signalled. Caches use it to drop entries
// another process changed. The returned function unregisters fn.
func (b *Broker) OnDeliver(fn func(topics []string)) func() {
	b.mu.Lock()
	b.hookID++
	id := b.hookID
	b.hooks[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.hooks, id)
			b.mu.Unlock()
		})
	}
}

// SetForwarder attaches f to receive local publishes. Nil detaches.
func (b *Broker) SetForwarder(f Forwarder) {
	b.mu.Lock()
	b.forwarder = f
	b.mu.Unlock()
}

// Subscribe returns a channel receiving signals for the given topics and a
// function that cancels the subscription. Cancel is idempotent.
func (b *Broker) Subscribe(topics ...string) (<-chan Signal, func()) {
	ch := make(chan Signal, 1)
	b.mu.Lock()
	for _, t := range topics {
		set, ok := b.subs[t]
		if !ok {
			set = make(map[chan Signal]struct{})
			b.subs[t] = set
		}
		set[ch] = struct{}{}
	}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			for _, t := range topics {
				if set, ok := b.subs[t]; ok {
					delete(set, ch)
					if len(set) == 0 {
						delete(b.subs, t)
					}
				}
			}
			b.mu.Unlock()
		})
	}
}

// Publish signals every subscriber of the given topics and forwards them.
func (b *Broker) Publish(topics ...string) {
	f := b.deliver(topics)
	if f != nil && len(topics) > 0 {
		f.Forward(topics)
	}
}

// Deliver signals local subscribers without forwarding. Used for signals that
// arrived from elsewhere.
func (b *Broker) Deliver(topics ...string) {
	if len(topics) == 0 {
		return
	}
	b.mu.Lock()
	hooks := make([]func([]string), 0, len(b.hooks))
	for _, fn := range b.hooks {
		hooks = append(hooks, fn)
	}
	b.mu.Unlock()
	for _, fn := range hooks {
		fn(topics)
	}
	b.deliver(topics)
}

func (b *Broker) deliver(topics []string) Forwarder {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range topics {
		b.seq[t]++
		sig := Signal{Topic: t, Seq: b.seq[t]}
		for ch := range b.subs[t] {
			select {
			case ch <- sig:
			default:
				// replace the pending signal with the newer one
				select {
				case <-ch:
				default:
				}
				select {
				case ch <- sig:
				default:
				}
			}
		}
	}
	return b.forwarder
}

// Seq returns how many times topic has been published.
func (b *Broker) Seq(topic string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq[topic]
}

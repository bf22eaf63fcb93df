// Package overlay places floating controls into named slots owned by a
// parent layout. A child attaches a Portal naming the slot; the portal shows
// up in the slot only while the slot is mounted.
package overlay

import (
	"sync"
)

// DefaultSlot is the slot the shell layout mounts for floating controls.
const DefaultSlot = "floating-space"

// Portal renders content into the slot named SlotID.
type Portal struct {
	SlotID string
	Render func() string
}

type attached struct {
	id     uint64
	portal Portal
}

// Registry tracks mounted slots and the portals attached to them. It does not
// own what portals render.
type Registry struct {
	mu      sync.Mutex
	next    uint64
	mounted map[string]bool
	portals map[string][]attached
	watch   func(slotID string)
}

func NewRegistry() *Registry {
	return &Registry{mounted: make(map[string]bool), portals: make(map[string][]attached)}
}

// OnChange registers fn to be called, outside the lock, whenever a slot's
// visible contents may have changed.
func (r *Registry) OnChange(fn func(slotID string)) {
	r.mu.Lock()
	r.watch = fn
	r.mu.Unlock()
}

// Mount makes slotID available. Portals attached earlier become visible.
func (r *Registry) Mount(slotID string) {
	r.mu.Lock()
	changed := !r.mounted[slotID]
	r.mounted[slotID] = true
	r.mu.Unlock()
	if changed {
		r.changed(slotID)
	}
}

// Unmount hides slotID. Attached portals stay attached and reappear on the
// next Mount.
func (r *Registry) Unmount(slotID string) {
	r.mu.Lock()
	changed := r.mounted[slotID]
	delete(r.mounted, slotID)
	r.mu.Unlock()
	if changed {
		r.changed(slotID)
	}
}

func (r *Registry) Mounted(slotID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mounted[slotID]
}

// Attach adds p to its slot and returns a function that detaches it. An
// empty SlotID means DefaultSlot.
func (r *Registry) Attach(p Portal) func() {
	if p.SlotID == "" {
		p.SlotID = DefaultSlot
	}
	r.mu.Lock()
	r.next++
	id := r.next
	r.portals[p.SlotID] = append(r.portals[p.SlotID], attached{id: id, portal: p})
	visible := r.mounted[p.SlotID]
	r.mu.Unlock()
	if visible {
		r.changed(p.SlotID)
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.detach(p.SlotID, id) })
	}
}

func (r *Registry) detach(slotID string, id uint64) {
	r.mu.Lock()
	list := r.portals[slotID]
	for i, a := range list {
		if a.id == id {
			r.portals[slotID] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(r.portals[slotID]) == 0 {
		delete(r.portals, slotID)
	}
	visible := r.mounted[slotID]
	r.mu.Unlock()
	if visible {
		r.changed(slotID)
	}
}

// Render returns the contents of slotID in attach order, or nil when the
// slot is not mounted.
func (r *Registry) Render(slotID string) []string {
	r.mu.Lock()
	if !r.mounted[slotID] {
		r.mu.Unlock()
		return nil
	}
	list := append([]attached(nil), r.portals[slotID]...)
	r.mu.Unlock()

	out := make([]string, 0, len(list))
	for _, a := range list {
		if a.portal.Render == nil {
			continue
		}
		out = append(out, a.portal.Render())
	}
	return out
}

func (r *Registry) changed(slotID string) {
	r.mu.Lock()
	fn := r.watch
	r.mu.Unlock()
	if fn != nil {
		fn(slotID)
	}
}

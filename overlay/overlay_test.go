package overlay

import (
	"reflect"
	"testing"
)

func static(s string) func() string {
	return func() string { return s }
}

func TestPortalSuppressedUntilMounted(t *testing.T) {
	r := NewRegistry()
	detach := r.Attach(Portal{Render: static("+ new task")})
	defer detach()

	if got := r.Render(DefaultSlot); got != nil {
		t.Fatalf("expected nothing before mount, got %v", got)
	}
	r.Mount(DefaultSlot)
	if got := r.Render(DefaultSlot); !reflect.DeepEqual(got, []string{"+ new task"}) {
		t.Fatalf("unexpected contents %v", got)
	}
	r.Unmount(DefaultSlot)
	if got := r.Render(DefaultSlot); got != nil {
		t.Fatalf("expected nothing after unmount, got %v", got)
	}
	r.Mount(DefaultSlot)
	if got := r.Render(DefaultSlot); len(got) != 1 {
		t.Fatalf("expected portal to reappear, got %v", got)
	}
}

func TestRenderOrderAndDetach(t *testing.T) {
	r := NewRegistry()
	r.Mount(DefaultSlot)
	r.Mount("sidebar")
	detachButton := r.Attach(Portal{SlotID: DefaultSlot, Render: static("button")})
	detachChat := r.Attach(Portal{SlotID: DefaultSlot, Render: static("chat")})
	defer detachChat()
	detachOther := r.Attach(Portal{SlotID: "sidebar", Render: static("other")})
	defer detachOther()

	if got := r.Render(DefaultSlot); !reflect.DeepEqual(got, []string{"button", "chat"}) {
		t.Fatalf("unexpected order %v", got)
	}
	detachButton()
	detachButton()
	if got := r.Render(DefaultSlot); !reflect.DeepEqual(got, []string{"chat"}) {
		t.Fatalf("unexpected contents after detach %v", got)
	}
	if got := r.Render("sidebar"); !reflect.DeepEqual(got, []string{"other"}) {
		t.Fatalf("slots must not leak into each other, got %v", got)
	}
}

func TestOnChange(t *testing.T) {
	r := NewRegistry()
	var events []string
	r.OnChange(func(slot string) { events = append(events, slot) })

	detach := r.Attach(Portal{Render: static("x")})
	r.Mount(DefaultSlot)
	r.Mount(DefaultSlot)
	detach()
	r.Unmount(DefaultSlot)

	want := []string{DefaultSlot, DefaultSlot, DefaultSlot}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("unexpected change events %v", events)
	}
}

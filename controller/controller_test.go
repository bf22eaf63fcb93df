package controller

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
)

func TestRoundFromEarlierMountIsDropped(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := newCore(nil, logger, "lifecycle")
	c.emit = func() {}
	c.load = func() {}

	c.mount(context.Background())
	_, stale, ok := c.begin()
	if !ok {
		t.Fatalf("begin on a mounted controller failed")
	}
	c.unmount()
	c.mount(context.Background())
	c.Wait()

	applied := false
	if c.finish(stale, false, func() { applied = true }) || applied {
		t.Fatalf("round started before unmount was applied after remount")
	}
	if got := c.State(); got != Loading {
		t.Fatalf("expected state to stay %v, got %v", Loading, got)
	}

	_, fresh, ok := c.begin()
	if !ok {
		t.Fatalf("begin after remount failed")
	}
	if !c.finish(fresh, false, func() { applied = true }) || !applied {
		t.Fatalf("round from the current mount was dropped")
	}
	if got := c.State(); got != Loaded {
		t.Fatalf("expected %v, got %v", Loaded, got)
	}
	c.unmount()
}

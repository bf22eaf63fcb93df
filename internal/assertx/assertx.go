// Package assertx holds the few test assertions shared across packages.
package assertx

import (
	"strings"
	"testing"
)

// Equal fails if want != got.
func Equal[T comparable](t *testing.T, want, got T) {
	t.Helper()
	if want != got {
		t.Fatalf("want %v, got %v", want, got)
	}
}

// NoError fails on a non-nil err, naming what was being done.
func NoError(t *testing.T, err error, doing string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", doing, err)
	}
}

// Contains fails unless s contains every one of subs.
func Contains(t *testing.T, s string, subs ...string) {
	t.Helper()
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			t.Fatalf("output does not contain %q:\n%s", sub, s)
		}
	}
}

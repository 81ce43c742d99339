package idgen

import (
	"strings"
	"testing"
)

func TestNew_Format(t *testing.T) {
	id := New()
	parts := strings.Split(id, "-")
	if len(parts) != 5 {
		t.Fatalf("expected 5 dash-separated groups, got %d in %q", len(parts), id)
	}
	for i, want := range []int{8, 4, 4, 4, 12} {
		if len(parts[i]) != want {
			t.Errorf("group %d: expected %d hex chars, got %q", i, want, parts[i])
		}
	}
}

func TestWithPrefix(t *testing.T) {
	id := WithPrefix("ses_")
	if !strings.HasPrefix(id, "ses_") {
		t.Fatalf("expected ses_ prefix, got %q", id)
	}
	if len(id) != len("ses_")+24 {
		t.Errorf("expected 24 hex chars after prefix, got %d", len(id)-len("ses_"))
	}
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

package xid

import (
	"strings"
	"testing"
)

func TestNewCarriesPrefixAndShape(t *testing.T) {
	id := New("sale")
	if !strings.HasPrefix(id, "sale-") {
		t.Fatalf("expected sale- prefix, got %q", id)
	}
	if parts := strings.Split(id, "-"); len(parts) != 3 {
		t.Fatalf("expected prefix-nanos-hex shape, got %q", id)
	}
}

func TestNewDoesNotCollide(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := New("ing")
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate id %q after %d iterations", id, i)
		}
		seen[id] = struct{}{}
	}
}

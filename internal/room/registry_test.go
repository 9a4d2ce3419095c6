package room

import "testing"

func TestRegistryCreateAssignsUniqueCodes(t *testing.T) {
	reg := NewRegistry()
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		r := reg.Create()
		if seen[r.Code] {
			t.Fatalf("duplicate room code generated: %s", r.Code)
		}
		seen[r.Code] = true
	}
	if reg.Count() != 20 {
		t.Fatalf("expected 20 rooms, got %d", reg.Count())
	}
}

func TestRegistryGetMissing(t *testing.T) {
	reg := NewRegistry()
	if r := reg.Get("NOPE00"); r != nil {
		t.Fatalf("expected nil for unknown code, got %#v", r)
	}
}

func TestRegistryDeleteStopsRoom(t *testing.T) {
	reg := NewRegistry()
	r := reg.Create()
	code := r.Code

	reg.Delete(code)

	if reg.Get(code) != nil {
		t.Fatal("expected room to be removed from registry")
	}
	select {
	case _, ok := <-r.done:
		if ok {
			t.Fatal("expected done channel to be closed, not yield a value")
		}
	default:
		t.Fatal("expected room's event loop to have stopped")
	}
}

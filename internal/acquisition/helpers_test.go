package acquisition

import (
	"path/filepath"
	"testing"

	"jamsync/internal/library"
)

func newTestLibrary(t *testing.T) *library.Library {
	t.Helper()
	lib, err := library.New(filepath.Join(t.TempDir(), "library.json"))
	if err != nil {
		t.Fatalf("new library: %v", err)
	}
	return lib
}

package library

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present.mp3")
	if err := os.WriteFile(present, []byte("data"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if !(&Track{FilePath: present}).FileExists() {
		t.Fatal("expected present file to report as existing")
	}
	if (&Track{FilePath: filepath.Join(dir, "gone.mp3")}).FileExists() {
		t.Fatal("expected missing file to report as absent")
	}
}

func TestExpectedFilename(t *testing.T) {
	got := ExpectedFilename("  The Band  ", " Song Title ", ".mp3")
	if got != "The Band - Song Title.mp3" {
		t.Fatalf("unexpected filename: %q", got)
	}
}

func TestNewTrackFromSidecarWithoutReadableTagsKeepsSidecarFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "The Band - Song Title.mp3")
	if err := os.WriteFile(path, []byte("not a real audio file"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	tr, err := NewTrackFromSidecar("song-1", "https://example.com/track", path, "Song Title", "The Band", "Some Album", 210)
	if err != nil {
		t.Fatalf("new track from sidecar: %v", err)
	}
	if tr.Title != "Song Title" || tr.Artist != "The Band" || tr.Album != "Some Album" {
		t.Fatalf("expected sidecar metadata preserved, got %#v", tr)
	}
	if tr.LengthSec != 210 {
		t.Fatalf("expected length 210, got %d", tr.LengthSec)
	}
	if len(tr.CoverImage) != 0 {
		t.Fatalf("expected no cover image from an unreadable file, got %d bytes", len(tr.CoverImage))
	}
}

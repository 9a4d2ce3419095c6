package acquisition

import (
	"context"
	"testing"
)

func TestExtractSongID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", "4uLU6hMCjMI75M1A2tKUQC"},
		{"https://spotify.com/track/abc123?si=xyz", "abc123"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://example.com/not-a-known-host/track", "https://example.com/not-a-known-host/track"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := ExtractSongID(tt.url); got != tt.want {
				t.Fatalf("ExtractSongID(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestIsValidURL(t *testing.T) {
	if !IsValidURL("https://open.spotify.com/track/abc") {
		t.Fatal("expected valid spotify URL to pass")
	}
	if !IsValidURL("https://youtu.be/dQw4w9WgXcQ") {
		t.Fatal("expected valid youtu.be URL to pass")
	}
	if IsValidURL("not a url at all") {
		t.Fatal("expected non-URL string to fail validation")
	}
	if IsValidURL("https://example.com/not-a-known-host/track") {
		t.Fatal("expected unrecognized host to fail validation")
	}
}

func TestAcquireInvalidURL(t *testing.T) {
	lib := newTestLibrary(t)
	p := New(lib, t.TempDir(), "spotdl", nil)

	result := p.Acquire(context.Background(), "not a url")
	if result.Outcome != InvalidURL {
		t.Fatalf("expected InvalidURL outcome, got %v", result.Outcome)
	}
}

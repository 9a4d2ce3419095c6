package library

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dhowden/tag"
)

// Track is an immutable record describing one piece of music: identifiers,
// descriptive metadata, and a pointer to a local audio file. Once created by
// the acquisition pipeline a Track is never mutated.
type Track struct {
	SongID     string `json:"song_id"`
	Title      string `json:"title"`
	Artist     string `json:"artist,omitempty"`
	Album      string `json:"album,omitempty"`
	LengthSec  int    `json:"length_sec"`
	URL        string `json:"url"`
	FilePath   string `json:"filepath"`
	CoverImage []byte `json:"cover_image,omitempty"`
}

// FileExists reports whether the track's backing audio file is still present.
func (t *Track) FileExists() bool {
	info, err := os.Stat(t.FilePath)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// mergeEmbeddedTags reads the audio file's own tags and merges them into a
// Track built from the downloader's sidecar, per the ingest merge rule:
// sidecar fields win on name/artist/album, the embedded file wins on cover
// art. A missing or unreadable tag block leaves the sidecar-derived fields
// untouched.
func mergeEmbeddedTags(t *Track, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open audio file for tag read: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		slog.Debug("no readable tags on downloaded file", "path", filePath, "err", err)
		return nil
	}

	if t.Title == "" && m.Title() != "" {
		t.Title = m.Title()
	}
	if t.Artist == "" && m.Artist() != "" {
		t.Artist = m.Artist()
	}
	if t.Album == "" && m.Album() != "" {
		t.Album = m.Album()
	}
	if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
		t.CoverImage = pic.Data
	}
	return nil
}

// artistNameFilename builds the "Artist - Name.ext" filename convention the
// downloader is expected to produce, used to locate the downloaded file from
// the sidecar's declared name/artist.
func artistNameFilename(artist, name, ext string) string {
	artist = strings.TrimSpace(artist)
	name = strings.TrimSpace(name)
	return fmt.Sprintf("%s - %s%s", artist, name, ext)
}

// ExpectedFilename exposes artistNameFilename to the acquisition pipeline,
// which needs to locate the downloader's output before a Track exists.
func ExpectedFilename(artist, name, ext string) string {
	return artistNameFilename(artist, name, ext)
}

// NewTrackFromSidecar builds a Track from a downloader sidecar record and
// the resolved file path, then merges in embedded file tags per the
// sidecar-wins-metadata, embedded-wins-cover-art rule.
func NewTrackFromSidecar(songID, url, filePath, name, artist, album string, durationSec int) (*Track, error) {
	t := &Track{
		SongID:    songID,
		Title:     name,
		Artist:    artist,
		Album:     album,
		LengthSec: durationSec,
		URL:       url,
		FilePath:  filePath,
	}
	if err := mergeEmbeddedTags(t, filePath); err != nil {
		return nil, err
	}
	if t.Title == "" {
		t.Title = name
	}
	return t, nil
}

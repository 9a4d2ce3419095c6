package acquisition

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"jamsync/internal/library"
)

// Downloader shells out to an external downloader tool to pull one track
// from a source URL, writing the audio file and a metadata sidecar into
// downloadsDir.
type Downloader struct {
	downloadsDir string
	command      string
}

// NewDownloader returns a Downloader that invokes command (e.g. "spotdl")
// with output rooted at downloadsDir.
func NewDownloader(downloadsDir, command string) *Downloader {
	return &Downloader{downloadsDir: downloadsDir, command: command}
}

// sidecarRecord is the subset of the downloader's metadata sidecar this
// pipeline consumes. The real tool emits many more fields; unknown fields
// are ignored by json.Unmarshal.
type sidecarRecord struct {
	Name     string `json:"name"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Duration int    `json:"duration"`
}

// Download runs the external downloader for url and returns the resulting
// Track. songID is used only to stamp the returned Track; it plays no part
// in locating files on disk.
func (d *Downloader) Download(ctx context.Context, url, songID string) (*library.Track, error) {
	if err := os.MkdirAll(d.downloadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create downloads directory: %w", err)
	}

	jobID := uuid.NewString()
	sidecarPath := filepath.Join(d.downloadsDir, jobID+".meta.json")

	args := []string{
		"--output", d.downloadsDir,
		"--format", "mp3",
		"--save-file", sidecarPath,
		url,
	}

	cmd := exec.CommandContext(ctx, d.command, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	slog.Info("starting download", "url", url, "job_id", jobID)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("downloader exited: %w: %s", err, stderr.String())
	}
	defer os.Remove(sidecarPath)

	sidecarBytes, err := os.ReadFile(sidecarPath)
	if err != nil {
		return nil, wrapMetadataError("read downloader sidecar: %w", err)
	}

	var records []sidecarRecord
	if err := json.Unmarshal(sidecarBytes, &records); err != nil || len(records) == 0 {
		return nil, wrapMetadataError("parse downloader sidecar: %w", err)
	}
	rec := records[0]

	filePath := filepath.Join(d.downloadsDir, library.ExpectedFilename(rec.Artist, rec.Name, ".mp3"))
	if _, err := os.Stat(filePath); err != nil {
		return nil, wrapFileNotFound("downloaded file not found at %s", filePath)
	}

	track, err := library.NewTrackFromSidecar(songID, url, filePath, rec.Name, rec.Artist, rec.Album, rec.Duration)
	if err != nil {
		return nil, wrapMetadataError("build track from sidecar: %w", err)
	}

	slog.Info("download complete", "song_id", songID, "title", track.Title, "file", filePath)
	return track, nil
}

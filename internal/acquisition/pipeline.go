// Package acquisition implements the URL-to-track ingest pipeline (C2):
// validating a source URL, extracting a stable song_id, delegating the
// actual download to an external tool, and merging the result into a
// library.Track.
package acquisition

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"jamsync/internal/audit"
	"jamsync/internal/library"
)

// Outcome tags the result of one acquisition attempt. Acquisition failure
// modes are distinct enough (bad URL vs. download failure vs. missing file
// vs. unreadable metadata) that callers need to branch on which one
// happened, so the result is a small tagged union rather than a bare error.
type Outcome int

const (
	// Success means the track was downloaded (or already in the library)
	// and Track is populated.
	Success Outcome = iota
	// InvalidURL means the URL did not match any known source pattern.
	InvalidURL
	// DownloadFailed means the external downloader exited non-zero.
	DownloadFailed
	// FileNotFound means the downloader reported success but the expected
	// output file is not on disk.
	FileNotFound
	// MetadataError means the downloader's sidecar metadata file was
	// missing or unparsable.
	MetadataError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case InvalidURL:
		return "invalid_url"
	case DownloadFailed:
		return "download_failed"
	case FileNotFound:
		return "file_not_found"
	case MetadataError:
		return "metadata_error"
	default:
		return "unknown"
	}
}

// Result is the outcome of one Acquire call.
type Result struct {
	Outcome Outcome
	Track   *library.Track // populated only when Outcome == Success
	Detail  string         // human-readable diagnostic, always populated on failure
}

// songIDPatterns are tried in order; the first capturing match wins. A URL
// matching none of them still acquires successfully — the whole URL becomes
// its own song_id, so every source is dedupable even without a known
// pattern.
var songIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`spotify\.com/track/([a-zA-Z0-9]+)`),
	regexp.MustCompile(`open\.spotify\.com/track/([a-zA-Z0-9]+)`),
	regexp.MustCompile(`youtube\.com/watch\?v=([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`youtu\.be/([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`soundcloud\.com/([^/?#]+/[^/?#]+)`),
}

// validURLPatterns is the small set of recognized source prefixes. A URL
// must match one of these to pass validation; everything else is rejected
// as invalid-url before acquisition ever attempts a download. This is
// deliberately stricter than songIDPatterns: a host we recognize but whose
// URL shape we don't yet have a song_id extractor for still falls through
// to ExtractSongID's whole-URL fallback, but a host we don't recognize at
// all never reaches that fallback.
var validURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://(open\.)?spotify\.com/`),
	regexp.MustCompile(`^https?://(www\.)?youtube\.com/`),
	regexp.MustCompile(`^https?://youtu\.be/`),
	regexp.MustCompile(`^https?://(www\.)?soundcloud\.com/`),
}

// ExtractSongID returns the stable identifier for a source URL. When no
// known pattern matches, the URL itself is the id.
func ExtractSongID(url string) string {
	for _, pattern := range songIDPatterns {
		if m := pattern.FindStringSubmatch(url); len(m) > 1 {
			return m[1]
		}
	}
	return url
}

// IsValidURL reports whether url comes from one of the recognized sources.
func IsValidURL(url string) bool {
	for _, pattern := range validURLPatterns {
		if pattern.MatchString(url) {
			return true
		}
	}
	return false
}

// Pipeline coordinates song_id extraction, library dedup, and delegated
// downloads.
type Pipeline struct {
	lib        *library.Library
	downloader *Downloader
	audit      *audit.Store // optional; nil disables audit logging
}

// New builds a Pipeline backed by lib and a Downloader configured with
// downloadsDir/downloaderCmd. auditStore may be nil.
func New(lib *library.Library, downloadsDir, downloaderCmd string, auditStore *audit.Store) *Pipeline {
	return &Pipeline{
		lib:        lib,
		downloader: NewDownloader(downloadsDir, downloaderCmd),
		audit:      auditStore,
	}
}

// Acquire resolves url to a track, downloading it only if it is not already
// in the library. Callers on the room event loop should run this in a
// worker goroutine and feed the Result back in as a command — a download
// can take many seconds and must never block a room's event loop.
func (p *Pipeline) Acquire(ctx context.Context, url string) Result {
	if !IsValidURL(url) {
		p.recordAcquisition(ctx, "", url, InvalidURL, "unrecognized url source")
		return Result{Outcome: InvalidURL, Detail: "unrecognized url source"}
	}

	songID := ExtractSongID(url)

	if existing := p.lib.Lookup(songID); existing != nil {
		slog.Info("acquisition satisfied from library", "song_id", songID, "url", url)
		return Result{Outcome: Success, Track: existing}
	}

	track, err := p.downloader.Download(ctx, url, songID)
	if err != nil {
		outcome, detail := classifyDownloadError(err)
		p.recordAcquisition(ctx, songID, url, outcome, detail)
		return Result{Outcome: outcome, Detail: detail}
	}

	if err := p.lib.Insert(track); err != nil {
		p.recordAcquisition(ctx, songID, url, MetadataError, err.Error())
		return Result{Outcome: MetadataError, Detail: err.Error()}
	}

	p.recordAcquisition(ctx, songID, url, Success, "")
	return Result{Outcome: Success, Track: track}
}

func (p *Pipeline) recordAcquisition(ctx context.Context, songID, url string, outcome Outcome, detail string) {
	if p.audit == nil {
		return
	}
	if err := p.audit.RecordAcquisition(ctx, songID, url, outcome.String(), detail); err != nil {
		slog.Warn("audit log write failed", "err", err)
	}
}

func classifyDownloadError(err error) (Outcome, string) {
	switch {
	case isFileNotFoundErr(err):
		return FileNotFound, err.Error()
	case isMetadataErr(err):
		return MetadataError, err.Error()
	default:
		return DownloadFailed, err.Error()
	}
}

// downloadFileNotFoundError and downloadMetadataError wrap downloader errors so
// Acquire can classify the failure without string matching the error text.
type downloadFileNotFoundError struct{ error }
type downloadMetadataError struct{ error }

func isFileNotFoundErr(err error) bool {
	_, ok := err.(downloadFileNotFoundError)
	return ok
}

func isMetadataErr(err error) bool {
	_, ok := err.(downloadMetadataError)
	return ok
}

func wrapFileNotFound(format string, args ...any) error {
	return downloadFileNotFoundError{fmt.Errorf(format, args...)}
}

func wrapMetadataError(format string, args ...any) error {
	return downloadMetadataError{fmt.Errorf(format, args...)}
}

// Package config loads server runtime parameters from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every runtime-tunable parameter of the jam session server.
// It is loaded once at process start and passed explicitly to constructors;
// nothing here is read through a package-level global.
type Config struct {
	Addr string // listen address, e.g. "0.0.0.0:5000"

	DownloadsDir string // where the acquisition pipeline writes downloaded audio files
	LibraryPath  string // on-disk JSON index for the media library
	AuditDBPath  string // sqlite audit/history log path

	DownloaderCmd string // external downloader executable name
	FFmpegCmd     string // external decoder executable name

	ChunkSize       int // canonical PCM chunk size in bytes
	SampleRate      int // canonical sample rate in Hz
	Channels        int // canonical channel count
	MaxParticipants int // soft cap used only for logging/metrics, never enforced as a hard reject
	ClientMsgRateHz float64
	ClientMsgBurst  int
}

// Load reads configuration from the environment, first attempting to load a
// local .env file (ignored if absent — this is a development convenience,
// never required in production).
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	return &Config{
		Addr: getEnv("JAM_ADDR", "0.0.0.0:5000"),

		DownloadsDir: getEnv("JAM_DOWNLOADS_DIR", "downloads"),
		LibraryPath:  getEnv("JAM_LIBRARY_PATH", "music_data.json"),
		AuditDBPath:  getEnv("JAM_AUDIT_DB", "jamsync_audit.db"),

		DownloaderCmd: getEnv("JAM_DOWNLOADER_CMD", "spotdl"),
		FFmpegCmd:     getEnv("JAM_FFMPEG_CMD", "ffmpeg"),

		ChunkSize:       getEnvAsInt("JAM_CHUNK_SIZE", 4096),
		SampleRate:      getEnvAsInt("JAM_SAMPLE_RATE", 44100),
		Channels:        getEnvAsInt("JAM_CHANNELS", 1),
		MaxParticipants: getEnvAsInt("JAM_MAX_PARTICIPANTS", 8),
		ClientMsgRateHz: getEnvAsFloat("JAM_CLIENT_RATE_HZ", 20),
		ClientMsgBurst:  getEnvAsInt("JAM_CLIENT_RATE_BURST", 40),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultVal
}

func getEnvAsFloat(name string, defaultVal float64) float64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
			return value
		}
	}
	return defaultVal
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime option of the DASH audio server. It is
// built once in main and passed by reference into each component; there
// is no process-wide configuration singleton.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	MusicDir    string
	DashDir     string
	CatalogDB   string
	AllowedExts []string

	FFmpegPath  string
	MP4BoxPath  string
	FFprobePath string

	AudioBitrate    string
	SegmentDuration int

	MaxWorkers    int
	QueueSize     int
	Attempts      int
	RetryDelay    time.Duration
	StuckAfter    time.Duration
	SweepInterval time.Duration
}

// Load reads the .env file from the current working directory and sets
// environment variables. A missing .env is not an error worth failing
// over; callers can ignore the return and use system env or defaults.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// FromEnv builds the Config from the process environment, applying
// defaults for anything unset.
func FromEnv() *Config {
	return &Config{
		Port:      GetEnv("PORT", "8080"),
		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "json"),

		MusicDir:    GetEnv("MUSIC_DIR", "music_library"),
		DashDir:     GetEnv("DASH_DIR", "public/dash"),
		CatalogDB:   GetEnv("CATALOG_DB", "catalog.db"),
		AllowedExts: GetEnvList("ALLOWED_EXTS", []string{".mp3", ".flac", ".wav", ".ogg", ".m4a"}),

		FFmpegPath:  GetEnv("FFMPEG_PATH", "ffmpeg"),
		MP4BoxPath:  GetEnv("MP4BOX_PATH", "MP4Box"),
		FFprobePath: GetEnv("FFPROBE_PATH", "ffprobe"),

		AudioBitrate:    GetEnv("AUDIO_BITRATE", "80k"),
		SegmentDuration: GetEnvInt("SEGMENT_DURATION", 4),

		MaxWorkers:    GetEnvInt("MAX_WORKERS", 2),
		QueueSize:     GetEnvInt("QUEUE_SIZE", 64),
		Attempts:      GetEnvInt("CONVERT_ATTEMPTS", 3),
		RetryDelay:    GetEnvDuration("CONVERT_RETRY_DELAY", 5*time.Second),
		StuckAfter:    GetEnvDuration("STUCK_AFTER", 30*time.Minute),
		SweepInterval: GetEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
	}
}

// EnsureDirectories creates the music and DASH output directories if
// they do not exist.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.MusicDir, c.DashDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %q: %w", dir, err)
		}
	}
	return nil
}

// CheckTools looks up the external binaries on PATH and logs a warning
// for each missing one. A missing tool degrades conversions or scans at
// runtime but is deliberately not a startup failure.
func (c *Config) CheckTools(log *slog.Logger) {
	for _, tool := range []struct{ name, path string }{
		{"ffmpeg", c.FFmpegPath},
		{"ffprobe", c.FFprobePath},
		{"MP4Box", c.MP4BoxPath},
	} {
		if _, err := exec.LookPath(tool.path); err != nil {
			log.Warn("external tool not found, conversions may fail",
				slog.String("tool", tool.name),
				slog.String("path", tool.path))
		} else {
			log.Info("external tool found",
				slog.String("tool", tool.name),
				slog.String("path", tool.path))
		}
	}
}

// GetEnv returns the value of the environment variable named by key, or
// fallback if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named
// by key, or fallback if the variable is unset, empty, or not a valid
// integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration returns the duration value (e.g. "30m", "5s") of the
// environment variable named by key, or fallback.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}

// GetEnvList returns the comma-separated values of the environment
// variable named by key, or fallback if unset or empty.
func GetEnvList(key string, fallback []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

package dash

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"dash-audio-server/internal/catalog"
)

// ManifestName is the manifest filename inside each track's output directory.
const ManifestName = "manifest.mpd"

// Encoder produces a DASH manifest plus segments for one track.
// Implementations shell out to ffmpeg; tests substitute a fake.
type Encoder interface {
	Convert(ctx context.Context, track *catalog.Track) error
}

// FFmpegEncoder converts a track by invoking ffmpeg with a fixed
// single-representation opus profile, then patches the resulting
// manifest for player compatibility.
type FFmpegEncoder struct {
	bin        string
	dashDir    string
	bitrate    string
	segSeconds int
	log        *slog.Logger
}

// NewFFmpegEncoder returns an encoder writing under dashDir, one
// subdirectory per track slug.
func NewFFmpegEncoder(bin, dashDir, bitrate string, segSeconds int, log *slog.Logger) *FFmpegEncoder {
	return &FFmpegEncoder{bin: bin, dashDir: dashDir, bitrate: bitrate, segSeconds: segSeconds, log: log}
}

// buildArgs assembles the ffmpeg argument vector. Arguments are never
// joined into a shell string, so source paths with spaces or shell
// metacharacters are safe.
func (e *FFmpegEncoder) buildArgs(sourcePath, manifestPath string) []string {
	return []string{
		"-y",
		"-i", sourcePath,
		"-map", "0:a", // audio stream only
		"-c:a", "libopus",
		"-b:a", e.bitrate,
		"-vn", // drop video streams, including embedded cover art
		"-f", "dash",
		"-dash_segment_type", "mp4",
		"-single_file", "1",
		"-single_file_name", "stream.m4s",
		"-init_seg_name", "init.mp4",
		"-media_seg_name", "chunk-$Number$.m4s",
		"-seg_duration", strconv.Itoa(e.segSeconds),
		"-use_template", "1",
		"-use_timeline", "0",
		"-window_size", "0", // advertise all segments, not a live window
		manifestPath,
	}
}

// Convert implements Encoder. On encoder failure it returns an error
// carrying the captured stderr; a failing manifest patch is logged but
// does not fail the conversion.
func (e *FFmpegEncoder) Convert(ctx context.Context, track *catalog.Track) error {
	outDir := filepath.Join(e.dashDir, track.Slug)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir %q: %w", outDir, err)
	}
	manifestPath := filepath.Join(outDir, ManifestName)

	cmd := exec.CommandContext(ctx, e.bin, e.buildArgs(track.Path, manifestPath)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.log.Info("encoding track",
		slog.Int64("track_id", track.ID),
		slog.String("slug", track.Slug),
		slog.String("bitrate", e.bitrate))

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed for %q: %w: %s", track.Path, err, stderr.String())
	}

	if err := PatchManifest(manifestPath, e.segSeconds); err != nil {
		// Degrades compatibility, not correctness: the unpatched manifest
		// is still playable by most clients.
		e.log.Error("manifest patch failed",
			slog.String("manifest", manifestPath),
			slog.String("error", err.Error()))
	}

	return nil
}

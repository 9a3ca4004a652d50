package dash

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dash-audio-server/internal/catalog"
)

func TestFFmpegEncoder_buildArgs(t *testing.T) {
	enc := NewFFmpegEncoder("ffmpeg", "/dash", "80k", 4, testLogger())

	source := "/music/Artist - Song (Live); rm -rf $HOME.mp3"
	args := enc.buildArgs(source, "/dash/slug/manifest.mpd")

	// The path is a single vector element; no shell ever sees it.
	found := false
	for _, a := range args {
		if a == source {
			found = true
		}
	}
	if !found {
		t.Errorf("source path must appear verbatim as one argument: %v", args)
	}

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-map 0:a",
		"-c:a libopus",
		"-b:a 80k",
		"-vn",
		"-f dash",
		"-single_file 1",
		"-init_seg_name init.mp4",
		"-media_seg_name chunk-$Number$.m4s",
		"-seg_duration 4",
		"-use_timeline 0",
		"-window_size 0",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}

	if args[len(args)-1] != "/dash/slug/manifest.mpd" {
		t.Errorf("manifest path must be the final argument: %v", args)
	}
}

func TestFFmpegEncoder_nonZeroExitReturnsError(t *testing.T) {
	dashDir := t.TempDir()
	// "false" exits non-zero regardless of arguments.
	enc := NewFFmpegEncoder("false", dashDir, "80k", 4, testLogger())

	track := &catalog.Track{ID: 1, Path: "/music/x.mp3", Slug: "x-mp3"}
	err := enc.Convert(context.Background(), track)
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if !strings.Contains(err.Error(), "ffmpeg failed") {
		t.Errorf("unexpected error text: %v", err)
	}
}

func TestFFmpegEncoder_missingBinaryReturnsError(t *testing.T) {
	dashDir := t.TempDir()
	enc := NewFFmpegEncoder(filepath.Join(t.TempDir(), "no-such-ffmpeg"), dashDir, "80k", 4, testLogger())

	track := &catalog.Track{ID: 1, Path: "/music/x.mp3", Slug: "x-mp3"}
	if err := enc.Convert(context.Background(), track); err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestFFmpegEncoder_createsOutputDirectory(t *testing.T) {
	dashDir := t.TempDir()
	// "true" exits zero without writing a manifest; the patch is then a
	// no-op and Convert succeeds.
	enc := NewFFmpegEncoder("true", dashDir, "80k", 4, testLogger())

	track := &catalog.Track{ID: 1, Path: "/music/x.mp3", Slug: "x-mp3"}
	if err := enc.Convert(context.Background(), track); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	info, err := os.Stat(filepath.Join(dashDir, "x-mp3"))
	if err != nil || !info.IsDir() {
		t.Errorf("per-slug output directory not created: %v", err)
	}
}

package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// Tags holds the metadata fields a probe can extract from an audio file.
// Any field may be empty; the scanner applies filename-based fallbacks.
type Tags struct {
	Title  string
	Artist string
	Album  string
}

// Prober extracts tags from an audio file. Implementations shell out to
// an external probe tool; tests substitute a fake.
type Prober interface {
	Probe(ctx context.Context, path string) (Tags, error)
}

// FFprobeProber extracts tags by running ffprobe and parsing its JSON
// output. The file path is passed as a plain argument vector element,
// so arbitrary filenames are safe.
type FFprobeProber struct {
	bin string
}

// NewFFprobeProber returns a prober that invokes the given binary
// (usually "ffprobe").
func NewFFprobeProber(bin string) *FFprobeProber {
	return &FFprobeProber{bin: bin}
}

type probeOutput struct {
	Format struct {
		Tags map[string]string `json:"tags"`
	} `json:"format"`
}

// Probe implements Prober.
func (p *FFprobeProber) Probe(ctx context.Context, path string) (Tags, error) {
	cmd := exec.CommandContext(ctx, p.bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return Tags{}, fmt.Errorf("probe %q: %w", path, err)
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return Tags{}, fmt.Errorf("parse probe output for %q: %w", path, err)
	}

	return Tags{
		Title:  out.Format.Tags["title"],
		Artist: out.Format.Tags["artist"],
		Album:  out.Format.Tags["album"],
	}, nil
}

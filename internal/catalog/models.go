package catalog

import "path/filepath"

// Track is one audio file discovered in the music library, plus the
// metadata the scanner extracted for it.
type Track struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Format string `json:"format"`
	Path   string `json:"-"`
	Slug   string `json:"-"`
}

// Slugify derives the filesystem-safe identifier for a source path.
// It is a pure function of the path's basename: every byte that is not
// an ASCII letter or digit becomes '-'. The result is stable across
// repeated scans of the same path.
func Slugify(path string) string {
	base := filepath.Base(path)
	out := make([]byte, len(base))
	for i := 0; i < len(base); i++ {
		c := base[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out[i] = c
		default:
			out[i] = '-'
		}
	}
	return string(out)
}

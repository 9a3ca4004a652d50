package scanner

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"dash-audio-server/internal/catalog"
)

// unknownTag is the placeholder recorded when a tag cannot be extracted.
const unknownTag = "Unknown"

// Scanner walks the music library and upserts every recognized audio
// file into the catalog.
type Scanner struct {
	catalog catalog.Store
	prober  Prober
	root    string
	exts    map[string]bool
	log     *slog.Logger
}

// New returns a Scanner over root that accepts files whose lowercased
// extension (with leading dot, e.g. ".mp3") is in exts.
func New(store catalog.Store, prober Prober, root string, exts []string, log *slog.Logger) *Scanner {
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		allowed[e] = true
	}
	return &Scanner{catalog: store, prober: prober, root: root, exts: allowed, log: log}
}

// Scan walks the library tree and upserts a catalog record per matching
// file. A failing probe or a bad file never aborts the scan; the error
// return covers only the walk itself (e.g. unreadable root). Returns
// the number of records upserted.
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	count := 0
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !s.exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		track := s.trackFor(ctx, path)
		if upsertErr := s.catalog.Upsert(ctx, track); upsertErr != nil {
			s.log.Error("catalog upsert failed",
				slog.String("path", path),
				slog.String("error", upsertErr.Error()))
			return nil
		}
		s.log.Debug("track scanned",
			slog.String("title", track.Title),
			slog.String("path", path))
		count++
		return nil
	})
	if err != nil {
		return count, err
	}
	return count, nil
}

// trackFor builds the catalog record for one file. Probe failures fall
// back to filesystem-derived metadata so a broken or missing probe tool
// cannot lose a track.
func (s *Scanner) trackFor(ctx context.Context, path string) *catalog.Track {
	tags, err := s.prober.Probe(ctx, path)
	if err != nil {
		s.log.Warn("metadata probe failed, using filename fallback",
			slog.String("path", path),
			slog.String("error", err.Error()))
		tags = Tags{}
	}

	base := filepath.Base(path)
	ext := filepath.Ext(path)

	title := tags.Title
	if title == "" {
		title = strings.TrimSuffix(base, ext)
	}
	artist := tags.Artist
	if artist == "" {
		artist = unknownTag
	}
	album := tags.Album
	if album == "" {
		album = unknownTag
	}

	return &catalog.Track{
		Title:  title,
		Artist: artist,
		Album:  album,
		Format: strings.ToLower(strings.TrimPrefix(ext, ".")),
		Path:   path,
		Slug:   catalog.Slugify(path),
	}
}

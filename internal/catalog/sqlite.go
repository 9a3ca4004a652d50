package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tracks (
  id     INTEGER PRIMARY KEY AUTOINCREMENT,
  title  TEXT NOT NULL,
  artist TEXT NOT NULL,
  album  TEXT NOT NULL,
  format TEXT NOT NULL,
  path   TEXT NOT NULL UNIQUE,
  slug   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tracks_path ON tracks(path);
`

// SQLiteStore is the durable Store backed by an embedded SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the catalog database at dbPath
// and applies the schema.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create catalog dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply catalog schema: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// Upsert implements Store.Upsert. Conflicts on path update the existing
// row in place, so repeated scans never duplicate a track.
func (s *SQLiteStore) Upsert(ctx context.Context, t *Track) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tracks (title, artist, album, format, path, slug)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(path) DO UPDATE SET
           title = excluded.title,
           artist = excluded.artist,
           album = excluded.album,
           format = excluded.format,
           slug = excluded.slug`,
		t.Title, t.Artist, t.Album, t.Format, t.Path, t.Slug,
	)
	if err != nil {
		return fmt.Errorf("upsert track %q: %w", t.Path, err)
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT id FROM tracks WHERE path = ?", t.Path,
	).Scan(&t.ID); err != nil {
		return fmt.Errorf("read back track id for %q: %w", t.Path, err)
	}
	return nil
}

// GetByID implements Store.GetByID.
func (s *SQLiteStore) GetByID(ctx context.Context, id int64) (*Track, bool, error) {
	var t Track
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, artist, album, format, path, slug FROM tracks WHERE id = ?", id,
	).Scan(&t.ID, &t.Title, &t.Artist, &t.Album, &t.Format, &t.Path, &t.Slug)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get track %d: %w", id, err)
	}
	return &t, true, nil
}

// List implements Store.List.
func (s *SQLiteStore) List(ctx context.Context) ([]Track, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, artist, album, format, path, slug FROM tracks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var out []Track
	for rows.Next() {
		var t Track
		if err := rows.Scan(&t.ID, &t.Title, &t.Artist, &t.Album, &t.Format, &t.Path, &t.Slug); err != nil {
			return nil, fmt.Errorf("scan track row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close implements Store.Close.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

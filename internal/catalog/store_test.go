package catalog

import (
	"context"
	"path/filepath"
	"testing"
)

// storeUnderTest runs the same contract checks against any Store implementation.
func storeUnderTest(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	tr := &Track{
		Title:  "Song",
		Artist: "Artist",
		Album:  "Album",
		Format: "mp3",
		Path:   "/music/Artist - Song.mp3",
		Slug:   Slugify("/music/Artist - Song.mp3"),
	}
	if err := store.Upsert(ctx, tr); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if tr.ID == 0 {
		t.Fatal("Upsert should assign an id")
	}
	firstID := tr.ID

	// Same path again: updates in place, id unchanged, no duplicate row.
	tr2 := &Track{Title: "Song (remaster)", Artist: "Artist", Album: "Album", Format: "mp3", Path: tr.Path, Slug: tr.Slug}
	if err := store.Upsert(ctx, tr2); err != nil {
		t.Fatalf("Upsert same path: %v", err)
	}
	if tr2.ID != firstID {
		t.Errorf("re-upsert changed id: %d -> %d", firstID, tr2.ID)
	}

	got, ok, err := store.GetByID(ctx, firstID)
	if err != nil || !ok {
		t.Fatalf("GetByID: ok=%v err=%v", ok, err)
	}
	if got.Title != "Song (remaster)" {
		t.Errorf("upsert should overwrite metadata, got title %q", got.Title)
	}

	_, ok, err = store.GetByID(ctx, 9999)
	if err != nil {
		t.Fatalf("GetByID missing: %v", err)
	}
	if ok {
		t.Error("expected ok=false for unknown id")
	}

	other := &Track{Title: "Other", Artist: "Unknown", Album: "Unknown", Format: "flac", Path: "/music/other.flac", Slug: "other-flac"}
	if err := store.Upsert(ctx, other); err != nil {
		t.Fatalf("Upsert other: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(all))
	}
	if all[0].ID > all[1].ID {
		t.Error("List should be ordered by id")
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	storeUnderTest(t, store)
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()
	storeUnderTest(t, store)
}

func TestSQLiteStore_reopenKeepsRows(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "catalog.db")

	store, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	tr := &Track{Title: "T", Artist: "A", Album: "B", Format: "mp3", Path: "/m/t.mp3", Slug: "t-mp3"}
	if err := store.Upsert(ctx, tr); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	store, err = OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	got, ok, err := store.GetByID(ctx, tr.ID)
	if err != nil || !ok {
		t.Fatalf("GetByID after reopen: ok=%v err=%v", ok, err)
	}
	if got.Path != tr.Path {
		t.Errorf("path mismatch after reopen: %q", got.Path)
	}
}

package objectstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/foxseedlab/gijiroku/internal/objectstore"
)

func TestLocalStore_PutThenGet(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	if err := store.Put(ctx, "Recap/room_recap.json", []byte(`{"ok":true}`), "application/json"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "Recap", "room_recap.json")); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}
	got, err := store.Get(ctx, "Recap/room_recap.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != `{"ok":true}` {
		t.Fatalf("unexpected body: %s", got)
	}
}

func TestLocalStore_GetMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Get(context.Background(), "missing.json"); !errors.Is(err, objectstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

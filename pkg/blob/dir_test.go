package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDirStore(t *testing.T) {
	root := t.TempDir()
	store := NewDirStore(root)
	ctx := context.Background()

	key := "events/2026/01/02/a.jsonl.gz"
	if err := store.Put(ctx, key, strings.NewReader("hello world")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "events", "2026", "01", "02", "a.jsonl.gz")); err != nil {
		t.Errorf("File was not created: %v", err)
	}

	r, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	data, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		t.Fatalf("Failed to read blob: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("Get content mismatch. Got %s", data)
	}

	if err := store.Put(ctx, "events/2026/01/01/b.jsonl.gz", strings.NewReader("other")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	keys, err := store.List(ctx, "events")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"events/2026/01/01/b.jsonl.gz", key}
	if len(keys) != 2 || keys[0] != want[0] || keys[1] != want[1] {
		t.Errorf("List = %v, want %v", keys, want)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestDirStore_ListMissingPrefix(t *testing.T) {
	keys, err := NewDirStore(t.TempDir()).List(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Expected no keys, got %v", keys)
	}
}

func TestDirStore_RejectsEscapingKeys(t *testing.T) {
	store := NewDirStore(t.TempDir())
	for _, key := range []string{"../x", "", "/etc/passwd", "a/../../x"} {
		if err := store.Put(context.Background(), key, strings.NewReader("x")); err == nil {
			t.Errorf("Put(%q) should fail", key)
		}
	}
}

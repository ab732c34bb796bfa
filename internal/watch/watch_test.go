package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_BumpsGenerationOnWrite(t *testing.T) {
	dir := t.TempDir()

	w, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	if w.Generation() != 0 {
		t.Fatalf("generation = %d before any change, want 0", w.Generation())
	}

	if err := os.WriteFile(filepath.Join(dir, "issues.jsonl"), []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for w.Generation() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if w.Generation() == 0 {
		t.Fatal("generation did not move after a write")
	}
	if w.LastChange().IsZero() {
		t.Error("LastChange is zero after a change")
	}
}

func TestWatcher_MissingDir(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Error("expected error for missing directory")
	}
}

package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileWatcher_DetectsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schedule.toml")
	if err := os.WriteFile(path, []byte(""), 0644); err != nil {
		t.Fatal(err)
	}

	changed := make(chan string, 4)
	fw, err := NewFileWatcher(path, func(p string) { changed <- p }, nil)
	if err != nil {
		t.Fatal(err)
	}
	fw.SetDebounce(50 * time.Millisecond)
	fw.Start(context.Background())
	defer fw.Stop()

	if err := os.WriteFile(path, []byte("[[regression]]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changed:
		want, _ := filepath.Abs(path)
		if got != want {
			t.Errorf("callback path = %q, want %q", got, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no change detected")
	}
}

func TestFileWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schedule.toml")

	changed := make(chan string, 4)
	fw, err := NewFileWatcher(path, func(p string) { changed <- p }, nil)
	if err != nil {
		t.Fatal(err)
	}
	fw.SetDebounce(20 * time.Millisecond)
	fw.Start(context.Background())
	defer fw.Stop()

	if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changed:
		t.Errorf("unexpected callback for %q", got)
	case <-time.After(300 * time.Millisecond):
	}
}

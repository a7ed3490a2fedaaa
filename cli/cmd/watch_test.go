package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, what string) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(20 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", what)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "script.sh")
	lib := filepath.Join(dir, "lib", "lib.sh")
	out := filepath.Join(dir, "out")

	if err := os.MkdirAll(filepath.Dir(lib), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(lib, []byte("greet() { echo hi; }\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(script, []byte("source lib/lib.sh\ngreet\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(WithFs(context.Background(), afero.NewOsFs()))
	defer cancel()

	ctx = WithStdio(ctx, strings.NewReader(""), &strings.Builder{}, &strings.Builder{})

	w := &Watch{Output: out, Debounce: 10 * time.Millisecond, Script: script}

	done := make(chan error, 1)

	go func() { done <- w.Run(ctx) }()

	manifest := filepath.Join(out, "manifest.yaml")

	read := func() string {
		b, _ := os.ReadFile(manifest)

		return string(b)
	}

	// Temporary directories sit under a system path, so lib.sh may be read
	// at run time rather than listed among the units. Wait on the manifest
	// fields that do not depend on classification.
	eventually(t, func() bool { return strings.Contains(read(), "dialect:") }, "first conversion")

	if strings.Contains(read(), "edited") {
		t.Fatal("description present before edit")
	}

	// Give the watcher time to register before editing.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(script, []byte("# @Description: edited\nsource lib/lib.sh\ngreet\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, func() bool { return strings.Contains(read(), "edited") }, "conversion after edit")

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestWatch_Dirs(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.Fatal(err)
	}
	defer watcher.Close()

	w := &Watch{}
	ctx := context.Background()

	dirs := w.watch(ctx, watcher, map[string]bool{
		filepath.Join(a, "x.sh"): true,
		filepath.Join(a, "y.sh"): true,
		filepath.Join(b, "z.sh"): true,
	}, nil)

	if len(dirs) != 2 || !dirs[a] || !dirs[b] {
		t.Fatalf("dirs = %v, want %s and %s", dirs, a, b)
	}

	dirs = w.watch(ctx, watcher, map[string]bool{filepath.Join(b, "z.sh"): true}, dirs)

	if len(dirs) != 1 || !dirs[b] {
		t.Fatalf("dirs = %v, want %s", dirs, b)
	}

	if list := watcher.WatchList(); len(list) != 1 || list[0] != b {
		t.Errorf("WatchList() = %v, want [%s]", list, b)
	}
}

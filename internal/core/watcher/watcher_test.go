package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T, debounce time.Duration, excludeDirs, excludeFiles []string) (*Watcher, chan []string) {
	t.Helper()
	changed := make(chan []string, 16)
	w, err := NewWatcher(debounce, excludeDirs, excludeFiles, func(paths []string) {
		changed <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w, changed
}

func waitFor(t *testing.T, changed <-chan []string, want string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case paths := <-changed:
			if slices.Contains(paths, want) {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for change to %s", want)
		}
	}
}

func expectQuiet(t *testing.T, changed <-chan []string, within time.Duration) {
	t.Helper()
	select {
	case paths := <-changed:
		t.Errorf("unexpected change event: %v", paths)
	case <-time.After(within):
	}
}

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, nil, nil, nil)
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestNewWatcher_RejectsBadGlob(t *testing.T) {
	if _, err := NewWatcher(time.Millisecond, []string{"[unclosed"}, nil, func([]string) {}); err == nil {
		t.Fatal("expected error for invalid exclude pattern")
	}
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	w, changed := newTestWatcher(t, 100*time.Millisecond, []string{"exclude_dir"}, []string{"*.exclude"})
	if err := w.Watch([]string{dir}); err != nil {
		t.Fatal(err)
	}

	file := filepath.Join(dir, "mod.py")
	if err := os.WriteFile(file, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, file)

	if err := os.WriteFile(filepath.Join(dir, "notes.exclude"), []byte("skip"), 0o644); err != nil {
		t.Fatal(err)
	}
	expectQuiet(t, changed, 400*time.Millisecond)

	subdir := filepath.Join(dir, "pkg")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(subdir, "nested.py")
	if err := os.WriteFile(nested, []byte("y = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, nested)
}

func TestWatcher_RenameTriggersChange(t *testing.T) {
	dir := t.TempDir()
	w, changed := newTestWatcher(t, 100*time.Millisecond, nil, nil)
	if err := w.Watch([]string{dir}); err != nil {
		t.Fatal(err)
	}

	oldPath := filepath.Join(dir, "old.ts")
	newPath := filepath.Join(dir, "new.ts")
	if err := os.WriteFile(oldPath, []byte("export const a = 1;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case paths := <-changed:
			if slices.Contains(paths, oldPath) || slices.Contains(paths, newPath) {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for rename event, old=%s new=%s", oldPath, newPath)
		}
	}
}

func TestWatcher_IdenticalContentIsIgnored(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "same.go")
	content := []byte("package main\n\nfunc main() {}\n")
	if err := os.WriteFile(file, content, 0o644); err != nil {
		t.Fatal(err)
	}

	w, changed := newTestWatcher(t, 50*time.Millisecond, nil, nil)
	if err := w.Watch([]string{dir}); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(file, content, 0o644); err != nil {
		t.Fatal(err)
	}
	expectQuiet(t, changed, 300*time.Millisecond)

	if err := os.WriteFile(file, []byte("package main\n\nfunc main() { println(1) }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, file)
}

func TestWatcher_SkipsHiddenAndVendoredDirs(t *testing.T) {
	w, _ := newTestWatcher(t, time.Millisecond, []string{"generated"}, nil)
	for _, dir := range []string{"/p/node_modules", "/p/.git", "/p/.cache", "/p/generated"} {
		if !w.shouldExcludeDir(dir) {
			t.Errorf("expected %s to be excluded", dir)
		}
	}
	if w.shouldExcludeDir("/p/src") {
		t.Error("expected src to be watched")
	}
}

func TestWatcher_LanguageFilters(t *testing.T) {
	w, _ := newTestWatcher(t, 10*time.Millisecond, nil, []string{"*.min.js"})
	w.SetLanguageFilters([]string{".py", ".JS"}, []string{"package.json"})

	cases := map[string]bool{
		"/p/main.py":       false,
		"/p/app.js":        false,
		"/p/app.min.js":    true,
		"/p/package.json":  false,
		"/p/tsconfig.json": true,
		"/p/main.go":       true,
		"/p/main.py.bak":   true,
	}
	for path, excluded := range cases {
		if got := w.shouldExcludeFile(path); got != excluded {
			t.Errorf("shouldExcludeFile(%s) = %v, want %v", path, got, excluded)
		}
	}
}

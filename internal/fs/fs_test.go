package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestProjectFSWriteReadRoundTrip(t *testing.T) {
	root := t.TempDir()
	pfs := NewProjectFS(root)
	defer pfs.Close()
	ctx := context.Background()

	if err := pfs.WriteFile(ctx, "src/app.ts", []byte("const x = 1;")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := pfs.ReadFile(ctx, "src/app.ts")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "const x = 1;" {
		t.Errorf("content mismatch: %q", data)
	}

	// Disk must match the mirror.
	onDisk, err := os.ReadFile(filepath.Join(root, "src", "app.ts"))
	if err != nil {
		t.Fatalf("read from disk: %v", err)
	}
	if string(onDisk) != "const x = 1;" {
		t.Errorf("disk content mismatch: %q", onDisk)
	}
}

func TestProjectFSRenameAndDelete(t *testing.T) {
	root := t.TempDir()
	pfs := NewProjectFS(root)
	defer pfs.Close()
	ctx := context.Background()

	if err := pfs.WriteFile(ctx, "a.ts", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := pfs.Rename(ctx, "a.ts", "b.ts"); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	if ok, _ := pfs.Exists(ctx, "a.ts"); ok {
		t.Error("a.ts should not exist after rename")
	}
	data, err := pfs.ReadFile(ctx, "b.ts")
	if err != nil || string(data) != "x" {
		t.Fatalf("b.ts read after rename: %q, %v", data, err)
	}

	if err := pfs.Delete(ctx, "b.ts"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := pfs.Exists(ctx, "b.ts"); ok {
		t.Error("b.ts should not exist after delete")
	}
}

func TestProjectFSMirrorInvalidation(t *testing.T) {
	root := t.TempDir()
	pfs := NewProjectFS(root)
	defer pfs.Close()
	ctx := context.Background()

	if err := pfs.WriteFile(ctx, "watched.ts", []byte("old")); err != nil {
		t.Fatal(err)
	}

	// Edit behind the engine's back.
	if err := os.WriteFile(filepath.Join(root, "watched.ts"), []byte("new"), 0644); err != nil {
		t.Fatal(err)
	}

	// The watcher delivers the event asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := pfs.ReadFile(ctx, "watched.ts")
		if err == nil && string(data) == "new" {
			return
		}
		// Force a reread on the next loop once the mirror entry is evicted.
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("mirror was not invalidated after out-of-band edit")
}

func TestReadFileLines(t *testing.T) {
	mfs := NewMockFS()
	ctx := context.Background()
	if err := mfs.WriteFile(ctx, "f.txt", []byte("one\ntwo\nthree\nfour")); err != nil {
		t.Fatal(err)
	}

	lines, err := mfs.ReadFileLines(ctx, "f.txt", 2, 3)
	if err != nil {
		t.Fatalf("ReadFileLines: %v", err)
	}
	if len(lines) != 2 || lines[0] != "two" || lines[1] != "three" {
		t.Errorf("lines = %v", lines)
	}

	// Last line without trailing newline is included.
	lines, err = mfs.ReadFileLines(ctx, "f.txt", 4, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || lines[0] != "four" {
		t.Errorf("lines = %v", lines)
	}
}

func TestWalkSourceFiles(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel, content string) {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	mustWrite("src/app.ts", "a")
	mustWrite("src/util.js", "b")
	mustWrite("node_modules/dep/index.ts", "skip")
	mustWrite("README.md", "skip")

	var seen []string
	err := WalkSourceFiles(root, map[string]bool{".ts": true, ".js": true}, func(rel string) error {
		seen = append(seen, rel)
		return nil
	})
	if err != nil {
		t.Fatalf("WalkSourceFiles: %v", err)
	}

	if len(seen) != 2 {
		t.Errorf("expected 2 source files, got %v", seen)
	}
	for _, rel := range seen {
		if rel == "node_modules/dep/index.ts" {
			t.Error("node_modules should be skipped")
		}
	}
}

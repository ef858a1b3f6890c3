package fs

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/prestige-dev/prestige/internal/logger"
)

// FileSystem abstracts project file operations so the executor and
// detector can run against a real tree or an in-memory one in tests.
type FileSystem interface {
	// ReadFile reads the entire file.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// ReadFileLines reads lines [from, to] (1-based, inclusive).
	ReadFileLines(ctx context.Context, path string, from, to int) ([]string, error)
	// WriteFile writes data, creating parent directories as needed.
	WriteFile(ctx context.Context, path string, data []byte) error
	// Rename moves a file.
	Rename(ctx context.Context, from, to string) error
	// Delete removes a file.
	Delete(ctx context.Context, path string) error
	// Exists checks whether a path exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// ProjectFS is an OS-backed FileSystem rooted at a project directory.
// It keeps an in-memory mirror of file contents that stays in lockstep
// with writes going through it; out-of-band edits are caught by fsnotify
// and evict the stale mirror entry.
type ProjectFS struct {
	root      string
	mirror    map[string][]byte
	mu        sync.RWMutex
	watcher   *fsnotify.Watcher
	stopWatch chan struct{}
	log       *logger.Logger
}

// NewProjectFS creates a ProjectFS rooted at root.
func NewProjectFS(root string) *ProjectFS {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Global().Warn("failed to create file watcher: %v", err)
	}

	pfs := &ProjectFS{
		root:      root,
		mirror:    make(map[string][]byte),
		watcher:   watcher,
		stopWatch: make(chan struct{}),
		log:       logger.Global().WithPrefix("fs"),
	}

	if watcher != nil {
		go pfs.watchFiles()
	}

	return pfs
}

// Root returns the project root directory.
func (pfs *ProjectFS) Root() string {
	return pfs.root
}

// Close stops the watcher.
func (pfs *ProjectFS) Close() error {
	close(pfs.stopWatch)
	if pfs.watcher != nil {
		return pfs.watcher.Close()
	}
	return nil
}

// watchFiles evicts mirror entries when files change outside the executor.
func (pfs *ProjectFS) watchFiles() {
	for {
		select {
		case <-pfs.stopWatch:
			return
		case event, ok := <-pfs.watcher.Events:
			if !ok {
				return
			}
			rel, err := filepath.Rel(pfs.root, event.Name)
			if err != nil {
				continue
			}
			pfs.mu.Lock()
			delete(pfs.mirror, filepath.ToSlash(rel))
			pfs.mu.Unlock()
		case err, ok := <-pfs.watcher.Errors:
			if !ok {
				return
			}
			pfs.log.Error("filesystem watcher error: %v", err)
		}
	}
}

func (pfs *ProjectFS) absPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(pfs.root, path)
}

func (pfs *ProjectFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	pfs.mu.RLock()
	if data, ok := pfs.mirror[filepath.ToSlash(path)]; ok {
		pfs.mu.RUnlock()
		return data, nil
	}
	pfs.mu.RUnlock()

	data, err := os.ReadFile(pfs.absPath(path))
	if err != nil {
		return nil, err
	}

	pfs.mu.Lock()
	pfs.mirror[filepath.ToSlash(path)] = data
	pfs.mu.Unlock()
	return data, nil
}

func (pfs *ProjectFS) ReadFileLines(ctx context.Context, path string, from, to int) ([]string, error) {
	data, err := pfs.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return sliceLines(data, from, to), nil
}

func (pfs *ProjectFS) WriteFile(ctx context.Context, path string, data []byte) error {
	absPath := pfs.absPath(path)

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(absPath, data, 0644); err != nil {
		return err
	}

	pfs.mu.Lock()
	pfs.mirror[filepath.ToSlash(path)] = data
	pfs.mu.Unlock()

	if pfs.watcher != nil {
		if err := pfs.watcher.Add(filepath.Dir(absPath)); err != nil {
			pfs.log.Warn("failed to watch %s: %v", filepath.Dir(absPath), err)
		}
	}
	return nil
}

func (pfs *ProjectFS) Rename(ctx context.Context, from, to string) error {
	absTo := pfs.absPath(to)
	if err := os.MkdirAll(filepath.Dir(absTo), 0755); err != nil {
		return err
	}
	if err := os.Rename(pfs.absPath(from), absTo); err != nil {
		return err
	}

	pfs.mu.Lock()
	if data, ok := pfs.mirror[filepath.ToSlash(from)]; ok {
		pfs.mirror[filepath.ToSlash(to)] = data
		delete(pfs.mirror, filepath.ToSlash(from))
	}
	pfs.mu.Unlock()
	return nil
}

func (pfs *ProjectFS) Delete(ctx context.Context, path string) error {
	if err := os.Remove(pfs.absPath(path)); err != nil {
		return err
	}

	pfs.mu.Lock()
	delete(pfs.mirror, filepath.ToSlash(path))
	pfs.mu.Unlock()
	return nil
}

func (pfs *ProjectFS) Exists(ctx context.Context, path string) (bool, error) {
	pfs.mu.RLock()
	if _, ok := pfs.mirror[filepath.ToSlash(path)]; ok {
		pfs.mu.RUnlock()
		return true, nil
	}
	pfs.mu.RUnlock()

	_, err := os.Stat(pfs.absPath(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// WalkSourceFiles calls fn with the relative path of every regular file
// under root whose extension is in exts, skipping dependency and VCS
// directories.
func WalkSourceFiles(root string, exts map[string]bool, fn func(relPath string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if d.IsDir() {
			name := d.Name()
			if name == "node_modules" || name == ".git" || name == "dist" || name == "build" {
				return filepath.SkipDir
			}
			return nil
		}
		if !exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		return fn(filepath.ToSlash(rel))
	})
}

// sliceLines extracts lines [from, to] (1-based, inclusive) from data.
func sliceLines(data []byte, from, to int) []string {
	lines := make([]string, 0)
	currentLine := 1
	lineStart := 0

	for i := 0; i < len(data); i++ {
		if data[i] == '\n' {
			if currentLine >= from && currentLine <= to {
				lines = append(lines, string(data[lineStart:i]))
			}
			currentLine++
			lineStart = i + 1
			if currentLine > to {
				break
			}
		}
	}

	if lineStart < len(data) && currentLine >= from && currentLine <= to {
		lines = append(lines, string(data[lineStart:]))
	}
	return lines
}

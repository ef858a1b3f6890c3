package fs

import (
	"context"
	"os"
	"path/filepath"
	"sync"
)

// MockFS is an in-memory FileSystem for tests.
type MockFS struct {
	files map[string][]byte
	mu    sync.RWMutex

	// FailWrites lists paths whose writes should fail, for error-path tests.
	FailWrites map[string]error
}

func NewMockFS() *MockFS {
	return &MockFS{
		files:      make(map[string][]byte),
		FailWrites: make(map[string]error),
	}
}

func (mfs *MockFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	data, ok := mfs.files[filepath.ToSlash(path)]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

func (mfs *MockFS) ReadFileLines(ctx context.Context, path string, from, to int) ([]string, error) {
	data, err := mfs.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return sliceLines(data, from, to), nil
}

func (mfs *MockFS) WriteFile(ctx context.Context, path string, data []byte) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	key := filepath.ToSlash(path)
	if err, ok := mfs.FailWrites[key]; ok {
		return err
	}
	mfs.files[key] = data
	return nil
}

func (mfs *MockFS) Rename(ctx context.Context, from, to string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	fromKey := filepath.ToSlash(from)
	data, ok := mfs.files[fromKey]
	if !ok {
		return os.ErrNotExist
	}
	mfs.files[filepath.ToSlash(to)] = data
	delete(mfs.files, fromKey)
	return nil
}

func (mfs *MockFS) Delete(ctx context.Context, path string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	key := filepath.ToSlash(path)
	if _, ok := mfs.files[key]; !ok {
		return os.ErrNotExist
	}
	delete(mfs.files, key)
	return nil
}

func (mfs *MockFS) Exists(ctx context.Context, path string) (bool, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	_, ok := mfs.files[filepath.ToSlash(path)]
	return ok, nil
}

// Files returns a copy of the current file map, keyed by slash paths.
func (mfs *MockFS) Files() map[string][]byte {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	out := make(map[string][]byte, len(mfs.files))
	for k, v := range mfs.files {
		out[k] = v
	}
	return out
}

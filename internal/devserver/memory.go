package devserver

import (
	"context"
	"strings"
	"sync"

	"github.com/wolfeidau/assetpack/internal/bundler"
)

// Memory holds the outputs of the latest successful build.
type Memory struct {
	mu    sync.RWMutex
	files map[string]bundler.File
	hash  string
	ready chan struct{}
	once  sync.Once
}

func NewMemory() *Memory {
	return &Memory{files: map[string]bundler.File{}, ready: make(chan struct{})}
}

// Replace swaps in the outputs of a finished build.
func (m *Memory) Replace(stats *bundler.Stats) {
	files := make(map[string]bundler.File, len(stats.Files))
	for _, f := range stats.Files {
		files[f.Path] = f
	}

	m.mu.Lock()
	m.files = files
	m.hash = stats.Hash
	m.mu.Unlock()

	m.once.Do(func() { close(m.ready) })
}

// Get returns the output at the given slash separated path.
func (m *Memory) Get(name string) (bundler.File, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.files[strings.TrimPrefix(name, "/")]
	return f, ok
}

// Hash returns the hash of the build currently served.
func (m *Memory) Hash() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hash
}

// Wait blocks until the first build has been stored or ctx is done.
func (m *Memory) Wait(ctx context.Context) error {
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"sync"
)

// MemorySource is a Source backed by a map of package name to definition
// text. Paths are "mem:<name>".
type MemorySource struct {
	mu    sync.Mutex
	texts map[string]string
}

// NewMemorySource returns a MemorySource holding texts.
func NewMemorySource(texts map[string]string) *MemorySource {
	return &MemorySource{texts: maps.Clone(texts)}
}

// Put adds or replaces a definition.
func (m *MemorySource) Put(name, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.texts == nil {
		m.texts = map[string]string{}
	}
	m.texts[name] = text
}

// List implements Source.
func (m *MemorySource) List() ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.texts))
	for _, name := range slices.Sorted(maps.Keys(m.texts)) {
		out = append(out, Entry{Name: name, Path: "mem:" + name, Fingerprint: Fingerprint([]byte(m.texts[name]))})
	}
	return out, nil
}

// Read implements Source.
func (m *MemorySource) Read(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, text := range m.texts {
		if "mem:"+name == path {
			return []byte(text), nil
		}
	}
	return nil, fmt.Errorf("%s: %w", path, fs.ErrNotExist)
}

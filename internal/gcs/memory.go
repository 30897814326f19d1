package gcs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory ObjectStore for tests and local runs.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]map[string]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		meta:    make(map[string]map[string]string),
	}
}

// Put stores an object, replacing any existing one.
func (m *MemoryStore) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = append([]byte(nil), data...)
}

// List implements ObjectStore. Results are sorted by name.
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ObjectInfo
	for name := range m.objects {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		md := make(map[string]string, len(m.meta[name]))
		for k, v := range m.meta[name] {
			md[k] = v
		}
		out = append(out, ObjectInfo{Name: name, Metadata: md})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Read implements ObjectStore.
func (m *MemoryStore) Read(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[name]
	if !ok {
		return nil, fmt.Errorf("Read: object %s not found", name)
	}
	return append([]byte(nil), data...), nil
}

// SetMetadata implements ObjectStore.
func (m *MemoryStore) SetMetadata(ctx context.Context, name, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[name]; !ok {
		return fmt.Errorf("SetMetadata: object %s not found", name)
	}
	if m.meta[name] == nil {
		m.meta[name] = make(map[string]string)
	}
	m.meta[name][key] = value
	return nil
}

// CreateIfAbsent implements ObjectStore.
func (m *MemoryStore) CreateIfAbsent(ctx context.Context, name string, data []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[name]; ok {
		return false, nil
	}
	m.objects[name] = append([]byte(nil), data...)
	return true, nil
}

var _ ObjectStore = (*MemoryStore)(nil)

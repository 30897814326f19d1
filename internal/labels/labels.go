// Package labels marks source messages as processed or failed so they are
// not picked up again.
package labels

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Label is a resolved label handle.
type Label struct {
	ID   string
	Name string
}

// Labeler looks up or creates labels by name and applies them to messages.
// A message carries at most one state label; Apply replaces the previous one.
type Labeler interface {
	Ensure(ctx context.Context, name string) (Label, error)
	Apply(ctx context.Context, messageID string, label Label) error
}

// MemoryLabeler keeps labels in memory.
type MemoryLabeler struct {
	mu      sync.Mutex
	labels  map[string]Label
	applied map[string]string
}

// NewMemoryLabeler returns an empty MemoryLabeler.
func NewMemoryLabeler() *MemoryLabeler {
	return &MemoryLabeler{
		labels:  make(map[string]Label),
		applied: make(map[string]string),
	}
}

// Ensure implements Labeler.
func (m *MemoryLabeler) Ensure(ctx context.Context, name string) (Label, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Label{}, fmt.Errorf("Ensure: label name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.labels[name]; ok {
		return l, nil
	}
	l := Label{ID: fmt.Sprintf("label_%d", len(m.labels)+1), Name: name}
	m.labels[name] = l
	return l, nil
}

// Apply implements Labeler.
func (m *MemoryLabeler) Apply(ctx context.Context, messageID string, label Label) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.labels[label.Name]; !ok {
		return fmt.Errorf("Apply: unknown label %q", label.Name)
	}
	m.applied[messageID] = label.Name
	return nil
}

// LabelOf returns the label applied to messageID, if any.
func (m *MemoryLabeler) LabelOf(messageID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name, ok := m.applied[messageID]
	return name, ok
}

var _ Labeler = (*MemoryLabeler)(nil)

package picklist

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryBackend keeps entries in process memory.
type MemoryBackend struct {
	mu     sync.RWMutex
	byName map[string]map[string]Entry
	byRef  map[Ref]Entry
	order  map[string][]Ref
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		byName: make(map[string]map[string]Entry),
		byRef:  make(map[Ref]Entry),
		order:  make(map[string][]Ref),
	}
}

// Lookup implements Backend.
func (m *MemoryBackend) Lookup(_ context.Context, vocabulary, name string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.byName[vocabulary][name]; ok {
		return e, nil
	}
	return Entry{}, ErrNotFound
}

// Create implements Backend.
func (m *MemoryBackend) Create(_ context.Context, vocabulary, name string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := m.byName[vocabulary]
	if names == nil {
		names = make(map[string]Entry)
		m.byName[vocabulary] = names
	}
	if _, ok := names[name]; ok {
		return Entry{}, ErrConflict
	}
	e := Entry{Ref: Ref{Vocabulary: vocabulary, ID: uuid.NewString()}, Name: name}
	names[name] = e
	m.byRef[e.Ref] = e
	m.order[vocabulary] = append(m.order[vocabulary], e.Ref)
	return e, nil
}

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, ref Ref) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.byRef[ref]; ok {
		return e, nil
	}
	return Entry{}, ErrNotFound
}

// List implements Backend. Entries are returned in creation order.
func (m *MemoryBackend) List(_ context.Context, vocabulary string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]Entry, 0, len(m.order[vocabulary]))
	for _, ref := range m.order[vocabulary] {
		if e, ok := m.byRef[ref]; ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Remove deletes an entry. References to it become dangling.
func (m *MemoryBackend) Remove(_ context.Context, ref Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byRef[ref]
	if !ok {
		return ErrNotFound
	}
	delete(m.byRef, ref)
	delete(m.byName[ref.Vocabulary], e.Name)
	return nil
}

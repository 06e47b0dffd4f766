// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"fmt"
	"sync"

	"github.com/jmcleod/certhand/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Suitable for testing, demos, and single-process use cases.
type Repository struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]map[string][]byte)}
}

func (r *Repository) Put(kind, name string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[kind]; !ok {
		r.data[kind] = make(map[string][]byte)
	}
	r.data[kind][name] = append([]byte(nil), data...)
	return nil
}

func (r *Repository) Get(kind, name string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.data[kind][name]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", kind, name, storage.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (r *Repository) Delete(kind, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[kind][name]; !ok {
		return fmt.Errorf("%s/%s: %w", kind, name, storage.ErrNotFound)
	}
	delete(r.data[kind], name)
	return nil
}

func (r *Repository) List(kind string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.data[kind]))
	for name := range r.data[kind] {
		names = append(names, name)
	}
	return names, nil
}

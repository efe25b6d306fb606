package knowledge

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
)

// Registry owns one store per grid size. Stores are loaded on first use.
// A registry with an empty directory keeps its stores in memory.
type Registry struct {
	mu     sync.Mutex
	dir    string
	opts   Options
	stores map[int]*Store
}

func NewRegistry(dir string, opts Options) *Registry {
	return &Registry{dir: dir, opts: opts, stores: make(map[int]*Store)}
}

func (r *Registry) Dir() string { return r.dir }

// Load returns the store for gridSize, reading it from disk the first time.
func (r *Registry) Load(gridSize int) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[gridSize]; ok {
		return s, nil
	}
	var s *Store
	if r.dir == "" {
		s = newStore(gridSize, "", r.opts)
	} else {
		var err error
		s, err = Open(filepath.Join(r.dir, FileName(gridSize)), gridSize, r.opts)
		if err != nil {
			return nil, err
		}
	}
	r.stores[gridSize] = s
	return s, nil
}

// Get returns an already loaded store.
func (r *Registry) Get(gridSize int) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[gridSize]
	return s, ok
}

// Save propagates and writes out the store for gridSize.
func (r *Registry) Save(gridSize int) error {
	s, ok := r.Get(gridSize)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoStore, gridSize)
	}
	s.Propagate()
	return s.Flush()
}

// Close saves every loaded store.
func (r *Registry) Close() error {
	r.mu.Lock()
	sizes := make([]int, 0, len(r.stores))
	for n := range r.stores {
		sizes = append(sizes, n)
	}
	r.mu.Unlock()
	var errs []error
	for _, n := range sizes {
		if err := r.Save(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

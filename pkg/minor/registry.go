package minor

import (
	"errors"
	"fmt"
	"sync"
)

// Registry is the fixed-size minor table.
//
// It is populated once at startup and read by the ND server for every
// request. Lookups take a read lock only; the table never changes while
// the server is running except through Close at shutdown.
type Registry struct {
	mu     sync.RWMutex
	minors [MaxMinors]*Minor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers m under its id.
//
// Returns ErrInvalidID for an out-of-range id and ErrExists when the slot
// is already taken.
func (r *Registry) Add(m *Minor) error {
	if int(m.ID()) >= MaxMinors {
		return fmt.Errorf("nd%d: %w", m.ID(), ErrInvalidID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.minors[m.ID()] != nil {
		return fmt.Errorf("nd%d: %w", m.ID(), ErrExists)
	}
	r.minors[m.ID()] = m
	return nil
}

// Lookup returns the minor registered under id. Absence (out of range or
// never opened) is reported with ok == false, never as an error.
func (r *Registry) Lookup(id uint8) (*Minor, bool) {
	if int(id) >= MaxMinors {
		return nil, false
	}

	r.mu.RLock()
	m := r.minors[id]
	r.mu.RUnlock()

	return m, m != nil
}

// SizeInBlocks returns the size of minor id in BlockSize units, or 0 when
// the minor is absent.
func (r *Registry) SizeInBlocks(id uint8) uint32 {
	m, ok := r.Lookup(id)
	if !ok {
		return 0
	}
	return m.Blocks()
}

// List returns the registered minors ordered by id.
func (r *Registry) List() []*Minor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Minor, 0, MaxMinors)
	for _, m := range r.minors {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// Len returns the number of registered minors.
func (r *Registry) Len() int {
	return len(r.List())
}

// Close closes every registered minor and empties the table. All stores
// are closed even when some fail; the errors are joined.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for i, m := range r.minors {
		if m == nil {
			continue
		}
		if err := m.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", m, err))
		}
		r.minors[i] = nil
	}
	return errors.Join(errs...)
}

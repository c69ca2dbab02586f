// Package memory provides a RAM-backed minor store.
package memory

import (
	"fmt"
	"io"
	"sync"

	"github.com/marmos91/ndd/pkg/minor"
)

// Store is a fixed-size in-memory implementation of minor.Store.
// Contents are lost on Close.
type Store struct {
	mu       sync.RWMutex
	data     []byte
	readOnly bool
	closed   bool
}

// New returns a zero-filled store of size bytes.
func New(size int64) *Store {
	return &Store{data: make([]byte, size)}
}

// NewFromBytes wraps data without copying. When readOnly is set, writes
// fail with minor.ErrReadOnly.
func NewFromBytes(data []byte, readOnly bool) *Store {
	return &Store{data: data, readOnly: readOnly}
}

func (s *Store) ReadAt(p []byte, off int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, minor.ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("memory read: negative offset %d", off)
	}
	if off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *Store) WriteAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, minor.ErrClosed
	}
	if s.readOnly {
		return 0, minor.ErrReadOnly
	}
	if off < 0 {
		return 0, fmt.Errorf("memory write: negative offset %d", off)
	}
	if off >= int64(len(s.data)) {
		return 0, minor.ErrNoSpace
	}
	n := copy(s.data[off:], p)
	if n < len(p) {
		return n, minor.ErrNoSpace
	}
	return n, nil
}

func (s *Store) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data))
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.data = nil
	return nil
}

var _ minor.Store = (*Store)(nil)

// Package file provides a minor store backed by a regular file or a block
// device, accessed with positioned I/O.
package file

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/marmos91/ndd/pkg/minor"
)

// Config holds configuration for the file store.
type Config struct {
	// Path is the file or block device to expose.
	Path string

	// ReadOnly opens the path O_RDONLY and refuses writes.
	ReadOnly bool

	// CreateSize, when non-zero, creates Path as a sparse file of this size
	// if it does not exist yet. Ignored for existing paths.
	CreateSize int64

	// FileMode is the permission mode for created files.
	// Default: 0600
	FileMode os.FileMode
}

// Store is a file-backed implementation of minor.Store.
type Store struct {
	mu       sync.RWMutex
	f        *os.File
	path     string
	size     int64
	readOnly bool
	closed   bool
}

// New opens the configured path and captures its size.
//
// The size is taken by seeking to the end of the file, which also works
// for block devices where stat reports zero.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("path is required")
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0600
	}

	if cfg.CreateSize > 0 && !cfg.ReadOnly {
		if err := createSparse(cfg.Path, cfg.CreateSize, cfg.FileMode); err != nil {
			return nil, err
		}
	}

	flag := os.O_RDWR
	if cfg.ReadOnly {
		flag = os.O_RDONLY
	}

	f, err := os.OpenFile(cfg.Path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Path, err)
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("size of %s: %w", cfg.Path, err)
	}

	return &Store{
		f:        f,
		path:     cfg.Path,
		size:     size,
		readOnly: cfg.ReadOnly,
	}, nil
}

func createSparse(path string, size int64, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, mode)
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := f.Truncate(size); err != nil {
		return fmt.Errorf("truncate %s: %w", path, err)
	}
	return nil
}

// ReadAt reads len(p) bytes at off. Reads past the end return io.EOF with
// the bytes that were available.
func (s *Store) ReadAt(p []byte, off int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, minor.ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("read %s: negative offset %d", s.path, off)
	}
	if off >= s.size {
		return 0, io.EOF
	}
	if remain := s.size - off; int64(len(p)) > remain {
		n, err := s.f.ReadAt(p[:remain], off)
		if err == nil {
			err = io.EOF
		}
		return n, err
	}
	return s.f.ReadAt(p, off)
}

// WriteAt writes p at off. The store never grows: bytes past the size
// captured at open time are not written and ErrNoSpace is returned.
func (s *Store) WriteAt(p []byte, off int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, minor.ErrClosed
	}
	if s.readOnly {
		return 0, minor.ErrReadOnly
	}
	if off < 0 {
		return 0, fmt.Errorf("write %s: negative offset %d", s.path, off)
	}
	if off >= s.size {
		return 0, minor.ErrNoSpace
	}
	if remain := s.size - off; int64(len(p)) > remain {
		n, err := s.f.WriteAt(p[:remain], off)
		if err == nil {
			err = minor.ErrNoSpace
		}
		return n, err
	}
	return s.f.WriteAt(p, off)
}

// Size returns the size in bytes.
func (s *Store) Size() int64 {
	return s.size
}

// Path returns the opened path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the file. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}

var _ minor.Store = (*Store)(nil)

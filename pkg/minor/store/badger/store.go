// Package badger provides a sparse minor store on top of BadgerDB.
//
// The device is split into 512-byte blocks stored under their block index.
// Blocks that were never written read back as zeros, so a large device
// costs only the space of the blocks actually written.
package badger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/ndd/pkg/minor"
)

const (
	prefixBlock = "b:"
	keySize     = "cfg:size"

	blockSize = minor.BlockSize
)

// Config holds configuration for the badger store.
type Config struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string

	// Size is the device size in bytes. When zero, the size recorded in an
	// existing database is used. A non-zero size that differs from the
	// recorded one is an error.
	Size int64

	// ReadOnly refuses writes.
	ReadOnly bool

	// InMemory keeps the database in RAM (tests).
	InMemory bool

	// SyncWrites makes every write durable before it is acknowledged.
	SyncWrites bool
}

// Store is a BadgerDB-backed implementation of minor.Store.
type Store struct {
	mu       sync.RWMutex
	db       *badgerdb.DB
	size     int64
	readOnly bool
	closed   bool
}

// New opens (or creates) the database and resolves the device size.
func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, errors.New("badger store: dir is required")
	}
	if cfg.Size%blockSize != 0 {
		return nil, fmt.Errorf("badger store: size %d is not a multiple of %d", cfg.Size, blockSize)
	}

	opts := badgerdb.DefaultOptions(cfg.Dir).
		WithLogger(nil).
		WithSyncWrites(cfg.SyncWrites)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Dir, err)
	}

	size, err := resolveSize(db, cfg.Size)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:       db,
		size:     size,
		readOnly: cfg.ReadOnly,
	}, nil
}

// resolveSize records the configured size on first open and checks it
// against the recorded one afterwards.
func resolveSize(db *badgerdb.DB, want int64) (int64, error) {
	var size int64
	err := db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySize))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			if want <= 0 {
				return errors.New("badger store: size is required for a new database")
			}
			size = want
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(want))
			return txn.Set([]byte(keySize), buf)
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("badger store: corrupt size record (%d bytes)", len(val))
			}
			size = int64(binary.BigEndian.Uint64(val))
			if want > 0 && want != size {
				return fmt.Errorf("badger store: configured size %d differs from recorded size %d", want, size)
			}
			return nil
		})
	})
	return size, err
}

func blockKey(idx int64) []byte {
	key := make([]byte, len(prefixBlock)+8)
	copy(key, prefixBlock)
	binary.BigEndian.PutUint64(key[len(prefixBlock):], uint64(idx))
	return key
}

// readBlock copies block idx into dst (len blockSize). Missing blocks are
// zero-filled.
func readBlock(txn *badgerdb.Txn, idx int64, dst []byte) error {
	item, err := txn.Get(blockKey(idx))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		clear(dst)
		return nil
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		n := copy(dst, val)
		clear(dst[n:])
		return nil
	})
}

func (s *Store) ReadAt(p []byte, off int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, minor.ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("badger read: negative offset %d", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}

	want := p
	if remain := s.size - off; int64(len(p)) > remain {
		want = p[:remain]
	}

	n := 0
	err := s.db.View(func(txn *badgerdb.Txn) error {
		block := make([]byte, blockSize)
		for n < len(want) {
			pos := off + int64(n)
			if err := readBlock(txn, pos/blockSize, block); err != nil {
				return err
			}
			n += copy(want[n:], block[pos%blockSize:])
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("badger read at %d: %w", off, err)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt writes p at off in a single transaction. Partial blocks are
// merged with their current contents.
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
		return 0, fmt.Errorf("badger write: negative offset %d", off)
	}
	if off >= s.size {
		return 0, minor.ErrNoSpace
	}

	src := p
	if remain := s.size - off; int64(len(p)) > remain {
		src = p[:remain]
	}

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		for n := 0; n < len(src); {
			pos := off + int64(n)
			idx, within := pos/blockSize, pos%blockSize

			block := make([]byte, blockSize)
			chunk := min(len(src)-n, blockSize-int(within))
			if within != 0 || chunk < blockSize {
				if err := readBlock(txn, idx, block); err != nil {
					return err
				}
			}
			copy(block[within:], src[n:n+chunk])

			if err := txn.Set(blockKey(idx), block); err != nil {
				return err
			}
			n += chunk
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("badger write at %d: %w", off, err)
	}
	if len(src) < len(p) {
		return len(src), minor.ErrNoSpace
	}
	return len(p), nil
}

func (s *Store) Size() int64 {
	return s.size
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

var _ minor.Store = (*Store)(nil)

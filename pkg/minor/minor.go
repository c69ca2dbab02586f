// Package minor holds the table of exposed block stores ("minors") that
// the ND server reads from and writes to.
package minor

import (
	"fmt"
	"math"
	"strings"
)

const (
	// MaxMinors bounds the minor id space: valid ids are [0, MaxMinors).
	MaxMinors = 4

	// BlockSize is the ND block size. Block numbers are expressed in units
	// of BlockSize.
	BlockSize = 512

	// MaxSize is the largest store whose block count fits the 32-bit size
	// query reply.
	MaxSize = math.MaxUint32 * BlockSize
)

// Mode is the access mode of a minor. It is fixed when the minor is opened.
type Mode int

const (
	ModeReadWrite Mode = iota
	ModeReadOnly
)

// ParseMode parses the configuration spelling of a mode: "RO" or "WR"
// (case-insensitive). "RW" is accepted as an alias of "WR"; an empty
// string yields ModeReadWrite.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "WR", "RW":
		return ModeReadWrite, nil
	case "RO":
		return ModeReadOnly, nil
	default:
		return 0, fmt.Errorf("invalid minor mode %q (want RO or WR)", s)
	}
}

// String returns "RO" or "WR".
func (m Mode) String() string {
	if m == ModeReadOnly {
		return "RO"
	}
	return "WR"
}

// Minor is one exposed backing store.
type Minor struct {
	id    uint8
	name  string
	typ   Type
	mode  Mode
	store Store
	size  int64
}

// New wraps an open store as minor id. The size is captured once here;
// stores larger than MaxSize are rejected with ErrTooLarge. name describes
// the backing location (a path, a bucket/key) for logs and the API.
func New(id uint8, name string, typ Type, mode Mode, store Store) (*Minor, error) {
	if int(id) >= MaxMinors {
		return nil, fmt.Errorf("nd%d: %w", id, ErrInvalidID)
	}
	if store == nil {
		return nil, fmt.Errorf("nd%d: nil store", id)
	}
	size := store.Size()
	if size > MaxSize {
		return nil, fmt.Errorf("nd%d: %d bytes: %w", id, size, ErrTooLarge)
	}
	return &Minor{
		id:    id,
		name:  name,
		typ:   typ,
		mode:  mode,
		store: store,
		size:  size,
	}, nil
}

// ID returns the minor number.
func (m *Minor) ID() uint8 { return m.id }

// Name returns the backing location (path, bucket/key, ...).
func (m *Minor) Name() string { return m.name }

// Type returns the backend type.
func (m *Minor) Type() Type { return m.typ }

// Mode returns the access mode.
func (m *Minor) Mode() Mode { return m.mode }

// Size returns the size in bytes captured at open time.
func (m *Minor) Size() int64 { return m.size }

func (m *Minor) String() string { return fmt.Sprintf("nd%d", m.id) }

// ReadOnly reports whether writes must be refused.
func (m *Minor) ReadOnly() bool {
	return m.mode == ModeReadOnly
}

// Blocks returns the size in whole BlockSize blocks.
func (m *Minor) Blocks() uint32 {
	return uint32(m.size / BlockSize)
}

// ReadAt reads len(p) bytes at byte offset off of the backing store.
func (m *Minor) ReadAt(p []byte, off int64) (int, error) {
	return m.store.ReadAt(p, off)
}

// WriteAt writes p at byte offset off. It fails with ErrReadOnly on a
// read-only minor without touching the store.
func (m *Minor) WriteAt(p []byte, off int64) (int, error) {
	if m.ReadOnly() {
		return 0, ErrReadOnly
	}
	return m.store.WriteAt(p, off)
}

// Close releases the backing store.
func (m *Minor) Close() error {
	return m.store.Close()
}

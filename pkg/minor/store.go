package minor

import "io"

// Store is the backing storage of a minor: a fixed-size, byte-addressable
// region accessed with positioned I/O only.
//
// ReadAt and WriteAt follow the io.ReaderAt and io.WriterAt contracts: a
// short transfer always comes with a non-nil error. Implementations must
// be safe for concurrent use, although the ND server only issues one
// request at a time.
type Store interface {
	io.ReaderAt
	io.WriterAt

	// Size returns the store size in bytes. It is fixed once the store is
	// open.
	Size() int64

	// Close releases the underlying handle. Further I/O returns ErrClosed.
	Close() error
}

// Type identifies a store backend in configuration and API output.
type Type string

const (
	TypeFile   Type = "file"
	TypeMemory Type = "memory"
	TypeBadger Type = "badger"
	TypeS3     Type = "s3"
)

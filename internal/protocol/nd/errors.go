package nd

import (
	"errors"
	"fmt"

	"github.com/marmos91/ndd/pkg/minor"
	"golang.org/x/sys/unix"
)

// Errno is the wire error code carried in the ND header error byte.
//
// The set is closed. Values coincide with the classic Unix numbers so
// clients that print the code keep showing familiar names.
type Errno uint8

const (
	ErrNone     Errno = 0
	ErrIO       Errno = 5  // EIO
	ErrInvalid  Errno = 22 // EINVAL: malformed request, never acknowledged
	ErrNoSpace  Errno = 28 // ENOSPC
	ErrReadOnly Errno = 30 // EROFS
)

func (e Errno) String() string {
	switch e {
	case ErrNone:
		return "OK"
	case ErrIO:
		return "EIO"
	case ErrInvalid:
		return "EINVAL"
	case ErrNoSpace:
		return "ENOSPC"
	case ErrReadOnly:
		return "EROFS"
	default:
		return fmt.Sprintf("ERR(%d)", uint8(e))
	}
}

// ErrnoFromError maps a storage error onto the wire enumeration.
// Anything unrecognized is a generic I/O failure.
func ErrnoFromError(err error) Errno {
	switch {
	case err == nil:
		return ErrNone
	case errors.Is(err, minor.ErrReadOnly), errors.Is(err, unix.EROFS):
		return ErrReadOnly
	case errors.Is(err, minor.ErrNoSpace), errors.Is(err, unix.ENOSPC):
		return ErrNoSpace
	default:
		return ErrIO
	}
}

var (
	// ErrShortPacket is returned by Decode for datagrams shorter than the
	// ND header.
	ErrShortPacket = errors.New("nd: short packet")

	// ErrTransport wraps send and receive failures on the raw socket.
	// These are not reportable to the client and stop the server.
	ErrTransport = errors.New("nd: transport failure")

	// ErrStopped is returned by a receive interrupted by shutdown.
	ErrStopped = errors.New("nd: stopped")
)

package nd

import "github.com/marmos91/ndd/pkg/minor"

// Validate classifies a request against protocol limits and the minor
// table. It returns ErrNone for an acceptable request.
//
// Checks run in order and the first failure wins:
//
//  1. bcount above MaxIO: ErrIO
//  2. unknown minor: ErrIO
//  3. write to a read-only minor: ErrReadOnly
//  4. block number outside the minor: ErrIO
//  5. size query whose bcount is not SizeQueryLen: ErrInvalid
//  6. write whose ccount exceeds the received payload or MaxData: ErrInvalid
//
// A failed validation does not end processing. The caller still runs the
// read or write path so that the error reply is produced (reads) or
// suppressed (writes) according to the protocol.
func Validate(p *Packet, reg *minor.Registry) Errno {
	if p.Bcount > MaxIO {
		return ErrIO
	}

	m, ok := reg.Lookup(p.Minor)
	if !ok {
		return ErrIO
	}

	if p.Op.IsWrite() && m.ReadOnly() {
		return ErrReadOnly
	}

	if !p.IsSizeQuery() && p.Blkno >= m.Blocks() {
		return ErrIO
	}

	if p.IsSizeQuery() && p.Bcount != SizeQueryLen {
		return ErrInvalid
	}

	if p.Op.IsWrite() && (p.Ccount > MaxData || int(p.Ccount) > len(p.Payload)) {
		return ErrInvalid
	}

	return ErrNone
}

package nd

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Op is the op byte: a code in the low bits plus flags.
type Op uint8

const (
	OpRead  Op = 0x01
	OpWrite Op = 0x02

	// OpCodeMask selects the operation code.
	OpCodeMask Op = 0x07

	// FlagError marks a reply carrying an error code. It lies inside
	// OpCodeMask for historical reasons but is never set on requests.
	FlagError Op = 0x04

	// FlagWait asks for an acknowledgement of a write.
	FlagWait Op = 0x08

	// FlagDone marks a reply.
	FlagDone Op = 0x10
)

// Code returns the operation code without flags.
func (o Op) Code() Op {
	return o & OpCodeMask &^ FlagError
}

func (o Op) IsRead() bool  { return o.Code() == OpRead }
func (o Op) IsWrite() bool { return o.Code() == OpWrite }
func (o Op) Wait() bool    { return o&FlagWait != 0 }

// String renders the op as "WRITE|WAIT".
func (o Op) String() string {
	var parts []string
	switch o.Code() {
	case OpRead:
		parts = append(parts, "READ")
	case OpWrite:
		parts = append(parts, "WRITE")
	default:
		parts = append(parts, fmt.Sprintf("OP(%d)", uint8(o.Code())))
	}
	for _, f := range []struct {
		flag Op
		name string
	}{{FlagError, "ERROR"}, {FlagWait, "WAIT"}, {FlagDone, "DONE"}} {
		if o&f.flag != 0 {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "|")
}

// Packet is a decoded ND datagram (without its IP header).
type Packet struct {
	Op      Op
	Minor   uint8
	Error   Errno
	Version uint8

	Seq    uint32
	Blkno  uint32
	Bcount uint32
	Resid  uint32
	Caddr  uint32
	Ccount uint32

	// Payload is bound to the bytes actually received (requests) or to the
	// fragment being sent (replies). It may alias the receive buffer.
	Payload []byte
}

// Decode parses b, the datagram body following the IP header. The
// returned packet's Payload aliases b.
func Decode(b []byte) (*Packet, error) {
	if len(b) < HeaderLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}

	return &Packet{
		Op:      Op(b[0]),
		Minor:   b[1],
		Error:   Errno(b[2]),
		Version: b[3],
		Seq:     binary.BigEndian.Uint32(b[4:8]),
		Blkno:   binary.BigEndian.Uint32(b[8:12]),
		Bcount:  binary.BigEndian.Uint32(b[12:16]),
		Resid:   binary.BigEndian.Uint32(b[16:20]),
		Caddr:   binary.BigEndian.Uint32(b[20:24]),
		Ccount:  binary.BigEndian.Uint32(b[24:28]),
		Payload: b[HeaderLen:],
	}, nil
}

// MarshalTo writes the header and payload into b and returns the number of
// bytes written. b must hold at least Len() bytes.
func (p *Packet) MarshalTo(b []byte) (int, error) {
	n := p.Len()
	if len(b) < n {
		return 0, fmt.Errorf("nd: buffer too small: %d < %d", len(b), n)
	}

	b[0] = byte(p.Op)
	b[1] = p.Minor
	b[2] = byte(p.Error)
	b[3] = p.Version
	binary.BigEndian.PutUint32(b[4:8], p.Seq)
	binary.BigEndian.PutUint32(b[8:12], p.Blkno)
	binary.BigEndian.PutUint32(b[12:16], p.Bcount)
	binary.BigEndian.PutUint32(b[16:20], p.Resid)
	binary.BigEndian.PutUint32(b[20:24], p.Caddr)
	binary.BigEndian.PutUint32(b[24:28], p.Ccount)
	copy(b[HeaderLen:], p.Payload)

	return n, nil
}

// Encode returns the wire form of p in a new slice.
func (p *Packet) Encode() []byte {
	b := make([]byte, p.Len())
	_, _ = p.MarshalTo(b)
	return b
}

// Len is the encoded size without the IP header.
func (p *Packet) Len() int {
	return HeaderLen + len(p.Payload)
}

// Offset returns the absolute byte offset of the current fragment:
// blkno * BlockSize + caddr.
func (p *Packet) Offset() int64 {
	return int64(p.Blkno)*BlockSize + int64(p.Caddr)
}

// IsSizeQuery reports whether the block number is the size query sentinel.
func (p *Packet) IsSizeQuery() bool {
	return p.Blkno == SizeQueryBlkno
}

func (p *Packet) String() string {
	return fmt.Sprintf("%s nd%d seq=%d blkno=%d bcount=%d caddr=%d ccount=%d",
		p.Op, p.Minor, p.Seq, p.Blkno, p.Bcount, p.Caddr, p.Ccount)
}

package nd

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/ndd/internal/protocol/nd"
	"github.com/marmos91/ndd/pkg/minor"
	"github.com/marmos91/ndd/pkg/minor/store/memory"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/ipv4"
)

var (
	clientIP = net.IPv4(192, 0, 2, 10).To4()
	serverIP = net.IPv4(192, 0, 2, 1).To4()
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

type datagram struct {
	hdr  *ipv4.Header
	body []byte
}

// fakeConn is an in-memory PacketConn. Queued datagrams are delivered in
// order; sent datagrams are recorded.
type fakeConn struct {
	mu       sync.Mutex
	in       chan datagram
	sent     []datagram
	deadline time.Time
	readErr  error
	writeErr error
	closed   bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan datagram, 16)}
}

func (f *fakeConn) queue(p *nd.Packet) {
	f.in <- datagram{
		hdr:  &ipv4.Header{Version: 4, Len: 20, Protocol: nd.IPProtocol, Src: clientIP, Dst: serverIP},
		body: p.Encode(),
	}
}

func (f *fakeConn) ReadFrom(b []byte) (*ipv4.Header, []byte, *ipv4.ControlMessage, error) {
	f.mu.Lock()
	readErr, deadline := f.readErr, f.deadline
	f.mu.Unlock()
	if readErr != nil {
		return nil, nil, nil, readErr
	}

	wait := time.Until(deadline)
	if wait <= 0 {
		return nil, nil, nil, timeoutError{}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case d := <-f.in:
		n := copy(b, d.body)
		return d.hdr, b[:n], nil, nil
	case <-timer.C:
		return nil, nil, nil, timeoutError{}
	}
}

func (f *fakeConn) WriteTo(h *ipv4.Header, p []byte, _ *ipv4.ControlMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	hc := *h
	f.sent = append(f.sent, datagram{hdr: &hc, body: append([]byte(nil), p...)})
	return nil
}

func (f *fakeConn) SetReadDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadline = t
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("already closed")
	}
	f.closed = true
	return nil
}

// replies decodes every datagram sent so far.
func (f *fakeConn) replies(t *testing.T) []*nd.Packet {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*nd.Packet, 0, len(f.sent))
	for _, d := range f.sent {
		p, err := nd.Decode(d.body)
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func (f *fakeConn) headers() []*ipv4.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*ipv4.Header, 0, len(f.sent))
	for _, d := range f.sent {
		out = append(out, d.hdr)
	}
	return out
}

// pattern fills n bytes with a position dependent sequence.
func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/512)
	}
	return b
}

// testRegistry holds minor 0 (read-write, 64 blocks, patterned) and
// minor 1 (read-only, 8 blocks).
func testRegistry(t *testing.T) (*minor.Registry, []byte) {
	t.Helper()

	data := pattern(64 * minor.BlockSize)
	rw, err := minor.New(0, "rw", minor.TypeMemory, minor.ModeReadWrite, memory.NewFromBytes(append([]byte(nil), data...), false))
	require.NoError(t, err)
	ro, err := minor.New(1, "ro", minor.TypeMemory, minor.ModeReadOnly, memory.New(8*minor.BlockSize))
	require.NoError(t, err)

	reg := minor.NewRegistry()
	require.NoError(t, reg.Add(rw))
	require.NoError(t, reg.Add(ro))
	t.Cleanup(func() { _ = reg.Close() })
	return reg, data
}

// request builds a request as Receive would return it.
func request(op nd.Op, id uint8, blkno, bcount uint32) *Request {
	return &Request{
		Packet: &nd.Packet{Op: op, Minor: id, Seq: 42, Blkno: blkno, Bcount: bcount},
		Src:    clientIP,
		Dst:    serverIP,
	}
}

func writeRequest(op nd.Op, id uint8, blkno, caddr uint32, payload []byte) *Request {
	req := request(op, id, blkno, uint32(len(payload)))
	req.Caddr = caddr
	req.Ccount = uint32(len(payload))
	req.Payload = payload
	return req
}

package nd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/marmos91/ndd/internal/logger"
	"github.com/marmos91/ndd/internal/protocol/nd"
	"golang.org/x/net/ipv4"
)

const (
	// maxIPv4HeaderLen is the IPv4 header length with the largest options.
	maxIPv4HeaderLen = 60

	// recvBufSize holds any well-formed ND request. Longer datagrams are
	// truncated by the kernel and fail validation.
	recvBufSize = maxIPv4HeaderLen + nd.HeaderLen + nd.MaxData

	// DefaultPollInterval bounds how long Receive blocks before checking
	// for shutdown.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultTTL is the TTL of reply datagrams.
	DefaultTTL = 64
)

// PacketConn is a raw IPv4 endpoint delivering and accepting datagrams
// with their IP header. *ipv4.RawConn implements it.
type PacketConn interface {
	ReadFrom(b []byte) (*ipv4.Header, []byte, *ipv4.ControlMessage, error)
	WriteTo(h *ipv4.Header, p []byte, cm *ipv4.ControlMessage) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// Request is a decoded ND request together with the addresses of the
// datagram that carried it.
type Request struct {
	*nd.Packet

	Src net.IP
	Dst net.IP
}

// Conn is the socket adapter: it owns the raw endpoint and one receive
// buffer, reused for every datagram.
type Conn struct {
	pc   PacketConn
	poll time.Duration
	ttl  int

	rbuf []byte
	wbuf []byte
}

// Listen opens a raw IPv4 endpoint for protocol proto on addr ("0.0.0.0"
// for all interfaces). It needs CAP_NET_RAW.
func Listen(addr string, proto int, poll time.Duration) (*Conn, error) {
	pc, err := net.ListenPacket(fmt.Sprintf("ip4:%d", proto), addr)
	if err != nil {
		return nil, fmt.Errorf("listen ip4:%d on %s: %w", proto, addr, err)
	}

	rc, err := ipv4.NewRawConn(pc)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("raw conn: %w", err)
	}

	return NewConn(rc, poll), nil
}

// NewConn wraps an existing endpoint.
func NewConn(pc PacketConn, poll time.Duration) *Conn {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Conn{
		pc:   pc,
		poll: poll,
		ttl:  DefaultTTL,
		rbuf: make([]byte, recvBufSize),
		wbuf: make([]byte, nd.HeaderLen+nd.MaxData),
	}
}

// Receive blocks until a datagram arrives or ctx is cancelled, in which
// case it returns nd.ErrStopped.
//
// The returned request aliases the receive buffer and is only valid until
// the next call. Datagrams too short to hold an ND header are reported
// with nd.ErrShortPacket; the caller may keep receiving.
func (c *Conn) Receive(ctx context.Context) (*Request, error) {
	for {
		if ctx.Err() != nil {
			return nil, nd.ErrStopped
		}

		if err := c.pc.SetReadDeadline(time.Now().Add(c.poll)); err != nil {
			return nil, fmt.Errorf("%w: set read deadline: %v", nd.ErrTransport, err)
		}

		h, body, _, err := c.pc.ReadFrom(c.rbuf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil, nd.ErrStopped
			}
			return nil, fmt.Errorf("%w: receive: %v", nd.ErrTransport, err)
		}

		pkt, err := nd.Decode(body)
		if err != nil {
			return nil, fmt.Errorf("from %s: %w", h.Src, err)
		}
		return &Request{Packet: pkt, Src: h.Src, Dst: h.Dst}, nil
	}
}

// Reply sends req back to its sender as a datagram of size bytes,
// IP header included.
//
// The IP header is rebuilt with source and destination swapped and the
// total length set to size. When errno is not ErrNone the packet is
// marked with the error flag and code, and read payloads are zeroed so
// the client still receives a body of the expected length.
//
// Send failures are logged and returned wrapped in nd.ErrTransport.
func (c *Conn) Reply(req *Request, size int, errno nd.Errno) error {
	body := size - nd.IPHeaderLen
	if body < nd.HeaderLen || body-nd.HeaderLen > len(req.Payload) {
		return fmt.Errorf("nd: reply size %d does not fit packet with %d payload bytes", size, len(req.Payload))
	}

	p := req.Packet
	if errno != nd.ErrNone {
		if p.Op.IsRead() {
			clear(p.Payload)
		}
		p.Op |= nd.FlagError
		p.Error = errno
	}

	out := *p
	out.Payload = p.Payload[:body-nd.HeaderLen]
	if _, err := out.MarshalTo(c.wbuf); err != nil {
		return err
	}

	h := &ipv4.Header{
		Version:  ipv4.Version,
		Len:      ipv4.HeaderLen,
		TotalLen: size,
		TTL:      c.ttl,
		Protocol: nd.IPProtocol,
		Src:      replySource(req.Dst),
		Dst:      req.Src,
	}

	if err := c.pc.WriteTo(h, c.wbuf[:body], nil); err != nil {
		logger.Error("Unable to send ND reply",
			logger.KeyClientIP, req.Src.String(),
			logger.KeyOp, p.Op.String(),
			logger.Err(err))
		return fmt.Errorf("%w: send to %s: %v", nd.ErrTransport, req.Src, err)
	}
	return nil
}

// replySource returns the address the request was sent to, or nil (let
// the kernel choose) when that address cannot be used as a source.
func replySource(dst net.IP) net.IP {
	if dst == nil || dst.IsUnspecified() || dst.IsMulticast() || dst.Equal(net.IPv4bcast) {
		return nil
	}
	return dst
}

// Close closes the endpoint, unblocking a pending Receive.
func (c *Conn) Close() error {
	return c.pc.Close()
}

package nd

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/marmos91/ndd/internal/protocol/nd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/ipv4"
)

func TestReceiveDecodesDatagram(t *testing.T) {
	fc := newFakeConn()
	c := NewConn(fc, 10*time.Millisecond)

	fc.queue(&nd.Packet{Op: nd.OpWrite | nd.FlagWait, Minor: 1, Seq: 9, Blkno: 3, Bcount: 4, Ccount: 4, Payload: []byte{1, 2, 3, 4}})

	req, err := c.Receive(context.Background())
	require.NoError(t, err)
	assert.True(t, req.Op.IsWrite())
	assert.True(t, req.Op.Wait())
	assert.Equal(t, uint8(1), req.Minor)
	assert.Equal(t, uint32(9), req.Seq)
	assert.Equal(t, []byte{1, 2, 3, 4}, req.Payload)
	assert.True(t, req.Src.Equal(clientIP))
	assert.True(t, req.Dst.Equal(serverIP))
}

func TestReceiveShortDatagram(t *testing.T) {
	fc := newFakeConn()
	c := NewConn(fc, 10*time.Millisecond)
	fc.in <- datagram{hdr: &ipv4.Header{Src: clientIP}, body: make([]byte, nd.HeaderLen-1)}

	_, err := c.Receive(context.Background())
	assert.ErrorIs(t, err, nd.ErrShortPacket)
}

func TestReceiveStopsOnCancel(t *testing.T) {
	fc := newFakeConn()
	c := NewConn(fc, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Receive(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, nd.ErrStopped)
	case <-time.After(time.Second):
		t.Fatal("Receive did not observe cancellation")
	}
}

func TestReceiveTransportFailure(t *testing.T) {
	fc := newFakeConn()
	fc.readErr = errors.New("socket gone")
	c := NewConn(fc, 5*time.Millisecond)

	_, err := c.Receive(context.Background())
	assert.ErrorIs(t, err, nd.ErrTransport)
}

func TestReplySwapsAddresses(t *testing.T) {
	fc := newFakeConn()
	c := NewConn(fc, 0)

	req := request(nd.OpRead, 0, 1, 8)
	req.Payload = []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, c.Reply(req, nd.PacketHeaderLen+8, nd.ErrNone))

	hdrs := fc.headers()
	require.Len(t, hdrs, 1)
	h := hdrs[0]
	assert.True(t, h.Dst.Equal(clientIP))
	assert.True(t, h.Src.Equal(serverIP))
	assert.Equal(t, nd.PacketHeaderLen+8, h.TotalLen)
	assert.Equal(t, nd.IPProtocol, h.Protocol)
	assert.Equal(t, DefaultTTL, h.TTL)
	assert.Equal(t, ipv4.Version, h.Version)

	replies := fc.replies(t)
	assert.Equal(t, req.Payload, replies[0].Payload)
	assert.Equal(t, nd.ErrNone, replies[0].Error)
}

func TestReplyErrorZeroesReadPayload(t *testing.T) {
	fc := newFakeConn()
	c := NewConn(fc, 0)

	req := request(nd.OpRead|nd.FlagDone, 0, 1, 4)
	req.Payload = []byte{9, 9, 9, 9}
	require.NoError(t, c.Reply(req, nd.PacketHeaderLen+4, nd.ErrIO))

	p := fc.replies(t)[0]
	assert.Equal(t, []byte{0, 0, 0, 0}, p.Payload)
	assert.NotZero(t, p.Op&nd.FlagError)
	assert.Equal(t, nd.ErrIO, p.Error)
	assert.True(t, p.Op.IsRead(), "error flag must not change the op code")
}

func TestReplyBroadcastSourceLeftToKernel(t *testing.T) {
	fc := newFakeConn()
	c := NewConn(fc, 0)

	req := request(nd.OpRead, 0, 0, 0)
	req.Dst = net.IPv4bcast
	require.NoError(t, c.Reply(req, nd.PacketHeaderLen, nd.ErrNone))
	assert.Nil(t, fc.headers()[0].Src)
}

func TestReplySizeBeyondPayload(t *testing.T) {
	c := NewConn(newFakeConn(), 0)
	req := request(nd.OpRead, 0, 0, 8)
	req.Payload = make([]byte, 4)

	assert.Error(t, c.Reply(req, nd.PacketHeaderLen+8, nd.ErrNone))
}

func TestReplySendFailure(t *testing.T) {
	fc := newFakeConn()
	fc.writeErr = errors.New("no route")
	c := NewConn(fc, 0)

	err := c.Reply(request(nd.OpWrite, 0, 0, 0), nd.PacketHeaderLen, nd.ErrNone)
	assert.ErrorIs(t, err, nd.ErrTransport)
}

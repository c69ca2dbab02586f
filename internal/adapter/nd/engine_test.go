package nd

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/marmos91/ndd/internal/protocol/nd"
	"github.com/marmos91/ndd/pkg/minor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMetrics struct {
	requests   []string
	fragments  int
	suppressed []string
	bytes      map[string]int
}

func (m *recordingMetrics) RecordRequest(op string, _ uint8, errno string, _ time.Duration) {
	m.requests = append(m.requests, op+":"+errno)
}

func (m *recordingMetrics) RecordBytes(direction string, _ uint8, n int) {
	if m.bytes == nil {
		m.bytes = map[string]int{}
	}
	m.bytes[direction] += n
}

func (m *recordingMetrics) RecordFragments(_ string, n int) { m.fragments += n }
func (m *recordingMetrics) RecordSuppressed(reason string) {
	m.suppressed = append(m.suppressed, reason)
}
func (m *recordingMetrics) RecordDropped(string) {}

func newTestEngine(t *testing.T) (*Engine, *fakeConn, *minor.Registry, []byte, *recordingMetrics) {
	t.Helper()
	reg, data := testRegistry(t)
	fc := newFakeConn()
	rm := &recordingMetrics{}
	return NewEngine(reg, NewConn(fc, 0), rm), fc, reg, data, rm
}

// serve validates and dispatches req the way the server loop does.
func serve(t *testing.T, e *Engine, reg *minor.Registry, req *Request) {
	t.Helper()
	errno := nd.Validate(req.Packet, reg)
	if req.Op.IsRead() {
		require.NoError(t, e.ServeRead(context.Background(), req, errno))
		return
	}
	require.NoError(t, e.ServeWrite(context.Background(), req, errno))
}

func TestReadFragmentation(t *testing.T) {
	tests := []struct {
		name      string
		blkno     uint32
		bcount    uint32
		fragments int
	}{
		{"single partial fragment", 0, 100, 1},
		{"exactly one fragment", 2, nd.MaxData, 1},
		{"uneven tail", 1, 2*nd.MaxData + 300, 3},
		{"one block", 63, nd.BlockSize, 1},
		{"empty request", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, fc, reg, data, _ := newTestEngine(t)

			serve(t, e, reg, request(nd.OpRead, 0, tt.blkno, tt.bcount))

			replies := fc.replies(t)
			require.Len(t, replies, tt.fragments)

			var (
				total uint32
				got   []byte
			)
			for _, p := range replies {
				assert.Equal(t, total, p.Caddr, "fragment offsets are contiguous from 0")
				assert.Equal(t, uint32(len(p.Payload)), p.Ccount)
				assert.LessOrEqual(t, p.Ccount, uint32(nd.MaxData))
				assert.True(t, p.Op.IsRead())
				assert.NotZero(t, p.Op&nd.FlagDone)
				assert.Zero(t, p.Op&nd.FlagError)
				assert.Equal(t, tt.bcount, p.Bcount)
				assert.Equal(t, uint32(42), p.Seq)
				total += p.Ccount
				got = append(got, p.Payload...)
			}
			assert.Equal(t, tt.bcount, total)

			off := int(tt.blkno) * nd.BlockSize
			assert.True(t, bytes.Equal(data[off:off+int(tt.bcount)], got))
		})
	}
}

func TestReadReplyDatagramSizes(t *testing.T) {
	e, fc, reg, _, _ := newTestEngine(t)

	serve(t, e, reg, request(nd.OpRead, 0, 0, nd.MaxData+10))

	hdrs := fc.headers()
	require.Len(t, hdrs, 2)
	assert.Equal(t, nd.PacketHeaderLen+nd.MaxData, hdrs[0].TotalLen)
	assert.Equal(t, nd.PacketHeaderLen+10, hdrs[1].TotalLen)
}

func TestSizeQuery(t *testing.T) {
	e, fc, reg, _, _ := newTestEngine(t)

	serve(t, e, reg, request(nd.OpRead, 0, nd.SizeQueryBlkno, nd.SizeQueryLen))

	replies := fc.replies(t)
	require.Len(t, replies, 1)
	p := replies[0]
	assert.NotZero(t, p.Op&nd.FlagDone)
	assert.Zero(t, p.Op&nd.FlagError)
	assert.Equal(t, nd.ErrNone, p.Error)
	assert.Equal(t, uint32(0), p.Caddr)
	assert.Equal(t, uint32(4), p.Ccount)
	require.Len(t, p.Payload, 4)
	assert.Equal(t, uint32(64), binary.BigEndian.Uint32(p.Payload))
	assert.Equal(t, nd.PacketHeaderLen+4, fc.headers()[0].TotalLen)
}

func TestMalformedSizeQuery(t *testing.T) {
	t.Run("read gets one zeroed error reply", func(t *testing.T) {
		e, fc, reg, _, _ := newTestEngine(t)

		serve(t, e, reg, request(nd.OpRead, 0, nd.SizeQueryBlkno, 8))

		replies := fc.replies(t)
		require.Len(t, replies, 1)
		p := replies[0]
		assert.NotZero(t, p.Op&nd.FlagError)
		assert.Equal(t, nd.ErrInvalid, p.Error)
		assert.Equal(t, make([]byte, 8), p.Payload)
		assert.Equal(t, nd.PacketHeaderLen+8, fc.headers()[0].TotalLen)
	})

	t.Run("oversized read is capped at one fragment", func(t *testing.T) {
		e, fc, reg, _, _ := newTestEngine(t)

		serve(t, e, reg, request(nd.OpRead, 0, nd.SizeQueryBlkno, 4*nd.MaxData))

		replies := fc.replies(t)
		require.Len(t, replies, 1)
		assert.Len(t, replies[0].Payload, nd.MaxData)
	})

	t.Run("write gets no reply", func(t *testing.T) {
		e, fc, reg, _, rm := newTestEngine(t)

		req := writeRequest(nd.OpWrite|nd.FlagWait, 0, nd.SizeQueryBlkno, 0, make([]byte, 8))
		serve(t, e, reg, req)

		assert.Empty(t, fc.replies(t))
		assert.Equal(t, []string{"malformed"}, rm.suppressed)
	})
}

func TestWriteWithoutWaitNeverReplies(t *testing.T) {
	tests := []struct {
		name string
		id   uint8
	}{
		{"success", 0},
		{"read-only minor", 1},
		{"absent minor", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, fc, reg, _, rm := newTestEngine(t)

			serve(t, e, reg, writeRequest(nd.OpWrite, tt.id, 0, 0, pattern(16)))

			assert.Empty(t, fc.replies(t))
			assert.Equal(t, []string{"no_wait"}, rm.suppressed)
		})
	}
}

func TestWriteAcknowledged(t *testing.T) {
	e, fc, reg, _, rm := newTestEngine(t)
	payload := bytes.Repeat([]byte{0xAB}, 300)

	serve(t, e, reg, writeRequest(nd.OpWrite|nd.FlagWait, 0, 2, 100, payload))

	replies := fc.replies(t)
	require.Len(t, replies, 1)
	p := replies[0]
	assert.Equal(t, nd.OpWrite|nd.FlagDone|nd.FlagWait, p.Op)
	assert.Equal(t, nd.ErrNone, p.Error)
	assert.Equal(t, uint32(400), p.Caddr, "caddr advances past the written bytes")
	assert.Empty(t, p.Payload)
	assert.Equal(t, nd.PacketHeaderLen, fc.headers()[0].TotalLen)
	assert.Equal(t, 300, rm.bytes["write"])

	m, _ := reg.Lookup(0)
	got := make([]byte, 300)
	_, err := m.ReadAt(got, 2*nd.BlockSize+100)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestWriteErrorsAcknowledged(t *testing.T) {
	tests := []struct {
		name  string
		id    uint8
		blkno uint32
		caddr uint32
		want  nd.Errno
	}{
		{"read-only minor", 1, 0, 0, nd.ErrReadOnly},
		{"absent minor", 2, 0, 0, nd.ErrIO},
		{"block out of range", 0, 64, 0, nd.ErrIO},
		{"runs past end of minor", 0, 63, nd.BlockSize - 8, nd.ErrNoSpace},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, fc, reg, _, _ := newTestEngine(t)

			serve(t, e, reg, writeRequest(nd.OpWrite|nd.FlagWait, tt.id, tt.blkno, tt.caddr, pattern(64)))

			replies := fc.replies(t)
			require.Len(t, replies, 1)
			assert.NotZero(t, replies[0].Op&nd.FlagError)
			assert.Equal(t, tt.want, replies[0].Error)
			assert.Equal(t, tt.caddr+64, replies[0].Caddr)
		})
	}
}

func TestWriteCcountBeyondPayloadIsMalformed(t *testing.T) {
	e, fc, reg, data, _ := newTestEngine(t)

	req := writeRequest(nd.OpWrite|nd.FlagWait, 0, 0, 0, pattern(16))
	req.Ccount = 32
	serve(t, e, reg, req)

	assert.Empty(t, fc.replies(t))
	m, _ := reg.Lookup(0)
	got := make([]byte, 32)
	_, err := m.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, data[:32], got, "nothing written")
}

func TestReadOutOfRangeBlock(t *testing.T) {
	for _, blkno := range []uint32{64, 65, 1 << 20} {
		e, fc, reg, _, _ := newTestEngine(t)
		const bcount = 2*nd.MaxData + 17

		serve(t, e, reg, request(nd.OpRead, 0, blkno, bcount))

		var total int
		for _, p := range fc.replies(t) {
			assert.NotZero(t, p.Op&nd.FlagError)
			assert.Equal(t, nd.ErrIO, p.Error)
			assert.Equal(t, make([]byte, len(p.Payload)), p.Payload)
			total += len(p.Payload)
		}
		assert.Equal(t, bcount, total, "blkno %d", blkno)
	}
}

func TestReadOversizedRangeBounded(t *testing.T) {
	for _, bcount := range []uint32{nd.MaxIO + 1, 0xFFFFFFFF} {
		e, fc, reg, _, _ := newTestEngine(t)

		serve(t, e, reg, request(nd.OpRead, 0, 0, bcount))

		replies := fc.replies(t)
		require.Len(t, replies, nd.MaxIO/nd.MaxData, "bcount %#x", bcount)

		var total int
		for i, p := range replies {
			assert.Equal(t, nd.ErrIO, p.Error)
			assert.NotZero(t, p.Op&nd.FlagError)
			assert.Equal(t, uint32(i*nd.MaxData), p.Caddr)
			assert.Equal(t, make([]byte, nd.MaxData), p.Payload)
			total += len(p.Payload)
		}
		assert.Equal(t, nd.MaxIO, total, "bcount %#x", bcount)
	}
}

func TestReadAbsentMinor(t *testing.T) {
	for _, id := range []uint8{2, 3, minor.MaxMinors, 255} {
		e, fc, reg, _, _ := newTestEngine(t)

		serve(t, e, reg, request(nd.OpRead, id, 0, 600))

		replies := fc.replies(t)
		require.Len(t, replies, 1, "minor %d", id)
		assert.Equal(t, nd.ErrIO, replies[0].Error)
		assert.Equal(t, make([]byte, 600), replies[0].Payload)
	}
}

func TestReadErrorMidTransfer(t *testing.T) {
	e, fc, reg, data, rm := newTestEngine(t)

	// Starts in range, runs past the end of the 64-block minor.
	const bcount = 3 * nd.MaxData
	blkno := uint32(64 - 3)
	serve(t, e, reg, request(nd.OpRead, 0, blkno, bcount))

	replies := fc.replies(t)
	require.Len(t, replies, 3)

	off := int(blkno) * nd.BlockSize
	assert.Equal(t, data[off:off+nd.MaxData], replies[0].Payload)
	assert.Zero(t, replies[0].Op&nd.FlagError)

	for _, p := range replies[1:] {
		assert.NotZero(t, p.Op&nd.FlagError, "error persists for later fragments")
		assert.Equal(t, nd.ErrIO, p.Error)
		assert.Equal(t, make([]byte, nd.MaxData), p.Payload)
	}
	assert.Equal(t, nd.MaxData, rm.bytes["read"])
	assert.Equal(t, []string{"READ:EIO"}, rm.requests)
}

func TestReadIsIdempotent(t *testing.T) {
	e, fc, reg, _, _ := newTestEngine(t)

	serve(t, e, reg, request(nd.OpRead, 0, 5, 2500))
	first := len(fc.sent)
	serve(t, e, reg, request(nd.OpRead, 0, 5, 2500))

	fc.mu.Lock()
	defer fc.mu.Unlock()
	require.Equal(t, 2*first, len(fc.sent))
	for i := 0; i < first; i++ {
		assert.Equal(t, fc.sent[i].body, fc.sent[first+i].body)
	}
}

func TestReadTransportFailureStops(t *testing.T) {
	e, fc, reg, _, _ := newTestEngine(t)
	fc.writeErr = errors.New("no buffer space")

	req := request(nd.OpRead, 0, 0, 3*nd.MaxData)
	err := e.ServeRead(context.Background(), req, nd.Validate(req.Packet, reg))
	assert.ErrorIs(t, err, nd.ErrTransport)
}

func TestEngineWithoutMetrics(t *testing.T) {
	reg, _ := testRegistry(t)
	fc := newFakeConn()
	e := NewEngine(reg, NewConn(fc, 0), nil)

	serve(t, e, reg, request(nd.OpRead, 0, 0, 10))
	serve(t, e, reg, writeRequest(nd.OpWrite, 0, 0, 0, pattern(10)))
	assert.Len(t, fc.replies(t), 1)
}

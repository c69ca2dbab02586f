package nd

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/marmos91/ndd/internal/logger"
	"github.com/marmos91/ndd/internal/protocol/nd"
	"github.com/marmos91/ndd/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ServeRead answers a read request. errno is the outcome of validation;
// when it is not ErrNone every reply carries it with a zeroed payload.
//
// A size query gets a single reply holding the minor's block count. A
// ranged read is split into fragments of at most MaxData bytes, each with
// Caddr and Ccount describing its position in the request and the DONE
// flag set. Once a fragment fails to read, that fragment and all later
// ones carry the error, so the client always receives replies covering
// the whole byte count. A request rejected by validation is answered for
// at most MaxIO bytes.
//
// Only transport failures are returned.
func (e *Engine) ServeRead(ctx context.Context, req *Request, errno nd.Errno) error {
	start := time.Now()
	ctx, span := telemetry.StartNDSpan(ctx, telemetry.SpanNDRead, req.Minor, req.Seq, req.Blkno, req.Bcount,
		telemetry.ClientIP(req.Src.String()),
		attribute.Bool(telemetry.AttrNDSizeQuery, req.IsSizeQuery()),
	)
	ctx = withTrace(ctx)

	var (
		fragments int
		err       error
	)
	if req.IsSizeQuery() {
		errno, err = e.serveSize(ctx, req, errno)
		fragments = 1
	} else {
		errno, fragments, err = e.serveRange(ctx, req, errno)
	}

	span.SetAttributes(telemetry.NDFragments(fragments))
	if err != nil {
		span.RecordError(err)
	}
	telemetry.EndNDSpan(span, errno.String(), errno != nd.ErrNone || err != nil)

	e.recordRequest("READ", req.Minor, errno, start)
	e.recordFragments("READ", fragments)

	logger.DebugCtx(ctx, "READ served",
		logger.KeyBlkno, req.Blkno,
		logger.KeyBcount, req.Bcount,
		logger.KeyFragments, fragments,
		logger.KeyErrno, errno.String(),
		logger.DurationMs(logger.Duration(start)))

	return err
}

func (e *Engine) serveSize(ctx context.Context, req *Request, errno nd.Errno) (nd.Errno, error) {
	n := uint32(nd.SizeQueryLen)
	if errno != nd.ErrNone {
		n = min(req.Bcount, nd.MaxData)
	}

	payload := e.frag[:n]
	clear(payload)

	if errno == nd.ErrNone {
		m, _ := e.lookup(req)
		binary.BigEndian.PutUint32(payload, m.Blocks())
	} else {
		logger.DebugCtx(ctx, "Size query rejected", logger.KeyErrno, errno.String())
	}

	req.Op |= nd.FlagDone
	req.Caddr = 0
	req.Ccount = n
	req.Payload = payload

	return errno, e.replier.Reply(req, nd.PacketHeaderLen+int(n), errno)
}

func (e *Engine) serveRange(ctx context.Context, req *Request, errno nd.Errno) (nd.Errno, int, error) {
	m, _ := e.lookup(req)

	total := req.Bcount
	if errno != nd.ErrNone {
		total = min(total, nd.MaxIO)
	}

	var fragments, moved int
	for caddr := uint32(0); caddr < total; {
		n := min(total-caddr, nd.MaxData)
		payload := e.frag[:n]

		req.Op |= nd.FlagDone
		req.Caddr = caddr
		req.Ccount = n
		req.Payload = payload

		if errno == nd.ErrNone {
			got, err := m.ReadAt(payload, req.Offset())
			if got < int(n) {
				if err == nil || errors.Is(err, io.EOF) {
					err = fmt.Errorf("short read: %d of %d bytes: %w", got, n, io.ErrUnexpectedEOF)
				}
				errno = nd.ErrnoFromError(err)
				logger.WarnCtx(ctx, "Read failed",
					logger.Offset(req.Offset()),
					logger.KeyCcount, n,
					logger.KeyErrno, errno.String(),
					logger.Err(err))
			} else {
				moved += got
			}
		}
		caddr += n

		if err := e.replier.Reply(req, nd.PacketHeaderLen+int(n), errno); err != nil {
			e.recordBytes("read", req.Minor, moved)
			return errno, fragments, err
		}
		fragments++
	}

	e.recordBytes("read", req.Minor, moved)
	return errno, fragments, nil
}

package nd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/marmos91/ndd/internal/logger"
	"github.com/marmos91/ndd/internal/protocol/nd"
	"github.com/marmos91/ndd/internal/telemetry"
)

// ServeWrite answers a write request. errno is the outcome of validation.
//
// Without a prior error the first Ccount payload bytes are written at
// Blkno*BlockSize + Caddr. An acknowledgement is sent only when the
// client set the wait flag and the request was not malformed (ErrInvalid).
// The acknowledgement is a bare header with op WRITE|DONE|WAIT and Caddr
// advanced past the written bytes, so the client can match it to the
// fragment it sent.
//
// Only transport failures are returned.
func (e *Engine) ServeWrite(ctx context.Context, req *Request, errno nd.Errno) error {
	start := time.Now()
	ctx, span := telemetry.StartNDSpan(ctx, telemetry.SpanNDWrite, req.Minor, req.Seq, req.Blkno, req.Bcount,
		telemetry.ClientIP(req.Src.String()),
		telemetry.NDBytes(int(req.Ccount)),
	)
	ctx = withTrace(ctx)

	if errno == nd.ErrNone {
		errno = e.write(ctx, req)
	}

	var err error
	switch {
	case !req.Op.Wait():
		e.recordSuppressed("no_wait")
	case errno == nd.ErrInvalid:
		e.recordSuppressed("malformed")
		logger.DebugCtx(ctx, "Malformed WRITE not acknowledged",
			logger.KeyCcount, req.Ccount,
			logger.Bytes(len(req.Payload)))
	default:
		req.Op = nd.OpWrite | nd.FlagDone | nd.FlagWait
		req.Caddr += req.Ccount
		req.Payload = req.Payload[:0]
		err = e.replier.Reply(req, nd.PacketHeaderLen, errno)
		e.recordFragments("WRITE", 1)
	}

	if err != nil {
		span.RecordError(err)
	}
	telemetry.EndNDSpan(span, errno.String(), errno != nd.ErrNone || err != nil)
	e.recordRequest("WRITE", req.Minor, errno, start)

	logger.DebugCtx(ctx, "WRITE served",
		logger.KeyBlkno, req.Blkno,
		logger.KeyCaddr, req.Caddr,
		logger.KeyCcount, req.Ccount,
		logger.KeyErrno, errno.String(),
		logger.DurationMs(logger.Duration(start)))

	return err
}

func (e *Engine) write(ctx context.Context, req *Request) nd.Errno {
	m, _ := e.lookup(req)
	data := req.Payload[:req.Ccount]

	n, err := m.WriteAt(data, req.Offset())
	if n < len(data) {
		if err == nil {
			err = fmt.Errorf("short write: %d of %d bytes: %w", n, len(data), io.ErrShortWrite)
		}
		errno := nd.ErrnoFromError(err)
		logger.WarnCtx(ctx, "Write failed",
			logger.Offset(req.Offset()),
			logger.KeyCcount, req.Ccount,
			logger.KeyErrno, errno.String(),
			logger.Err(err))
		return errno
	}

	e.recordBytes("write", req.Minor, n)
	return nd.ErrNone
}

package logger

import "log/slog"

// Standard field keys. Use these so logs can be queried consistently.
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	KeyOp     = "op"
	KeyMinor  = "minor"
	KeySeq    = "seq"
	KeyBlkno  = "blkno"
	KeyBcount = "bcount"
	KeyCaddr  = "caddr"
	KeyCcount = "ccount"
	KeyErrno  = "errno"

	KeyClientIP = "client_ip"

	KeyOffset    = "offset"
	KeyBytes     = "bytes"
	KeyFragments = "fragments"

	KeyPath      = "path"
	KeyStoreType = "store_type"
	KeyMode      = "mode"
	KeySize      = "size"
	KeyBucket    = "bucket"
	KeyKey       = "key"

	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyPID        = "pid"
)

// Err returns an error attribute; a nil error yields an empty attribute
// that handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

func Minor(id uint8) slog.Attr {
	return slog.Int(KeyMinor, int(id))
}

func Offset(off int64) slog.Attr {
	return slog.Int64(KeyOffset, off)
}

func Bytes(n int) slog.Attr {
	return slog.Int(KeyBytes, n)
}

func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

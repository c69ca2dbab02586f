package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for ND spans.
const (
	AttrClientIP = "client.ip"

	AttrNDOp     = "nd.op"
	AttrNDMinor  = "nd.minor"
	AttrNDSeq    = "nd.seq"
	AttrNDBlkno  = "nd.blkno"
	AttrNDBcount = "nd.bcount"
	AttrNDErrno  = "nd.errno"

	AttrNDFragments = "nd.fragments"
	AttrNDBytes     = "nd.bytes"
	AttrNDSizeQuery = "nd.size_query"

	AttrStoreType = "store.type"
)

// Span names.
const (
	SpanNDRead  = "nd.READ"
	SpanNDWrite = "nd.WRITE"
)

func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

func NDMinor(id uint8) attribute.KeyValue {
	return attribute.Int(AttrNDMinor, int(id))
}

func NDErrno(name string) attribute.KeyValue {
	return attribute.String(AttrNDErrno, name)
}

func NDFragments(n int) attribute.KeyValue {
	return attribute.Int(AttrNDFragments, n)
}

func NDBytes(n int) attribute.KeyValue {
	return attribute.Int(AttrNDBytes, n)
}

// StartNDSpan starts a server span for one ND request.
func StartNDSpan(ctx context.Context, name string, minor uint8, seq, blkno, bcount uint32, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	base := []attribute.KeyValue{
		NDMinor(minor),
		attribute.Int64(AttrNDSeq, int64(seq)),
		attribute.Int64(AttrNDBlkno, int64(blkno)),
		attribute.Int64(AttrNDBcount, int64(bcount)),
	}
	return StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(append(base, attrs...)...),
	)
}

// EndNDSpan records the wire error code (if any) and ends the span.
func EndNDSpan(span trace.Span, errno string, failed bool) {
	span.SetAttributes(NDErrno(errno))
	if failed {
		span.SetStatus(codes.Error, errno)
	}
	span.End()
}

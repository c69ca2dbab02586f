package metrics

import "time"

// NDMetrics records ND server activity. A nil NDMetrics disables
// collection; use the package-level helpers or check for nil.
type NDMetrics interface {
	// RecordRequest records a served request: op is "READ" or "WRITE",
	// errno the wire error name ("OK" on success).
	RecordRequest(op string, minor uint8, errno string, duration time.Duration)

	// RecordBytes records payload bytes moved to or from a minor.
	// direction is "read" or "write".
	RecordBytes(direction string, minor uint8, bytes int)

	// RecordFragments records the reply datagrams sent for one request.
	RecordFragments(op string, n int)

	// RecordSuppressed counts write replies deliberately not sent.
	// reason is "no_wait" or "malformed".
	RecordSuppressed(reason string)

	// RecordDropped counts datagrams dropped before dispatch.
	// reason is "short", "unknown_op" or "reply".
	RecordDropped(reason string)
}

var newPrometheusNDMetrics func() NDMetrics

// RegisterNDMetricsConstructor is called by pkg/metrics/prometheus during
// package initialization. The indirection keeps this package free of the
// implementation.
func RegisterNDMetricsConstructor(constructor func() NDMetrics) {
	newPrometheusNDMetrics = constructor
}

// NewNDMetrics returns the Prometheus implementation, or nil when metrics
// are disabled or the implementation package is not linked in.
func NewNDMetrics() NDMetrics {
	if !IsEnabled() || newPrometheusNDMetrics == nil {
		return nil
	}
	return newPrometheusNDMetrics()
}

// Package prometheus implements the metrics interfaces with
// client_golang. Import it for side effects to enable the implementation:
//
//	import _ "github.com/marmos91/ndd/pkg/metrics/prometheus"
package prometheus

import (
	"strconv"
	"time"

	"github.com/marmos91/ndd/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterNDMetricsConstructor(NewNDMetrics)
}

type ndMetrics struct {
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	bytes      *prometheus.CounterVec
	fragments  *prometheus.HistogramVec
	suppressed *prometheus.CounterVec
	dropped    *prometheus.CounterVec
}

// NewNDMetrics creates ND collectors on the process registry. Returns nil
// when metrics are disabled.
func NewNDMetrics() metrics.NDMetrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}
	f := promauto.With(reg)

	return &ndMetrics{
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ndd_requests_total",
				Help: "ND requests served by op, minor and wire error",
			},
			[]string{"op", "minor", "errno"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "ndd_request_duration_milliseconds",
				Help: "Time to serve an ND request including all reply fragments",
				Buckets: []float64{
					0.05, // page cache hit
					0.1,
					0.5,
					1,
					5, // spinning disk seek
					10,
					50,
					100,
					500, // remote object store
				},
			},
			[]string{"op"},
		),
		bytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ndd_bytes_total",
				Help: "Payload bytes transferred by direction and minor",
			},
			[]string{"direction", "minor"},
		),
		fragments: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ndd_reply_fragments",
				Help:    "Reply datagrams sent per request",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 63},
			},
			[]string{"op"},
		),
		suppressed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ndd_replies_suppressed_total",
				Help: "Write replies not sent, by reason",
			},
			[]string{"reason"},
		),
		dropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ndd_datagrams_dropped_total",
				Help: "Inbound datagrams dropped before dispatch, by reason",
			},
			[]string{"reason"},
		),
	}
}

func minorLabel(id uint8) string {
	return strconv.Itoa(int(id))
}

func (m *ndMetrics) RecordRequest(op string, minor uint8, errno string, d time.Duration) {
	m.requests.WithLabelValues(op, minorLabel(minor), errno).Inc()
	m.duration.WithLabelValues(op).Observe(float64(d.Microseconds()) / 1000.0)
}

func (m *ndMetrics) RecordBytes(direction string, minor uint8, n int) {
	if n > 0 {
		m.bytes.WithLabelValues(direction, minorLabel(minor)).Add(float64(n))
	}
}

func (m *ndMetrics) RecordFragments(op string, n int) {
	m.fragments.WithLabelValues(op).Observe(float64(n))
}

func (m *ndMetrics) RecordSuppressed(reason string) {
	m.suppressed.WithLabelValues(reason).Inc()
}

func (m *ndMetrics) RecordDropped(reason string) {
	m.dropped.WithLabelValues(reason).Inc()
}

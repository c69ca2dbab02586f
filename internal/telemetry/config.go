package telemetry

// Config holds OpenTelemetry tracing configuration.
type Config struct {
	Enabled bool

	// ServiceName and ServiceVersion are reported as resource attributes.
	ServiceName    string
	ServiceVersion string

	// Endpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	Endpoint string

	// Insecure disables TLS to the collector.
	Insecure bool

	// SampleRate is the fraction of requests traced, 0.0 to 1.0.
	SampleRate float64
}

// DefaultConfig returns tracing disabled with local collector defaults.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "ndd",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}

package config

import (
	"strings"
	"time"

	"github.com/marmos91/ndd/internal/bytesize"
	"github.com/marmos91/ndd/internal/logger"
	"github.com/marmos91/ndd/pkg/api"
	"github.com/marmos91/ndd/pkg/minor"
)

// Default values applied to unset fields.
const (
	DefaultAPIPort         = api.DefaultPort
	DefaultBindAddress     = "0.0.0.0"
	DefaultProtocol        = 77
	DefaultPollInterval    = 500 * time.Millisecond
	DefaultLockFile        = "/var/lock/ndd.lock"
	DefaultShutdownTimeout = 10 * time.Second
)

// ApplyDefaults sets default values for any unspecified configuration
// fields and normalizes case-insensitive values.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit
// values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyAPIDefaults(&cfg.API)
	applyServerDefaults(&cfg.Server)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	for i := range cfg.Minors {
		applyMinorDefaults(&cfg.Minors[i])
	}
}

// applyLoggingDefaults sets logging defaults. Numeric verbosities are
// translated to level names.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if lvl, ok := logger.ParseLevel(cfg.Level); ok {
		cfg.Level = lvl.String()
	} else {
		cfg.Level = strings.ToUpper(cfg.Level)
	}

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{"cpu", "inuse_space"}
	}
}

// applyAPIDefaults sets API server defaults. Enabled stays nil (enabled)
// unless set.
func applyAPIDefaults(cfg *api.APIConfig) {
	cfg.ApplyDefaults()
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.BindAddress == "" {
		cfg.BindAddress = DefaultBindAddress
	}
	if cfg.Protocol == 0 {
		cfg.Protocol = DefaultProtocol
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.LockFile == "" {
		cfg.LockFile = DefaultLockFile
	}
}

// applyMinorDefaults normalizes type and mode. S3 minors default to RO,
// everything else to WR.
func applyMinorDefaults(cfg *MinorConfig) {
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))
	cfg.Mode = strings.ToUpper(strings.TrimSpace(cfg.Mode))

	if cfg.Mode == "" {
		if minor.Type(cfg.Type) == minor.TypeS3 {
			cfg.Mode = minor.ModeReadOnly.String()
		} else {
			cfg.Mode = minor.ModeReadWrite.String()
		}
	}
	if cfg.Mode == "RW" {
		cfg.Mode = minor.ModeReadWrite.String()
	}
}

// GetDefaultConfig returns a Config with all default values applied and a
// single 64 MiB in-memory minor, enough to try the server.
func GetDefaultConfig() *Config {
	enabled := true
	cfg := &Config{
		API: api.APIConfig{Enabled: &enabled},
		Minors: []MinorConfig{
			{
				ID:   0,
				Name: "scratch",
				Type: string(minor.TypeMemory),
				Mode: minor.ModeReadWrite.String(),
				Size: 64 * bytesize.MiB,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}

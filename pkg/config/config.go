package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/ndd/internal/bytesize"
	"github.com/marmos91/ndd/pkg/api"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variable overrides
// (NDD_LOGGING_LEVEL=DEBUG).
const EnvPrefix = "NDD"

// SystemConfigDir is searched after the per-user configuration directory.
const SystemConfigDir = "/etc/ndd"

// Config represents the ndd configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (NDD_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics controls Prometheus metrics collection. Metrics are served by
	// the API server on /metrics.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API configures the HTTP status API
	API api.APIConfig `mapstructure:"api" yaml:"api"`

	// Server configures the ND endpoint
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Minors lists the backing stores exposed as ND minors
	Minors []MinorConfig `mapstructure:"minors" validate:"required,min=1,max=4,dive" yaml:"minors"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR, or a numeric verbosity 0-9
	// (0 errors only, 1 warnings, 2-3 info, 4+ debug). Normalized to the
	// level name by ApplyDefaults.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint (host:port)
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure disables TLS to the collector
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Default: ["cpu", "inuse_space"]
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig controls Prometheus metrics. When Enabled is false no
// metrics are collected.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// ServerConfig configures the raw IP endpoint.
type ServerConfig struct {
	// BindAddress is the local IPv4 address to receive on.
	// Default: "0.0.0.0" (all interfaces)
	BindAddress string `mapstructure:"bind_address" validate:"required,ipv4" yaml:"bind_address"`

	// Protocol is the IP protocol number carrying ND datagrams.
	// Default: 77
	Protocol int `mapstructure:"protocol" validate:"min=1,max=254" yaml:"protocol"`

	// PollInterval bounds how long a receive blocks before the server
	// checks for shutdown.
	// Default: 500ms
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0" yaml:"poll_interval"`

	// LockFile guards against two servers on one host. It holds the PID of
	// the running server.
	// Default: /var/lock/ndd.lock
	LockFile string `mapstructure:"lock_file" yaml:"lock_file"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (NDD_*)
//  2. Configuration file
//  3. Default values
//
// An empty configPath searches $XDG_CONFIG_HOME/ndd/config.yaml, then
// /etc/ndd/config.yaml. When no file is found the defaults are returned.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration, requiring the file to exist. The error
// explains how to create one.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		path, ok := findDefaultConfig()
		if !ok {
			return nil, fmt.Errorf("no configuration file found at %s or %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  ndd config init\n\n"+
				"Or specify a custom config file:\n"+
				"  ndd <command> --config /path/to/config.yaml",
				GetDefaultConfigPath(), filepath.Join(SystemConfigDir, "config.yaml"))
		}
		configPath = path
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  ndd config init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML, creating parent directories.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: minors may carry S3 credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	v.AddConfigPath(getConfigDir())
	v.AddConfigPath(SystemConfigDir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reports whether a configuration file was found and read.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook decodes "64Mi", "1GB" or plain numbers into a
// bytesize.ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			if v < 0 {
				return nil, fmt.Errorf("negative byte size %d", v)
			}
			return bytesize.ByteSize(v), nil
		case int64:
			if v < 0 {
				return nil, fmt.Errorf("negative byte size %d", v)
			}
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML numbers may decode as float64
			if v < 0 {
				return nil, fmt.Errorf("negative byte size %v", v)
			}
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook decodes "500ms", "10s" into a time.Duration. Raw
// integers are nanoseconds.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/ndd, ~/.config/ndd, or "." when
// the home directory is unknown.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "ndd")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "ndd")
}

func findDefaultConfig() (string, bool) {
	for _, p := range []string{GetDefaultConfigPath(), filepath.Join(SystemConfigDir, "config.yaml")} {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// GetDefaultConfigPath returns the per-user configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists in a default location.
func DefaultConfigExists() bool {
	_, ok := findDefaultConfig()
	return ok
}

// GetConfigDir returns the per-user configuration directory.
func GetConfigDir() string {
	return getConfigDir()
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/marmos91/ndd/internal/logger"
	"github.com/marmos91/ndd/internal/pidlock"
	"github.com/marmos91/ndd/internal/telemetry"
	"github.com/marmos91/ndd/pkg/adapter"
	"github.com/marmos91/ndd/pkg/adapter/nd"
	"github.com/marmos91/ndd/pkg/api"
	"github.com/marmos91/ndd/pkg/api/handlers"
	"github.com/marmos91/ndd/pkg/config"
	"github.com/marmos91/ndd/pkg/metrics"
	"github.com/spf13/cobra"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/ndd/pkg/metrics/prometheus"
)

var (
	foreground bool
	lockFile   string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ND server",
	Long: `Start the ND server with the specified configuration.

By default, the server runs in the background (daemon mode). Use --foreground
to run in the foreground for debugging or under a process supervisor.

The server opens a raw IP socket and needs root or CAP_NET_RAW.

Examples:
  # Start in background (default)
  ndd start

  # Start in foreground
  ndd start --foreground

  # Start with custom config file
  ndd start --config /etc/ndd/config.yaml

  # Start with environment variable overrides
  NDD_LOGGING_LEVEL=DEBUG ndd start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&lockFile, "lock-file", "", "Path to the lock file (default: server.lock_file from config)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/ndd/ndd.log)")
}

// adapterWithStatus is a protocol adapter the status API can report on.
type adapterWithStatus interface {
	adapter.Adapter
	handlers.ServerStatus
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if lockFile != "" {
		cfg.Server.LockFile = lockFile
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	lock, err := pidlock.Acquire(cfg.Server.LockFile)
	if err != nil {
		if errors.Is(err, pidlock.ErrLocked) {
			return fmt.Errorf("%w\nUse 'ndd stop' to stop the running instance", err)
		}
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("Failed to release lock file", "path", lock.Path(), logger.Err(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "ndd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "ndd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	logger.Info("ndd starting", "version", Version, "commit", Commit)
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled", "path", "/metrics")
	} else {
		logger.Info("Metrics collection disabled")
	}

	registry, err := config.InitializeRegistry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open minors: %w", err)
	}
	defer func() {
		if err := registry.Close(); err != nil {
			logger.Error("Failed to close minors", logger.Err(err))
		}
	}()

	var server adapterWithStatus = nd.New(nd.Config{
		BindAddress:  cfg.Server.BindAddress,
		Protocol:     cfg.Server.Protocol,
		PollInterval: cfg.Server.PollInterval,
	}, registry, metrics.NewNDMetrics())

	apiDone := make(chan error, 1)
	apiCtx, cancelAPI := context.WithCancel(context.Background())
	defer cancelAPI()
	if cfg.API.IsEnabled() {
		apiServer := api.NewServer(cfg.API, registry, server, Version)
		go func() { apiDone <- apiServer.Start(apiCtx) }()
	} else {
		logger.Info("API server disabled")
	}

	serverDone := make(chan error, 1)
	go func() { serverDone <- server.Serve(ctx) }()

	logger.Info("Server is running. Press Ctrl+C to stop.",
		"adapter", server.Protocol(),
		"bind", cfg.Server.BindAddress,
		"protocol", cfg.Server.Protocol,
		"minors", registry.Len())

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		serveErr = stopServer(server, serverDone, cfg.ShutdownTimeout)

	case serveErr = <-serverDone:
	case err := <-apiDone:
		logger.Error("API server error", logger.Err(err))
		serveErr = stopServer(server, serverDone, cfg.ShutdownTimeout)
		if serveErr == nil {
			serveErr = err
		}
	}

	cancelAPI()

	if serveErr != nil {
		logger.Error("Server error", logger.Err(serveErr))
		return serveErr
	}
	logger.Info("Server stopped gracefully",
		"served", server.Served(),
		"dropped", server.Dropped())
	return nil
}

// stopServer stops server and waits for its Serve to return, giving up
// after timeout.
func stopServer(server adapter.Adapter, serverDone <-chan error, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logger.Warn("ND server did not stop in time", logger.Err(err))
	}

	select {
	case err := <-serverDone:
		return err
	case <-ctx.Done():
	}

	select {
	case err := <-serverDone:
		return err
	default:
		return fmt.Errorf("%s server did not stop within %s", server.Protocol(), timeout)
	}
}

package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/marmos91/ndd/internal/logger"
	"github.com/marmos91/ndd/pkg/config"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// GetDefaultStateDir returns $XDG_STATE_HOME/ndd (~/.local/state/ndd).
func GetDefaultStateDir() string {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "ndd")
		}
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(stateDir, "ndd")
}

// GetDefaultLogFile returns the log file used in daemon mode.
func GetDefaultLogFile() string {
	return filepath.Join(GetDefaultStateDir(), "ndd.log")
}

// getConfigSource describes where the configuration was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// lockFilePath resolves the lock file: flag, then configuration, then the
// built-in default. The configuration is optional here.
func lockFilePath(flag string) string {
	if flag != "" {
		return flag
	}
	if cfg, err := config.Load(GetConfigFile()); err == nil && cfg.Server.LockFile != "" {
		return cfg.Server.LockFile
	}
	return config.DefaultLockFile
}

// apiPort resolves the status API port: flag, then configuration, then
// the built-in default.
func apiPort(flag int) int {
	if flag > 0 {
		return flag
	}
	if cfg, err := config.Load(GetConfigFile()); err == nil && cfg.API.Port > 0 {
		return cfg.API.Port
	}
	return config.DefaultAPIPort
}

package commands

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/marmos91/ndd/internal/pidlock"
)

// startDaemon re-executes ndd in the foreground in a new session, with
// output redirected to the log file.
func startDaemon() error {
	lockPath := lockFilePath(lockFile)
	if pid, running := pidlock.Running(lockPath); running {
		return fmt.Errorf("ndd is already running (PID %d)\nUse 'ndd stop' to stop the running instance", pid)
	}

	logPath := logFile
	if logPath == "" {
		logPath = GetDefaultLogFile()
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	daemonArgs := []string{"start", "--foreground", "--lock-file", lockPath}
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}

	cmd := exec.Command(executable, daemonArgs...)

	logFileHandle, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = logFileHandle.Close() }()

	cmd.Stdout = logFileHandle
	cmd.Stderr = logFileHandle
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Printf("ndd started in background (PID %d)\n", cmd.Process.Pid)
	fmt.Printf("  Lock file: %s\n", lockPath)
	fmt.Printf("  Log file:  %s\n", logPath)
	fmt.Println("\nUse 'ndd stop' to stop the server")
	fmt.Println("Use 'ndd status' to check server status")

	return nil
}

package commands

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/marmos91/ndd/internal/pidlock"
	"github.com/spf13/cobra"
)

var (
	stopLockFile string
	stopForce    bool
	stopTimeout  time.Duration
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the ND server",
	Long: `Stop a running ND server.

The PID is read from the lock file. By default SIGTERM is sent and the
command waits for the server to release the lock. Use --force for
immediate termination with SIGKILL.

Examples:
  # Stop server
  ndd stop

  # Force stop (SIGKILL)
  ndd stop --force`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopLockFile, "lock-file", "", "Path to the lock file (default: server.lock_file from config)")
	stopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "Force kill (SIGKILL) instead of graceful shutdown (SIGTERM)")
	stopCmd.Flags().DurationVar(&stopTimeout, "timeout", 15*time.Second, "How long to wait for the server to exit")
}

func runStop(cmd *cobra.Command, args []string) error {
	lockPath := lockFilePath(stopLockFile)

	pid, running := pidlock.Running(lockPath)
	if !running {
		if _, err := pidlock.ReadPID(lockPath); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("lock file not found: %s\n\nIs the server running?", lockPath)
		}
		fmt.Println("Server already stopped")
		return nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	sig, name := syscall.SIGTERM, "SIGTERM"
	if stopForce {
		sig, name = syscall.SIGKILL, "SIGKILL"
	}
	fmt.Printf("Sending %s to process %d...\n", name, pid)

	if err := process.Signal(sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			fmt.Println("Server already stopped")
			return nil
		}
		return fmt.Errorf("failed to send signal: %w", err)
	}

	deadline := time.Now().Add(stopTimeout)
	for time.Now().Before(deadline) {
		if _, running := pidlock.Running(lockPath); !running {
			fmt.Println("Server stopped")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server (PID %d) still running after %s; retry with --force", pid, stopTimeout)
}

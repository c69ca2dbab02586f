package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/marmos91/ndd/internal/cli/health"
	"github.com/marmos91/ndd/internal/cli/output"
	"github.com/marmos91/ndd/internal/cli/timeutil"
	"github.com/marmos91/ndd/internal/pidlock"
	"github.com/spf13/cobra"
)

var (
	statusOutput   string
	statusLockFile string
	statusAPIPort  int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Display the current status of the ND server.

The process is found through the lock file; request counters and uptime
come from the status API readiness probe.

Examples:
  # Check status
  ndd status

  # Check status with custom API port
  ndd status --api-port 9077

  # Output as JSON
  ndd status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusLockFile, "lock-file", "", "Path to the lock file (default: server.lock_file from config)")
	statusCmd.Flags().IntVar(&statusAPIPort, "api-port", 0, "API server port (default: api.port from config)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// ServerStatus is the result of the status command.
type ServerStatus struct {
	Running   bool      `json:"running" yaml:"running"`
	PID       int       `json:"pid,omitempty" yaml:"pid,omitempty"`
	Healthy   bool      `json:"healthy" yaml:"healthy"`
	Message   string    `json:"message" yaml:"message"`
	Minors    int       `json:"minors,omitempty" yaml:"minors,omitempty"`
	Served    uint64    `json:"served,omitempty" yaml:"served,omitempty"`
	Dropped   uint64    `json:"dropped,omitempty" yaml:"dropped,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	status := ServerStatus{Message: "Server is not running"}

	if pid, running := pidlock.Running(lockFilePath(statusLockFile)); running {
		status.Running = true
		status.PID = pid
	}

	ctx, cancel := context.WithTimeout(context.Background(), health.DefaultTimeout)
	defer cancel()

	client := health.NewClient(health.LocalURL(apiPort(statusAPIPort)))
	ready, err := client.Ready(ctx)
	switch {
	case err == nil:
		status.Running = true
		status.Healthy = ready.Ready()
		status.Minors = ready.Data.Minors
		status.Served = ready.Data.Served
		status.Dropped = ready.Data.Dropped
		status.StartedAt = ready.Data.StartedAt
		if status.Healthy {
			status.Message = "Server is running and healthy"
		} else {
			status.Message = fmt.Sprintf("Server is running but not ready: %s", ready.Error)
		}
	case status.Running:
		status.Message = "Server process exists but the status API did not answer"
	}

	printer := output.StdoutPrinter(format)
	if format != output.FormatTable {
		return printer.Print(status)
	}
	return printStatusTable(printer, status)
}

func printStatusTable(p *output.Printer, status ServerStatus) error {
	_, _ = fmt.Fprintln(p.Writer(), "ndd server status")
	_, _ = fmt.Fprintln(p.Writer())

	switch {
	case !status.Running:
		p.Status(false, "○ Stopped")
	case status.Healthy:
		p.Status(true, "● Running")
	default:
		p.Status(false, "● Running (not ready)")
	}

	pairs := [][2]string{}
	if status.PID > 0 {
		pairs = append(pairs, [2]string{"PID", strconv.Itoa(status.PID)})
	}
	if !status.StartedAt.IsZero() {
		pairs = append(pairs,
			[2]string{"Started", timeutil.FormatTime(status.StartedAt)},
			[2]string{"Uptime", timeutil.FormatUptime(time.Since(status.StartedAt))},
			[2]string{"Minors", strconv.Itoa(status.Minors)},
			[2]string{"Served", strconv.FormatUint(status.Served, 10)},
			[2]string{"Dropped", strconv.FormatUint(status.Dropped, 10)},
		)
	}
	if len(pairs) > 0 {
		if err := output.KeyValues(p.Writer(), pairs); err != nil {
			return err
		}
	}

	_, _ = fmt.Fprintln(p.Writer())
	_, _ = fmt.Fprintln(p.Writer(), status.Message)
	return nil
}


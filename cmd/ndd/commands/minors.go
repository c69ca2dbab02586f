package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/marmos91/ndd/internal/bytesize"
	"github.com/marmos91/ndd/internal/cli/health"
	"github.com/marmos91/ndd/internal/cli/output"
	"github.com/marmos91/ndd/pkg/api/handlers"
	"github.com/marmos91/ndd/pkg/config"
	"github.com/marmos91/ndd/pkg/minor"
	"github.com/spf13/cobra"
)

var (
	minorsOutput     string
	minorsAPIPort    int
	minorsConfigured bool
)

var minorsCmd = &cobra.Command{
	Use:   "minors",
	Short: "List exposed minors",
	Long: `List the minors exposed by the running server.

With --configured the configuration file is read instead and the server
is not contacted.

Examples:
  ndd minors
  ndd minors --output json
  ndd minors --configured`,
	RunE: runMinors,
}

func init() {
	minorsCmd.Flags().IntVar(&minorsAPIPort, "api-port", 0, "API server port (default: api.port from config)")
	minorsCmd.Flags().StringVarP(&minorsOutput, "output", "o", "table", "Output format (table|json|yaml)")
	minorsCmd.Flags().BoolVar(&minorsConfigured, "configured", false, "List minors from the configuration file")
}

type minorList []handlers.MinorInfo

func (l minorList) Headers() []string {
	return []string{"Minor", "Device", "Type", "Mode", "Size", "Blocks", "Name"}
}

func (l minorList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, m := range l {
		rows = append(rows, []string{
			strconv.Itoa(int(m.ID)),
			m.Device,
			m.Type,
			m.Mode,
			bytesize.ByteSize(m.Size).String(),
			strconv.FormatUint(uint64(m.Blocks), 10),
			m.Name,
		})
	}
	return rows
}

func runMinors(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(minorsOutput)
	if err != nil {
		return err
	}

	var list minorList
	if minorsConfigured {
		list, err = configuredMinors()
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), health.DefaultTimeout)
		defer cancel()
		list, err = health.NewClient(health.LocalURL(apiPort(minorsAPIPort))).Minors(ctx)
		if err != nil {
			err = fmt.Errorf("%w\n\nIs the server running? Use --configured to list configured minors", err)
		}
	}
	if err != nil {
		return err
	}

	return output.NewPrinter(cmd.OutOrStdout(), format, false).Print(list)
}

// configuredMinors lists the configuration without opening any store.
// Sizes of file, badger and S3 minors are only known once opened; they
// are reported as configured.
func configuredMinors() (minorList, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, err
	}

	list := make(minorList, 0, len(cfg.Minors))
	for _, mc := range cfg.Minors {
		list = append(list, handlers.MinorInfo{
			ID:     uint8(mc.ID),
			Device: fmt.Sprintf("nd%d", mc.ID),
			Name:   mc.Label(),
			Type:   mc.Type,
			Mode:   mc.Mode,
			Size:   int64(mc.Size),
			Blocks: uint32(int64(mc.Size) / minor.BlockSize),
		})
	}
	return list, nil
}

package config

import (
	"github.com/marmos91/ndd/internal/cli/output"
	"github.com/marmos91/ndd/pkg/config"
	"github.com/spf13/cobra"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective ndd configuration, with defaults applied.

Examples:
  # Show as YAML
  ndd config show

  # Show as JSON
  ndd config show --output json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(configPath(cmd))
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		format = output.FormatYAML
	}

	// Credentials are not echoed.
	for i := range cfg.Minors {
		if cfg.Minors[i].S3.SecretAccessKey != "" {
			cfg.Minors[i].S3.SecretAccessKey = "********"
		}
	}

	return output.NewPrinter(cmd.OutOrStdout(), format, false).Print(cfg)
}

package config

import (
	"fmt"

	"github.com/marmos91/ndd/pkg/config"
	"github.com/marmos91/ndd/pkg/minor"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the ndd configuration file.

Checks for syntax errors, missing required fields, and invalid values.
Stores are not opened.

Examples:
  # Validate default config
  ndd config validate

  # Validate specific config file
  ndd config validate --config /etc/ndd/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)

	cfg, err := config.MustLoad(path)
	if err != nil {
		return err
	}

	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	var warnings []string
	if cfg.Server.BindAddress == config.DefaultBindAddress {
		warnings = append(warnings, "server receives on all interfaces (bind_address 0.0.0.0)")
	}
	for _, mc := range cfg.Minors {
		if minor.Type(mc.Type) == minor.TypeMemory {
			warnings = append(warnings, fmt.Sprintf("minor %d is a memory disk; its contents are lost on restart", mc.ID))
		}
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", path)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Bind address:    %s\n", cfg.Server.BindAddress)
	_, _ = fmt.Fprintf(out, "  IP protocol:     %d\n", cfg.Server.Protocol)
	_, _ = fmt.Fprintf(out, "  Minors:          %d\n", len(cfg.Minors))
	_, _ = fmt.Fprintf(out, "  API port:        %d\n", cfg.API.Port)
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)

	return nil
}

package config

import (
	"fmt"

	"github.com/marmos91/ndd/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a sample configuration file",
	Long: `Create a sample ndd configuration file.

By default the file is created at $XDG_CONFIG_HOME/ndd/config.yaml.
Use --config to choose another path.

Examples:
  # Initialize with default location
  ndd config init

  # Initialize the system-wide configuration
  sudo ndd config init --config /etc/ndd/config.yaml

  # Overwrite an existing file
  ndd config init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)

	var err error
	if path != "" {
		err = config.InitConfigToPath(path, initForce)
	} else {
		path, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", path)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Edit the minors section to point at your disks")
	_, _ = fmt.Fprintf(out, "  2. Check it with: ndd config validate --config %s\n", path)
	_, _ = fmt.Fprintln(out, "  3. Start the server with: sudo ndd start")
	return nil
}

package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/esembed/pkg/bundle"
	"github.com/marmos91/esembed/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration file with environment overrides applied and check
it for syntax errors, missing required fields and invalid values.

Examples:
  esembed config validate
  esembed config validate --config /etc/esembed/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	var warnings []string
	for _, b := range []string{cfg.Bundles.Runtime, cfg.Bundles.App} {
		if bundle.IsS3URI(b) {
			if _, _, err := bundle.ParseS3URI(b); err != nil {
				warnings = append(warnings, err.Error())
			}
		}
	}
	if cfg.Server.HeapSize == "" {
		warnings = append(warnings, "server.heap_size not set, the server's own default applies")
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

	_, _ = fmt.Fprintln(out, "\nConfiguration summary:")
	_, _ = fmt.Fprintf(out, "  Runtime bundle: %s\n", cfg.Bundles.Runtime)
	_, _ = fmt.Fprintf(out, "  App bundle:     %s\n", cfg.Bundles.App)
	_, _ = fmt.Fprintf(out, "  Plugins:        %d\n", len(cfg.Server.Plugins))
	_, _ = fmt.Fprintf(out, "  Log level:      %s\n", cfg.Logging.Level)
	return nil
}

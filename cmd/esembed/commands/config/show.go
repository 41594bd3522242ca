package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/esembed/internal/cli/output"
	"github.com/marmos91/esembed/pkg/config"
)

var showFormat string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults and environment overrides.

Examples:
  esembed config show
  ESEMBED_SERVER_PORT=9200 esembed config show -o json`,
	Args: cobra.NoArgs,
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVarP(&showFormat, "output", "o", "yaml", "output format: yaml, json")
}

func runShow(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(showFormat)
	if err != nil {
		return err
	}
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return err
	}
	if cfg.Bundles.S3.SecretAccessKey != "" {
		cfg.Bundles.S3.SecretAccessKey = "********"
	}
	if format == output.FormatTable {
		format = output.FormatYAML
	}
	return output.Print(cmd.OutOrStdout(), format, cfg)
}

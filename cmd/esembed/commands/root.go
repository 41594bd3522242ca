// Package commands implements the esembed CLI.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/esembed/cmd/esembed/commands/config"
	"github.com/marmos91/esembed/internal/logger"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "esembed",
	Short: "Run an embedded search server from packaged bundles",
	Long: `esembed extracts a bundled Java runtime and search server into a private
work directory, launches the server on free ports, waits until the cluster
is healthy and installs the configured plugins.

It also packs, lists and extracts the bundle archives it consumes.

Use "esembed [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// "run" reconfigures from the config file; the rest only log to stderr.
		return logger.Init(logger.Config{Level: logLevel, Format: logFormat, Output: "stderr"})
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/esembed/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: DEBUG, INFO, WARN, ERROR")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text, json")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(config.Cmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

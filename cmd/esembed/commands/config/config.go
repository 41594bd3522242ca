// Package config implements the "esembed config" subcommands.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent of the config subcommands.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the esembed configuration file",
}

func init() {
	Cmd.AddCommand(initCmd)
	Cmd.AddCommand(validateCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(schemaCmd)
}

// configPath returns the --config flag inherited from the root command.
func configPath(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("config")
	return p
}

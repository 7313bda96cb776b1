package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Max-Kushnir/playlister/internal/config"
)

// configCmd groups configuration subcommands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage playlister configuration",
	Long: `Read and write ~/.config/playlister/config.yaml.

Every key can also be set through the environment with the PLAYLISTER_
prefix, dots replaced by underscores (for example PLAYLISTER_CATALOG_BASE_URL).`,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: fmt.Sprintf(`Set a single configuration value, keeping the others.

Known keys:
  %s`, strings.Join(config.Keys(), "\n  ")),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Set(args[0], args[1]); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s saved to %s\n", args[0], config.GetConfigFile())
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.GetConfigFile())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}

// Package cli implements the quotagate-admin command-line tool.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree. newRuntime is called lazily by each
// subcommand so flag parsing errors never touch the counter store.
// NewRootCmd 构建命令树。
func NewRootCmd(newRuntime RuntimeFactory) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "quotagate-admin",
		Short: "A CLI tool for administering the quotagate admission service.",
		Long: `quotagate-admin inspects and maintains the quota policy table and the
usage counters shared by every quotagate instance.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")

	open := func(cmd *cobra.Command) (*Runtime, error) {
		return newRuntime(cmd.Context(), configPath)
	}

	rootCmd.AddCommand(
		newPoliciesCmd(open),
		newUsageCmd(open),
		newCheckCmd(open),
		newPruneCmd(open),
	)
	return rootCmd
}

// Execute is the main entry point for the CLI application.
// Execute 是 CLI 应用程序的主入口点。
func Execute() {
	if err := NewRootCmd(DefaultRuntime).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

//Personal.AI order the ending

/*
Copyright © 2026 Deutsche Telekom AG
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/telekom/rbac-evaluator/internal/system"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Print(system.PrettyInfo())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Package commands implements the extdev subcommands.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version, buildDate, gitCommit string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display extdev version and build information.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "extdev v%s\n", version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Build date: %s\n", buildDate)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Git commit: %s\n", gitCommit)
		},
	}
}

// Package cli provides the command-line interface for extdev.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/extdev/internal/cli/commands"
	"github.com/leapstack-labs/extdev/internal/cli/config"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "extdev",
		Short: "extdev - Extension Development Orchestrator",
		Long: `extdev keeps your app extensions continuously built and synced while you work.

It discovers extension units under your project, bundles them with esbuild,
and in dev mode watches their sources: code changes trigger cancellable
rebuilds, successful builds are pushed to each extension's remote draft
slot, and locale or configuration changes sync directly without a rebuild.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := newLogger(cmd, cfg)
			ctx := config.IntoContext(cmd.Context(), cfg)
			ctx = config.WithLogger(ctx, logger)
			cmd.SetContext(ctx)

			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					fmt.Fprintf(os.Stderr, "Using config file: %s\n", configFile)
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Extension development orchestrator
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./extdev.yaml)")
	rootCmd.PersistentFlags().String("extensions-dir", "", "Path to the extensions directory")
	rootCmd.PersistentFlags().String("api-base-url", "", "Extension API base URL")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text|json)")

	// Register completion for log-format flag
	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version, BuildDate, GitCommit))
	rootCmd.AddCommand(commands.NewDevCommand())
	rootCmd.AddCommand(commands.NewBuildCommand())
	rootCmd.AddCommand(commands.NewListCommand())
	rootCmd.AddCommand(commands.NewInitCommand())

	return rootCmd
}

// newLogger builds the CLI logger from config.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	} else {
		handler = slog.NewTextHandler(cmd.ErrOrStderr(), opts)
	}
	return slog.New(handler)
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

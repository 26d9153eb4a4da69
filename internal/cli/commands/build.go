package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/extdev/internal/bundler"
	"github.com/leapstack-labs/extdev/internal/extension"
)

// buildConcurrency caps parallel one-shot builds.
const buildConcurrency = 4

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	var minify bool

	cmd := &cobra.Command{
		Use:   "build [extension...]",
		Short: "Build extensions once",
		Long: `Build every extension (or only the named ones) a single time.

Exits non-zero if any extension fails to build.`,
		Example: `  # Build all extensions
  extdev build

  # Build one extension, minified
  extdev build product-badge --minify`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig(cmd)
			logger := getLogger(cmd)

			units, err := discoverUnits(cfg, logger)
			if err != nil {
				return err
			}
			units, err = selectUnits(units, args)
			if err != nil {
				return err
			}

			invoker := newInvoker(minify)
			failed := buildAll(cmd.Context(), invoker, units, logger)
			if failed > 0 {
				return fmt.Errorf("%d extension(s) failed to build", failed)
			}
			logger.Info("all extensions built", "count", len(units))
			return nil
		},
	}

	cmd.Flags().BoolVar(&minify, "minify", false, "Minify build output")
	return cmd
}

// buildAll builds every unit with bounded parallelism and returns the
// number of failures. Each unit's errors are logged with its identity.
func buildAll(ctx context.Context, invoker bundler.Invoker, units []*extension.Unit, logger *slog.Logger) int {
	var (
		mu     sync.Mutex
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(buildConcurrency)
	for _, unit := range units {
		unit := unit
		g.Go(func() error {
			result := invoker.Build(gctx, unit)
			if result.OK() {
				logger.Info("built", "extension", unit.Handle)
				return nil
			}
			logger.Error("build failed", "extension", unit.Handle, "errors", len(result.Errors))
			for _, detail := range result.Errors {
				logger.Error("build error", "extension", unit.Handle, "detail", detail)
			}
			mu.Lock()
			failed++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return failed
}

package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/extdev/internal/devserver"
	"github.com/leapstack-labs/extdev/internal/watch"
)

// NewDevCommand creates the dev command.
func NewDevCommand() *cobra.Command {
	var statusPort int

	cmd := &cobra.Command{
		Use:   "dev [extension...]",
		Short: "Watch extensions and sync drafts on change",
		Long: `Start the development loop for every extension (or only the named ones).

Each extension is built once up front, then watched: code changes trigger
a rebuild that supersedes any build still in flight, successful builds of
draftable extensions are pushed to their remote draft slot, and locale or
configuration changes sync directly without rebuilding. One extension's
failure never stops the others.`,
		Example: `  # Watch all extensions
  extdev dev

  # Watch selected extensions with the status API on port 8787
  extdev dev product-badge checkout-banner --status-port 8787`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDev(cmd, args, statusPort)
		},
	}

	cmd.Flags().IntVar(&statusPort, "status-port", 0, "Serve the dev status API on this port (0 = off)")
	return cmd
}

func runDev(cmd *cobra.Command, args []string, statusPort int) error {
	cfg := getConfig(cmd)
	logger := getLogger(cmd)

	if statusPort == 0 {
		statusPort = cfg.StatusPort
	}

	units, err := discoverUnits(cfg, logger)
	if err != nil {
		return err
	}
	units, err = selectUnits(units, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	invoker := newInvoker(false)
	client := newDraftClient(cfg, logger)

	// Initial build pass. Failures are reported per unit and do not
	// stop the watch loop; the next change retries naturally.
	if failed := buildAll(ctx, invoker, units, logger); failed > 0 {
		logger.Warn("initial build finished with failures", "failed", failed)
	}
	if err := ctx.Err(); err != nil {
		return nil
	}

	var statusSrv *devserver.Server
	orch := watch.New(watch.Config{
		Invoker: invoker,
		Client:  client,
		Logger:  logger,
		OnStatus: func(status watch.Status) {
			if statusSrv != nil {
				statusSrv.Notify(status)
			}
		},
	})

	if statusPort != 0 {
		statusSrv = devserver.NewServer(devserver.Config{
			Port:     statusPort,
			Statuses: orch.Statuses,
			Logger:   logger,
		})
		go func() {
			if err := statusSrv.Serve(ctx); err != nil {
				logger.Error("status server stopped", "error", err)
			}
		}()
	}

	handle, err := orch.StartAll(ctx, units)
	if err != nil {
		return fmt.Errorf("start watching: %w", err)
	}

	logger.Info("watching for changes", "extensions", len(units))
	fmt.Fprintln(cmd.ErrOrStderr(), "Press Ctrl+C to stop")

	<-ctx.Done()

	logger.Info("shutting down")
	handle.Close()
	handle.Wait()
	return nil
}

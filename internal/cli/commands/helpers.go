package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/extdev/internal/bundler"
	"github.com/leapstack-labs/extdev/internal/cli/config"
	"github.com/leapstack-labs/extdev/internal/draft"
	"github.com/leapstack-labs/extdev/internal/extension"
)

// getConfig retrieves the loaded config from the command context.
func getConfig(cmd *cobra.Command) *config.Config {
	return config.FromContext(cmd.Context())
}

// getLogger retrieves the CLI logger from the command context.
func getLogger(cmd *cobra.Command) *slog.Logger {
	return config.GetLogger(cmd.Context())
}

// discoverUnits validates the extensions directory and loads every
// unit in it.
func discoverUnits(cfg *config.Config, logger *slog.Logger) ([]*extension.Unit, error) {
	if err := cfg.ValidateDirectories(); err != nil {
		return nil, err
	}
	units, err := extension.Discover(cfg.ExtensionsDir, logger)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("no extensions found in %s", cfg.ExtensionsDir)
	}
	return units, nil
}

// selectUnits filters units by handle. An empty selection means all.
func selectUnits(units []*extension.Unit, handles []string) ([]*extension.Unit, error) {
	if len(handles) == 0 {
		return units, nil
	}
	byHandle := make(map[string]*extension.Unit, len(units))
	for _, u := range units {
		byHandle[u.Handle] = u
	}
	selected := make([]*extension.Unit, 0, len(handles))
	for _, h := range handles {
		u, ok := byHandle[h]
		if !ok {
			return nil, fmt.Errorf("unknown extension %q", h)
		}
		selected = append(selected, u)
	}
	return selected, nil
}

// newInvoker builds the dev-mode bundler invoker.
func newInvoker(minify bool) bundler.Invoker {
	return &bundler.ESBuild{Minify: minify, Sourcemap: !minify}
}

// newDraftClient builds the remote sync client from config.
func newDraftClient(cfg *config.Config, logger *slog.Logger) draft.Client {
	return draft.NewHTTPClient(draft.HTTPConfig{
		BaseURL: cfg.APIBaseURL,
		Token:   cfg.APIToken,
		Logger:  logger,
	})
}

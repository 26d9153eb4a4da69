package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/extdev/internal/extension"
)

const projectConfigTemplate = `# extdev project configuration
extensions_dir: extensions
# api_base_url: https://extensions.leapstack.dev/api/v1
# Supply the API token via the EXTDEV_API_TOKEN environment variable.
`

const entryTemplate = `export default function main() {
  // Extension entry point.
}
`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var extType string
	var force bool

	cmd := &cobra.Command{
		Use:   "init <handle>",
		Short: "Scaffold a new extension",
		Long: `Scaffold a new extension unit under the extensions directory.

This creates:
  - extensions/<handle>/extension.yaml with a generated stable id
  - extensions/<handle>/src/index.ts entry point (ui and function types)
  - extensions/<handle>/locales/en.json
  - extdev.yaml at the project root, if missing`,
		Example: `  # Scaffold a UI extension
  extdev init product-badge

  # Scaffold a function
  extdev init discount-rule --type function`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, args[0], extType, force)
		},
	}

	cmd.Flags().StringVar(&extType, "type", string(extension.TypeUI), "Extension type (ui_extension|theme_extension|function)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing manifest")

	_ = cmd.RegisterFlagCompletionFunc("type", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{string(extension.TypeUI), string(extension.TypeTheme), string(extension.TypeFunction)}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runInit(cmd *cobra.Command, handle, extType string, force bool) error {
	switch extension.Type(extType) {
	case extension.TypeUI, extension.TypeTheme, extension.TypeFunction:
	default:
		return fmt.Errorf("unknown extension type %q", extType)
	}

	cfg := getConfig(cmd)
	logger := getLogger(cmd)

	// Project config, once.
	projectConfig := filepath.Join(cfg.ProjectDir, "extdev.yaml")
	if _, err := os.Stat(projectConfig); os.IsNotExist(err) {
		if err := os.WriteFile(projectConfig, []byte(projectConfigTemplate), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", projectConfig, err)
		}
		logger.Info("created project config", "path", projectConfig)
	}

	dir := filepath.Join(cfg.ExtensionsDir, handle)
	manifestPath := filepath.Join(dir, extension.ManifestName)
	if _, err := os.Stat(manifestPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", manifestPath)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	manifest := fmt.Sprintf("id: %s\nhandle: %s\ntype: %s\n", uuid.NewString(), handle, extType)
	if err := os.WriteFile(manifestPath, []byte(manifest), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	if extension.Type(extType) != extension.TypeTheme {
		srcDir := filepath.Join(dir, "src")
		if err := os.MkdirAll(srcDir, 0o750); err != nil {
			return fmt.Errorf("create %s: %w", srcDir, err)
		}
		entryPath := filepath.Join(srcDir, "index.ts")
		if _, err := os.Stat(entryPath); os.IsNotExist(err) {
			if err := os.WriteFile(entryPath, []byte(entryTemplate), 0o644); err != nil {
				return fmt.Errorf("write entry point: %w", err)
			}
		}
	}

	localesDir := filepath.Join(dir, "locales")
	if err := os.MkdirAll(localesDir, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", localesDir, err)
	}
	localePath := filepath.Join(localesDir, "en.json")
	if _, err := os.Stat(localePath); os.IsNotExist(err) {
		if err := os.WriteFile(localePath, []byte("{}\n"), 0o644); err != nil {
			return fmt.Errorf("write locale file: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Extension %s scaffolded in %s\n", handle, dir)
	fmt.Fprintln(cmd.OutOrStdout(), "Next steps:")
	fmt.Fprintln(cmd.OutOrStdout(), "  1. Implement your extension in src/")
	fmt.Fprintln(cmd.OutOrStdout(), "  2. Run 'extdev dev' to build, watch, and sync drafts")
	return nil
}

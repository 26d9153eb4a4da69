package bundler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/leapstack-labs/extdev/internal/extension"
)

// ESBuild is the esbuild-backed Invoker used for UI and function
// extensions. Theme extensions have no entry point; their build stages
// the source asset trees into dist unchanged, so the draft push sees
// the same layout as bundled units.
type ESBuild struct {
	// Minify enables production minification. Off in dev mode.
	Minify bool
	// Sourcemap emits linked source maps alongside the bundle.
	Sourcemap bool
}

// Build compiles the unit's entry point into its dist directory.
func (e *ESBuild) Build(ctx context.Context, unit *extension.Unit) Result {
	if err := ctx.Err(); err != nil {
		return Result{Errors: []string{err.Error()}}
	}

	entry := unit.EntryPoint()
	if entry == "" {
		if unit.Type == extension.TypeTheme {
			if err := stageThemeAssets(unit); err != nil {
				return Result{Errors: []string{fmt.Sprintf("%s: stage assets: %v", unit.Handle, err)}}
			}
			return Result{}
		}
		return Result{Errors: []string{fmt.Sprintf("%s: no entry point found", unit.Handle)}}
	}

	opts := api.BuildOptions{
		EntryPoints: []string{entry},
		Bundle:      true,
		Write:       true,
		Outdir:      unit.OutputDir(),

		Loader: map[string]api.Loader{
			".tsx":     api.LoaderTSX,
			".ts":      api.LoaderTS,
			".jsx":     api.LoaderJSX,
			".css":     api.LoaderCSS,
			".json":    api.LoaderJSON,
			".graphql": api.LoaderText,
		},

		Format:      api.FormatESModule,
		Target:      api.ES2020,
		TreeShaking: api.TreeShakingTrue,
		Define:      defineMap(unit),
		LogLevel:    api.LogLevelSilent,
	}

	switch unit.Type {
	case extension.TypeFunction:
		opts.Platform = api.PlatformNeutral
	default:
		opts.Platform = api.PlatformBrowser
		// Resolve shared dependencies from the unit's node_modules.
		opts.NodePaths = []string{filepath.Join(unit.Directory, "node_modules")}
	}

	if e.Minify {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
	}
	if e.Sourcemap {
		opts.Sourcemap = api.SourceMapLinked
	}

	result := api.Build(opts)

	// esbuild has no mid-build hook for cancellation; the token is
	// honored at the boundaries and stale results are discarded by the
	// caller via sequence comparison.
	if err := ctx.Err(); err != nil {
		return Result{Errors: []string{err.Error()}}
	}

	if len(result.Errors) > 0 {
		errs := make([]string, 0, len(result.Errors))
		for _, msg := range result.Errors {
			errs = append(errs, formatMessage(msg))
		}
		return Result{Errors: errs}
	}
	return Result{}
}

// stageThemeAssets copies each of the theme's source asset trees into
// dist, keyed by the tree's directory name. Missing trees are skipped.
func stageThemeAssets(unit *extension.Unit) error {
	out := unit.OutputDir()
	for _, dir := range unit.AssetDirs() {
		base := filepath.Base(dir)
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) && path == dir {
					return filepath.SkipAll
				}
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			dst := filepath.Join(out, base, rel)
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return err
			}
			data, err := os.ReadFile(path) //nolint:gosec // G304: walking the unit's own asset dirs
			if err != nil {
				return err
			}
			return os.WriteFile(dst, data, 0o644)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// defineMap turns the unit's build environment and the process
// environment convention into esbuild compile-time constants.
func defineMap(unit *extension.Unit) map[string]string {
	defines := map[string]string{
		"process.env.NODE_ENV": `"development"`,
	}
	for key, value := range unit.Environment {
		defines["process.env."+key] = fmt.Sprintf("%q", value)
	}
	if v := os.Getenv("NODE_ENV"); v != "" {
		defines["process.env.NODE_ENV"] = fmt.Sprintf("%q", v)
	}
	return defines
}

// formatMessage renders an esbuild message as file:line:col: text.
func formatMessage(msg api.Message) string {
	if msg.Location == nil {
		return msg.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s",
		msg.Location.File,
		msg.Location.Line,
		msg.Location.Column,
		msg.Text)
}

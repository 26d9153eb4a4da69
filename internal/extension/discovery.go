package extension

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestName is the per-unit manifest file name.
const ManifestName = "extension.yaml"

// ErrNoManifest is returned when a directory holds no extension manifest.
var ErrNoManifest = errors.New("no extension manifest")

// manifest is the on-disk shape of extension.yaml.
type manifest struct {
	ID          string            `yaml:"id"`
	Handle      string            `yaml:"handle"`
	Type        string            `yaml:"type"`
	Entry       string            `yaml:"entry"`
	Draftable   *bool             `yaml:"draftable"`
	Environment map[string]string `yaml:"environment"`
	Watch       struct {
		Code     []string `yaml:"code"`
		Locale   []string `yaml:"locale"`
		Config   []string `yaml:"config"`
		Function []string `yaml:"function"`
	} `yaml:"watch"`
}

// defaultWatchGlobs returns the conventional watch globs for a unit
// type, used when the manifest does not spell them out.
func defaultWatchGlobs(t Type) map[TargetKind][]string {
	switch t {
	case TypeUI:
		return map[TargetKind][]string{
			KindCode:   {"src/**/*.ts", "src/**/*.tsx", "src/**/*.js", "src/**/*.jsx", "src/**/*.css"},
			KindLocale: {"locales/*.json"},
			KindConfig: {ManifestName},
		}
	case TypeTheme:
		return map[TargetKind][]string{
			KindCode:   {"blocks/**/*.liquid", "assets/*"},
			KindLocale: {"locales/*.json"},
			KindConfig: {ManifestName},
		}
	case TypeFunction:
		return map[TargetKind][]string{
			KindFunction: {"src/**/*.ts", "src/**/*.js", "src/**/*.graphql"},
			KindConfig:   {ManifestName},
		}
	default:
		return nil
	}
}

// LoadUnit reads and validates the manifest in dir, returning the
// immutable Unit it describes.
func LoadUnit(dir string) (*Unit, error) {
	path := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from project discovery
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoManifest
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if m.Handle == "" {
		m.Handle = filepath.Base(dir)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("%s: missing id (run `extdev init` to assign one)", path)
	}

	t := Type(m.Type)
	switch t {
	case TypeUI, TypeTheme, TypeFunction:
	default:
		return nil, fmt.Errorf("%s: unknown extension type %q", path, m.Type)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}

	entry := m.Entry
	if entry == "" && t != TypeTheme {
		entry = defaultEntry(abs)
	}

	draftable := t == TypeUI || t == TypeTheme
	if m.Draftable != nil {
		draftable = *m.Draftable
	}

	targets := defaultWatchGlobs(t)
	if len(m.Watch.Code) > 0 {
		targets[KindCode] = m.Watch.Code
	}
	if len(m.Watch.Locale) > 0 {
		targets[KindLocale] = m.Watch.Locale
	}
	if len(m.Watch.Config) > 0 {
		targets[KindConfig] = m.Watch.Config
	}
	if len(m.Watch.Function) > 0 {
		targets[KindFunction] = m.Watch.Function
	}

	return &Unit{
		ID:          m.ID,
		Handle:      m.Handle,
		Type:        t,
		Directory:   abs,
		Entry:       entry,
		Environment: m.Environment,
		draftable:   draftable,
		targets:     targets,
	}, nil
}

// defaultEntry probes the conventional entry point locations.
func defaultEntry(dir string) string {
	for _, candidate := range []string{
		filepath.Join("src", "index.tsx"),
		filepath.Join("src", "index.ts"),
		filepath.Join("src", "index.jsx"),
		filepath.Join("src", "index.js"),
	} {
		if _, err := os.Stat(filepath.Join(dir, candidate)); err == nil {
			return candidate
		}
	}
	return ""
}

// Discover scans extensionsDir for unit directories carrying a
// manifest. Directories without one are skipped silently; directories
// with a broken manifest are skipped with a warning so one bad unit
// does not hide the rest.
func Discover(extensionsDir string, logger *slog.Logger) ([]*Unit, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	entries, err := os.ReadDir(extensionsDir)
	if err != nil {
		return nil, fmt.Errorf("read extensions dir: %w", err)
	}

	var units []*Unit
	seen := make(map[string]string)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(extensionsDir, entry.Name())
		unit, err := LoadUnit(dir)
		if errors.Is(err, ErrNoManifest) {
			continue
		}
		if err != nil {
			logger.Warn("skipping extension", "dir", dir, "error", err)
			continue
		}
		if prev, dup := seen[unit.ID]; dup {
			logger.Warn("duplicate extension id", "id", unit.ID, "handle", unit.Handle, "conflicts_with", prev)
			continue
		}
		seen[unit.ID] = unit.Handle
		units = append(units, unit)
	}

	SortUnits(units)
	logger.Debug("discovered extensions", "count", len(units))
	return units, nil
}

// Package extension defines the extension unit model and manifest
// discovery. A unit is an independently buildable piece of an app
// (UI extension, theme extension, or function) with its own source
// directory, watch targets, and draft eligibility.
package extension

import (
	"fmt"
	"path/filepath"
	"sort"
)

// Type classifies an extension unit.
type Type string

const (
	// TypeUI is a UI extension: bundled with esbuild, draftable.
	TypeUI Type = "ui_extension"
	// TypeTheme is a theme extension: asset-only, draftable.
	TypeTheme Type = "theme_extension"
	// TypeFunction is a function extension: bundled, not draftable
	// unless the manifest opts in.
	TypeFunction Type = "function"
)

// TargetKind groups a unit's watch targets by how a change to them is
// handled: code and function targets trigger rebuilds, locale and
// config targets bypass the bundler entirely.
type TargetKind string

const (
	KindCode     TargetKind = "code"
	KindLocale   TargetKind = "locale"
	KindConfig   TargetKind = "config"
	KindFunction TargetKind = "function"
)

// Kinds lists all target kinds in stable order.
func Kinds() []TargetKind {
	return []TargetKind{KindCode, KindLocale, KindConfig, KindFunction}
}

// Unit is one extension unit. Units are immutable after discovery;
// the watch layer treats them as read-only for the lifetime of a run.
type Unit struct {
	// ID is the stable identity of the unit (a UUID assigned by
	// `extdev init` and recorded in the manifest).
	ID string
	// Handle is the human-readable name shown in logs and listings.
	Handle string
	// Type determines build and draft behavior.
	Type Type
	// Directory is the unit's root, absolute after discovery.
	Directory string
	// Entry is the bundler entry point relative to Directory.
	Entry string
	// Environment holds build-time variable definitions injected as
	// compile-time constants.
	Environment map[string]string

	draftable bool
	targets   map[TargetKind][]string
}

// Draftable reports whether successful builds of this unit should be
// pushed to the remote draft slot. Theme and UI extensions are
// draftable by default; functions are bundle-only unless the manifest
// opts in.
func (u *Unit) Draftable() bool { return u.draftable }

// WatchPaths returns the unit's watch globs for one target kind,
// resolved against the unit directory. The returned slice is a copy.
func (u *Unit) WatchPaths(kind TargetKind) []string {
	globs := u.targets[kind]
	if len(globs) == 0 {
		return nil
	}
	paths := make([]string, 0, len(globs))
	for _, g := range globs {
		if !filepath.IsAbs(g) {
			g = filepath.Join(u.Directory, g)
		}
		paths = append(paths, g)
	}
	return paths
}

// HasWatchPaths reports whether any target kind carries at least one
// watch glob.
func (u *Unit) HasWatchPaths() bool {
	for _, globs := range u.targets {
		if len(globs) > 0 {
			return true
		}
	}
	return false
}

// EntryPoint returns the absolute path of the bundler entry point, or
// empty when the unit has no buildable source (pure theme extensions).
func (u *Unit) EntryPoint() string {
	if u.Entry == "" {
		return ""
	}
	return filepath.Join(u.Directory, u.Entry)
}

// OutputDir returns the directory build artifacts are written to.
func (u *Unit) OutputDir() string {
	return filepath.Join(u.Directory, "dist")
}

// AssetDirs returns the source directories a theme extension ships
// verbatim. Empty for bundled unit types.
func (u *Unit) AssetDirs() []string {
	if u.Type != TypeTheme {
		return nil
	}
	return []string{
		filepath.Join(u.Directory, "blocks"),
		filepath.Join(u.Directory, "assets"),
	}
}

// BundleOnly reports whether build success is terminal for this unit
// (no remote draft step).
func (u *Unit) BundleOnly() bool { return !u.draftable }

func (u *Unit) String() string {
	return fmt.Sprintf("%s (%s)", u.Handle, u.Type)
}

// SortUnits orders units by handle for deterministic listings.
func SortUnits(units []*Unit) {
	sort.Slice(units, func(i, j int) bool {
		return units[i].Handle < units[j].Handle
	})
}

package extension

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/extdev/internal/testutil"
)

func writeManifest(t *testing.T, dir, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestName), []byte(contents), 0o644))
}

func TestLoadUnitDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "id: u-1\nhandle: badge\ntype: ui_extension\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "index.tsx"), []byte("x"), 0o644))

	unit, err := LoadUnit(dir)
	require.NoError(t, err)

	assert.Equal(t, "u-1", unit.ID)
	assert.Equal(t, "badge", unit.Handle)
	assert.Equal(t, TypeUI, unit.Type)
	assert.True(t, unit.Draftable())
	assert.False(t, unit.BundleOnly())
	assert.Equal(t, filepath.Join("src", "index.tsx"), unit.Entry)
	assert.True(t, unit.HasWatchPaths())

	code := unit.WatchPaths(KindCode)
	require.NotEmpty(t, code)
	for _, p := range code {
		assert.True(t, filepath.IsAbs(p), "watch paths are absolute: %s", p)
	}
	assert.NotEmpty(t, unit.WatchPaths(KindLocale))
	assert.NotEmpty(t, unit.WatchPaths(KindConfig))
	assert.Empty(t, unit.WatchPaths(KindFunction))
}

func TestLoadUnitFunctionIsBundleOnly(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "id: u-2\nhandle: discounts\ntype: function\nentry: src/run.ts\n")

	unit, err := LoadUnit(dir)
	require.NoError(t, err)

	assert.Equal(t, TypeFunction, unit.Type)
	assert.True(t, unit.BundleOnly())
	assert.NotEmpty(t, unit.WatchPaths(KindFunction))
	assert.Empty(t, unit.WatchPaths(KindCode))
}

func TestLoadUnitHandleDefaultsToDirName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "checkout-badge")
	writeManifest(t, dir, "id: u-9\ntype: ui_extension\n")

	unit, err := LoadUnit(dir)
	require.NoError(t, err)
	assert.Equal(t, "checkout-badge", unit.Handle)
}

func TestLoadUnitDraftableOverride(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "id: u-3\nhandle: discounts\ntype: function\ndraftable: true\n")

	unit, err := LoadUnit(dir)
	require.NoError(t, err)
	assert.True(t, unit.Draftable())
}

func TestLoadUnitCustomWatchGlobs(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `id: u-4
handle: badge
type: ui_extension
watch:
  code:
    - "lib/**/*.mjs"
`)

	unit, err := LoadUnit(dir)
	require.NoError(t, err)

	code := unit.WatchPaths(KindCode)
	require.Len(t, code, 1)
	assert.Equal(t, filepath.Join(unit.Directory, "lib/**/*.mjs"), code[0])
}

func TestLoadUnitValidation(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		wantErr  string
	}{
		{"missing id", "handle: x\ntype: ui_extension\n", "missing id"},
		{"unknown type", "id: u\nhandle: x\ntype: widget\n", "unknown extension type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.manifest)
			_, err := LoadUnit(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadUnitNoManifest(t *testing.T) {
	_, err := LoadUnit(t.TempDir())
	require.ErrorIs(t, err, ErrNoManifest)
}

func TestDiscoverSkipsBrokenAndDuplicateUnits(t *testing.T) {
	root := t.TempDir()

	writeManifest(t, filepath.Join(root, "alpha"), "id: u-1\nhandle: alpha\ntype: ui_extension\n")
	writeManifest(t, filepath.Join(root, "beta"), "id: u-2\nhandle: beta\ntype: theme_extension\n")
	// Broken: missing id.
	writeManifest(t, filepath.Join(root, "broken"), "handle: broken\ntype: ui_extension\nid: \n")
	// Duplicate of alpha's id.
	writeManifest(t, filepath.Join(root, "dupe"), "id: u-1\nhandle: dupe\ntype: ui_extension\n")
	// A plain directory without a manifest is ignored silently.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))

	units, err := Discover(root, testutil.NewTestLogger(t))
	require.NoError(t, err)

	require.Len(t, units, 2)
	assert.Equal(t, "alpha", units[0].Handle)
	assert.Equal(t, "beta", units[1].Handle)
}

func TestDiscoverMissingDir(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"), nil)
	require.Error(t, err)
}

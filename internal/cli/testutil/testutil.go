// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// SetupTestProject creates a temporary project with an extdev.yaml and
// one UI extension, returning the project root.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	cfg := "extensions_dir: extensions\napi_base_url: http://127.0.0.1:0\n"
	if err := os.WriteFile(filepath.Join(tmpDir, "extdev.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("failed to create extdev.yaml: %v", err)
	}

	AddExtension(t, tmpDir, "product-badge", "ui_extension")
	return tmpDir
}

// AddExtension scaffolds one extension unit under the project's
// extensions directory and returns its directory.
func AddExtension(t *testing.T, projectDir, handle, extType string) string {
	t.Helper()

	dir := filepath.Join(projectDir, "extensions", handle)
	for _, sub := range []string{"src", "locales"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", sub, err)
		}
	}

	manifest := fmt.Sprintf("id: test-%s\nhandle: %s\ntype: %s\nentry: src/index.ts\n", handle, handle, extType)
	if err := os.WriteFile(filepath.Join(dir, "extension.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("failed to create extension.yaml: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "src", "index.ts"),
		[]byte("export default function main() {}\n"), 0o644); err != nil {
		t.Fatalf("failed to create entry point: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "locales", "en.json"), []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("failed to create locale file: %v", err)
	}
	return dir
}

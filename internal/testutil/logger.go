// Package testutil provides shared test helpers.
package testutil

import (
	"log/slog"
	"testing"
)

// NewTestLogger returns a debug-level logger that writes through
// t.Log, so log output is attached to the failing test (or shown with
// -v) instead of polluting stdout.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

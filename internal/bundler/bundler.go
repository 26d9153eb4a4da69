// Package bundler wraps the asset bundler behind a small Invoker
// interface. A build either succeeds (artifact written to the unit's
// dist directory) or yields a list of error strings; cancellation is
// cooperative via the context.
package bundler

import (
	"context"

	"github.com/leapstack-labs/extdev/internal/extension"
)

// Result is the outcome of one build attempt. An empty Errors slice
// means success; the artifact is a side effect on disk, never returned
// in-band.
type Result struct {
	Errors []string
}

// OK reports whether the build succeeded.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// Invoker runs one build for one unit. Implementations must poll ctx
// at safe points and return promptly once it is cancelled; callers
// discard results of superseded builds regardless, so a late return is
// tolerated but wasteful.
type Invoker interface {
	Build(ctx context.Context, unit *extension.Unit) Result
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, unit *extension.Unit) Result

// Build implements Invoker.
func (f InvokerFunc) Build(ctx context.Context, unit *extension.Unit) Result {
	return f(ctx, unit)
}

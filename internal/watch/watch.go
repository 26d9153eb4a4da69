// Package watch is the core of the dev loop: it binds each extension
// unit's watch targets to rebuild and sync reactions, guarantees at
// most one in-flight build per unit with latest-wins supersession, and
// gives the caller a single handle that tears every unit's session
// down.
//
// The package deliberately knows nothing about how bundling or remote
// sync are performed; it consumes bundler.Invoker and draft.Client and
// owns only the coordination between them.
package watch

import "errors"

// Primitive opens filesystem watches. It is satisfied by the fsnotify
// adapter in this package and by fakes in tests.
type Primitive interface {
	// Watch begins watching the given path globs and invokes onChange
	// with the changed path for every matching filesystem event. The
	// callback may be invoked from an internal goroutine but never
	// after Close returns.
	Watch(globs []string, onChange func(path string)) (Handle, error)
}

// Handle is one open watch.
type Handle interface {
	// Close stops event delivery and releases the watch. Idempotent.
	Close() error
}

// ErrNoWatchPaths indicates a unit has no resolvable watch targets.
// The orchestrator skips such units with a warning rather than failing
// the run.
var ErrNoWatchPaths = errors.New("no watchable paths")

// ErrClosed is returned by StartAll once the orchestrator has been
// closed. Shutdown is terminal; a new orchestrator is required for a
// new run.
var ErrClosed = errors.New("orchestrator closed")

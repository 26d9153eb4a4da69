// Package draft talks to the remote extension API: pushing build
// artifacts to a unit's draft slot, updating declarative configuration,
// and signaling locale changes. Failures are reported as *SyncError and
// never disable the caller's watch loop.
package draft

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/extdev/internal/extension"
)

// Client is the remote sync surface consumed by the watch layer.
type Client interface {
	// PushDraft uploads the unit's current build artifact to its
	// remote draft slot.
	PushDraft(ctx context.Context, unit *extension.Unit) error
	// PushConfig uploads the unit's declarative configuration without
	// touching the draft artifact.
	PushConfig(ctx context.Context, unit *extension.Unit) error
	// NotifyLocaleChange signals that the unit's locale files changed;
	// the remote re-reads them out of band.
	NotifyLocaleChange(ctx context.Context, unit *extension.Unit) error
}

// SyncError wraps a remote push failure with the unit identity and the
// operation that failed.
type SyncError struct {
	UnitID string
	Handle string
	Op     string
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s for %s: %v", e.Op, e.Handle, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// newSyncError builds a SyncError for one unit and operation.
func newSyncError(unit *extension.Unit, op string, err error) *SyncError {
	return &SyncError{UnitID: unit.ID, Handle: unit.Handle, Op: op, Err: err}
}

package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/extdev/internal/bundler"
	"github.com/leapstack-labs/extdev/internal/draft"
	"github.com/leapstack-labs/extdev/internal/extension"
)

// Config holds orchestrator construction options.
type Config struct {
	// Invoker runs builds. Required.
	Invoker bundler.Invoker
	// Client pushes drafts, config, and locale notifications. Required
	// unless every unit is bundle-only.
	Client draft.Client
	// Primitive opens filesystem watches (optional, defaults to the
	// fsnotify adapter).
	Primitive Primitive
	// Logger is the structured logger (optional, discard if nil).
	Logger *slog.Logger
	// OnStatus, when set, observes every per-unit status change.
	OnStatus func(Status)
}

// Orchestrator owns the watch sessions for one development run. It
// fans out session start, aggregates status, and hands the caller a
// single Handle whose Close tears everything down. Shutdown is
// terminal: a closed orchestrator starts nothing ever again.
type Orchestrator struct {
	invoker   bundler.Invoker
	client    draft.Client
	primitive Primitive
	logger    *slog.Logger
	board     *statusBoard

	mu     sync.Mutex
	closed bool
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	primitive := cfg.Primitive
	if primitive == nil {
		primitive = &FSNotify{Logger: logger}
	}
	return &Orchestrator{
		invoker:   cfg.Invoker,
		client:    cfg.Client,
		primitive: primitive,
		logger:    logger,
		board:     newStatusBoard(cfg.OnStatus),
	}
}

// RunHandle controls one development run. Close fires the shutdown
// signal and returns without waiting for in-flight sync attempts; Wait
// blocks until every session has finished tearing down.
type RunHandle struct {
	orch     *Orchestrator
	cancel   context.CancelFunc
	sessions []*session
	once     sync.Once
}

// Close broadcasts shutdown to every session. Idempotent; it never
// fails, individual close problems are logged per unit.
func (h *RunHandle) Close() {
	h.once.Do(func() {
		h.orch.markClosed()
		h.cancel()
	})
}

// Wait blocks until all sessions have observed shutdown and closed
// their watch handles.
func (h *RunHandle) Wait() {
	for _, s := range h.sessions {
		<-s.done
	}
}

// StartAll starts one watch session per eligible unit. Session starts
// run concurrently, and one unit's failure never prevents another's
// start: units without usable watch paths are skipped with a warning,
// other start failures are logged and skipped likewise. Partial
// success is normal; failed units are not retried within this run.
func (o *Orchestrator) StartAll(ctx context.Context, units []*extension.Unit) (*RunHandle, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, ErrClosed
	}
	o.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)

	var (
		sessMu   sync.Mutex
		sessions []*session
	)
	var g errgroup.Group
	for _, unit := range units {
		unit := unit
		g.Go(func() error {
			sess := newSession(runCtx, unit, o.invoker, o.client, o.board, o.logger)
			if err := sess.start(o.primitive); err != nil {
				sess.cancel()
				if errors.Is(err, ErrNoWatchPaths) {
					o.logger.Warn("skipping extension: nothing to watch", "extension", unit.Handle)
				} else {
					o.logger.Error("failed to start watch session", "extension", unit.Handle, "error", err)
				}
				o.board.set(Status{UnitID: unit.ID, Handle: unit.Handle, State: StateSkipped})
				return nil
			}
			sessMu.Lock()
			sessions = append(sessions, sess)
			sessMu.Unlock()
			o.logger.Info("watching extension", "extension", unit.Handle, "type", string(unit.Type))
			return nil
		})
	}
	_ = g.Wait()

	return &RunHandle{orch: o, cancel: cancel, sessions: sessions}, nil
}

// Statuses returns the latest status of every unit seen this run.
func (o *Orchestrator) Statuses() []Status {
	return o.board.Snapshot()
}

func (o *Orchestrator) markClosed() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

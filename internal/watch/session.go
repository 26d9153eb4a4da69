package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/extdev/internal/bundler"
	"github.com/leapstack-labs/extdev/internal/draft"
	"github.com/leapstack-labs/extdev/internal/extension"
)

// changeEvent is one filesystem notification, tagged with the target
// kind whose watch produced it.
type changeEvent struct {
	kind extension.TargetKind
	path string
}

// buildOutcome carries a resolved build back onto the session loop.
// The sequence number identifies whether the attempt is still current.
type buildOutcome struct {
	seq    uint64
	result bundler.Result
}

type syncOp string

const (
	opDraft  syncOp = "draft"
	opConfig syncOp = "config"
	opLocale syncOp = "locale"
)

type syncOutcome struct {
	op  syncOp
	err error
}

// buildToken is one build attempt. At most one token is active per
// session; superseded tokens are cancelled and their results discarded
// by sequence comparison when they eventually resolve.
type buildToken struct {
	seq    uint64
	cancel context.CancelFunc
}

// session drives the watch/build/sync lifecycle for a single unit. All
// state below the channels is owned by the run loop goroutine: change
// callbacks, build completions, and sync completions are funneled onto
// the loop, so no two handlers for the same unit ever run concurrently.
type session struct {
	unit    *extension.Unit
	invoker bundler.Invoker
	client  draft.Client
	logger  *slog.Logger
	board   *statusBoard

	ctx    context.Context
	cancel context.CancelFunc

	changes chan changeEvent
	builds  chan buildOutcome
	syncs   chan syncOutcome
	done    chan struct{}

	handles []Handle

	seq    uint64
	active *buildToken

	// Per-unit sync serialization: one sync in flight, at most one
	// pending request per operation. Repeats of the same operation
	// coalesce; distinct operations never displace one another.
	syncing bool
	pending map[syncOp]bool
}

func newSession(parent context.Context, unit *extension.Unit, invoker bundler.Invoker, client draft.Client, board *statusBoard, logger *slog.Logger) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{
		unit:    unit,
		invoker: invoker,
		client:  client,
		logger:  logger,
		board:   board,
		ctx:     ctx,
		cancel:  cancel,
		changes: make(chan changeEvent, 16),
		builds:  make(chan buildOutcome, 1),
		syncs:   make(chan syncOutcome, 1),
		done:    make(chan struct{}),
		pending: make(map[syncOp]bool),
	}
}

// start opens one watch per configured target kind and launches the
// run loop. A unit with no watchable paths at all yields
// ErrNoWatchPaths; the orchestrator downgrades that to a warning.
func (s *session) start(primitive Primitive) error {
	for _, kind := range extension.Kinds() {
		paths := s.unit.WatchPaths(kind)
		if len(paths) == 0 {
			continue
		}
		kind := kind
		handle, err := primitive.Watch(paths, func(path string) {
			s.enqueue(changeEvent{kind: kind, path: path})
		})
		if err != nil {
			if errors.Is(err, ErrNoWatchPaths) {
				s.logger.Debug("no watchable paths for kind",
					"extension", s.unit.Handle, "kind", string(kind))
				continue
			}
			s.closeHandles()
			return fmt.Errorf("watch %s targets for %s: %w", kind, s.unit.Handle, err)
		}
		s.handles = append(s.handles, handle)
	}

	if len(s.handles) == 0 {
		return ErrNoWatchPaths
	}

	s.setState(StateWatching, nil)
	go s.run()
	return nil
}

// enqueue hands a change event to the run loop. It never blocks past
// session shutdown, so watch handle close cannot deadlock against a
// full channel.
func (s *session) enqueue(ev changeEvent) {
	select {
	case s.changes <- ev:
	case <-s.ctx.Done():
	}
}

func (s *session) run() {
	defer close(s.done)
	defer s.teardown()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.changes:
			s.handleChange(ev)
		case out := <-s.builds:
			s.handleBuild(out)
		case out := <-s.syncs:
			s.handleSync(out)
		}
	}
}

// handleChange routes one notification by target kind. Locale and
// config changes bypass the bundler entirely; code and function
// changes supersede any in-flight build.
func (s *session) handleChange(ev changeEvent) {
	s.logger.Debug("change detected",
		"extension", s.unit.Handle, "kind", string(ev.kind), "path", ev.path)

	switch ev.kind {
	case extension.KindLocale:
		s.enqueueSync(opLocale)
	case extension.KindConfig:
		s.enqueueSync(opConfig)
	default:
		s.startBuild()
	}
}

// startBuild cancels the active build attempt, if any, and launches a
// new one under a fresh token. Latest wins: the superseded attempt is
// told to stop and its result, should it still arrive, is identified
// as stale by its sequence number.
func (s *session) startBuild() {
	s.seq++
	if s.active != nil {
		s.active.cancel()
		s.active = nil
	}

	buildCtx, cancel := context.WithCancel(s.ctx)
	token := &buildToken{seq: s.seq, cancel: cancel}
	s.active = token
	s.setState(StateBuilding, nil)

	go func() {
		result := s.invoker.Build(buildCtx, s.unit)
		cancel()
		select {
		case s.builds <- buildOutcome{seq: token.seq, result: result}:
		case <-s.done:
		}
	}()
}

// handleBuild applies a resolved build if and only if it is still the
// current attempt for this unit.
func (s *session) handleBuild(out buildOutcome) {
	if s.active == nil || out.seq != s.active.seq {
		s.logger.Debug("discarding stale build result",
			"extension", s.unit.Handle, "seq", out.seq)
		return
	}
	s.active = nil

	if !out.result.OK() {
		s.logger.Error("build failed",
			"extension", s.unit.Handle, "seq", out.seq, "errors", len(out.result.Errors))
		for _, detail := range out.result.Errors {
			s.logger.Error("build error", "extension", s.unit.Handle, "detail", detail)
		}
		s.setState(StateError, out.result.Errors)
		return
	}

	s.logger.Info("build succeeded", "extension", s.unit.Handle, "seq", out.seq)

	if s.unit.BundleOnly() {
		s.setState(StateWatching, nil)
		return
	}
	s.enqueueSync(opDraft)
}

// enqueueSync starts a sync now or, when one is already in flight,
// records the operation as pending. A newer request for the same
// operation coalesces with the recorded one.
func (s *session) enqueueSync(op syncOp) {
	if s.syncing {
		s.pending[op] = true
		return
	}
	s.syncing = true
	s.setState(StateSyncing, nil)
	s.startSync(op)
}

func (s *session) startSync(op syncOp) {
	// In-flight syncs are allowed to complete or fail across shutdown;
	// shutdown only stops them from being observed.
	ctx := context.WithoutCancel(s.ctx)
	go func() {
		err := s.push(ctx, op)
		select {
		case s.syncs <- syncOutcome{op: op, err: err}:
		case <-s.done:
		}
	}()
}

func (s *session) push(ctx context.Context, op syncOp) error {
	switch op {
	case opConfig:
		return s.client.PushConfig(ctx, s.unit)
	case opLocale:
		return s.client.NotifyLocaleChange(ctx, s.unit)
	default:
		return s.client.PushDraft(ctx, s.unit)
	}
}

// handleSync reports the outcome and starts the next pending
// operation, draft pushes first. Sync failures never disable the
// session; the next successful build retries naturally.
func (s *session) handleSync(out syncOutcome) {
	s.syncing = false
	if out.err != nil {
		s.logger.Error("sync failed",
			"extension", s.unit.Handle, "op", string(out.op), "error", out.err)
	} else {
		s.logger.Info("synced", "extension", s.unit.Handle, "op", string(out.op))
	}

	for _, op := range []syncOp{opDraft, opConfig, opLocale} {
		if s.pending[op] {
			delete(s.pending, op)
			s.syncing = true
			s.setState(StateSyncing, nil)
			s.startSync(op)
			return
		}
	}

	if s.active == nil {
		s.setState(StateWatching, nil)
	}
}

// teardown closes every watch handle (best effort) and cancels the
// active build attempt. It runs exactly once, on loop exit.
func (s *session) teardown() {
	if s.active != nil {
		s.active.cancel()
		s.active = nil
	}
	s.closeHandles()
	s.setState(StateClosed, nil)
	s.logger.Debug("session closed", "extension", s.unit.Handle)
}

func (s *session) closeHandles() {
	for _, handle := range s.handles {
		if err := handle.Close(); err != nil {
			s.logger.Error("closing watch handle",
				"extension", s.unit.Handle, "error", err)
		}
	}
	s.handles = nil
}

func (s *session) setState(state State, errs []string) {
	s.board.set(Status{
		UnitID:   s.unit.ID,
		Handle:   s.unit.Handle,
		State:    state,
		Errors:   errs,
		BuildSeq: s.seq,
	})
}

package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/extdev/internal/bundler"
	"github.com/leapstack-labs/extdev/internal/extension"
	"github.com/leapstack-labs/extdev/internal/testutil"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

type harness struct {
	primitive *fakePrimitive
	invoker   *fakeInvoker
	client    *fakeClient
	orch      *Orchestrator
	handle    *RunHandle
}

func startHarness(t *testing.T, units ...*extension.Unit) *harness {
	t.Helper()

	h := &harness{
		primitive: &fakePrimitive{},
		invoker:   newFakeInvoker(),
		client:    &fakeClient{},
	}
	h.orch = New(Config{
		Invoker:   h.invoker,
		Client:    h.client,
		Primitive: h.primitive,
		Logger:    testutil.NewTestLogger(t),
	})

	handle, err := h.orch.StartAll(context.Background(), units)
	require.NoError(t, err)
	h.handle = handle
	t.Cleanup(func() {
		handle.Close()
		handle.Wait()
	})
	return h
}

// waitBuild blocks until the invoker receives a build.
func (h *harness) waitBuild(t *testing.T) *fakeBuild {
	t.Helper()
	select {
	case b := <-h.invoker.started:
		return b
	case <-time.After(waitFor):
		t.Fatal("no build started")
		return nil
	}
}

// assertNoBuild asserts that no build starts within the window.
func (h *harness) assertNoBuild(t *testing.T) {
	t.Helper()
	select {
	case b := <-h.invoker.started:
		t.Fatalf("unexpected build for %s", b.unit.Handle)
	case <-time.After(200 * time.Millisecond):
	}
}

// status returns the published status for handle, or the zero Status
// when none exists yet. Safe to call from Eventually conditions.
func (h *harness) status(handle string) Status {
	for _, s := range h.orch.Statuses() {
		if s.Handle == handle {
			return s
		}
	}
	return Status{}
}

func TestCodeChangeTriggersBuildAndDraftSync(t *testing.T) {
	unit := newTestUnit(t, "badge", extension.TypeUI)
	h := startHarness(t, unit)

	h.primitive.watchFor(t, "src").fire("src/index.ts")

	b := h.waitBuild(t)
	assert.Equal(t, "badge", b.unit.Handle)
	b.release <- bundler.Result{}

	require.Eventually(t, func() bool {
		draft, _, _ := h.client.counts()
		return draft == 1
	}, waitFor, tick)

	_, config, locale := h.client.counts()
	assert.Zero(t, config)
	assert.Zero(t, locale)
}

func TestLocaleChangeNeverInvokesBundler(t *testing.T) {
	unit := newTestUnit(t, "badge", extension.TypeUI)
	h := startHarness(t, unit)

	h.primitive.watchFor(t, "locales").fire("locales/en.json")

	require.Eventually(t, func() bool {
		_, _, locale := h.client.counts()
		return locale == 1
	}, waitFor, tick)

	h.assertNoBuild(t)
	draft, config, _ := h.client.counts()
	assert.Zero(t, draft)
	assert.Zero(t, config)
}

func TestConfigChangeNeverInvokesBundler(t *testing.T) {
	unit := newTestUnit(t, "badge", extension.TypeUI)
	h := startHarness(t, unit)

	h.primitive.watchFor(t, extension.ManifestName).fire(extension.ManifestName)

	require.Eventually(t, func() bool {
		_, config, _ := h.client.counts()
		return config == 1
	}, waitFor, tick)

	h.assertNoBuild(t)
	draft, _, locale := h.client.counts()
	assert.Zero(t, draft)
	assert.Zero(t, locale)
}

func TestBuildErrorSuppressesSyncThenRecovers(t *testing.T) {
	unit := newTestUnit(t, "badge", extension.TypeUI)
	h := startHarness(t, unit)
	code := h.primitive.watchFor(t, "src")

	code.fire("src/index.ts")
	b1 := h.waitBuild(t)
	b1.release <- bundler.Result{Errors: []string{"src/index.ts:1:0: unexpected token"}}

	require.Eventually(t, func() bool {
		return h.status("badge").State == StateError
	}, waitFor, tick)
	draft, _, _ := h.client.counts()
	assert.Zero(t, draft, "failed build must not sync")

	// The session keeps watching and the next change builds normally.
	code.fire("src/index.ts")
	b2 := h.waitBuild(t)
	b2.release <- bundler.Result{}

	require.Eventually(t, func() bool {
		draft, _, _ := h.client.counts()
		return draft == 1
	}, waitFor, tick)
}

func TestRapidChangesLatestWins(t *testing.T) {
	unit := newTestUnit(t, "badge", extension.TypeUI)
	h := startHarness(t, unit)
	code := h.primitive.watchFor(t, "src")

	code.fire("src/a.ts")
	b1 := h.waitBuild(t)

	code.fire("src/b.ts")
	b2 := h.waitBuild(t)

	// The first attempt is cancelled when the second supersedes it.
	require.Eventually(t, func() bool {
		return b1.ctx.Err() != nil
	}, waitFor, tick)

	b2.release <- bundler.Result{}

	require.Eventually(t, func() bool {
		draft, _, _ := h.client.counts()
		return draft == 1
	}, waitFor, tick)

	// The stale attempt's result is discarded even though it resolves
	// later: exactly one sync, reflecting the second build.
	b1.release <- bundler.Result{}
	require.Never(t, func() bool {
		draft, _, _ := h.client.counts()
		return draft > 1
	}, 300*time.Millisecond, tick)
}

func TestBundleOnlyUnitSkipsSync(t *testing.T) {
	unit := newTestUnit(t, "discounts", extension.TypeFunction)
	require.True(t, unit.BundleOnly())
	h := startHarness(t, unit)

	h.primitive.watchFor(t, "src").fire("src/index.ts")
	b := h.waitBuild(t)
	b.release <- bundler.Result{}

	require.Eventually(t, func() bool {
		return h.status("discounts").State == StateWatching
	}, waitFor, tick)

	draft, config, locale := h.client.counts()
	assert.Zero(t, draft)
	assert.Zero(t, config)
	assert.Zero(t, locale)
}

func TestSyncFailureKeepsWatching(t *testing.T) {
	unit := newTestUnit(t, "badge", extension.TypeUI)
	h := startHarness(t, unit)
	h.client.draftErr = assert.AnError
	code := h.primitive.watchFor(t, "src")

	code.fire("src/index.ts")
	b1 := h.waitBuild(t)
	b1.release <- bundler.Result{}

	require.Eventually(t, func() bool {
		draft, _, _ := h.client.counts()
		return draft == 1
	}, waitFor, tick)
	require.Eventually(t, func() bool {
		return h.status("badge").State == StateWatching
	}, waitFor, tick)

	// Next successful build retries the sync naturally.
	h.client.mu.Lock()
	h.client.draftErr = nil
	h.client.mu.Unlock()

	code.fire("src/index.ts")
	b2 := h.waitBuild(t)
	b2.release <- bundler.Result{}

	require.Eventually(t, func() bool {
		draft, _, _ := h.client.counts()
		return draft == 2
	}, waitFor, tick)
}

func TestSyncAttemptsSerializedPerOp(t *testing.T) {
	unit := newTestUnit(t, "badge", extension.TypeUI)
	h := startHarness(t, unit)
	gate := make(chan struct{})
	h.client.gate = gate

	// A successful build starts a draft sync that blocks on the gate.
	h.primitive.watchFor(t, "src").fire("src/index.ts")
	b := h.waitBuild(t)
	b.release <- bundler.Result{}

	require.Eventually(t, func() bool {
		return h.status("badge").State == StateSyncing
	}, waitFor, tick)

	// While it is in flight, two locale changes and a config change
	// arrive. Repeats of one operation coalesce; distinct operations
	// each run once after the gate opens.
	h.primitive.watchFor(t, "locales").fire("locales/en.json")
	h.primitive.watchFor(t, "locales").fire("locales/fr.json")
	h.primitive.watchFor(t, extension.ManifestName).fire(extension.ManifestName)
	time.Sleep(50 * time.Millisecond)

	close(gate)

	require.Eventually(t, func() bool {
		_, config, locale := h.client.counts()
		return config == 1 && locale == 1
	}, waitFor, tick)

	draft, _, _ := h.client.counts()
	assert.Equal(t, 1, draft, "only the original draft sync ran")
}

func TestPendingDraftSurvivesLocalePing(t *testing.T) {
	unit := newTestUnit(t, "badge", extension.TypeUI)
	h := startHarness(t, unit)
	gate := make(chan struct{})
	h.client.gate = gate
	code := h.primitive.watchFor(t, "src")

	// First draft sync blocks on the gate.
	code.fire("src/index.ts")
	b1 := h.waitBuild(t)
	b1.release <- bundler.Result{}

	require.Eventually(t, func() bool {
		return h.status("badge").State == StateSyncing
	}, waitFor, tick)

	// A second build queues a draft push, then a locale ping arrives.
	// The locale notification must not displace the queued draft.
	code.fire("src/index.ts")
	b2 := h.waitBuild(t)
	b2.release <- bundler.Result{}
	h.primitive.watchFor(t, "locales").fire("locales/en.json")
	time.Sleep(50 * time.Millisecond)

	close(gate)

	require.Eventually(t, func() bool {
		draft, _, locale := h.client.counts()
		return draft == 2 && locale == 1
	}, waitFor, tick)
}

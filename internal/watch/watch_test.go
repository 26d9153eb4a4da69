package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/extdev/internal/bundler"
	"github.com/leapstack-labs/extdev/internal/extension"
)

// newTestUnit scaffolds a unit of the given type in a temp directory
// and loads it through the regular manifest path.
func newTestUnit(t *testing.T, handle string, typ extension.Type) *extension.Unit {
	t.Helper()

	dir := t.TempDir()
	manifest := fmt.Sprintf("id: test-%s\nhandle: %s\ntype: %s\nentry: src/index.ts\n", handle, handle, typ)
	require.NoError(t, os.WriteFile(filepath.Join(dir, extension.ManifestName), []byte(manifest), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "index.ts"), []byte("export default 1\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "locales"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "locales", "en.json"), []byte("{}\n"), 0o644))

	unit, err := extension.LoadUnit(dir)
	require.NoError(t, err)
	return unit
}

// fakeHandle records close attempts for one fake watch.
type fakeHandle struct {
	closed   atomic.Int32
	closeErr error
}

func (h *fakeHandle) Close() error {
	h.closed.Add(1)
	return h.closeErr
}

// fakeWatch is one Watch call made against the fake primitive.
type fakeWatch struct {
	globs  []string
	fire   func(path string)
	handle *fakeHandle
}

// matches reports whether any glob of this watch contains the needle,
// used by tests to find the watch for a target kind.
func (w *fakeWatch) matches(needle string) bool {
	for _, g := range w.globs {
		if strings.Contains(g, needle) {
			return true
		}
	}
	return false
}

// fakePrimitive hands out fake watches and records them.
type fakePrimitive struct {
	mu      sync.Mutex
	watches []*fakeWatch
	err     error
	// failContains, when set, makes Watch report ErrNoWatchPaths for
	// any glob containing the substring.
	failContains string
}

func (p *fakePrimitive) Watch(globs []string, onChange func(path string)) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	if p.failContains != "" {
		for _, g := range globs {
			if strings.Contains(g, p.failContains) {
				return nil, fmt.Errorf("%w: %s", ErrNoWatchPaths, g)
			}
		}
	}
	w := &fakeWatch{globs: globs, fire: onChange, handle: &fakeHandle{}}
	p.watches = append(p.watches, w)
	return w.handle, nil
}

// watchFor returns the watch whose globs mention needle.
func (p *fakePrimitive) watchFor(t *testing.T, needle string) *fakeWatch {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.watches {
		if w.matches(needle) {
			return w
		}
	}
	t.Fatalf("no watch opened for %q", needle)
	return nil
}

func (p *fakePrimitive) handles() []*fakeHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*fakeHandle, 0, len(p.watches))
	for _, w := range p.watches {
		out = append(out, w.handle)
	}
	return out
}

// fakeBuild is one in-flight build controlled by the test.
type fakeBuild struct {
	unit    *extension.Unit
	ctx     context.Context
	release chan bundler.Result
}

// fakeInvoker blocks every build until the test releases it, so tests
// can interleave change events with build completion precisely.
type fakeInvoker struct {
	started chan *fakeBuild
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{started: make(chan *fakeBuild, 16)}
}

func (f *fakeInvoker) Build(ctx context.Context, unit *extension.Unit) bundler.Result {
	b := &fakeBuild{unit: unit, ctx: ctx, release: make(chan bundler.Result, 1)}
	f.started <- b
	select {
	case result := <-b.release:
		return result
	case <-ctx.Done():
		return bundler.Result{Errors: []string{ctx.Err().Error()}}
	}
}

// fakeClient records sync attempts; an optional gate blocks draft
// pushes until the test opens it.
type fakeClient struct {
	mu          sync.Mutex
	draftCalls  int
	configCalls int
	localeCalls int
	draftErr    error
	gate        chan struct{}
}

func (c *fakeClient) PushDraft(ctx context.Context, _ *extension.Unit) error {
	c.mu.Lock()
	gate := c.gate
	err := c.draftErr
	c.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.mu.Lock()
	c.draftCalls++
	c.mu.Unlock()
	return err
}

func (c *fakeClient) PushConfig(context.Context, *extension.Unit) error {
	c.mu.Lock()
	c.configCalls++
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) NotifyLocaleChange(context.Context, *extension.Unit) error {
	c.mu.Lock()
	c.localeCalls++
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) counts() (draft, config, locale int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draftCalls, c.configCalls, c.localeCalls
}

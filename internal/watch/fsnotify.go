package watch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FSNotify is the fsnotify-backed Primitive. One Watch call owns one
// fsnotify.Watcher rooted at the static portion of each glob.
type FSNotify struct {
	// Logger is the structured logger (optional, discard if nil).
	Logger *slog.Logger
}

// Watch implements Primitive.
func (f *FSNotify) Watch(globs []string, onChange func(path string)) (Handle, error) {
	logger := f.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	compiled := make([]*glob, 0, len(globs))
	for _, pattern := range globs {
		g, err := compileGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid watch pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, g)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	roots := 0
	for _, g := range compiled {
		info, err := os.Stat(g.base)
		if err != nil || !info.IsDir() {
			continue
		}
		if g.Recursive() {
			if err := addTree(watcher, g.base); err != nil {
				_ = watcher.Close()
				return nil, fmt.Errorf("watch %s: %w", g.base, err)
			}
		} else if err := watcher.Add(g.base); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("watch %s: %w", g.base, err)
		}
		roots++
	}
	if roots == 0 {
		_ = watcher.Close()
		return nil, fmt.Errorf("%w: %s", ErrNoWatchPaths, strings.Join(globs, ", "))
	}

	h := &fsHandle{
		watcher: watcher,
		done:    make(chan struct{}),
	}
	go h.loop(compiled, onChange, logger)
	return h, nil
}

// addTree watches dir and every subdirectory, skipping node_modules
// and hidden directories.
func addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		name := info.Name()
		if name == "node_modules" || (path != dir && strings.HasPrefix(name, ".")) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

type fsHandle struct {
	watcher *fsnotify.Watcher
	once    sync.Once
	err     error
	done    chan struct{}
}

// Close stops the watcher and waits for the event loop to drain, so no
// change callback fires after Close returns.
func (h *fsHandle) Close() error {
	h.once.Do(func() {
		h.err = h.watcher.Close()
		<-h.done
	})
	return h.err
}

// loop translates fsnotify events into change callbacks. It exits when
// the watcher's channels close.
func (h *fsHandle) loop(globs []*glob, onChange func(path string), logger *slog.Logger) {
	defer close(h.done)

	for {
		select {
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			// New directories under a recursive glob join the watch so
			// files created inside them are seen.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					for _, g := range globs {
						if g.Recursive() && strings.HasPrefix(filepath.ToSlash(event.Name), g.base+"/") {
							if err := addTree(h.watcher, event.Name); err != nil {
								logger.Warn("watch new directory", "dir", event.Name, "error", err)
							}
							break
						}
					}
					continue
				}
			}

			for _, g := range globs {
				if g.Match(event.Name) {
					onChange(event.Name)
					break
				}
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}

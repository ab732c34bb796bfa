// Package watch observes the workspace's .beads directory and bumps a
// monotonic change generation on every write. Dashboard clients poll the
// generation via /api/status and re-read when it moves; the watcher itself
// never invokes external commands.
package watch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/steveyegge/beads-ui/internal/debug"
)

// Watcher tracks filesystem changes under one directory.
type Watcher struct {
	fsw  *fsnotify.Watcher
	gen  atomic.Uint64
	last atomic.Int64 // unix nanos of the most recent change
}

// New creates a Watcher for dir. The caller must Start it.
func New(dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &Watcher{fsw: fsw}, nil
}

// Start consumes events until ctx is canceled. Run it in a goroutine.
func (w *Watcher) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.gen.Add(1)
				w.last.Store(time.Now().UnixNano())
				debug.Logf("watch: %s (%s), generation=%d\n", event.Name, event.Op, w.gen.Load())
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			debug.Logf("watch: error: %v\n", err)
		}
	}
}

// Generation returns the current change counter. Starts at zero.
func (w *Watcher) Generation() uint64 {
	return w.gen.Load()
}

// LastChange returns the time of the most recent change, or the zero time
// if nothing has changed yet.
func (w *Watcher) LastChange() time.Time {
	ns := w.last.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

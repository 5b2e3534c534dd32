package hub

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of filesystem events (temp file write plus
// rename) into one notification.
const DefaultDebounce = 50 * time.Millisecond

// Watcher refreshes hub topics when files under a directory change, so that
// mutations made by another process reach connected sessions.
type Watcher struct {
	hub      *Hub
	root     string
	topics   []string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	stopCh   chan struct{}
	done     chan struct{}
	once     sync.Once
	started  atomic.Bool
}

// NewWatcher watches root recursively and notifies topics on change. root is
// created when missing.
func NewWatcher(h *Hub, root string, debounce time.Duration, topics ...string) (*Watcher, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ret := &Watcher{
		hub:      h,
		root:     root,
		topics:   topics,
		debounce: debounce,
		watcher:  w,
		logger:   h.logger,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	if err = ret.addRecursive(root); err != nil {
		_ = w.Close()
		return nil, err
	}
	return ret, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			_ = w.watcher.Add(path)
		}
		return nil
	})
}

// Start begins the event loop.
func (w *Watcher) Start(ctx context.Context) {
	if w.started.Swap(true) {
		return
	}
	go w.loop(ctx)
}

// Stop ends the event loop and releases the OS watcher.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
	if w.started.Load() {
		<-w.done
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	pending := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(evt.Name)
				}
			}
			if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if strings.HasSuffix(evt.Name, ".lock") {
				continue
			}
			if !pending {
				pending = true
				timer.Reset(w.debounce)
			}
		case <-timer.C:
			pending = false
			if err := w.hub.NotifyAll(ctx, w.topics...); err != nil {
				w.logger.Warn("hub refresh after file change failed", "root", w.root, "error", err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "root", w.root, "error", err)
		}
	}
}

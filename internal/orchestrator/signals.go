package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SignalWatcher lets an operator stop or pause a running loop by touching
// files in a signals directory: `kill` aborts the run, `pause` holds the
// loop before the next round until the file is removed.
type SignalWatcher struct {
	dir string

	mu          sync.RWMutex
	stopSignal  bool
	pauseSignal bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewSignalWatcher creates a watcher over dir, creating it if needed.
// If the fsnotify watcher cannot be started, the watcher degrades to
// checking the files on each query.
func NewSignalWatcher(dir string) (*SignalWatcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	sw := &SignalWatcher{
		dir:  dir,
		done: make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return sw, nil
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return sw, nil
	}
	sw.watcher = watcher

	go sw.watch()
	return sw, nil
}

// watch updates the signal flags as files appear and disappear.
func (sw *SignalWatcher) watch() {
	for {
		select {
		case <-sw.done:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			base := filepath.Base(event.Name)
			created := event.Op&(fsnotify.Create|fsnotify.Write) != 0
			removed := event.Op&(fsnotify.Remove|fsnotify.Rename) != 0

			sw.mu.Lock()
			switch base {
			case "kill":
				if created {
					sw.stopSignal = true
				}
			case "pause":
				if created {
					sw.pauseSignal = true
				} else if removed {
					sw.pauseSignal = false
				}
			}
			sw.mu.Unlock()
		case <-sw.watcher.Errors:
			// Keep watching; queries fall back to stat.
		}
	}
}

// ShouldStop reports whether a kill signal was received.
func (sw *SignalWatcher) ShouldStop() bool {
	sw.mu.RLock()
	stop := sw.stopSignal
	sw.mu.RUnlock()
	if stop {
		return true
	}
	return sw.exists("kill")
}

// Paused reports whether a pause signal is active.
func (sw *SignalWatcher) Paused() bool {
	sw.mu.RLock()
	paused := sw.pauseSignal
	sw.mu.RUnlock()
	if paused {
		// The flag can go stale if the remove event was missed.
		if !sw.exists("pause") {
			sw.mu.Lock()
			sw.pauseSignal = false
			sw.mu.Unlock()
			return false
		}
		return true
	}
	return sw.exists("pause")
}

// WaitIfPaused blocks while a pause signal is active, polling so a missed
// filesystem event cannot wedge the loop. Returns early on context
// cancellation or a kill signal.
func (sw *SignalWatcher) WaitIfPaused(ctx context.Context) error {
	for sw.Paused() {
		if sw.ShouldStop() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return nil
}

// Close stops the watcher.
func (sw *SignalWatcher) Close() error {
	close(sw.done)
	if sw.watcher != nil {
		return sw.watcher.Close()
	}
	return nil
}

// exists checks for a signal file on disk.
func (sw *SignalWatcher) exists(name string) bool {
	_, err := os.Stat(filepath.Join(sw.dir, name))
	return err == nil
}

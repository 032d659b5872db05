package subagent

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// Watch monitors the loader's agent directories and reloads definitions when
// .md files are created, modified, or removed. Blocks until ctx is cancelled.
// Running delegations are not affected; only new spawns see reloaded
// definitions.
func (d *Dispatcher) Watch(ctx context.Context) error {
	if d.opts.Loader == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dirs := d.opts.Loader.Dirs()
	for _, dir := range dirs {
		_ = watcher.Add(dir) // missing dirs are fine; they may appear later
	}
	if len(dirs) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	var (
		mu            sync.Mutex
		debounceTimer *time.Timer
		pending       bool
	)

	doReload := func() {
		mu.Lock()
		pending = false
		mu.Unlock()
		if err := d.Reload(); err != nil {
			d.log.WithError(err).Warn("agent definition reload failed")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".md") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			// Editors fire bursts of events per save; collapse them.
			mu.Lock()
			if !pending {
				pending = true
				debounceTimer = time.AfterFunc(watchDebounce, doReload)
			} else {
				debounceTimer.Reset(watchDebounce)
			}
			mu.Unlock()

		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}

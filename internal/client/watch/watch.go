// Package watch hands files that appear in a directory to a callback once
// they stop changing.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/kbupload/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before it is handed on.
const DefaultDebounce = 500 * time.Millisecond

// Handler receives the absolute path of a settled regular file.
type Handler func(ctx context.Context, path string) error

// Watcher watches one directory, non-recursively. Hidden files (leading
// dot) are ignored.
type Watcher struct {
	Dir      string
	Debounce time.Duration
	Handle   Handler
	Log      logging.Logger
}

// Run blocks until ctx is done or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	if w.Handle == nil {
		return fmt.Errorf("watch %s: no handler", w.Dir)
	}
	log := w.Log
	if log == nil {
		log = logging.Discard()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	dir, err := filepath.Abs(w.Dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.Dir, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	log.Info(ctx, "watching directory", "dir", dir)

	var (
		mu      sync.Mutex
		timers  = make(map[string]*time.Timer)
		running sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			if t.Stop() {
				running.Done()
			}
		}
		mu.Unlock()
		running.Wait()
	}()

	settle := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[path]; ok && t.Stop() {
			t.Reset(debounce)
			return
		}

		running.Add(1)
		var t *time.Timer
		t = time.AfterFunc(debounce, func() {
			defer running.Done()
			mu.Lock()
			if timers[path] == t {
				delete(timers, path)
			}
			mu.Unlock()

			if ctx.Err() != nil {
				return
			}
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				return
			}
			if err := w.Handle(ctx, path); err != nil {
				log.Warn(ctx, "watched file not queued", "path", path, "error", err)
			}
		})
		timers[path] = t
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if strings.HasPrefix(filepath.Base(ev.Name), ".") {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				log.Debug(ctx, "fsnotify event", "op", ev.Op.String(), "path", ev.Name)
				settle(ev.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Error(ctx, "fsnotify error", "error", err)
		}
	}
}

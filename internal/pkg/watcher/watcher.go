// Package watcher triggers directory syncs when variant files change on
// disk outside of the API.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/productimages/internal/pkg/storage"
	"github.com/ManuelReschke/productimages/internal/pkg/variants"
)

// DefaultDebounce groups bursts of events, e.g. an rsync of many files.
const DefaultDebounce = 2 * time.Second

// TriggerFunc is called once per quiet period for a changed variant key.
type TriggerFunc func(ctx context.Context, key string)

// Watcher watches every canonical variant directory.
type Watcher struct {
	fsw      *fsnotify.Watcher
	keys     map[string]string
	trigger  TriggerFunc
	debounce time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New watches the directories of cfg. Directories that do not exist yet
// are skipped with a warning.
func New(cfg *variants.Config, trigger TriggerFunc, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		keys:     make(map[string]string),
		trigger:  trigger,
		debounce: debounce,
		timers:   make(map[string]*time.Timer),
	}
	for _, key := range cfg.Keys() {
		dir, err := cfg.Dir(key)
		if err != nil {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			log.Warnf("[Watcher] Not watching %s: %v", dir, err)
			continue
		}
		w.keys[filepath.Clean(dir)] = key
	}
	if len(w.keys) == 0 {
		_ = fsw.Close()
		return nil, fmt.Errorf("no variant directory could be watched")
	}
	return w, nil
}

// Start processes events until ctx is done or Close is called.
func (w *Watcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(ctx)
	log.Infof("[Watcher] Watching %d variant directories", len(w.keys))
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warnf("[Watcher] %v", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, storage.TempPrefix) {
		return
	}
	key, ok := w.keys[filepath.Dir(filepath.Clean(event.Name))]
	if !ok {
		return
	}
	w.schedule(ctx, key)
}

// schedule restarts the quiet period of key.
func (w *Watcher) schedule(ctx context.Context, key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[key]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[key] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, key)
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		log.Debugf("[Watcher] Changes in %s", key)
		w.trigger(ctx, key)
	})
}

// Close stops the watcher. Pending triggers are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	for key, t := range w.timers {
		t.Stop()
		delete(w.timers, key)
	}
	w.mu.Unlock()

	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

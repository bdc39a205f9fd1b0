package config

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDebounce absorbs the burst of events editors emit for one save.
const reloadDebounce = 250 * time.Millisecond

// Watcher re-parses a config file when it changes and hands every valid,
// changed result to a callback.
type Watcher struct {
	path     string
	required bool
	log      zerolog.Logger
	apply    func(*Config)

	mu      sync.Mutex
	current *Config
	timer   *time.Timer
}

// NewWatcher watches path. current is the config already in effect; reloads
// that produce an equal config are dropped.
func NewWatcher(path string, current *Config, log zerolog.Logger, apply func(*Config)) *Watcher {
	return &Watcher{path: path, required: true, log: log, apply: apply, current: current}
}

// Watch blocks until ctx is done. A watcher that breaks is recreated with
// exponential backoff.
func (w *Watcher) Watch(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)

	restart := &backoff.ExponentialBackOff{
		InitialInterval:     250 * time.Millisecond,
		RandomizationFactor: 0.5,
		Multiplier:          2,
		MaxInterval:         5 * time.Second,
	}
	restart.Reset()

	defer w.stopTimer()
	for {
		if ctx.Err() != nil {
			return nil
		}
		err := w.watchOnce(ctx, dir, file, restart)
		if ctx.Err() != nil {
			return nil
		}
		wait := restart.NextBackOff()
		w.log.Warn().Err(err).Str("dir", dir).Dur("backoff", wait).Msg("config watcher stopped; restarting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (w *Watcher) watchOnce(ctx context.Context, dir, file string, restart *backoff.ExponentialBackOff) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	// Watch the directory: editors often replace the file by rename.
	if err := fw.Add(dir); err != nil {
		return err
	}
	restart.Reset()
	w.log.Debug().Str("dir", dir).Str("file", file).Msg("config watcher started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.log.Warn().Err(err).Msg("config watch overflow; forcing reload")
				w.schedule()
				continue
			}
			return err
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDebounce, w.Reload)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Reload parses the file now. A file that fails to parse or validate leaves
// the current config in effect.
func (w *Watcher) Reload() {
	cfg, err := Load(w.path, w.required)
	if err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("config reload rejected; keeping previous")
		return
	}

	w.mu.Lock()
	unchanged := reflect.DeepEqual(cfg, w.current)
	if !unchanged {
		w.current = cfg
	}
	w.mu.Unlock()
	if unchanged {
		w.log.Debug().Str("path", w.path).Msg("config unchanged; skipping")
		return
	}

	w.log.Info().Str("path", w.path).Msg("config reloaded")
	if w.apply != nil {
		w.apply(cfg)
	}
}

// Current returns the config most recently applied.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

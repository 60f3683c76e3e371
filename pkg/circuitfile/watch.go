package circuitfile

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/skadi/skadi/pkg/circuit"
	"github.com/skadi/skadi/pkg/telemetry"
)

// DefaultDebounce collapses the burst of events an editor emits for one save.
const DefaultDebounce = 100 * time.Millisecond

// ReloadFunc receives each reload. err is set when the file could not be
// read or verified; rep is nil in that case.
type ReloadFunc func(rep *circuit.Representation, err error)

// Watcher reloads a circuit file whenever it is written. The parent
// directory is watched so that editors replacing the file by rename are
// seen too.
type Watcher struct {
	path     string
	verifier Verifier
	debounce time.Duration
	watcher  *fsnotify.Watcher
	tel      *telemetry.Telemetry

	closeOnce sync.Once
}

// NewWatcher starts watching the directory of path. Call Run to receive
// reloads and Close to release the watch.
func NewWatcher(path string, v Verifier, debounce time.Duration, tel *telemetry.Telemetry) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		abs = filepath.Join(dir, filepath.Base(abs))
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		verifier: v,
		debounce: debounce,
		watcher:  fw,
		tel:      tel.Component("circuitfile"),
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Run delivers reloads to fn until ctx is done or the watcher is closed.
// fn is called from the goroutine running Run.
func (w *Watcher) Run(ctx context.Context, fn ReloadFunc) error {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	log := w.tel.Logger.WithField("path", w.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("File watch error")

		case <-timer.C:
			rep, err := Load(ctx, w.path, w.verifier)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.WithError(err).Warn("Circuit reload failed")
			} else {
				log.WithCircuitID(rep.ID()).Info("Circuit reloaded")
			}
			fn(rep, err)
		}
	}
}

// Close stops the watch. Run returns once the watch is closed.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.watcher.Close()
	})
	return err
}

// Watch reloads path on every write until ctx is done.
func Watch(ctx context.Context, path string, v Verifier, fn ReloadFunc, tel *telemetry.Telemetry) error {
	w, err := NewWatcher(path, v, 0, tel)
	if err != nil {
		return err
	}
	defer w.Close()
	return w.Run(ctx, fn)
}

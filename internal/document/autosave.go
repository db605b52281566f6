package document

import (
	"log/slog"
	"sync"
	"time"

	"EmojiArt/internal/state"
)

const (
	DefaultAutosaveFile     = "Autosaved" + state.FileExtension
	DefaultAutosaveInterval = 5 * time.Second
)

// Autosaver writes the controller's document to disk a while after it
// changes. Bursts of changes inside one interval produce a single save.
type Autosaver struct {
	path     string
	interval time.Duration
	ctrl     *Controller
	logger   *slog.Logger
	cancel   func()
	saveMu   sync.Mutex

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	lastRev uint64
	closed  bool
}

func NewAutosaver(ctrl *Controller, path string, interval time.Duration, logger *slog.Logger) *Autosaver {
	if path == "" {
		path = DefaultAutosaveFile
	}
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Autosaver{
		path:     path,
		interval: interval,
		ctrl:     ctrl,
		logger:   logger,
	}
	a.cancel = ctrl.Subscribe(a.schedule)
	return a
}

func (a *Autosaver) schedule(snap Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || snap.Revision <= a.lastRev {
		return
	}
	a.pending = true
	if a.timer != nil {
		a.timer.Reset(a.interval)
		return
	}
	a.timer = time.AfterFunc(a.interval, func() {
		if err := a.Flush(); err != nil {
			a.logger.Error("autosave failed", "path", a.path, "error", err)
		}
	})
}

// Flush saves immediately if a change is pending. A failed save leaves the
// change pending.
func (a *Autosaver) Flush() error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	if !a.pending {
		a.mu.Unlock()
		return nil
	}
	a.pending = false
	a.mu.Unlock()

	snap := a.ctrl.Snapshot()
	if err := Save(a.path, snap.Model); err != nil {
		a.mu.Lock()
		a.pending = true
		a.mu.Unlock()
		return err
	}

	a.mu.Lock()
	if snap.Revision > a.lastRev {
		a.lastRev = snap.Revision
	}
	a.mu.Unlock()
	a.logger.Info("autosaved", "path", a.path, "revision", snap.Revision)
	return nil
}

// Close stops listening for changes and writes any pending change.
func (a *Autosaver) Close() error {
	a.cancel()
	a.mu.Lock()
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
	}
	a.mu.Unlock()
	return a.Flush()
}

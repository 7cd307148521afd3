package licensing

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
)

// DefaultDebounce collapses bursts of file events into one refresh
const DefaultDebounce = 100 * time.Millisecond

// Watcher refreshes a Holder whenever the license file changes
type Watcher struct {
	holder   *Holder
	path     string
	debounce time.Duration
	fsw      *fsnotify.Watcher
}

// NewWatcher starts watching the directory of path. Editors often replace
// files instead of writing them, so the directory is watched rather than the
// file itself.
func NewWatcher(holder *Holder, path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, terrors.Wrap(err, terrors.CodeInvalidConfiguration, "invalid license path. path=%s", path)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, terrors.Wrap(err, terrors.CodeServerError, "failed to create license watcher")
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, terrors.Wrap(err, terrors.CodeInvalidConfiguration, "failed to watch license directory. path=%s", abs)
	}
	return &Watcher{holder: holder, path: abs, debounce: DefaultDebounce, fsw: fsw}, nil
}

// Run refreshes the holder on changes until ctx is done. A failed refresh is
// logged and the previous license stays active.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if _, err := w.holder.Refresh(ctx); err != nil {
				licenseLogger.Warn("License refresh failed, keeping previous license", "path", w.path, "error", err)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			licenseLogger.Warn("License watcher error", "path", w.path, "error", err)
		}
	}
}

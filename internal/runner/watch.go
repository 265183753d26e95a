package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"bist/internal/engine"
	"bist/internal/evaluator"
	"bist/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce collapses the burst of events an editor save produces.
const watchDebounce = 200 * time.Millisecond

// Watch reruns a file each time it changes and hands the report to
// onResult. It returns when ctx is done.
func (r *Runner) Watch(ctx context.Context, files []string, onResult func(*engine.FileReport)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	// Directories are watched rather than files so that editors which
	// replace the file on save keep triggering events.
	watched := make(map[string]string)
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		watched[abs] = f
		dirs[filepath.Dir(abs)] = true
	}
	for d := range dirs {
		if err := w.Add(d); err != nil {
			return fmt.Errorf("failed to watch %s: %w", d, err)
		}
		logging.Debug("Watch", "watching directory %s", d)
	}

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(watchDebounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			if _, ok := watched[abs]; ok {
				pending[abs] = time.Now()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logging.Warn("Watch", "watcher error: %v", err)

		case <-ticker.C:
			for abs, at := range pending {
				if time.Since(at) < watchDebounce {
					continue
				}
				delete(pending, abs)
				path := watched[abs]
				logging.Info("Watch", "%s changed, rerunning", path)
				rep, err := r.RunFile(ctx, path, r.opts.Output, r.opts.Leak)
				if err != nil {
					if errors.Is(err, evaluator.ErrInterrupted) {
						return nil
					}
					return err
				}
				onResult(rep)
			}
		}
	}
}

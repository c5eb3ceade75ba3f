// Package watch triggers sync runs when files in the vault change.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// TriggerFunc is called once per quiet period after one or more changes.
// path is the last changed file, relative to the watched root.
type TriggerFunc func(path string)

// Watch starts an fsnotify watcher on root and calls trigger after changes
// settle for debounce. It blocks until ctx is cancelled.
//
// New directories created at runtime are added to the watch list. Hidden
// directories (.obsidian, .git, .trash) and paths for which ignore returns
// true are not watched.
func Watch(ctx context.Context, root string, debounce time.Duration, logger *slog.Logger, ignore func(abs string) bool, trigger TriggerFunc) error {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	if ignore == nil {
		ignore = func(string) bool { return false }
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root, ignore); err != nil {
		return err
	}

	logger.Info("watch: started", slog.String("root", root), slog.Duration("debounce", debounce))

	var timer *time.Timer
	var timerCh <-chan time.Time
	var lastPath string

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watch: stopped")
			return nil

		case <-timerCh:
			timer = nil
			timerCh = nil
			logger.Debug("watch: changes settled", slog.String("path", lastPath))
			trigger(lastPath)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name
			if ignore(absPath) || hidden(root, absPath) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath, ignore); addErr != nil {
						logger.Warn("watch: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watch: watching new dir", slog.String("path", absPath))
					}
				}
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}

			if rel, relErr := filepath.Rel(root, absPath); relErr == nil {
				lastPath = filepath.ToSlash(rel)
			}
			logger.Debug("watch: change", slog.String("path", lastPath), slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch: error", slog.String("error", watchErr.Error()))
		}
	}
}

// hidden reports whether any element of abs below root starts with a dot.
func hidden(root, abs string) bool {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

// addDirsRecursive adds dir and its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, dir string, ignore func(string) bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && (strings.HasPrefix(d.Name(), ".") || ignore(path)) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

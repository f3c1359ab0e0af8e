package script

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the watcher waits for further changes
// before reloading.
const DefaultDebounce = 500 * time.Millisecond

// ReloadFunc receives the scripts reloaded after a change. err holds the
// load errors, if any; scripts that did load are still passed.
type ReloadFunc func(ctx context.Context, scripts []*Script, err error)

// Watcher reloads scripts when their files change.
type Watcher struct {
	loader   *Loader
	logger   zerolog.Logger
	debounce time.Duration
}

// NewWatcher creates a watcher that loads scripts with loader.
func NewWatcher(loader *Loader, logger zerolog.Logger) *Watcher {
	return &Watcher{
		loader:   loader,
		logger:   logger.With().Str("component", "script-watcher").Logger(),
		debounce: DefaultDebounce,
	}
}

// SetDebounce changes the reload delay.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Watch blocks until ctx is done, calling fn after script files under
// paths are written, created or renamed. Directories are watched
// recursively; for a file its parent directory is watched so that editors
// replacing the file are noticed.
func (w *Watcher) Watch(ctx context.Context, paths []string, fn ReloadFunc) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	files := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}

		if info.IsDir() {
			if err := addTree(fsw, path, dirs); err != nil {
				return fmt.Errorf("failed to watch directory %s: %w", path, err)
			}
			continue
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		files[abs] = true
		if err := fsw.Add(filepath.Dir(abs)); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
	}

	w.logger.Info().
		Int("paths", len(paths)).
		Msg("Started watching script paths")

	reload := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addTree(fsw, event.Name, dirs); err != nil {
						w.logger.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
					}
					continue
				}
			}
			if !w.relevant(event.Name, files, dirs) {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Script file changed")

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			scripts, err := w.loader.LoadPaths(paths)
			if err != nil {
				w.logger.Error().Err(err).Msg("Failed to reload scripts")
			}
			fn(ctx, scripts, err)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// relevant reports whether a changed file belongs to the watched set:
// a watched file, or any script file inside a watched directory tree. A
// parent directory added for a single file only counts for that file.
func (w *Watcher) relevant(name string, files, dirs map[string]bool) bool {
	if !IsScriptFile(name) {
		return false
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	return dirs[filepath.Dir(abs)] || files[abs]
}

// addTree watches dir and all its subdirectories, recording them in dirs.
func addTree(fsw *fsnotify.Watcher, dir string, dirs map[string]bool) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := fsw.Add(path); err != nil {
			return err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		dirs[abs] = true
		return nil
	})
}

// Package watch reports changed source files below a site root.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Options configure a Watcher.
type Options struct {
	// Root is watched recursively.
	Root string
	// Skip lists absolute directories that are never watched, such as the output directory.
	Skip []string
	// Notify receives the absolute path of every relevant change.
	Notify func(paths ...string)
	Logger *slog.Logger
}

// Watcher feeds filesystem changes below Root into Notify.
type Watcher struct {
	opts Options
	w    *fsnotify.Watcher
	skip map[string]bool

	wg   sync.WaitGroup
	once sync.Once
}

// New creates a watcher and registers every directory below opts.Root.
func New(opts Options) (*Watcher, error) {
	if opts.Notify == nil {
		return nil, derrors.ValidationError("watch notify function is required").Build()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "invalid watch root").Build()
	}
	opts.Root = root

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "failed to create file watcher").Build()
	}
	w := &Watcher{opts: opts, w: fw, skip: make(map[string]bool, len(opts.Skip))}
	for _, s := range opts.Skip {
		if abs, err := filepath.Abs(s); err == nil {
			w.skip[abs] = true
		}
	}
	if err := w.addRecursive(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// Start processes events until ctx is done or Close is called.
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
	w.opts.Logger.Info("Watching for changes", logfields.Scope(w.opts.Root))
}

// Close stops the watcher and waits for the event loop to return.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() { err = w.w.Close() })
	w.wg.Wait()
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.opts.Logger.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod || Ignored(ev.Name) || w.skipped(ev.Name) {
		return
	}
	if ev.Op.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				w.opts.Logger.Warn("Failed to watch new directory", logfields.File(ev.Name), logfields.Error(err))
			}
			w.notifyTree(ev.Name)
			return
		}
	}
	w.opts.Logger.Debug("File change detected", logfields.File(ev.Name), slog.String("op", ev.Op.String()))
	w.opts.Notify(ev.Name)
}

// notifyTree reports the files of a directory that appeared in one step,
// since their own create events may have fired before the directory was watched.
func (w *Watcher) notifyTree(dir string) {
	var paths []string
	_ = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != dir && w.skipDir(p, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !Ignored(p) {
			paths = append(paths, p)
		}
		return nil
	})
	if len(paths) > 0 {
		w.opts.Notify(paths...)
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.opts.Root && w.skipDir(p, d.Name()) {
			return filepath.SkipDir
		}
		if err := w.w.Add(p); err != nil {
			return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to watch directory").
				WithContext("dir", p).Build()
		}
		return nil
	})
}

func (w *Watcher) skipDir(p, name string) bool {
	return w.skip[p] || strings.HasPrefix(name, ".") || name == "node_modules"
}

func (w *Watcher) skipped(p string) bool {
	for dir := range w.skip {
		if p == dir || strings.HasPrefix(p, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Ignored reports editor swap files, hidden files and OS metadata files.
func Ignored(p string) bool {
	base := filepath.Base(p)
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"), strings.HasSuffix(base, ".swp"), strings.HasSuffix(base, ".swx"):
		return true
	case strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == "Thumbs.db":
		return true
	}
	return false
}

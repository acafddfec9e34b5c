package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Watcher evicts cached book text when files under the storage root change on disk.
type Watcher struct {
	root    string
	store   *FileStore
	fs      afero.Fs
	watcher *fsnotify.Watcher
	logger  *zap.Logger
}

// NewWatcher watches root and every directory below it.
func NewWatcher(root string, store *FileStore, logger *zap.Logger) (*Watcher, error) {
	if store == nil {
		return nil, newServiceError(opWatch, "missing_store", errMissingStore)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	absolute, err := filepath.Abs(root)
	if err != nil {
		return nil, newServiceError(opWatch, reasonIO, err)
	}
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, newServiceError(opWatch, reasonIO, err)
	}
	w := &Watcher{
		root:    absolute,
		store:   store,
		fs:      afero.NewOsFs(),
		watcher: notifier,
		logger:  logger,
	}
	if err := w.addTree(absolute); err != nil {
		_ = notifier.Close()
		return nil, err
	}
	return w, nil
}

// Run processes filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("library watcher error", zap.Error(err))
		}
	}
}

// Close stops watching. Run returns once the event channels close.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := w.fs.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("library watcher could not follow directory", zap.String("path", event.Name), zap.Error(err))
			}
			return
		}
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Create) {
		return
	}
	relative, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	w.store.Invalidate(filepath.ToSlash(relative))
}

func (w *Watcher) addTree(directory string) error {
	return afero.Walk(w.fs, directory, func(current string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if err := w.watcher.Add(current); err != nil {
			return newServiceError(opWatch, reasonIO, err)
		}
		return nil
	})
}

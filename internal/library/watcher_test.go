package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherInvalidatesChangedBlobs(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(afero.NewBasePathFs(afero.NewOsFs(), root), DefaultTextCacheEntries, nil)
	require.NoError(t, err)
	require.NoError(t, store.Put("public/a.txt", []byte("v1")))
	_, err = store.Text("public/a.txt")
	require.NoError(t, err)
	require.True(t, store.Cached("public/a.txt"))

	watcher, err := NewWatcher(root, store, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = watcher.Close() })

	watcher.handleEvent(fsnotify.Event{Name: filepath.Join(watcher.root, "public", "a.txt"), Op: fsnotify.Chmod})
	assert.True(t, store.Cached("public/a.txt"), "chmod keeps cached text")

	watcher.handleEvent(fsnotify.Event{Name: filepath.Join(watcher.root, "public", "a.txt"), Op: fsnotify.Write})
	assert.False(t, store.Cached("public/a.txt"))
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(afero.NewBasePathFs(afero.NewOsFs(), root), DefaultTextCacheEntries, nil)
	require.NoError(t, err)
	watcher, err := NewWatcher(root, store, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = watcher.Close() })

	created := filepath.Join(watcher.root, "private", "reader-1")
	require.NoError(t, os.MkdirAll(created, 0o755))
	watcher.handleEvent(fsnotify.Event{Name: filepath.Join(watcher.root, "private"), Op: fsnotify.Create})

	assert.Contains(t, watcher.watcher.WatchList(), created)
}

package library

import (
	"errors"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// DefaultTextCacheEntries bounds the decoded text kept in memory when no capacity is configured.
const DefaultTextCacheEntries = 32

// FileStore keeps book blobs on an afero filesystem and caches decoded text by path.
// At most cacheEntries texts are held; the oldest is evicted first. Zero disables the cache.
type FileStore struct {
	fs     afero.Fs
	logger *zap.Logger

	mu           sync.RWMutex
	cacheEntries int
	cache        map[string]string
	order        []string
}

// NewFileStore wraps fs. Paths given to the store are slash-separated and relative to the root of fs.
func NewFileStore(fs afero.Fs, cacheEntries int, logger *zap.Logger) (*FileStore, error) {
	if fs == nil {
		return nil, newServiceError(opServiceNew, "missing_filesystem", errMissingStore)
	}
	if cacheEntries < 0 {
		cacheEntries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{
		fs:           fs,
		logger:       logger,
		cacheEntries: cacheEntries,
		cache:        make(map[string]string, cacheEntries),
	}, nil
}

// Put writes data at blobPath, creating parent directories.
func (s *FileStore) Put(blobPath string, data []byte) error {
	cleaned, err := cleanBlobPath(blobPath)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(path.Dir(cleaned), 0o755); err != nil {
		return newServiceError(opStorePut, reasonIO, err)
	}
	if err := afero.WriteFile(s.fs, cleaned, data, 0o644); err != nil {
		return newServiceError(opStorePut, reasonIO, err)
	}
	s.Invalidate(cleaned)
	return nil
}

// Text returns the blob at blobPath as a string, serving repeated reads from memory.
func (s *FileStore) Text(blobPath string) (string, error) {
	cleaned, err := cleanBlobPath(blobPath)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	cached, ok := s.cache[cleaned]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	data, err := s.read(cleaned)
	if err != nil {
		return "", err
	}
	text := string(data)
	s.remember(cleaned, text)
	return text, nil
}

func (s *FileStore) remember(cleaned, text string) {
	if s.cacheEntries == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cache[cleaned]; !ok {
		for len(s.order) >= s.cacheEntries {
			oldest := s.order[0]
			s.order = s.order[1:]
			delete(s.cache, oldest)
		}
		s.order = append(s.order, cleaned)
	}
	s.cache[cleaned] = text
}

// Bytes returns the raw blob without touching the text cache.
func (s *FileStore) Bytes(blobPath string) ([]byte, error) {
	cleaned, err := cleanBlobPath(blobPath)
	if err != nil {
		return nil, err
	}
	return s.read(cleaned)
}

// Delete removes the blob. A missing blob is not an error.
func (s *FileStore) Delete(blobPath string) error {
	cleaned, err := cleanBlobPath(blobPath)
	if err != nil {
		return err
	}
	s.Invalidate(cleaned)
	if err := s.fs.Remove(cleaned); err != nil && !errors.Is(err, os.ErrNotExist) {
		return newServiceError(opStoreDelete, reasonIO, err)
	}
	return nil
}

// Invalidate drops the cached text of blobPath.
func (s *FileStore) Invalidate(blobPath string) {
	cleaned, err := cleanBlobPath(blobPath)
	if err != nil {
		return
	}
	s.mu.Lock()
	_, existed := s.cache[cleaned]
	if existed {
		delete(s.cache, cleaned)
		for index, candidate := range s.order {
			if candidate == cleaned {
				s.order = append(s.order[:index], s.order[index+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()
	if existed {
		s.logger.Debug("blob cache invalidated", zap.String("path", cleaned))
	}
}

// Cached reports whether blobPath is held in memory.
func (s *FileStore) Cached(blobPath string) bool {
	cleaned, err := cleanBlobPath(blobPath)
	if err != nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cache[cleaned]
	return ok
}

// CachedCount reports how many texts are held in memory.
func (s *FileStore) CachedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

func (s *FileStore) read(cleaned string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, cleaned)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, newServiceError(opStoreGet, reasonIO, err)
	}
	return data, nil
}

func cleanBlobPath(blobPath string) (string, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(blobPath, "\\", "/"))
	if trimmed == "" || strings.HasPrefix(trimmed, "/") {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean(trimmed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

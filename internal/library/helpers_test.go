package library

import (
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type countingIDs struct {
	mu   sync.Mutex
	next int
}

func (c *countingIDs) NewID() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	return fmt.Sprintf("book-%03d", c.next), nil
}

type stubSigner struct {
	signed []string
	err    error
}

func (s *stubSigner) SignPath(blobPath string) (string, time.Time, error) {
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	s.signed = append(s.signed, blobPath)
	return "signed-token", time.Unix(1700003600, 0).UTC(), nil
}

type fixture struct {
	service *Service
	store   *FileStore
	fs      afero.Fs
	db      *gorm.DB
	signer  *stubSigner
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:library_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Book{}))

	fs := afero.NewMemMapFs()
	store, err := NewFileStore(fs, DefaultTextCacheEntries, nil)
	require.NoError(t, err)

	tick := time.Unix(1700000000, 0).UTC()
	var clockMu sync.Mutex
	clock := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		tick = tick.Add(time.Minute)
		return tick
	}

	signer := &stubSigner{}
	service, err := NewService(ServiceConfig{
		Database:       db,
		Store:          store,
		Signer:         signer,
		IDProvider:     &countingIDs{},
		Clock:          clock,
		MaxUploadBytes: 1024,
	})
	require.NoError(t, err)
	return fixture{service: service, store: store, fs: fs, db: db, signer: signer}
}

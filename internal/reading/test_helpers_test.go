package reading

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sequenceIDProvider struct {
	mu   sync.Mutex
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return fmt.Sprintf("id-%04d", p.next), nil
}

type steppingClock struct {
	mu      sync.Mutex
	current time.Time
}

func newSteppingClock() *steppingClock {
	return &steppingClock{current: time.Unix(1700000000, 0).UTC()}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(time.Second)
	return c.current
}

type memoryDocuments struct {
	mu        sync.Mutex
	documents map[BookName]Document
	failWith  error
	fetches   int
}

func newMemoryDocuments() *memoryDocuments {
	return &memoryDocuments{documents: map[BookName]Document{}}
}

func (m *memoryDocuments) put(name BookName, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[name] = Document{Name: name, Content: content}
}

func (m *memoryDocuments) FetchContent(_ context.Context, _ UserID, bookName BookName) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.failWith != nil {
		return Document{}, m.failWith
	}
	document, ok := m.documents[bookName]
	if !ok {
		return Document{}, ErrBookNotFound
	}
	return document, nil
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:reading_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&ReadingPosition{}, &ReadingSettings{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestStores(t *testing.T, db *gorm.DB) (*PositionStore, *SettingsStore) {
	t.Helper()
	cfg := StoreConfig{
		Database:   db,
		Clock:      newSteppingClock().Now,
		IDProvider: &sequenceIDProvider{},
	}
	positions, err := NewPositionStore(cfg)
	if err != nil {
		t.Fatalf("failed to construct position store: %v", err)
	}
	settings, err := NewSettingsStore(cfg)
	if err != nil {
		t.Fatalf("failed to construct settings store: %v", err)
	}
	return positions, settings
}

func newTestService(t *testing.T, logger *zap.Logger) (*Service, *memoryDocuments, *gorm.DB) {
	t.Helper()
	db := openTestDatabase(t)
	positions, settings := newTestStores(t, db)
	documents := newMemoryDocuments()
	service, err := NewService(ServiceConfig{
		Documents:  documents,
		Positions:  positions,
		Settings:   settings,
		SplitCache: NewSplitCache(8),
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("failed to construct reading service: %v", err)
	}
	return service, documents, db
}

func mustUserID(t *testing.T, value string) UserID {
	t.Helper()
	id, err := NewUserID(value)
	if err != nil {
		t.Fatalf("unexpected user id error: %v", err)
	}
	return id
}

func mustBookName(t *testing.T, value string) BookName {
	t.Helper()
	name, err := NewBookName(value)
	if err != nil {
		t.Fatalf("unexpected book name error: %v", err)
	}
	return name
}

// numberedWords returns "w1 w2 ... wN".
func numberedWords(count int) string {
	words := make([]string, count)
	for index := range words {
		words[index] = fmt.Sprintf("w%d", index+1)
	}
	return strings.Join(words, " ")
}

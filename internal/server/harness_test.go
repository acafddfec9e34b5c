package server

import (
	contextpkg "context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/companion/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/library"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/reading"
	sqlite "github.com/glebarez/sqlite"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testDownloadSecret = "test-download-secret"

var errNoBearer = errors.New("missing bearer")

// bearerSessions treats the bearer token as the reader identifier.
type bearerSessions struct{}

func (bearerSessions) ValidateRequest(r *http.Request) (auth.SessionClaims, error) {
	header := r.Header.Get("Authorization")
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if !strings.HasPrefix(header, "Bearer ") || token == "" {
		return auth.SessionClaims{}, fmt.Errorf("%w: %w", auth.ErrMissingSessionToken, errNoBearer)
	}
	return auth.SessionClaims{UserID: token}, nil
}

type claimsReaders struct{}

func (claimsReaders) ResolveReader(_ contextpkg.Context, claims auth.SessionClaims) (reading.UserID, error) {
	return reading.NewUserID(claims.UserID)
}

type testServer struct {
	server     *httptest.Server
	library    *library.Service
	realtime   *RealtimeDispatcher
	downloads  *auth.DownloadSigner
	httpClient *http.Client
}

type testServerOptions struct {
	limiter   *RateLimiter
	heartbeat time.Duration
}

func newTestServer(t *testing.T, options testServerOptions) *testServer {
	t.Helper()
	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&reading.ReadingPosition{}, &reading.ReadingSettings{}, &library.Book{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	store, err := library.NewFileStore(afero.NewMemMapFs(), library.DefaultTextCacheEntries, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to build file store: %v", err)
	}
	signer, err := auth.NewDownloadSigner(auth.DownloadSignerConfig{
		SigningSecret: []byte(testDownloadSecret),
		TTL:           time.Minute,
	})
	if err != nil {
		t.Fatalf("failed to build download signer: %v", err)
	}
	catalog, err := library.NewService(library.ServiceConfig{
		Database:       db,
		Store:          store,
		Signer:         signer,
		IDProvider:     reading.NewUUIDProvider(),
		MaxUploadBytes: 64 * 1024,
	})
	if err != nil {
		t.Fatalf("failed to build library service: %v", err)
	}

	storeConfig := reading.StoreConfig{Database: db, IDProvider: reading.NewUUIDProvider()}
	positions, err := reading.NewPositionStore(storeConfig)
	if err != nil {
		t.Fatalf("failed to build position store: %v", err)
	}
	settings, err := reading.NewSettingsStore(storeConfig)
	if err != nil {
		t.Fatalf("failed to build settings store: %v", err)
	}
	readingService, err := reading.NewService(reading.ServiceConfig{
		Documents:  catalog,
		Positions:  positions,
		Settings:   settings,
		SplitCache: reading.NewSplitCache(8),
	})
	if err != nil {
		t.Fatalf("failed to build reading service: %v", err)
	}

	dispatcher := NewRealtimeDispatcher()
	handler, err := NewHTTPHandler(Dependencies{
		Sessions:          bearerSessions{},
		Readers:           claimsReaders{},
		Reading:           readingService,
		Library:           catalog,
		Downloads:         signer,
		Realtime:          dispatcher,
		Limiter:           options.limiter,
		HeartbeatInterval: options.heartbeat,
		Logger:            zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &testServer{
		server:     server,
		library:    catalog,
		realtime:   dispatcher,
		downloads:  signer,
		httpClient: server.Client(),
	}
}

func (s *testServer) addBook(t *testing.T, owner, title string, wordCount int, public bool) library.Book {
	t.Helper()
	book, err := s.library.Upload(contextpkg.Background(), reading.UserID(owner), library.UploadRequest{
		Title:       title,
		IsPublic:    public,
		FileName:    "book.txt",
		ContentType: library.ContentTypePlain,
		Data:        []byte(numberedWords(wordCount)),
	})
	if err != nil {
		t.Fatalf("failed to add book %q: %v", title, err)
	}
	return book
}

func (s *testServer) do(t *testing.T, method, path, reader string, body string) *http.Response {
	t.Helper()
	payload := io.Reader(http.NoBody)
	if body != "" {
		payload = strings.NewReader(body)
	}
	request, err := http.NewRequest(method, s.server.URL+path, payload)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	if reader != "" {
		request.Header.Set("Authorization", "Bearer "+reader)
	}
	response, err := s.httpClient.Do(request)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { _ = response.Body.Close() })
	return response
}

func numberedWords(count int) string {
	words := make([]string, count)
	for index := range words {
		words[index] = fmt.Sprintf("w%d", index+1)
	}
	return strings.Join(words, " ")
}

package reading

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestServiceStartPersistsFirstPage(t *testing.T) {
	service, documents, _ := newTestService(t, nil)
	ctx := context.Background()
	userID := mustUserID(t, "user-1")
	book := mustBookName(t, "long-book")
	documents.put(book, numberedWords(1200))

	view, err := service.Start(ctx, userID, book)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if view.CurrentPage != 1 || view.TotalPages != 3 {
		t.Fatalf("unexpected view %#v", view)
	}
	if !view.HasNext || view.HasPrevious {
		t.Fatalf("unexpected navigation flags %#v", view)
	}
	if !strings.HasPrefix(view.Content, "w1 w2") || len(strings.Fields(view.Content)) != 500 {
		t.Fatalf("expected full first page under default paragraph mode")
	}

	history, err := service.History(ctx, userID, book)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if history == nil || history.CurrentPage != 1 || history.TotalPages != 3 {
		t.Fatalf("unexpected history %#v", history)
	}
}

func TestServiceGoToValidatesRange(t *testing.T) {
	service, documents, _ := newTestService(t, nil)
	ctx := context.Background()
	userID := mustUserID(t, "user-1")
	book := mustBookName(t, "long-book")
	documents.put(book, numberedWords(1200))

	for _, page := range []int{0, -1, 4} {
		if _, err := service.GoTo(ctx, userID, book, page); !errors.Is(err, ErrInvalidPageNumber) {
			t.Fatalf("expected invalid page error for %d, got %v", page, err)
		}
	}
	history, _ := service.History(ctx, userID, book)
	if history != nil {
		t.Fatalf("expected rejected navigation to leave no history, got %#v", history)
	}

	view, err := service.GoTo(ctx, userID, book, 3)
	if err != nil {
		t.Fatalf("goto failed: %v", err)
	}
	if view.HasNext || !view.HasPrevious || !strings.HasPrefix(view.Content, "w1001 ") {
		t.Fatalf("unexpected last page view %#v", view)
	}
}

func TestServiceContinueResumesStoredPage(t *testing.T) {
	service, documents, _ := newTestService(t, nil)
	ctx := context.Background()
	userID := mustUserID(t, "user-1")
	book := mustBookName(t, "long-book")
	documents.put(book, numberedWords(1200))

	if _, err := service.GoTo(ctx, userID, book, 2); err != nil {
		t.Fatalf("goto failed: %v", err)
	}
	view, err := service.Continue(ctx, userID, book)
	if err != nil {
		t.Fatalf("continue failed: %v", err)
	}
	if view.CurrentPage != 2 || !view.HasNext || !view.HasPrevious {
		t.Fatalf("unexpected view %#v", view)
	}
}

func TestServiceContinueWithoutHistoryStarts(t *testing.T) {
	service, documents, _ := newTestService(t, nil)
	ctx := context.Background()
	book := mustBookName(t, "short-book")
	documents.put(book, "just a few words")

	view, err := service.Continue(ctx, mustUserID(t, "user-1"), book)
	if err != nil {
		t.Fatalf("continue failed: %v", err)
	}
	if view.CurrentPage != 1 || view.TotalPages != 1 || view.HasNext || view.HasPrevious {
		t.Fatalf("unexpected view %#v", view)
	}
}

func TestServiceContinueClampsShrunkBook(t *testing.T) {
	core, recorded := observer.New(zapcore.WarnLevel)
	service, documents, _ := newTestService(t, zap.New(core))
	ctx := context.Background()
	userID := mustUserID(t, "user-1")
	book := mustBookName(t, "revised-book")
	documents.put(book, numberedWords(1200))

	if _, err := service.GoTo(ctx, userID, book, 3); err != nil {
		t.Fatalf("goto failed: %v", err)
	}
	documents.put(book, numberedWords(700))

	view, err := service.Continue(ctx, userID, book)
	if err != nil {
		t.Fatalf("continue failed: %v", err)
	}
	if view.CurrentPage != 2 || view.TotalPages != 2 {
		t.Fatalf("expected clamp to last page, got %#v", view)
	}
	if recorded.FilterMessage("stored page beyond book end").Len() != 1 {
		t.Fatalf("expected clamp warning to be logged")
	}
	history, _ := service.History(ctx, userID, book)
	if history.CurrentPage != 2 || history.TotalPages != 2 {
		t.Fatalf("expected clamped position to persist, got %#v", history)
	}
}

func TestServiceAppliesSentenceSettings(t *testing.T) {
	service, documents, _ := newTestService(t, nil)
	ctx := context.Background()
	userID := mustUserID(t, "user-1")
	book := mustBookName(t, "greetings")
	documents.put(book, "Hello. World. Foo.")

	if _, err := service.SetSettings(ctx, userID, ModeSentences, 2); err != nil {
		t.Fatalf("set settings failed: %v", err)
	}
	view, err := service.Start(ctx, userID, book)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if view.Content != "Hello.  World." {
		t.Fatalf("unexpected content %q", view.Content)
	}
}

func TestServiceSetSettingsRejectsInvalidInput(t *testing.T) {
	service, _, _ := newTestService(t, nil)
	ctx := context.Background()
	userID := mustUserID(t, "user-1")

	cases := []struct {
		mode   ReadingMode
		amount int
	}{
		{ModeParagraphs, 0},
		{ModeParagraphs, 11},
		{ModeSentences, 21},
		{ReadingMode("chapters"), 2},
	}
	for _, testCase := range cases {
		if _, err := service.SetSettings(ctx, userID, testCase.mode, testCase.amount); !errors.Is(err, ErrInvalidSettings) {
			t.Fatalf("expected invalid settings for %s/%d, got %v", testCase.mode, testCase.amount, err)
		}
	}
	settings, err := service.GetSettings(ctx, userID)
	if err != nil {
		t.Fatalf("get settings failed: %v", err)
	}
	if settings.ReadingMode != DefaultReadingMode || settings.ReadingAmount != DefaultReadingAmount {
		t.Fatalf("expected defaults to remain, got %#v", settings)
	}
}

func TestServiceFind(t *testing.T) {
	service, documents, _ := newTestService(t, nil)
	ctx := context.Background()
	userID := mustUserID(t, "user-1")
	book := mustBookName(t, "cats")
	documents.put(book, "the cat sat. the cat ran.")

	results, err := service.Find(ctx, userID, book, "cat")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(results.Results) != 2 || results.Results[0].Position != 4 || results.Results[1].Position != 17 {
		t.Fatalf("unexpected results %#v", results.Results)
	}
	history, _ := service.History(ctx, userID, book)
	if history != nil {
		t.Fatalf("expected search to leave reading state untouched")
	}

	fetches := documents.fetches
	for _, keyword := range []string{"", " ", "   ", "\t\n"} {
		empty, err := service.Find(ctx, userID, book, keyword)
		if err != nil || len(empty.Results) != 0 {
			t.Fatalf("expected empty results for blank keyword %q, got %#v, %v", keyword, empty, err)
		}
	}
	if documents.fetches != fetches {
		t.Fatalf("expected blank keyword to skip fetching")
	}
}

func TestServiceMissingBook(t *testing.T) {
	service, _, _ := newTestService(t, nil)
	ctx := context.Background()
	userID := mustUserID(t, "user-1")
	book := mustBookName(t, "nowhere")

	if _, err := service.Start(ctx, userID, book); !IsNotFound(err) {
		t.Fatalf("expected not found from start, got %v", err)
	}
	if _, err := service.Find(ctx, userID, book, "x"); !IsNotFound(err) {
		t.Fatalf("expected not found from find, got %v", err)
	}
}

func TestServiceWrapsFetchFailures(t *testing.T) {
	service, documents, _ := newTestService(t, nil)
	documents.failWith = errors.New("storage offline")

	_, err := service.Start(context.Background(), mustUserID(t, "user-1"), mustBookName(t, "any"))
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected service error, got %v", err)
	}
	if serviceErr.Code() != "reading.start.fetch_failed" {
		t.Fatalf("unexpected code %s", serviceErr.Code())
	}
}

func TestServiceFailsWhenPositionPersistFails(t *testing.T) {
	service, documents, db := newTestService(t, nil)
	book := mustBookName(t, "cats")
	documents.put(book, "the cat sat. the cat ran.")
	if err := db.Migrator().DropTable(&ReadingPosition{}); err != nil {
		t.Fatalf("drop table failed: %v", err)
	}

	view, err := service.Start(context.Background(), mustUserID(t, "user-1"), book)
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected service error, got %v", err)
	}
	if serviceErr.Code() != "reading.position_upsert.upsert_failed" {
		t.Fatalf("unexpected code %s", serviceErr.Code())
	}
	if view != (PageView{}) {
		t.Fatalf("expected no page content on persist failure, got %#v", view)
	}
}

func TestServiceEmptyBookHasOnePage(t *testing.T) {
	service, documents, _ := newTestService(t, nil)
	book := mustBookName(t, "blank")
	documents.put(book, "   ")

	view, err := service.Start(context.Background(), mustUserID(t, "user-1"), book)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if view.TotalPages != 1 || view.Content != "" {
		t.Fatalf("unexpected view %#v", view)
	}
}

func TestServiceListHistory(t *testing.T) {
	service, documents, _ := newTestService(t, nil)
	ctx := context.Background()
	userID := mustUserID(t, "user-1")
	for _, name := range []string{"first", "second"} {
		book := mustBookName(t, name)
		documents.put(book, numberedWords(10))
		if _, err := service.Start(ctx, userID, book); err != nil {
			t.Fatalf("start failed: %v", err)
		}
	}
	listed, err := service.ListHistory(ctx, userID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 2 || listed[0].BookName != "second" {
		t.Fatalf("unexpected history %#v", listed)
	}
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	if _, err := NewService(ServiceConfig{}); err == nil {
		t.Fatalf("expected error for missing collaborators")
	}
}

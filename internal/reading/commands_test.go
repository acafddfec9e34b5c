package reading

import (
	"context"
	"errors"
	"testing"
)

type unsupportedCommand struct{ Command }

func TestExecuteDispatchesCommands(t *testing.T) {
	service, documents, _ := newTestService(t, nil)
	ctx := context.Background()
	userID := mustUserID(t, "user-1")
	book := mustBookName(t, "long-book")
	documents.put(book, numberedWords(1200))

	outcome, err := service.Execute(ctx, userID, StartCommand{Book: book})
	if err != nil || outcome.Page == nil || outcome.Page.CurrentPage != 1 {
		t.Fatalf("unexpected start outcome %#v, %v", outcome, err)
	}

	outcome, err = service.Execute(ctx, userID, GoToCommand{Book: book, Page: 2})
	if err != nil || outcome.Page == nil || outcome.Page.CurrentPage != 2 {
		t.Fatalf("unexpected goto outcome %#v, %v", outcome, err)
	}

	outcome, err = service.Execute(ctx, userID, ContinueCommand{Book: book})
	if err != nil || outcome.Page == nil || outcome.Page.CurrentPage != 2 {
		t.Fatalf("unexpected continue outcome %#v, %v", outcome, err)
	}

	outcome, err = service.Execute(ctx, userID, FindCommand{Book: book, Keyword: "w1000"})
	if err != nil || outcome.Search == nil || len(outcome.Search.Results) != 1 {
		t.Fatalf("unexpected find outcome %#v, %v", outcome, err)
	}

	outcome, err = service.Execute(ctx, userID, HistoryCommand{Book: book})
	if err != nil || outcome.History == nil || outcome.History.CurrentPage != 2 {
		t.Fatalf("unexpected history outcome %#v, %v", outcome, err)
	}

	outcome, err = service.Execute(ctx, userID, SetSettingsCommand{Mode: ModeFullPage, Amount: 1})
	if err != nil || outcome.Settings == nil || outcome.Settings.ReadingMode != ModeFullPage {
		t.Fatalf("unexpected set settings outcome %#v, %v", outcome, err)
	}

	outcome, err = service.Execute(ctx, userID, GetSettingsCommand{})
	if err != nil || outcome.Settings == nil || outcome.Settings.ReadingMode != ModeFullPage {
		t.Fatalf("unexpected get settings outcome %#v, %v", outcome, err)
	}
}

func TestExecuteHistoryWithoutPosition(t *testing.T) {
	service, _, _ := newTestService(t, nil)
	outcome, err := service.Execute(context.Background(), mustUserID(t, "user-1"), HistoryCommand{Book: "unseen"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.History != nil || outcome.Page != nil {
		t.Fatalf("expected empty outcome, got %#v", outcome)
	}
}

func TestExecuteRejectsUnknownCommand(t *testing.T) {
	service, _, _ := newTestService(t, nil)
	_, err := service.Execute(context.Background(), mustUserID(t, "user-1"), unsupportedCommand{})
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

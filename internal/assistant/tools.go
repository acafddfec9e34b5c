package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarcoPoloResearchLab/companion/backend/internal/library"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/reading"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const (
	toolStart       = "reading_start"
	toolContinue    = "reading_continue"
	toolGoTo        = "reading_goto"
	toolSearch      = "reading_search"
	toolSettingsGet = "reading_settings_get"
	toolSettingsSet = "reading_settings_set"
	toolLibraryList = "library_list"
)

// BookInput names the book a navigation tool acts on.
type BookInput struct {
	Book string `json:"book" jsonschema:"the title of the book"`
}

// GoToInput selects a page of a book.
type GoToInput struct {
	Book string `json:"book" jsonschema:"the title of the book"`
	Page int    `json:"page" jsonschema:"the 1-based page number"`
}

// SearchInput looks for a keyword inside a book.
type SearchInput struct {
	Book    string `json:"book" jsonschema:"the title of the book"`
	Keyword string `json:"keyword" jsonschema:"case-insensitive text to find"`
}

// SettingsGetInput takes no arguments.
type SettingsGetInput struct{}

// SettingsSetInput changes how much of each page is returned.
type SettingsSetInput struct {
	Mode   string `json:"mode" jsonschema:"one of fullpage, paragraphs, sentences"`
	Amount int    `json:"amount" jsonschema:"paragraphs (1-10) or sentences (1-20) per page"`
}

// LibraryInput pages through the catalog.
type LibraryInput struct {
	Scope  string `json:"scope,omitempty" jsonschema:"public (default) or mine"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of books (default 50)"`
	Offset int    `json:"offset,omitempty" jsonschema:"number of books to skip"`
}

// PageOutput is one rendered page.
type PageOutput struct {
	Book        string `json:"book"`
	Content     string `json:"content"`
	CurrentPage int    `json:"current_page"`
	TotalPages  int    `json:"total_pages"`
	HasNext     bool   `json:"has_next"`
	HasPrevious bool   `json:"has_previous"`
}

// SearchHitOutput is one keyword occurrence.
type SearchHitOutput struct {
	Page     int    `json:"page"`
	Context  string `json:"context"`
	Position int    `json:"position"`
}

// SearchOutput lists keyword occurrences in page order.
type SearchOutput struct {
	Results []SearchHitOutput `json:"results"`
	Count   int               `json:"count"`
}

// SettingsOutput reports the reader's rendering preference.
type SettingsOutput struct {
	Mode   string `json:"mode"`
	Amount int    `json:"amount"`
}

// BookOutput summarizes a catalog entry.
type BookOutput struct {
	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
	Pages       int    `json:"pages"`
	Public      bool   `json:"public"`
}

// LibraryOutput lists catalog entries.
type LibraryOutput struct {
	Books []BookOutput `json:"books"`
	Count int          `json:"count"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolStart,
		Description: "Open a book at its first page",
	}, s.handleStart)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolContinue,
		Description: "Reopen a book at the page where the reader stopped",
	}, s.handleContinue)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolGoTo,
		Description: "Jump to a page of a book",
	}, s.handleGoTo)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolSearch,
		Description: "Find every occurrence of a keyword in a book",
	}, s.handleSearch)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolSettingsGet,
		Description: "Show the reading mode and amount",
	}, s.handleSettingsGet)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolSettingsSet,
		Description: "Change the reading mode and amount",
	}, s.handleSettingsSet)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolLibraryList,
		Description: "List books available to the reader",
	}, s.handleLibraryList)
}

func (s *Server) handleStart(ctx context.Context, _ *mcp.CallToolRequest, input BookInput) (*mcp.CallToolResult, PageOutput, error) {
	book, err := reading.NewBookName(input.Book)
	if err != nil {
		return nil, PageOutput{}, err
	}
	return s.navigate(ctx, toolStart, reading.StartCommand{Book: book})
}

func (s *Server) handleContinue(ctx context.Context, _ *mcp.CallToolRequest, input BookInput) (*mcp.CallToolResult, PageOutput, error) {
	book, err := reading.NewBookName(input.Book)
	if err != nil {
		return nil, PageOutput{}, err
	}
	return s.navigate(ctx, toolContinue, reading.ContinueCommand{Book: book})
}

func (s *Server) handleGoTo(ctx context.Context, _ *mcp.CallToolRequest, input GoToInput) (*mcp.CallToolResult, PageOutput, error) {
	book, err := reading.NewBookName(input.Book)
	if err != nil {
		return nil, PageOutput{}, err
	}
	return s.navigate(ctx, toolGoTo, reading.GoToCommand{Book: book, Page: input.Page})
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	book, err := reading.NewBookName(input.Book)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	outcome, err := s.execute(ctx, toolSearch, reading.FindCommand{Book: book, Keyword: input.Keyword})
	if err != nil {
		return nil, SearchOutput{}, err
	}
	output := SearchOutput{Results: []SearchHitOutput{}}
	if outcome.Search != nil {
		for _, hit := range outcome.Search.Results {
			output.Results = append(output.Results, SearchHitOutput{Page: hit.Page, Context: hit.Context, Position: hit.Position})
		}
	}
	output.Count = len(output.Results)
	return nil, output, nil
}

func (s *Server) handleSettingsGet(ctx context.Context, _ *mcp.CallToolRequest, _ SettingsGetInput) (*mcp.CallToolResult, SettingsOutput, error) {
	outcome, err := s.execute(ctx, toolSettingsGet, reading.GetSettingsCommand{})
	if err != nil {
		return nil, SettingsOutput{}, err
	}
	return nil, settingsOutput(outcome.Settings), nil
}

func (s *Server) handleSettingsSet(ctx context.Context, _ *mcp.CallToolRequest, input SettingsSetInput) (*mcp.CallToolResult, SettingsOutput, error) {
	mode, err := reading.ParseReadingMode(input.Mode)
	if err != nil {
		return nil, SettingsOutput{}, err
	}
	outcome, err := s.execute(ctx, toolSettingsSet, reading.SetSettingsCommand{Mode: mode, Amount: input.Amount})
	if err != nil {
		return nil, SettingsOutput{}, err
	}
	return nil, settingsOutput(outcome.Settings), nil
}

func (s *Server) handleLibraryList(ctx context.Context, _ *mcp.CallToolRequest, input LibraryInput) (*mcp.CallToolResult, LibraryOutput, error) {
	scope, err := library.ParseScope(input.Scope)
	if err != nil {
		return nil, LibraryOutput{}, err
	}
	var books []library.Book
	if scope == library.ScopeMine {
		books, err = s.catalog.ListForUser(ctx, s.reader, input.Limit, input.Offset)
	} else {
		books, err = s.catalog.ListPublic(ctx, input.Limit, input.Offset)
	}
	if err != nil {
		s.logger.Error("tool failed", zap.String("tool", toolLibraryList), zap.Error(err))
		return nil, LibraryOutput{}, err
	}
	output := LibraryOutput{Books: make([]BookOutput, 0, len(books)), Count: len(books)}
	for _, book := range books {
		output.Books = append(output.Books, BookOutput{
			Title:       book.BookName,
			Author:      book.Author,
			Description: book.Description,
			Pages:       book.TotalPages,
			Public:      book.IsPublic,
		})
	}
	return nil, output, nil
}

func (s *Server) navigate(ctx context.Context, tool string, command reading.Command) (*mcp.CallToolResult, PageOutput, error) {
	outcome, err := s.execute(ctx, tool, command)
	if err != nil {
		return nil, PageOutput{}, err
	}
	if outcome.Page == nil {
		return nil, PageOutput{}, fmt.Errorf("%s: no page returned", tool)
	}
	page := outcome.Page
	return nil, PageOutput{
		Book:        page.BookName.String(),
		Content:     page.Content,
		CurrentPage: page.CurrentPage,
		TotalPages:  page.TotalPages,
		HasNext:     page.HasNext,
		HasPrevious: page.HasPrevious,
	}, nil
}

func (s *Server) execute(ctx context.Context, tool string, command reading.Command) (reading.Outcome, error) {
	outcome, err := s.reading.Execute(ctx, s.reader, command)
	if err != nil {
		level := s.logger.Warn
		var coded interface{ Code() string }
		if errors.As(err, &coded) {
			level = s.logger.Error
		}
		level("tool failed", zap.String("tool", tool), zap.Error(err))
	}
	return outcome, err
}

func settingsOutput(settings *reading.ReadingSettings) SettingsOutput {
	if settings == nil {
		return SettingsOutput{Mode: string(reading.DefaultReadingMode), Amount: reading.DefaultReadingAmount}
	}
	return SettingsOutput{Mode: string(settings.ReadingMode), Amount: settings.ReadingAmount}
}

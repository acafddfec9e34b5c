package reading

import (
	"context"
	"fmt"
)

// Command is one reading operation addressed to Execute.
// The set of commands is closed; only types in this package implement it.
type Command interface {
	isCommand()
}

// StartCommand opens Book at page 1.
type StartCommand struct {
	Book BookName
}

// ContinueCommand reopens Book at the stored page.
type ContinueCommand struct {
	Book BookName
}

// GoToCommand jumps to Page of Book.
type GoToCommand struct {
	Book BookName
	Page int
}

// FindCommand searches Book for Keyword.
type FindCommand struct {
	Book    BookName
	Keyword string
}

// HistoryCommand reads the stored position in Book.
type HistoryCommand struct {
	Book BookName
}

// GetSettingsCommand reads the rendering preference.
type GetSettingsCommand struct{}

// SetSettingsCommand stores a rendering preference.
type SetSettingsCommand struct {
	Mode   ReadingMode
	Amount int
}

func (StartCommand) isCommand()       {}
func (ContinueCommand) isCommand()    {}
func (GoToCommand) isCommand()        {}
func (FindCommand) isCommand()        {}
func (HistoryCommand) isCommand()     {}
func (GetSettingsCommand) isCommand() {}
func (SetSettingsCommand) isCommand() {}

// Outcome carries the result of Execute; exactly one field is set on success,
// except for HistoryCommand on a book never opened, which leaves all fields nil.
type Outcome struct {
	Page     *PageView
	Search   *SearchResults
	History  *ReadingPosition
	Settings *ReadingSettings
}

// Execute dispatches command to the matching Service operation.
func (s *Service) Execute(ctx context.Context, userID UserID, command Command) (Outcome, error) {
	switch typed := command.(type) {
	case StartCommand:
		return pageOutcome(s.Start(ctx, userID, typed.Book))
	case ContinueCommand:
		return pageOutcome(s.Continue(ctx, userID, typed.Book))
	case GoToCommand:
		return pageOutcome(s.GoTo(ctx, userID, typed.Book, typed.Page))
	case FindCommand:
		results, err := s.Find(ctx, userID, typed.Book, typed.Keyword)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Search: &results}, nil
	case HistoryCommand:
		position, err := s.History(ctx, userID, typed.Book)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{History: position}, nil
	case GetSettingsCommand:
		return settingsOutcome(s.GetSettings(ctx, userID))
	case SetSettingsCommand:
		return settingsOutcome(s.SetSettings(ctx, userID, typed.Mode, typed.Amount))
	default:
		return Outcome{}, fmt.Errorf("%w: %T", ErrUnknownCommand, command)
	}
}

func pageOutcome(view PageView, err error) (Outcome, error) {
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Page: &view}, nil
}

func settingsOutcome(settings ReadingSettings, err error) (Outcome, error) {
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Settings: &settings}, nil
}

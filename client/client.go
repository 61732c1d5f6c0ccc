// Package client provides the Board API client: the remote collaborator
// the engine reads entities from and persists mutations through. Two
// implementations exist, an HTTP client for the board service and a
// direct Azure Table Storage backend.
package client

import (
	"context"
	"errors"

	"boardsync/domain"
)

// ErrNotFound reports that the requested remote entity does not exist.
var ErrNotFound = errors.New("board api: not found")

// API is the full Board API surface consumed by the engine. Components
// depend on narrow slices of it (board.CardWriter, board.WorkspaceClient,
// board.PreferenceClient); this interface is what implementations
// satisfy. GetPreferences reports ok=false when the user has no stored
// preference record, or an all-null one.
type API interface {
	ListCards(ctx context.Context, query domain.CardQuery) ([]domain.Card, error)
	CreateCard(ctx context.Context, card domain.Card) (domain.Card, error)
	UpdateCardStatus(ctx context.Context, cardID, statusID string) error
	DeleteCard(ctx context.Context, cardID string) error
	ListStatuses(ctx context.Context) ([]domain.Status, error)
	ListLabels(ctx context.Context) ([]domain.Label, error)
	ListTemplates(ctx context.Context) ([]domain.Template, error)
	GetPreferences(ctx context.Context, userID string) (prefs domain.Preferences, ok bool, err error)
	PutPreferences(ctx context.Context, userID string, prefs domain.Preferences) error
}

// preferenceRecord is the remote wire shape of a preference record.
// Both fields are nullable; a record with both null is treated as not
// stored yet.
type preferenceRecord struct {
	BoardGrouping *string              `json:"board_grouping"`
	BoardLayout   *domain.BoardFilters `json:"board_layout"`
}

func (r preferenceRecord) decode() (domain.Preferences, bool) {
	if r.BoardGrouping == nil && r.BoardLayout == nil {
		return domain.Preferences{}, false
	}
	prefs := domain.DefaultPreferences()
	if r.BoardGrouping != nil {
		prefs.Grouping, _ = domain.ParseGrouping(*r.BoardGrouping)
	}
	if r.BoardLayout != nil {
		prefs.Filters = *r.BoardLayout
	}
	return prefs.Normalized(), true
}

func encodePreferenceRecord(prefs domain.Preferences) preferenceRecord {
	grouping := string(prefs.Grouping)
	filters := prefs.Filters
	return preferenceRecord{
		BoardGrouping: &grouping,
		BoardLayout:   &filters,
	}
}

package api

import (
	"context"

	"boardsync/board"
	"boardsync/domain"
	"boardsync/proposal"
)

// Analyzer produces proposal drafts for a free-form goal.
type Analyzer interface {
	Propose(ctx context.Context, req proposal.Request) ([]domain.ProposalDraft, error)
}

// StatusWriter persists card status changes to the board backend.
type StatusWriter interface {
	UpdateCardStatus(ctx context.Context, cardID, statusID string) error
}

// Engine bundles the collaborators the handlers drive.
type Engine struct {
	Cache    *board.EntityCache
	View     *board.View
	Prefs    *board.PreferenceSynchronizer
	Importer *board.Importer
	Tracker  *board.RequestTracker
	Banner   *board.Banner
	Cards    StatusWriter
	Analyzer Analyzer
}

type boardResponse struct {
	Grouping domain.BoardGrouping     `json:"grouping"`
	Filters  domain.BoardFilters      `json:"filters"`
	Columns  []board.Column           `json:"columns"`
	Cards    []domain.Card            `json:"cards"`
	Settings domain.WorkspaceSettings `json:"settings"`
}

type preferencesResponse struct {
	Grouping domain.BoardGrouping `json:"grouping"`
	Filters  domain.BoardFilters  `json:"filters"`
}

// preferencesRequest carries a partial update; nil fields are left
// untouched.
type preferencesRequest struct {
	Grouping *string              `json:"grouping"`
	Filters  *domain.BoardFilters `json:"filters"`
}

type cardStatusRequest struct {
	StatusID string `json:"statusId"`
}

type analyzeRequest struct {
	Goal         string `json:"goal"`
	MaxProposals int    `json:"maxProposals"`
}

type analyzeResponse struct {
	Drafts []domain.ProposalDraft `json:"drafts"`
}

type importRequest struct {
	Drafts []domain.ProposalDraft `json:"drafts"`
}

type importResponse struct {
	Cards []domain.Card `json:"cards"`
}

type notificationResponse struct {
	Kind        board.NotificationKind `json:"kind,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Sticky      bool                   `json:"sticky,omitempty"`
	Active      bool                   `json:"active"`
	Highlighted bool                   `json:"highlighted"`
}

package domain

import "time"

// Priority levels for a card, lowest to highest.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Card represents a single board item.
type Card struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Summary            string     `json:"summary,omitempty"`
	StatusID           string     `json:"statusId"`
	LabelIDs           []string   `json:"labelIds,omitempty"`
	Priority           string     `json:"priority,omitempty"`
	StoryPoints        int        `json:"storyPoints,omitempty"`
	Assignee           string     `json:"assignee,omitempty"`
	DueDate            *time.Time `json:"dueDate,omitempty"`
	Subtasks           []string   `json:"subtasks,omitempty"`
	OriginSuggestionID string     `json:"originSuggestionId,omitempty"`
}

// HasLabel reports whether the card carries the given label id.
func (c Card) HasLabel(labelID string) bool {
	for _, id := range c.LabelIDs {
		if id == labelID {
			return true
		}
	}
	return false
}

// Status lifecycle categories.
const (
	CategoryTodo       = "todo"
	CategoryInProgress = "in-progress"
	CategoryDone       = "done"
)

// Status is a board column definition.
type Status struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Order    int    `json:"order"`
}

// Label is a tag that can be applied to cards.
type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Template is a reusable card blueprint.
type Template struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// WorkspaceSettings holds the configuration entities of a board. The
// slices are treated as immutable within a single snapshot.
type WorkspaceSettings struct {
	Statuses        []Status   `json:"statuses"`
	Labels          []Label    `json:"labels"`
	Templates       []Template `json:"templates"`
	DefaultStatusID string     `json:"defaultStatusId,omitempty"`
}

// StatusIDs returns the ids of all known statuses.
func (s WorkspaceSettings) StatusIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Statuses))
	for _, st := range s.Statuses {
		ids[st.ID] = struct{}{}
	}
	return ids
}

// LabelIDs returns the ids of all known labels.
func (s WorkspaceSettings) LabelIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Labels))
	for _, l := range s.Labels {
		ids[l.ID] = struct{}{}
	}
	return ids
}

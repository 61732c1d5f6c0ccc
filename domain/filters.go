package domain

import (
	"strings"
	"time"
)

// BoardGrouping selects how cards are bucketed into columns.
type BoardGrouping string

const (
	GroupByStatus   BoardGrouping = "status"
	GroupByLabel    BoardGrouping = "label"
	GroupByAssignee BoardGrouping = "assignee"
)

// DefaultGrouping is used whenever no valid grouping is stored.
const DefaultGrouping = GroupByStatus

// ParseGrouping maps a stored string to a known grouping value.
func ParseGrouping(s string) (BoardGrouping, bool) {
	switch BoardGrouping(s) {
	case GroupByStatus, GroupByLabel, GroupByAssignee:
		return BoardGrouping(s), true
	}
	return DefaultGrouping, false
}

// Named quick filters.
const (
	QuickFilterUnassigned   = "unassigned"
	QuickFilterDueSoon      = "due-soon"
	QuickFilterHighPriority = "high-priority"
)

// dueSoonWindow is how far ahead the due-soon quick filter looks.
const dueSoonWindow = 7 * 24 * time.Hour

// BoardFilters narrows the set of cards visible on the board. Empty
// fields do not constrain.
type BoardFilters struct {
	Search       string   `json:"search"`
	LabelIDs     []string `json:"labelIds"`
	StatusIDs    []string `json:"statusIds"`
	QuickFilters []string `json:"quickFilters"`
}

// IsZero reports whether no filter field constrains anything.
func (f BoardFilters) IsZero() bool {
	return f.Search == "" && len(f.LabelIDs) == 0 && len(f.StatusIDs) == 0 && len(f.QuickFilters) == 0
}

// Matches reports whether the card passes every active filter clause.
// Label ids use union semantics: one shared label is enough.
func (f BoardFilters) Matches(c Card, now time.Time) bool {
	if f.Search != "" {
		haystack := strings.ToLower(c.Title + " " + c.Summary)
		if !strings.Contains(haystack, strings.ToLower(f.Search)) {
			return false
		}
	}
	if len(f.LabelIDs) > 0 {
		found := false
		for _, id := range f.LabelIDs {
			if c.HasLabel(id) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.StatusIDs) > 0 {
		found := false
		for _, id := range f.StatusIDs {
			if c.StatusID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, qf := range f.QuickFilters {
		if !matchQuickFilter(qf, c, now) {
			return false
		}
	}
	return true
}

// matchQuickFilter evaluates one named predicate. Unknown names do not
// constrain, so stale stored names never empty the board.
func matchQuickFilter(name string, c Card, now time.Time) bool {
	switch name {
	case QuickFilterUnassigned:
		return c.Assignee == ""
	case QuickFilterDueSoon:
		return c.DueDate != nil && !c.DueDate.Before(now) && c.DueDate.Sub(now) <= dueSoonWindow
	case QuickFilterHighPriority:
		return c.Priority == PriorityHigh || c.Priority == PriorityUrgent
	}
	return true
}

// Pruned returns a copy with every label/status reference that is no
// longer known removed. Search and quick filters are untouched.
func (f BoardFilters) Pruned(settings WorkspaceSettings) BoardFilters {
	out := f
	out.LabelIDs = intersectIDs(f.LabelIDs, settings.LabelIDs())
	out.StatusIDs = intersectIDs(f.StatusIDs, settings.StatusIDs())
	return out
}

func intersectIDs(ids []string, known map[string]struct{}) []string {
	if len(ids) == 0 {
		return ids
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := known[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

package board

import (
	"sort"
	"time"

	"boardsync/domain"
)

// Column is a UI-facing grouping bucket holding the ordered ids of
// cards that match both the grouping key and the active filters.
type Column struct {
	Key     string   `json:"key"`
	Title   string   `json:"title"`
	CardIDs []string `json:"cardIds"`
}

// UnassignedColumnKey keys the trailing bucket of the assignee
// grouping.
const UnassignedColumnKey = "unassigned"

// View derives board columns from the entity cache and the active
// preferences. Columns recompute only when cards, settings or
// preferences have actually changed; repeated reads in between return
// the memoized slice.
type View struct {
	cache *EntityCache
	prefs *PreferenceSynchronizer
	cols  *derived[[]Column]
	now   func() time.Time
}

func NewView(cache *EntityCache, prefs *PreferenceSynchronizer) *View {
	v := &View{cache: cache, prefs: prefs, now: time.Now}
	v.cols = newDerived(v.build, &cache.cardsSig, &cache.settingsSig, &prefs.sig)
	return v
}

// Columns returns the current board columns.
func (v *View) Columns() []Column {
	return v.cols.Get()
}

func (v *View) build() []Column {
	cards := v.cache.Cards()
	settings := v.cache.Settings()
	p := v.prefs.Preferences()

	visible := cards[:0:0]
	nowTs := v.now()
	for _, c := range cards {
		if p.Filters.Matches(c, nowTs) {
			visible = append(visible, c)
		}
	}

	switch p.Grouping {
	case domain.GroupByLabel:
		return labelColumns(visible, settings.Labels)
	case domain.GroupByAssignee:
		return assigneeColumns(visible)
	default:
		return statusColumns(visible, settings.Statuses)
	}
}

func statusColumns(cards []domain.Card, statuses []domain.Status) []Column {
	ordered := append([]domain.Status(nil), statuses...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	cols := make([]Column, 0, len(ordered))
	for _, st := range ordered {
		col := Column{Key: st.ID, Title: st.Name, CardIDs: []string{}}
		for _, c := range cards {
			if c.StatusID == st.ID {
				col.CardIDs = append(col.CardIDs, c.ID)
			}
		}
		cols = append(cols, col)
	}
	return cols
}

// labelColumns may place a card in several columns, one per label it
// carries.
func labelColumns(cards []domain.Card, labels []domain.Label) []Column {
	cols := make([]Column, 0, len(labels))
	for _, l := range labels {
		col := Column{Key: l.ID, Title: l.Name, CardIDs: []string{}}
		for _, c := range cards {
			if c.HasLabel(l.ID) {
				col.CardIDs = append(col.CardIDs, c.ID)
			}
		}
		cols = append(cols, col)
	}
	return cols
}

// assigneeColumns buckets by distinct assignee, sorted, with the
// unassigned bucket trailing.
func assigneeColumns(cards []domain.Card) []Column {
	byAssignee := make(map[string][]string)
	for _, c := range cards {
		byAssignee[c.Assignee] = append(byAssignee[c.Assignee], c.ID)
	}

	names := make([]string, 0, len(byAssignee))
	for name := range byAssignee {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	cols := make([]Column, 0, len(names)+1)
	for _, name := range names {
		cols = append(cols, Column{Key: name, Title: name, CardIDs: byAssignee[name]})
	}
	if ids, ok := byAssignee[""]; ok {
		cols = append(cols, Column{Key: UnassignedColumnKey, Title: "Unassigned", CardIDs: ids})
	}
	return cols
}

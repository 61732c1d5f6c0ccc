package domain

// AnonymousUserID keys locally cached preferences when no user is
// authenticated.
const AnonymousUserID = "anonymous"

// Preferences is the durable per-user board preference record.
type Preferences struct {
	Grouping BoardGrouping `json:"grouping"`
	Filters  BoardFilters  `json:"filters"`
}

// DefaultPreferences returns the record used before anything is stored.
func DefaultPreferences() Preferences {
	return Preferences{Grouping: DefaultGrouping}
}

// IsDefault reports whether the record carries no user choice at all.
func (p Preferences) IsDefault() bool {
	return (p.Grouping == "" || p.Grouping == DefaultGrouping) && p.Filters.IsZero()
}

// Normalized coerces an unknown grouping to the default and leaves
// everything else alone.
func (p Preferences) Normalized() Preferences {
	if _, ok := ParseGrouping(string(p.Grouping)); !ok {
		p.Grouping = DefaultGrouping
	}
	return p
}

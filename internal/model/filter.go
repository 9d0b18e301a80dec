package model

// EntryFilter holds criteria for listing entries. Empty fields match everything.
type EntryFilter struct {
	Section    string      `json:"section,omitempty"`
	Subsection string      `json:"subsection,omitempty"`
	Type       ContentType `json:"type,omitempty"`
	Sort       string      `json:"sort,omitempty"` // e.g. "order", "-updated_at"; prefix "-" = descending
}

// Matches reports whether the entry satisfies the filter.
func (f EntryFilter) Matches(e *Entry) bool {
	if f.Section != "" && e.Section != f.Section {
		return false
	}
	if f.Subsection != "" && e.Subsection != f.Subsection {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	return true
}

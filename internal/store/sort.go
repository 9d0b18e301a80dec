package store

import (
	"cmp"
	"slices"
	"strings"

	"github.com/alfredjeanlab/contentstore/internal/model"
)

// Sort fields accepted by EntryFilter.Sort. Anything else falls back to the
// default ordering.
const (
	SortOrder     = "order"
	SortKey       = "key"
	SortTitle     = "title"
	SortCreatedAt = "created_at"
	SortUpdatedAt = "updated_at"
)

var sortable = map[string]bool{
	SortOrder:     true,
	SortKey:       true,
	SortTitle:     true,
	SortCreatedAt: true,
	SortUpdatedAt: true,
}

// ParseSort splits a sort expression such as "-updated_at" into a whitelisted
// field and direction. The default is ascending by order.
func ParseSort(sort string) (field string, desc bool) {
	desc = strings.HasPrefix(sort, "-")
	field = strings.TrimPrefix(sort, "-")
	if !sortable[field] {
		return SortOrder, false
	}
	return field, desc
}

// SortEntries orders entries in place. Ties are broken by key so listings are
// stable across backends.
func SortEntries(entries []*model.Entry, sort string) {
	field, desc := ParseSort(sort)
	slices.SortStableFunc(entries, func(a, b *model.Entry) int {
		var c int
		switch field {
		case SortKey:
			c = cmp.Compare(a.Key, b.Key)
		case SortTitle:
			c = cmp.Compare(a.Title, b.Title)
		case SortCreatedAt:
			c = a.CreatedAt.Compare(b.CreatedAt)
		case SortUpdatedAt:
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			c = cmp.Compare(a.Order, b.Order)
		}
		if desc {
			c = -c
		}
		if c == 0 {
			c = cmp.Compare(a.Key, b.Key)
		}
		return c
	})
}

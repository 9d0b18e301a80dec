package collection

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
	"time"
)

// IDField is the record field that identifies an item within its collection.
const IDField = "id"

var (
	// ErrDuplicateItemID is returned when two items in one collection share an id.
	ErrDuplicateItemID = errors.New("duplicate item id")
	// ErrNotToggleable is returned when toggling a field that holds a non-boolean.
	ErrNotToggleable = errors.New("field is not a boolean")
	// ErrNotRecords is returned when mutating a collection whose stored array
	// holds elements that are not objects.
	ErrNotRecords = errors.New("collection holds non-object elements")
)

// Item is one loosely structured record inside a collection.
type Item map[string]any

// ID returns the item's id in normalized string form. Numeric ids and their
// string spellings normalize alike, so 1, 1.0 and "1" are the same id.
func (it Item) ID() (string, bool) {
	v, ok := it[IDField]
	if !ok {
		return "", false
	}
	return normalizeID(v)
}

func (it Item) clone() Item {
	return Item(maps.Clone(map[string]any(it)))
}

// normalizeID returns the canonical string form of an id value.
func normalizeID(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return "", false
		}
		if n, ok := normalizeNumber(s); ok {
			return n, true
		}
		return s, true
	case json.Number:
		return normalizeNumber(x.String())
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case int:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	}
	return "", false
}

func normalizeNumber(s string) (string, bool) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(i, 10), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", false
	}
	return formatFloat(f)
}

func formatFloat(f float64) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10), true
	}
	return strconv.FormatFloat(f, 'g', -1, 64), true
}

// numericID returns the integer value of an id, if it has one.
func numericID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	return n, err == nil
}

// nextID returns a numeric id greater than every numeric id in items and no
// smaller than the current Unix time in milliseconds.
func nextID(items []Item, now time.Time) int64 {
	next := now.UnixMilli()
	for _, it := range items {
		id, ok := it.ID()
		if !ok {
			continue
		}
		if n, ok := numericID(id); ok && n >= next {
			next = n + 1
		}
	}
	return next
}

func indexOf(items []Item, id string) int {
	want, ok := normalizeID(id)
	if !ok {
		return -1
	}
	for i, it := range items {
		if got, ok := it.ID(); ok && got == want {
			return i
		}
	}
	return -1
}

// CheckUniqueIDs returns ErrDuplicateItemID if any two items share an id.
// Items without an id are ignored.
func CheckUniqueIDs(items []Item) error {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		id, ok := it.ID()
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateItemID, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// AppendItem returns items with item added at the end. An item without an id
// is given one from nextID; an explicit id already present is rejected. The
// input slice is not modified.
func AppendItem(items []Item, item Item, now time.Time) ([]Item, Item, error) {
	it := item.clone()
	if it == nil {
		it = Item{}
	}
	if id, ok := it.ID(); ok {
		if indexOf(items, id) >= 0 {
			return items, nil, fmt.Errorf("%w: %s", ErrDuplicateItemID, id)
		}
	} else {
		it[IDField] = nextID(items, now)
	}
	out := make([]Item, 0, len(items)+1)
	out = append(out, items...)
	return append(out, it), it, nil
}

// ReplaceItem returns items with the item whose id matches replaced by item,
// keeping the original id value. It reports false and returns items unchanged
// when no item matches.
func ReplaceItem(items []Item, id string, item Item) ([]Item, bool) {
	i := indexOf(items, id)
	if i < 0 {
		return items, false
	}
	it := item.clone()
	if it == nil {
		it = Item{}
	}
	it[IDField] = items[i][IDField]
	out := append([]Item(nil), items...)
	out[i] = it
	return out, true
}

// RemoveItem returns items without the item whose id matches. It reports
// false and returns items unchanged when no item matches.
func RemoveItem(items []Item, id string) ([]Item, bool) {
	i := indexOf(items, id)
	if i < 0 {
		return items, false
	}
	out := make([]Item, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...), true
}

// ToggleItem flips a boolean field on the item whose id matches. A missing
// field counts as false. It reports false when no item matches.
func ToggleItem(items []Item, id, field string) ([]Item, bool, error) {
	i := indexOf(items, id)
	if i < 0 {
		return items, false, nil
	}
	if field == IDField {
		return items, false, fmt.Errorf("%w: %s", ErrNotToggleable, field)
	}
	it := items[i].clone()
	switch v := it[field].(type) {
	case nil:
		it[field] = true
	case bool:
		it[field] = !v
	default:
		return items, false, fmt.Errorf("%w: %s holds %T", ErrNotToggleable, field, v)
	}
	out := append([]Item(nil), items...)
	out[i] = it
	return out, true, nil
}

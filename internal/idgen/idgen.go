// Package idgen generates the opaque identifiers assigned to content entries.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// EntryPrefix marks a string as a store-assigned entry id rather than a key.
const EntryPrefix = "ce-"

const (
	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	length   = 12
)

// NewEntryID returns a fresh entry id.
func NewEntryID() (string, error) {
	id, err := nanoid.Generate(alphabet, length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return EntryPrefix + id, nil
}

// LooksLikeEntryID reports whether s has the shape of an id produced by
// NewEntryID. Keys may share the shape, so callers resolving an id-or-key
// argument still fall back to a key lookup.
func LooksLikeEntryID(s string) bool {
	rest, ok := strings.CutPrefix(s, EntryPrefix)
	if !ok || len(rest) != length {
		return false
	}
	for _, r := range rest {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}

package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/contentstore/internal/model"
	"github.com/alfredjeanlab/contentstore/internal/store"
)

// FormatVersion is written in the header record and checked on import.
const FormatVersion = "1"

// Record types.
const (
	recordHeader = "header"
	recordEntry  = "entry"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version    string    `json:"version"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	EntryCount int       `json:"entry_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every entry in the store as JSONL to w, sorted by key.
// Content is written exactly as stored, legacy list content included.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	entries, err := s.ListEntries(ctx, model.EntryFilter{Sort: store.SortKey})
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:    FormatVersion,
		Type:       recordHeader,
		Timestamp:  time.Now().UTC(),
		EntryCount: len(entries),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, e := range entries {
		if err := enc.Encode(record{Type: recordEntry, Data: e}); err != nil {
			return fmt.Errorf("encode entry %s: %w", e.Key, err)
		}
	}

	return nil
}

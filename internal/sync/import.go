package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/alfredjeanlab/contentstore/internal/codec"
	"github.com/alfredjeanlab/contentstore/internal/content"
	"github.com/alfredjeanlab/contentstore/internal/model"
	"github.com/alfredjeanlab/contentstore/internal/store"
)

// ImportStats counts what ImportJSONL did.
type ImportStats struct {
	Written    int `json:"written"`    // entries created or replaced
	Unchanged  int `json:"unchanged"`  // entries already identical in the store
	Normalized int `json:"normalized"` // legacy list content rewritten as JSON
}

// rawRecord is any JSONL line; header fields are only set on the header.
type rawRecord struct {
	Type    string          `json:"type"`
	Version string          `json:"version,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ImportJSONL reads an ExportJSONL stream and upserts every entry through the
// coordinator. Store-assigned fields in the stream (id, revision, timestamps)
// are ignored; the target store assigns its own.
//
// json entries whose content only decodes through the legacy lines fallback
// are rewritten as a canonical JSON array of those lines. Entries whose
// content, after normalization, already matches the store are skipped, so
// importing the same stream twice writes nothing the second time.
func ImportJSONL(ctx context.Context, coord *content.Coordinator, r io.Reader) (ImportStats, error) {
	var stats ImportStats
	dec := json.NewDecoder(r)
	dec.UseNumber()

	for n := 1; ; n++ {
		var rec rawRecord
		if err := dec.Decode(&rec); err == io.EOF {
			return stats, nil
		} else if err != nil {
			return stats, fmt.Errorf("record %d: %w", n, err)
		}

		switch rec.Type {
		case recordHeader:
			if rec.Version != FormatVersion {
				return stats, fmt.Errorf("record %d: unsupported export version %q", n, rec.Version)
			}
		case recordEntry:
			var e model.Entry
			if err := json.Unmarshal(rec.Data, &e); err != nil {
				return stats, fmt.Errorf("record %d: decode entry: %w", n, err)
			}
			if err := importEntry(ctx, coord, &e, &stats); err != nil {
				return stats, fmt.Errorf("record %d (%s): %w", n, e.Key, err)
			}
		default:
			return stats, fmt.Errorf("record %d: unknown record type %q", n, rec.Type)
		}
	}
}

func importEntry(ctx context.Context, coord *content.Coordinator, e *model.Entry, stats *ImportStats) error {
	normalized, err := Normalize(e)
	if err != nil {
		return err
	}
	if normalized {
		stats.Normalized++
	}

	current, err := coord.Get(ctx, e.Key)
	switch {
	case err == nil && current.SameContent(e):
		stats.Unchanged++
		return nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return err
	}

	if _, err := coord.CreateOrUpdate(ctx, content.UpsertRequest{
		Key:         e.Key,
		Title:       e.Title,
		Type:        e.Type,
		Section:     e.Section,
		Subsection:  e.Subsection,
		Content:     e.Content,
		Metadata:    e.Metadata,
		IsPublished: e.IsPublished,
		Order:       e.Order,
	}); err != nil {
		return err
	}
	stats.Written++
	return nil
}

// Normalize rewrites legacy newline-delimited list content of a json entry as
// canonical JSON and reports whether it changed anything. Content that parses
// strictly, text entries and content with no usable lines are left alone.
func Normalize(e *model.Entry) (bool, error) {
	if e.Type != model.TypeJSON {
		return false, nil
	}
	p, res := codec.Decode(e.Type, e.Content)
	if res.Fallback != codec.FallbackLines {
		return false, nil
	}
	_, s, err := codec.Encode(p)
	if err != nil {
		return false, err
	}
	e.Content = s
	return true, nil
}

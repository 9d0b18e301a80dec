package model

import (
	"encoding/json"
	"time"
)

// ContentType declares how an entry's content string is interpreted.
type ContentType string

const (
	TypeText ContentType = "text"
	TypeJSON ContentType = "json"
)

// String returns the string representation of the content type.
func (t ContentType) String() string {
	return string(t)
}

// IsValid checks whether the content type is a known value.
func (t ContentType) IsValid() bool {
	switch t {
	case TypeText, TypeJSON:
		return true
	}
	return false
}

// Entry is one record in the content store, identified by its key.
//
// Content is opaque to the store. Type says how callers decode it; Metadata is
// auxiliary and never reconciled with Content.
type Entry struct {
	ID          string          `json:"id"`
	Key         string          `json:"key"`
	Type        ContentType     `json:"type"`
	Content     string          `json:"content"`
	Title       string          `json:"title"`
	Section     string          `json:"section,omitempty"`
	Subsection  string          `json:"subsection,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	IsPublished bool            `json:"is_published"`
	Order       int             `json:"order"`
	Revision    int64           `json:"revision"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	if e.Metadata != nil {
		c.Metadata = append(json.RawMessage(nil), e.Metadata...)
	}
	return &c
}

// SameContent reports whether two entries carry the same caller-visible state,
// ignoring identity, revision and timestamps.
func (e *Entry) SameContent(o *Entry) bool {
	if e == nil || o == nil {
		return e == o
	}
	return e.Key == o.Key &&
		e.Type == o.Type &&
		e.Content == o.Content &&
		e.Title == o.Title &&
		e.Section == o.Section &&
		e.Subsection == o.Subsection &&
		string(e.Metadata) == string(o.Metadata) &&
		e.IsPublished == o.IsPublished &&
		e.Order == o.Order
}

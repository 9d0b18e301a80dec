package content

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/contentstore/internal/codec"
	"github.com/alfredjeanlab/contentstore/internal/model"
)

// UpsertRequest carries every caller-settable field of an entry. Fields left
// at their zero value are written as such; an upsert never merges with the
// stored entry.
type UpsertRequest struct {
	Key         string            `json:"key"`
	Title       string            `json:"title"`
	Type        model.ContentType `json:"type"`
	Section     string            `json:"section,omitempty"`
	Subsection  string            `json:"subsection,omitempty"`
	Content     string            `json:"content"`
	Metadata    json.RawMessage   `json:"metadata,omitempty"`
	IsPublished bool              `json:"is_published,omitempty"`
	Order       int               `json:"order,omitempty"`
}

// WithPayload sets Type and Content from an encoded payload.
func (r UpsertRequest) WithPayload(p codec.Payload) (UpsertRequest, error) {
	typ, content, err := codec.Encode(p)
	if err != nil {
		return r, &InputError{Err: err}
	}
	r.Type, r.Content = typ, content
	return r, nil
}

func (r UpsertRequest) entry() (*model.Entry, error) {
	e := &model.Entry{
		Key:         r.Key,
		Type:        r.Type,
		Content:     r.Content,
		Title:       r.Title,
		Section:     r.Section,
		Subsection:  r.Subsection,
		IsPublished: r.IsPublished,
		Order:       r.Order,
	}
	if len(r.Metadata) > 0 && string(r.Metadata) != "null" {
		e.Metadata = append(json.RawMessage(nil), r.Metadata...)
	}
	if err := model.ValidateEntry(e); err != nil {
		return nil, &InputError{Err: err}
	}
	return e, nil
}

// InputError reports a request the coordinator refused before touching the
// store. Transport layers map it to 400 / InvalidArgument.
type InputError struct {
	Err error
}

func (e *InputError) Error() string { return "invalid request: " + e.Err.Error() }

func (e *InputError) Unwrap() error { return e.Err }

// IsInputError reports whether err is or wraps an InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

func inputErrorf(format string, args ...any) error {
	return &InputError{Err: fmt.Errorf(format, args...)}
}

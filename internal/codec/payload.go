// Package codec converts between an entry's opaque content string and a typed
// payload, with the fallback chain needed for content written before list
// values were stored as JSON.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/contentstore/internal/model"
)

// Payload is either a text string or a JSON value. The zero Payload is an
// empty text payload.
type Payload struct {
	json  bool
	text  string
	value any
}

// Text returns a text payload.
func Text(s string) Payload { return Payload{text: s} }

// JSON returns a JSON payload holding v. v must be encodable with encoding/json.
func JSON(v any) Payload { return Payload{json: true, value: v} }

// Type reports the content type the payload encodes to.
func (p Payload) Type() model.ContentType {
	if p.json {
		return model.TypeJSON
	}
	return model.TypeText
}

// Text returns the string of a text payload.
func (p Payload) Text() (string, bool) {
	return p.text, !p.json
}

// Value returns the decoded value of a JSON payload.
func (p Payload) Value() (any, bool) {
	return p.value, p.json
}

// Encode returns the content type and content string for p.
func Encode(p Payload) (model.ContentType, string, error) {
	if !p.json {
		return model.TypeText, p.text, nil
	}
	s, err := EncodeJSON(p.value)
	if err != nil {
		return "", "", err
	}
	return model.TypeJSON, s, nil
}

// EncodeText is the identity encoding for text content.
func EncodeText(s string) (model.ContentType, string) {
	return model.TypeText, s
}

// EncodeJSON serializes v canonically: map keys sorted, no HTML escaping and
// no trailing newline.
func EncodeJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode json content: %w", err)
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

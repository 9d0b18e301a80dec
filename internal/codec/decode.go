package codec

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/alfredjeanlab/contentstore/internal/model"
)

// Fallback names the recovery applied when content did not decode as its
// declared type.
type Fallback string

const (
	FallbackNone       Fallback = ""
	FallbackLines      Fallback = "lines"       // newline-delimited legacy list
	FallbackScalarWrap Fallback = "scalar_wrap" // single value where a list was expected
	FallbackEmpty      Fallback = "empty"       // nothing usable; empty default returned
)

// Result describes how a decode went. A fallback is a diagnostic, not an error.
type Result struct {
	Fallback Fallback
	// Cause is the strict-parse error that triggered the fallback, if any.
	Cause error
}

// Degraded reports whether any fallback was applied.
func (r Result) Degraded() bool { return r.Fallback != FallbackNone }

// Decoder decodes entry content and logs every fallback it applies.
// The zero Decoder does not log.
type Decoder struct {
	Logger *slog.Logger
}

// Decode interprets content according to t. It never fails: json content that
// does not parse is read as a newline-delimited list of trimmed, non-empty
// lines, and content with no such lines decodes to a nil JSON value.
func Decode(t model.ContentType, content string) (Payload, Result) {
	if t != model.TypeJSON {
		return Text(content), Result{}
	}
	v, err := parseStrict(content)
	if err == nil {
		return JSON(v), Result{}
	}
	lines := splitLines(content)
	if len(lines) == 0 {
		return JSON(nil), Result{Fallback: FallbackEmpty, Cause: err}
	}
	return JSON(lines), Result{Fallback: FallbackLines, Cause: err}
}

// DecodeList reads an entry whose expected shape is an array. Arrays are
// returned as-is, any other single value is wrapped in a one-element slice,
// and a missing entry or empty content yields an empty slice.
func DecodeList(e *model.Entry) ([]any, Result) {
	if e == nil {
		return []any{}, Result{}
	}
	var (
		v   any
		res Result
	)
	if e.Type == model.TypeJSON {
		var p Payload
		p, res = Decode(e.Type, e.Content)
		v, _ = p.Value()
	} else {
		lines := splitLines(e.Content)
		if len(lines) > 0 {
			v = lines
			res = Result{Fallback: FallbackLines}
		}
	}

	switch x := v.(type) {
	case nil:
		if res.Fallback == FallbackNone && strings.TrimSpace(e.Content) != "" {
			// literal JSON null
			res.Fallback = FallbackEmpty
		}
		return []any{}, res
	case []any:
		return x, res
	default:
		if res.Fallback == FallbackNone {
			res.Fallback = FallbackScalarWrap
		}
		return []any{x}, res
	}
}

// DecodeObject reads an entry whose expected shape is a single object. A
// non-object value is wrapped as {"value": v}; a missing entry or empty
// content yields an empty map.
func DecodeObject(e *model.Entry) (map[string]any, Result) {
	if e == nil || strings.TrimSpace(e.Content) == "" {
		return map[string]any{}, Result{}
	}
	if e.Type != model.TypeJSON {
		return map[string]any{"value": e.Content}, Result{Fallback: FallbackScalarWrap}
	}
	p, res := Decode(e.Type, e.Content)
	v, _ := p.Value()
	switch x := v.(type) {
	case map[string]any:
		return x, res
	case nil:
		if res.Fallback == FallbackNone {
			res.Fallback = FallbackEmpty
		}
		return map[string]any{}, res
	default:
		if res.Fallback == FallbackNone {
			res.Fallback = FallbackScalarWrap
		}
		return map[string]any{"value": x}, res
	}
}

// DecodeText reads an entry whose expected shape is a string. A json entry
// holding a JSON string is unquoted; anything else is returned verbatim.
func DecodeText(e *model.Entry) string {
	if e == nil {
		return ""
	}
	if e.Type == model.TypeJSON {
		if v, err := parseStrict(e.Content); err == nil {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return e.Content
}

// Decode is Decode with fallback logging.
func (d Decoder) Decode(e *model.Entry) (Payload, Result) {
	p, res := Decode(e.Type, e.Content)
	d.report(e, "any", res)
	return p, res
}

// List is DecodeList with fallback logging.
func (d Decoder) List(e *model.Entry) ([]any, Result) {
	v, res := DecodeList(e)
	d.report(e, "list", res)
	return v, res
}

// Object is DecodeObject with fallback logging.
func (d Decoder) Object(e *model.Entry) (map[string]any, Result) {
	v, res := DecodeObject(e)
	d.report(e, "object", res)
	return v, res
}

func (d Decoder) report(e *model.Entry, shape string, res Result) {
	if d.Logger == nil || !res.Degraded() || e == nil {
		return
	}
	attrs := []any{
		"key", e.Key,
		"type", e.Type,
		"shape", shape,
		"fallback", res.Fallback,
	}
	if res.Cause != nil {
		attrs = append(attrs, "cause", res.Cause)
	}
	d.Logger.Warn("content decoded via fallback", attrs...)
}

// parseStrict parses exactly one JSON value, keeping numbers as json.Number
// so re-encoding reproduces their original digits.
func parseStrict(content string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}
	return v, nil
}

var errTrailingData = errors.New("unexpected data after top-level value")

func splitLines(content string) []any {
	var out []any
	for _, line := range strings.Split(content, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Shape is the structure a model reply is expected to decode into.
type Shape string

const (
	ShapeArrayOfObject Shape = "array-of-object"
	ShapeArrayOfString Shape = "array-of-string"
	ShapeArray         Shape = "array"
	ShapeSingleObject  Shape = "single-object"
)

// ParseShape validates a shape name as found in prompt templates.
func ParseShape(s string) (Shape, error) {
	switch sh := Shape(s); sh {
	case ShapeArrayOfObject, ShapeArrayOfString, ShapeArray, ShapeSingleObject:
		return sh, nil
	}
	return "", fmt.Errorf("unknown response shape %q", s)
}

func (s Shape) brackets() (opening, closing byte) {
	if s == ShapeSingleObject {
		return '{', '}'
	}
	return '[', ']'
}

// NormalizedResult is a shape-checked payload decoded from model text.
type NormalizedResult struct {
	Shape   Shape
	Raw     json.RawMessage
	Objects []map[string]any
	Strings []string
	Values  []any
	Object  map[string]any
}

// Into decodes the payload into v.
func (r NormalizedResult) Into(v any) error {
	if err := json.Unmarshal(r.Raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

// Normalize converts free-form model text into a result of the given shape.
func Normalize(text string, shape Shape) (NormalizedResult, error) {
	raw, err := Extract(text, shape)
	if err != nil {
		return NormalizedResult{}, err
	}
	res := NormalizedResult{Shape: shape, Raw: raw}
	switch shape {
	case ShapeArrayOfObject:
		err = json.Unmarshal(raw, &res.Objects)
	case ShapeArrayOfString:
		err = json.Unmarshal(raw, &res.Strings)
	case ShapeArray:
		err = json.Unmarshal(raw, &res.Values)
	case ShapeSingleObject:
		err = json.Unmarshal(raw, &res.Object)
	}
	if err != nil {
		return NormalizedResult{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return res, nil
}

// Decode extracts the payload of the given shape from text and unmarshals it into T.
func Decode[T any](text string, shape Shape) (T, error) {
	var out T
	raw, err := Extract(text, shape)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return out, nil
}

// Extract returns the raw JSON payload of the given shape. It tries the
// fence-stripped text as a whole, then the greedy span from the first opening
// bracket to the last closing one. The span heuristic can pick up unrelated
// brackets around the payload; it is a fallback, not a JSON scanner.
func Extract(text string, shape Shape) (json.RawMessage, error) {
	if _, err := ParseShape(string(shape)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	stripped := StripFences(text)
	if raw, ok := matchShape(stripped, shape); ok {
		return raw, nil
	}
	// The first fence is not always the payload, so the span is searched in
	// the fenced block first and then in the whole reply without fence markers.
	for _, candidate := range []string{stripped, removeFenceMarkers(text)} {
		if span, ok := bracketSpan(candidate, shape); ok {
			if raw, ok := matchShape(span, shape); ok {
				return raw, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no %s found in %q", ErrMalformedResponse, shape, snippet(text, 80))
}

var fenceRe = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*[ \t]*\r?\n?(.*?)```")

// StripFences removes markdown code fences and returns the fenced payload, or
// the trimmed text when there is no fence.
func StripFences(text string) string {
	t := strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(t); m != nil {
		return strings.TrimSpace(m[1])
	}
	// Unterminated fence, usually a truncated reply.
	if rest, ok := strings.CutPrefix(t, "```"); ok {
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			rest = rest[i+1:]
		}
		return strings.TrimSpace(rest)
	}
	return t
}

var fenceMarkerRe = regexp.MustCompile("```(?:[A-Za-z0-9_+-]*[ \t]*\r?\n)?")

// removeFenceMarkers drops every fence line marker and keeps all of the text.
func removeFenceMarkers(text string) string {
	return fenceMarkerRe.ReplaceAllString(text, "\n")
}

func matchShape(s string, shape Shape) (json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	opening, _ := shape.brackets()
	if s == "" || s[0] != opening || !json.Valid([]byte(s)) {
		return nil, false
	}

	raw := json.RawMessage(s)
	if shape == ShapeSingleObject || shape == ShapeArray {
		return raw, true
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, false
	}
	want := byte('{')
	if shape == ShapeArrayOfString {
		want = '"'
	}
	for _, e := range elems {
		if len(e) == 0 || e[0] != want {
			return nil, false
		}
	}
	return raw, true
}

func bracketSpan(s string, shape Shape) (string, bool) {
	opening, closing := shape.brackets()
	start := strings.IndexByte(s, opening)
	end := strings.LastIndexByte(s, closing)
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func snippet(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}

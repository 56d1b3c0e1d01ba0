package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// fieldReader reads typed values out of a decoded payload object. Each
// accessor returns the zero value when the field cannot be read and records
// why in warnings. Optional accessors stay silent when the key is absent but
// still report values of the wrong type.
type fieldReader struct {
	obj      map[string]any
	scope    string
	warnings *Warnings
}

func newFieldReader(obj map[string]any, scope string, warnings *Warnings) fieldReader {
	return fieldReader{obj: obj, scope: scope, warnings: warnings}
}

// lookup resolves a dotted path such as "geo.latitude".
func lookup(obj map[string]any, path string) (any, bool) {
	var cur any = obj
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func (r fieldReader) fail(path string, err error) {
	r.warnings.add(&FieldExtractionError{Scope: r.scope, Field: path, Err: err})
}

func (r fieldReader) value(path string, optional bool) (any, bool) {
	v, ok := lookup(r.obj, path)
	if !ok || v == nil {
		if !optional {
			r.fail(path, errFieldMissing)
		}
		return nil, false
	}
	return v, true
}

func (r fieldReader) str(path string, optional bool) string {
	v, ok := r.value(path, optional)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	r.fail(path, fmt.Errorf("%w: %T", errFieldType, v))
	return ""
}

// String reads a field that the payload normally carries.
func (r fieldReader) String(path string) string {
	return r.str(path, false)
}

// OptionalString reads a field the payload may omit.
func (r fieldReader) OptionalString(path string) string {
	return r.str(path, true)
}

// Float reads a number, accepting numeric strings.
func (r fieldReader) Float(path string) float64 {
	v, ok := r.value(path, false)
	if !ok {
		return 0
	}
	var text string
	switch t := v.(type) {
	case json.Number:
		text = t.String()
	case float64:
		return t
	case string:
		text = strings.TrimSpace(strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(t), "$"), ",", ""))
	default:
		r.fail(path, fmt.Errorf("%w: %T", errFieldType, v))
		return 0
	}
	if text == "" {
		return 0
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		r.fail(path, err)
		return 0
	}
	return f
}

// Int reads a whole number; fractional values are truncated.
func (r fieldReader) Int(path string) int {
	return int(r.Float(path))
}

// Bool reads a boolean, accepting "true"/"false" strings.
func (r fieldReader) Bool(path string) bool {
	v, ok := r.value(path, false)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			r.fail(path, err)
			return false
		}
		return b
	}
	r.fail(path, fmt.Errorf("%w: %T", errFieldType, v))
	return false
}

// Strings reads either a list of strings or a comma-separated string.
func (r fieldReader) Strings(path string) []string {
	v, ok := r.value(path, true)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case string:
		var out []string
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	r.fail(path, fmt.Errorf("%w: %T", errFieldType, v))
	return nil
}

// Raw re-serializes a structured value as compact JSON.
func (r fieldReader) Raw(path string) string {
	v, ok := r.value(path, true)
	if !ok {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		r.fail(path, err)
		return ""
	}
	return string(data)
}

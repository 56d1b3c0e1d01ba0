package parser

import (
	"errors"
	"fmt"
)

var (
	// ErrStructuredDataNotFound indicates a search page without a JSON-LD block listing detail pages.
	ErrStructuredDataNotFound = errors.New("parser: structured data block not found")
	// ErrListingIDMissing indicates a payload without a listing id.
	ErrListingIDMissing = errors.New("parser: listing id missing from payload")

	errFieldMissing = errors.New("field missing")
	errFieldType    = errors.New("unexpected field type")
)

// PageRangeParseError reports a missing or unparsable page-range indicator.
type PageRangeParseError struct {
	Text string
	Err  error
}

func (e *PageRangeParseError) Error() string {
	if e.Text == "" {
		return fmt.Errorf("page range: %w", e.Err).Error()
	}
	return fmt.Sprintf("page range %q: %v", e.Text, e.Err)
}

func (e *PageRangeParseError) Unwrap() error {
	return e.Err
}

// FieldExtractionError reports a single field that fell back to its default.
type FieldExtractionError struct {
	Scope string
	Field string
	Err   error
}

func (e *FieldExtractionError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Scope, e.Field, e.Err)
}

func (e *FieldExtractionError) Unwrap() error {
	return e.Err
}

// ItemExtractionError reports one review, unit or image that was skipped.
type ItemExtractionError struct {
	Kind  string
	Index int
	Err   error
}

func (e *ItemExtractionError) Error() string {
	return fmt.Sprintf("%s[%d]: %v", e.Kind, e.Index, e.Err)
}

func (e *ItemExtractionError) Unwrap() error {
	return e.Err
}

// Warnings collects recoverable field and item errors.
type Warnings []error

func (w *Warnings) add(err error) {
	if err != nil {
		*w = append(*w, err)
	}
}

// Kind returns a metrics label for a warning.
func Kind(err error) string {
	var item *ItemExtractionError
	if errors.As(err, &item) {
		return "item_" + item.Kind
	}
	var field *FieldExtractionError
	if errors.As(err, &field) {
		return "field"
	}
	return "other"
}

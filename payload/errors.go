package payload

import (
	"errors"
	"fmt"
)

var (
	// ErrCallNotFound indicates the marker script has no object-literal call.
	ErrCallNotFound = errors.New("payload: call with object literal not found")
	// ErrUnbalanced indicates the object literal never closes.
	ErrUnbalanced = errors.New("payload: unbalanced object literal")
	// ErrTokenNotFound indicates the marker script declares no quoted value for the property.
	ErrTokenNotFound = errors.New("payload: token property not found")
)

// PayloadNotFoundError reports that the expected inline script, or the value
// inside it, is absent from the page.
type PayloadNotFoundError struct {
	Marker string
	Err    error
}

func (e *PayloadNotFoundError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("payload not found: no script contains %q", e.Marker)
	}
	return fmt.Sprintf("payload not found: marker %q: %v", e.Marker, e.Err)
}

func (e *PayloadNotFoundError) Unwrap() error {
	return e.Err
}

// PayloadRepairError reports that the repaired literal is still not valid JSON.
// Repaired holds the text that was handed to the JSON decoder.
type PayloadRepairError struct {
	Repaired string
	Err      error
}

func (e *PayloadRepairError) Error() string {
	return fmt.Errorf("payload repair: %w", e.Err).Error()
}

func (e *PayloadRepairError) Unwrap() error {
	return e.Err
}

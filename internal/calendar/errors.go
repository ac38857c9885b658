package calendar

import (
	"errors"
	"fmt"
)

// ErrUnauthorized means the provider rejected the access token.
var ErrUnauthorized = errors.New("calendar: unauthorized")

// TransportError is a network failure or a non-2xx answer other than 401.
type TransportError struct {
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("calendar: transport error (HTTP %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("calendar: transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports a payload, or a single event in it, that could not be decoded.
type ParseError struct {
	EventID string // empty when the whole payload is bad
	Field   string
	Err     error
}

func (e *ParseError) Error() string {
	switch {
	case e.EventID != "" && e.Field != "":
		return fmt.Sprintf("calendar: event %s: bad %s: %v", e.EventID, e.Field, e.Err)
	case e.EventID != "":
		return fmt.Sprintf("calendar: event %s: %v", e.EventID, e.Err)
	}
	return fmt.Sprintf("calendar: parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// errMissing marks an absent required field.
var errMissing = errors.New("missing")

package model

import (
	"errors"
	"fmt"
)

// Code classifies every failure that can end a session.
type Code string

const (
	CodeTimedOut         Code = "timed_out"
	CodeConnectionFailed Code = "connection_failed"
	CodeMalformedPayload Code = "malformed_payload"
	CodeNoGPSFix         Code = "no_gps_fix"
	CodeNoSavedLocations Code = "no_saved_locations"
	CodeNoLocationsFound Code = "no_locations_found"
)

var displayText = map[Code]string{
	CodeTimedOut:         "McConnection timed out.",
	CodeConnectionFailed: "Could not connect to mcbroken.",
	CodeMalformedPayload: "McJSON is mcbroken.",
	CodeNoGPSFix:         "Could not get location.",
	CodeNoSavedLocations: "No locations saved!",
	CodeNoLocationsFound: "No locations found!",
}

// Display returns the short text the peer shows on its loading screen.
func (c Code) Display() string {
	if s, ok := displayText[c]; ok {
		return s
	}
	return string(c)
}

// Failure is a classified error. Err carries the underlying cause, if any.
type Failure struct {
	Code Code
	Err  error
}

// Fail wraps err with code. A nil err yields a bare classification.
func Fail(code Code, err error) *Failure {
	return &Failure{Code: code, Err: err}
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Code)
	}
	return fmt.Sprintf("%s: %v", f.Code, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Is matches another *Failure by code so sentinels compare with errors.Is.
func (f *Failure) Is(target error) bool {
	var t *Failure
	if errors.As(target, &t) {
		return t.Code == f.Code
	}
	return false
}

// CodeOf extracts the classification of err. Unclassified errors report
// ConnectionFailed, the catch-all for plumbing faults outside the taxonomy.
func CodeOf(err error) Code {
	var f *Failure
	if errors.As(err, &f) {
		return f.Code
	}
	return CodeConnectionFailed
}

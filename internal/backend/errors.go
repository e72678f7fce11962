package backend

import (
	"errors"
	"fmt"
)

// FetchKind classifies where a fetch failed
type FetchKind string

const (
	KindNetwork FetchKind = "network" // transport failure, including timeouts
	KindHTTP    FetchKind = "http"    // backend answered with a non-2xx status
	KindDecode  FetchKind = "decode"  // response body could not be decoded
)

// ValidationError is returned when caller input is rejected before any request is issued
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FetchError is returned for every failed backend request
type FetchError struct {
	Kind     FetchKind
	Endpoint string
	Status   int // HTTP status, set for KindHTTP only
	Detail   string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Kind == KindHTTP {
		return fmt.Sprintf("%s %s: status %d: %s", e.Kind, e.Endpoint, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s %s: %s", e.Kind, e.Endpoint, e.Detail)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// CommandError is returned when the backend rejects a simulation command
type CommandError struct {
	Command string
	Status  int
	Detail  string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s rejected by backend (status %d): %s", e.Command, e.Status, e.Detail)
}

// IsValidation reports whether err is or wraps a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsFetchKind reports whether err is or wraps a FetchError of the given kind
func IsFetchKind(err error, kind FetchKind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == kind
}

package timeapi

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed lookup
type ErrorKind int

// Lookup failure kinds
const (
	KindNetwork ErrorKind = iota + 1 // transport failure or non-2xx status
	KindNoData                       // empty response body
	KindFormat                       // undecodable JSON or missing datetime field
)

// Sentinels for errors.Is matching against a LookupError's kind
var (
	ErrNetwork = errors.New("network error")
	ErrNoData  = errors.New("no data received")
	ErrFormat  = errors.New("unexpected response format")
)

// String returns the label used in logs and metrics
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindNoData:
		return "no_data"
	case KindFormat:
		return "format"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNetwork:
		return ErrNetwork
	case KindNoData:
		return ErrNoData
	case KindFormat:
		return ErrFormat
	default:
		return nil
	}
}

// LookupError is returned by FetchTime for every failure
type LookupError struct {
	Kind ErrorKind
	Zone Zone
	Err  error
}

func (e *LookupError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("time lookup for %s: %s", e.Zone, e.Kind.sentinel())
	}
	return fmt.Sprintf("time lookup for %s: %s: %v", e.Zone, e.Kind.sentinel(), e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind
func (e *LookupError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf extracts the ErrorKind from err, if it wraps a LookupError
func KindOf(err error) (ErrorKind, bool) {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Kind, true
	}
	return 0, false
}

func newLookupError(kind ErrorKind, zone Zone, err error) *LookupError {
	return &LookupError{Kind: kind, Zone: zone, Err: err}
}

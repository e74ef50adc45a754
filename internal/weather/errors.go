package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedTimestamp is matched by every *MalformedTimestampError.
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	// ErrMalformedInput is matched by every *MalformedInputError.
	ErrMalformedInput = errors.New("malformed input")
	// ErrEmptyGroup means AggregateDay was called without observations.
	ErrEmptyGroup = errors.New("empty observation group")
	// ErrRefreshInProgress is returned when a refresh is requested while another is outstanding.
	ErrRefreshInProgress = errors.New("refresh already in progress")
	// ErrNotFound is returned when no forecast has been stored yet.
	ErrNotFound = errors.New("no forecast data")
	// ErrStaleForecast is returned by stores when a forecast is older than the one already held.
	ErrStaleForecast = errors.New("stale forecast")
)

// MalformedTimestampError identifies the observation whose timestamp could not be parsed.
type MalformedTimestampError struct {
	Index     int
	Timestamp string
	Err       error
}

func (e *MalformedTimestampError) Error() string {
	return fmt.Sprintf("observation %d: malformed timestamp %q: %v", e.Index, e.Timestamp, e.Err)
}

func (e *MalformedTimestampError) Is(target error) bool {
	return target == ErrMalformedTimestamp
}

func (e *MalformedTimestampError) Unwrap() error {
	return e.Err
}

// MalformedInputError reports a feed payload that does not have the observation shape.
// Index is -1 when the document as a whole is wrong.
type MalformedInputError struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("malformed input: %s", e.Reason)
	}
	if e.Field == "" {
		return fmt.Sprintf("malformed input: observation %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("malformed input: observation %d: field %s: %s", e.Index, e.Field, e.Reason)
}

func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

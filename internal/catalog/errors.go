package catalog

import (
	"fmt"
)

// DataFormatError indicates a catalog feed that does not have the expected shape
type DataFormatError struct {
	Reason string
	Err    error
}

func (e *DataFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog data format: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("catalog data format: %s", e.Reason)
}

func (e *DataFormatError) Unwrap() error {
	return e.Err
}

// FetchError indicates the feed could not be retrieved. StatusCode is 0 when no
// HTTP response was received.
type FetchError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("catalog fetch %s: unexpected status %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("catalog fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

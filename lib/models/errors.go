package models

import (
	"errors"
	"fmt"
)

// FeedUnavailableError indicates the feed could not be fetched (network or
// HTTP status failure).
type FeedUnavailableError struct {
	URL string
	Err error
}

func (e *FeedUnavailableError) Error() string {
	return fmt.Sprintf("feed unavailable: %s: %v", e.URL, e.Err)
}

func (e *FeedUnavailableError) Unwrap() error { return e.Err }

// FeedFormatError indicates the fetched document is not a recognized feed
// shape, or contains no items.
type FeedFormatError struct {
	Reason string
	Err    error
}

func (e *FeedFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bad feed format: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("bad feed format: %s", e.Reason)
}

func (e *FeedFormatError) Unwrap() error { return e.Err }

// StoreCorruptError indicates the persisted state document exists but cannot
// be parsed. Fatal to the operation, never to the process.
type StoreCorruptError struct {
	Path string
	Err  error
}

func (e *StoreCorruptError) Error() string {
	return fmt.Sprintf("state document corrupt: %s: %v", e.Path, e.Err)
}

func (e *StoreCorruptError) Unwrap() error { return e.Err }

func IsFeedUnavailable(err error) bool {
	var unavailable *FeedUnavailableError
	return errors.As(err, &unavailable)
}

func IsFeedFormat(err error) bool {
	var format *FeedFormatError
	return errors.As(err, &format)
}

func IsStoreCorrupt(err error) bool {
	var corrupt *StoreCorruptError
	return errors.As(err, &corrupt)
}

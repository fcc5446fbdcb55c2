package dvfs

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedHex marks a voltage-states blob containing a non-hex pair.
	ErrMalformedHex = errors.New("dvfs: malformed hex")
	// ErrSourceUnreadable marks a document whose text could not be obtained.
	ErrSourceUnreadable = errors.New("dvfs: source unreadable")
)

// EntryError reports a voltage-states entry that could not be decoded.
// Sibling entries of the same document are unaffected.
type EntryError struct {
	Suffix string
	Domain Domain
	Err    error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("voltage-states%s (%s): %v", e.Suffix, e.Domain, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// SourceError reports a failure to acquire document text.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() []error { return []error{ErrSourceUnreadable, e.Err} }

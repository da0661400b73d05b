package pdf

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPages is returned for a source document without pages
	ErrNoPages = errors.New("document has no pages")

	// ErrUnsupportedInput is returned for files that are neither PDF nor a
	// convertible word-processor document
	ErrUnsupportedInput = errors.New("unsupported input type")

	// ErrInvalidPages wraps a page selection that does not fit the document
	ErrInvalidPages = errors.New("invalid page selection")
)

// SourceReadError reports a missing, corrupt or unreadable source document.
// Page is 1-based, or 0 when the error is not tied to a page.
type SourceReadError struct {
	Path string
	Page int
	Err  error
}

func (e *SourceReadError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("read %s page %d: %v", e.Path, e.Page, e.Err)
	}
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

// ConversionError reports a failed word-processor to PDF conversion
type ConversionError struct {
	Path string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s to pdf: %v", e.Path, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// WriteError reports a failure to persist the output document
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

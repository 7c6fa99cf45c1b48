package core

import (
	"encoding/csv"
	"errors"
	"fmt"
)

// Sentinel errors for the ingest and report paths. Callers match them with
// errors.Is; the typed errors below carry the detail.
var (
	// ErrMalformedInput means the upload could not be tokenized as CSV.
	ErrMalformedInput = errors.New("invalid csv")

	// ErrEmptyTable means the upload has no header columns at all.
	ErrEmptyTable = errors.New("empty file: no columns found")

	// ErrRender means the report layout cannot place any content on a page.
	ErrRender = errors.New("report layout invalid")

	// ErrNotFound is returned by stores when a dataset or raw file is missing.
	ErrNotFound = errors.New("dataset not found")
)

// MalformedInputError describes where CSV tokenizing failed.
type MalformedInputError struct {
	Line int   // 1-based input line, 0 if unknown
	Err  error // underlying parse error
}

func (e *MalformedInputError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid csv: line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("invalid csv: %v", e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// Is reports true for ErrMalformedInput so callers need not know the type.
func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

// newMalformedInputError wraps err, lifting the line number out of
// csv.ParseError when present.
func newMalformedInputError(err error) *MalformedInputError {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &MalformedInputError{Line: pe.Line, Err: pe.Err}
	}
	return &MalformedInputError{Err: err}
}

// StorageError reports a raw file store failure. Key comes from the upload
// name, so it is left out of error classification.
type StorageError struct {
	Op  string // store, open
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s raw file %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// RenderError reports a degenerate report layout.
type RenderError struct {
	Reason string
}

func (e *RenderError) Error() string {
	return "report layout invalid: " + e.Reason
}

// Is reports true for ErrRender.
func (e *RenderError) Is(target error) bool {
	return target == ErrRender
}

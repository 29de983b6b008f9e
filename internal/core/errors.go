package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMissingFixedColumn marks a file that structurally lacks a required column.
var ErrMissingFixedColumn = errors.New("missing required column")

// ErrSchemaUnavailable marks a batch whose descriptive schema could not be fetched.
var ErrSchemaUnavailable = errors.New("descriptive schema unavailable")

// ErrBatchRunning is returned when a library batch is requested while one
// is still in progress.
var ErrBatchRunning = errors.New("batch already running")

// File-level read errors.
var (
	ErrFileTooLarge      = errors.New("file too large")
	ErrEmptyFile         = errors.New("empty file")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoFile            = errors.New("no file provided")
)

// ErrorKind classifies a row or file rejection.
type ErrorKind string

const (
	KindMissingFixedColumn      ErrorKind = "MissingFixedColumn"
	KindMissingFixedValue       ErrorKind = "MissingFixedValue"
	KindInvalidFixedValue       ErrorKind = "InvalidFixedValue"
	KindDescriptiveTypeMismatch ErrorKind = "DescriptiveTypeMismatch"
	KindMergeFailure            ErrorKind = "MergeFailure"
	KindUnreadableFile          ErrorKind = "UnreadableFile"
)

// ValidationError describes one rejection. Row is the spreadsheet line
// number (header is line 1); structural errors carry the header line.
type ValidationError struct {
	Row      int
	Column   string
	Kind     ErrorKind
	Expected string // declared type, for type mismatches
	Value    string
	Raw      map[string]string
	Err      error
}

func (e ValidationError) Error() string {
	var b strings.Builder
	if e.Row > 0 {
		fmt.Fprintf(&b, "row %d: ", e.Row)
	}
	switch e.Kind {
	case KindMissingFixedColumn:
		fmt.Fprintf(&b, "missing required column %q", e.Column)
	case KindMissingFixedValue:
		fmt.Fprintf(&b, "required field is empty: %q", e.Column)
	case KindInvalidFixedValue:
		fmt.Fprintf(&b, "invalid date for %q: %q", e.Column, e.Value)
	case KindDescriptiveTypeMismatch:
		fmt.Fprintf(&b, "type mismatch for %q: expected %s, got %q", e.Column, e.Expected, e.Value)
	case KindMergeFailure:
		b.WriteString("version store failure")
	case KindUnreadableFile:
		b.WriteString("unreadable file")
	default:
		b.WriteString(string(e.Kind))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e ValidationError) Unwrap() error {
	if e.Kind == KindMissingFixedColumn && e.Err == nil {
		return ErrMissingFixedColumn
	}
	return e.Err
}

// StructuralError is returned when a file's header lacks required columns.
type StructuralError struct {
	Missing []string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMissingFixedColumn, strings.Join(e.Missing, ", "))
}

func (e *StructuralError) Unwrap() error {
	return ErrMissingFixedColumn
}

// SortErrors orders errors by row, then column, for stable reports.
func SortErrors(errs []ValidationError) {
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].Row != errs[j].Row {
			return errs[i].Row < errs[j].Row
		}
		return errs[i].Column < errs[j].Column
	})
}

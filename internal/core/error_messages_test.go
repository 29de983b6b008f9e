package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "invalid fixed date",
			err:         ValidationError{Row: 4, Column: FieldValidFrom, Kind: KindInvalidFixedValue, Value: "2024-13-45"},
			wantCode:    "VAL001",
			wantMessage: "Invalid date format detected",
		},
		{
			name:        "empty required field",
			err:         ValidationError{Row: 2, Column: FieldValidFrom, Kind: KindMissingFixedValue},
			wantCode:    "VAL003",
			wantMessage: "Required field is empty",
		},
		{
			name:        "structural error",
			err:         &StructuralError{Missing: []string{FieldIDType}},
			wantCode:    "VAL004",
			wantMessage: "Required column is missing from the file",
		},
		{
			name:        "descriptive type mismatch",
			err:         ValidationError{Row: 3, Column: "taxi", Kind: KindDescriptiveTypeMismatch, Expected: "boolean", Value: "some string"},
			wantCode:    "VAL007",
			wantMessage: "Value does not match the declared attribute type",
		},
		{
			name:        "merge failure",
			err:         ValidationError{Row: 3, Kind: KindMergeFailure, Err: errors.New("tx closed")},
			wantCode:    "DB008",
			wantMessage: "The record could not be saved",
		},
		{
			name:        "merge failure with connection cause stays a merge failure",
			err:         ValidationError{Row: 3, Kind: KindMergeFailure, Err: errors.New("dial tcp: connection refused")},
			wantCode:    "DB008",
			wantMessage: "The record could not be saved",
		},
		{
			name:        "schema unavailable wins over wrapped deadline",
			err:         fmt.Errorf("%w: %w", ErrSchemaUnavailable, errors.New("context deadline exceeded")),
			wantCode:    "SCH001",
			wantMessage: "The attribute schema could not be loaded",
		},
		{
			name:        "too many imports",
			err:         ErrTooManyImports,
			wantCode:    "IMP002",
			wantMessage: "System is busy processing other imports",
		},
		{
			name:        "batch running",
			err:         ErrBatchRunning,
			wantCode:    "IMP004",
			wantMessage: "An import batch is already in progress",
		},
		{
			name:        "file too large",
			err:         ErrFileTooLarge,
			wantCode:    "FILE001",
			wantMessage: "File exceeds maximum size limit",
		},
		{
			name:        "unsupported format",
			err:         fmt.Errorf("%w: .pdf", ErrUnsupportedFormat),
			wantCode:    "FILE006",
			wantMessage: "File type is not supported",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("DIAL TCP: CONNECTION REFUSED"),
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	err := ValidationError{Row: 2, Column: FieldIDValue, Kind: KindMissingFixedValue}
	result := FormatUserError(err)

	expected := "Required field is empty (Code: VAL003). Ensure all required columns have values"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

// ============================================================================
// Validation errors are coded by kind, whatever the cell said
// ============================================================================

func TestMapError_ValidationErrorIgnoresCellText(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "type mismatch quoting timeout",
			err:      ValidationError{Row: 3, Column: "notes_count", Kind: KindDescriptiveTypeMismatch, Expected: "integer", Value: "timeout"},
			wantCode: "VAL007",
		},
		{
			name:     "invalid date quoting deadlock",
			err:      ValidationError{Row: 4, Column: FieldValidFrom, Kind: KindInvalidFixedValue, Value: "deadlock"},
			wantCode: "VAL001",
		},
		{
			name:     "type mismatch quoting a file error",
			err:      ValidationError{Row: 5, Column: "notes", Kind: KindDescriptiveTypeMismatch, Expected: "float", Value: "file too large"},
			wantCode: "VAL007",
		},
		{
			name:     "missing column named like an import error",
			err:      ValidationError{Row: 1, Column: "context canceled", Kind: KindMissingFixedColumn},
			wantCode: "VAL004",
		},
		{
			name:     "wrapped validation error",
			err:      fmt.Errorf("row failed: %w", ValidationError{Row: 6, Column: "taxi", Kind: KindDescriptiveTypeMismatch, Value: "connection refused"}),
			wantCode: "VAL007",
		},
		{
			name:     "unreadable file coded by its cause",
			err:      ValidationError{Kind: KindUnreadableFile, Err: errors.New("invalid xlsx: zip: not a valid zip file")},
			wantCode: "FILE007",
		},
		{
			name:     "unreadable file with unknown cause",
			err:      ValidationError{Kind: KindUnreadableFile, Err: errors.New("read /data/input/a.csv: input/output error")},
			wantCode: "FILE002",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err).Code; got != tt.wantCode {
				t.Errorf("MapError(%v) code = %q, want %q", tt.err, got, tt.wantCode)
			}
		})
	}
}

func TestMapError_EveryKindHasAMessage(t *testing.T) {
	for kind, code := range kindCodes {
		if _, ok := messageForCode(code); !ok {
			t.Errorf("kind %s maps to %s, which has no message", kind, code)
		}
	}
}

package core

// error_messages.go maps technical errors to coded, user-facing messages.
// Codes appear in rejection reports and API error responses so authors can
// quote them to support staff.
//
// # Schema Errors (SCH001-SCH099)
//
//	SCH001 - Schema unavailable: descriptive schema could not be fetched
//	         Patterns: "descriptive schema unavailable"
//	SCH002 - Invalid schema: schema document contains an unknown type tag
//	         Patterns: "invalid descriptive schema"
//
// # Database Errors (DB001-DB099)
//
//	DB004 - Connection refused      Patterns: "connection refused"
//	DB005 - Connection reset        Patterns: "connection reset"
//	DB006 - Timeout                 Patterns: "timeout"
//	DB007 - Deadlock                Patterns: "deadlock"
//	DB008 - Version store failure   Patterns: "version store failure"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid date           Patterns: "invalid date"
//	VAL003 - Required field empty   Patterns: "required field"
//	VAL004 - Missing column         Patterns: "missing required column"
//	VAL007 - Type mismatch          Patterns: "type mismatch"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large        Patterns: "file too large"
//	FILE002 - Invalid CSV           Patterns: "invalid csv"
//	FILE004 - No file               Patterns: "no file provided"
//	FILE005 - Empty file            Patterns: "empty file"
//	FILE006 - Unsupported format    Patterns: "unsupported file format"
//	FILE007 - Unreadable workbook   Patterns: "invalid xlsx"
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Import cancelled       Patterns: "context canceled"
//	IMP002 - System busy            Patterns: "too many imports"
//	IMP003 - Request timeout        Patterns: "context deadline exceeded"
//	IMP004 - Batch in progress      Patterns: "batch already running"
//
// ERR000 is the fallback when nothing matches; check the logs for the
// original error.
//
// A ValidationError is coded by its kind, never by its text: the text
// quotes user cell values, which may contain any of the patterns below.
// Other errors are matched case-insensitively with strings.Contains and
// the first match wins, so specific patterns precede general ones.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// Schema Errors
	// =========================================================================
	{
		pattern: "descriptive schema unavailable",
		msg: UserMessage{
			Message: "The attribute schema could not be loaded",
			Action:  "No files were processed. They will be retried on the next run",
			Code:    "SCH001",
		},
	},
	{
		pattern: "invalid descriptive schema",
		msg: UserMessage{
			Message: "The attribute schema is invalid",
			Action:  "Fix the type tags in the schema document",
			Code:    "SCH002",
		},
	},

	// =========================================================================
	// Import Errors
	// Checked before database patterns: a deadline is not a database timeout.
	// =========================================================================
	{
		pattern: "too many imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP002",
		},
	},
	{
		pattern: "batch already running",
		msg: UserMessage{
			Message: "An import batch is already in progress",
			Action:  "Wait for it to finish; new files are picked up by the next run",
			Code:    "IMP004",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Import was cancelled",
			Action:  "Please try again",
			Code:    "IMP001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "IMP003",
		},
	},

	// =========================================================================
	// Database Errors
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "version store failure",
		msg: UserMessage{
			Message: "The record could not be saved",
			Action:  "The row was not imported. Re-upload it later or contact support",
			Code:    "DB008",
		},
	},

	// =========================================================================
	// Validation Errors
	// =========================================================================
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "Invalid date format detected",
			Action:  "Use YYYY-MM-DD",
			Code:    "VAL001",
		},
	},
	{
		pattern: "required field",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Ensure all required columns have values",
			Code:    "VAL003",
		},
	},
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "Required column is missing from the file",
			Action:  "Check that all required columns are present in your file",
			Code:    "VAL004",
		},
	},
	{
		pattern: "type mismatch",
		msg: UserMessage{
			Message: "Value does not match the declared attribute type",
			Action:  "Correct the value or leave the cell empty",
			Code:    "VAL007",
		},
	},

	// =========================================================================
	// File Errors
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma- or semicolon-separated",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV or XLSX file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The file is empty",
			Action:  "Please upload a file with a header and data rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "File type is not supported",
			Action:  "Upload a .csv or .xlsx file",
			Code:    "FILE006",
		},
	},
	{
		pattern: "invalid xlsx",
		msg: UserMessage{
			Message: "Workbook could not be read",
			Action:  "Re-save the workbook in Excel and upload again",
			Code:    "FILE007",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// kindCodes codes validation errors by kind.
var kindCodes = map[ErrorKind]string{
	KindMissingFixedColumn:      "VAL004",
	KindMissingFixedValue:       "VAL003",
	KindInvalidFixedValue:       "VAL001",
	KindDescriptiveTypeMismatch: "VAL007",
	KindMergeFailure:            "DB008",
	KindUnreadableFile:          "FILE002",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, a generic fallback message with code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ve ValidationError
	if errors.As(err, &ve) {
		// An unreadable file is coded by why it could not be read.
		if ve.Kind == KindUnreadableFile && ve.Err != nil {
			if msg := matchPattern(ve.Err); msg.Code != defaultMessage.Code {
				return msg
			}
		}
		if msg, ok := messageForCode(kindCodes[ve.Kind]); ok {
			return msg
		}
	}
	return matchPattern(err)
}

func matchPattern(err error) UserMessage {
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

func messageForCode(code string) (UserMessage, bool) {
	for _, ep := range errorPatterns {
		if ep.msg.Code == code {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

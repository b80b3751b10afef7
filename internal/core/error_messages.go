package core

// error_messages.go maps technical errors to user-facing messages with codes
// for support reference. Users can quote the code to support staff.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate record: a record with this value already exists
//	DB002 - Unique constraint: a unique value was repeated
//	DB003 - Foreign key: a referenced record does not exist
//	DB004 - Connection refused: the database is unreachable
//	DB005 - Connection reset: the database connection was interrupted
//	DB006 - Timeout: the operation timed out
//	DB007 - Deadlock: conflicting concurrent writes
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Missing field: a required cell is empty
//	VAL002 - Invalid choice: value not in the allowed list
//	VAL003 - Invalid format: number, date, boolean or currency could not be read
//	VAL004 - Reference not found: a named account does not exist
//
// # Import Rejections (IMP001-IMP099)
//
//	IMP001 - File too large
//	IMP002 - Too many rows
//	IMP003 - Header mismatch
//	IMP004 - Unreadable file
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - No file: the request carried no file
//	FILE002 - Invalid form: the multipart form could not be read
//	FILE003 - Body too large: the request exceeded the upload limit
//	FILE004 - Invalid query: a history query parameter was rejected
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - System busy: too many imports in progress
//	UPL002 - Upload not found
//	UPL003 - Upload in progress: the job is still being processed
//	UPL004 - Request cancelled
//	UPL005 - Request timeout
//	UPL006 - Unknown upload type
//	UPL007 - Company not found
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
// Returned when no pattern matches. Support staff should check the
// application logs for the technical error logged alongside it.
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
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
	// Upload lifecycle (UPL)
	// =========================================================================
	{"too many concurrent uploads", UserMessage{"Too many uploads in progress", "Please wait a moment and try again", "UPL001"}},
	{"upload not found", UserMessage{"Upload not found", "Check the upload ID", "UPL002"}},
	{"still in progress", UserMessage{"The upload is still being processed", "Wait for the upload to finish before retrying", "UPL003"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "UPL004"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try uploading a smaller file or try again later", "UPL005"}},
	{"unknown upload type", UserMessage{"Unknown upload type", "Use accounts, transactions or categories", "UPL006"}},
	{"company not found", UserMessage{"Company not found", "Check the company ID", "UPL007"}},

	// =========================================================================
	// Database (DB)
	// =========================================================================
	{"duplicate record", UserMessage{"A record with this value already exists", "Remove the duplicate row or rename the record", "DB001"}},
	{"duplicate key", UserMessage{"A record with this value already exists", "Remove the duplicate row or rename the record", "DB001"}},
	{"unique constraint", UserMessage{"This value must be unique but already exists", "Check for duplicate entries in your CSV", "DB002"}},
	{"foreign key", UserMessage{"Referenced record does not exist", "Upload the referenced accounts first", "DB003"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Try uploading a smaller file or try again later", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},

	// =========================================================================
	// Files and forms (FILE)
	// =========================================================================
	{"no file provided", UserMessage{"No file was provided", "Attach a CSV file in the file field", "FILE001"}},
	{"invalid form", UserMessage{"The upload form could not be read", "Send a multipart form with company_id and file", "FILE002"}},
	{"request body too large", UserMessage{"The request is larger than the upload limit", "Split the file into smaller files", "FILE003"}},
	{"invalid query parameter", UserMessage{"A query parameter has an invalid value", "Check page, page_size, status and upload_type", "FILE004"}},

	// =========================================================================
	// Rate limiting (RATE)
	// =========================================================================
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

var rejectionMessages = map[RejectReason]UserMessage{
	ReasonFileTooLarge:   {"File exceeds the maximum size limit", "Split the file into smaller files", "IMP001"},
	ReasonTooManyRows:    {"File has too many rows", "Split the file into smaller files", "IMP002"},
	ReasonHeaderMismatch: {"CSV header does not match the template", "Download the template and match its column names", "IMP003"},
	ReasonUnreadableFile: {"File could not be read as CSV", "Save the file as UTF-8 comma-separated values", "IMP004"},
}

var rowErrorCodes = map[ErrorType]string{
	ErrorTypeMissingField:      "VAL001",
	ErrorTypeInvalidChoice:     "VAL002",
	ErrorTypeFieldFormat:       "VAL003",
	ErrorTypeReferenceNotFound: "VAL004",
	ErrorTypePersistence:       "DB001",
}

// MapError converts a technical error to a user-friendly message.
// Unmatched errors map to the ERR000 fallback.
//
//	msg := MapError(fmt.Errorf("insert account: %w", ErrDuplicateRecord))
//	// msg.Code == "DB001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// RejectionMessage returns the coded message for a wholesale rejection reason.
func RejectionMessage(reason RejectReason) UserMessage {
	if msg, ok := rejectionMessages[reason]; ok {
		return msg
	}
	return defaultMessage
}

// RowErrorCode returns the support code for a row error type.
func RowErrorCode(t ErrorType) string {
	if code, ok := rowErrorCodes[t]; ok {
		return code
	}
	return defaultMessage.Code
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}

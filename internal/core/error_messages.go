package core

// error_messages.go maps technical errors to user-facing messages with a
// code that support staff can look up.
//
//	IMP001-IMP004  import stages (create table, insert, commit, begin)
//	DB001-DB007    database and PostgreSQL SQLSTATE errors
//	FILE001-FILE008 input file problems
//	REQ001-REQ004  request handling
//	TBL001         table lookups
//	ERR000         fallback
//
// PostgreSQL errors are matched by SQLSTATE first, then file system errors
// by errors.Is. Everything else is matched case-insensitively with
// strings.Contains; the first match wins.

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// sqlStateMessages maps PostgreSQL error codes to user messages.
var sqlStateMessages = map[string]UserMessage{
	"22P02": {Message: "A value does not match its column type", Action: "Check the rows near the reported line for malformed values", Code: "DB001"},
	"22003": {Message: "A number is too large for its column", Action: "Check numeric columns for out-of-range values", Code: "DB002"},
	"22008": {Message: "A date is not a valid calendar date", Action: "Use real dates in YYYY-MM-DD format", Code: "DB003"},
	"22007": {Message: "A date is not a valid calendar date", Action: "Use real dates in YYYY-MM-DD format", Code: "DB003"},
	"40P01": {Message: "Database was busy with conflicting operations", Action: "Please try again", Code: "DB004"},
	"42501": {Message: "The database user may not create this table", Action: "Check the database role's privileges", Code: "DB005"},
	"42P01": {Message: "Table not found", Action: "Import the table before querying it", Code: "TBL001"},
}

// fileErrorMessages maps errors from opening a local input file.
var fileErrorMessages = []struct {
	target error
	msg    UserMessage
}{
	{fs.ErrNotExist, UserMessage{Message: "The file does not exist", Action: "Check the file path", Code: "FILE007"}},
	{fs.ErrPermission, UserMessage{Message: "The file could not be read", Action: "Check the file's permissions", Code: "FILE008"}},
}

// errorPatterns are checked in order after SQLSTATE matching.
var errorPatterns = []errorPattern{
	{"create table", UserMessage{Message: "The table could not be created", Action: "Try a different table name", Code: "IMP001"}},
	{": insert", UserMessage{Message: "A row could not be inserted; nothing was imported", Action: "Fix the reported row and import again", Code: "IMP002"}},
	{": commit", UserMessage{Message: "The import could not be saved; nothing was imported", Action: "Please try again", Code: "IMP003"}},
	{": begin", UserMessage{Message: "Unable to start a database transaction", Action: "Please try again in a few moments", Code: "IMP004"}},

	{"connection refused", UserMessage{Message: "Unable to connect to database", Action: "Please try again in a few moments", Code: "DB006"}},
	{"connection reset", UserMessage{Message: "Database connection was interrupted", Action: "Please try again", Code: "DB007"}},

	{"file too large", UserMessage{Message: "File exceeds maximum size limit", Action: "Split the file into smaller chunks", Code: "FILE001"}},
	{"request body too large", UserMessage{Message: "File exceeds maximum size limit", Action: "Split the file into smaller chunks", Code: "FILE001"}},
	{"invalid csv", UserMessage{Message: "File is not valid delimited text", Action: "Check quoting and delimiters in your file", Code: "FILE002"}},
	{"no file provided", UserMessage{Message: "No file was selected", Action: "Please select a file to import", Code: "FILE003"}},
	{"empty file", UserMessage{Message: "The uploaded file is empty", Action: "Please upload a file with a header row", Code: "FILE004"}},
	{"no columns", UserMessage{Message: "The header row has no columns", Action: "Make sure the first line names the columns", Code: "FILE005"}},
	{"invalid form", UserMessage{Message: "The upload form could not be read", Action: "Send the file as multipart field \"file\" or as the raw body", Code: "FILE006"}},

	{"too many concurrent imports", UserMessage{Message: "Too many imports in progress", Action: "Please wait a moment and try again", Code: "REQ001"}},
	{"context canceled", UserMessage{Message: "Request was cancelled", Action: "Please try again", Code: "REQ002"}},
	{"context deadline exceeded", UserMessage{Message: "Request timed out", Action: "Try importing a smaller file", Code: "REQ003"}},
	{"invalid delimiter", UserMessage{Message: "The delimiter must be a single character", Action: "Use comma, semicolon, tab, pipe, or one character", Code: "REQ004"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if msg, ok := sqlStateMessages[pgErr.Code]; ok {
			return msg
		}
	}

	for _, fe := range fileErrorMessages {
		if errors.Is(err, fe.target) {
			return fe.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matched a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

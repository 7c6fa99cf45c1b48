package core

// Error codes
//
// User-facing errors carry a code that users can quote to support:
//
//	FILE001  file too large              FILE002  invalid csv
//	FILE003  not a multipart upload      FILE004  no file provided
//	FILE005  empty file (no columns)
//	DS001    dataset not found           DS002    invalid dataset id
//	RPT001   report could not be laid out
//	DB004    connection refused          DB005    connection reset
//	DB006    timeout                     DB007    deadlock
//	UPL002   too many uploads            UPL004   request cancelled
//	UPL005   request timed out
//	RATE001  rate limited
//	ERR000   anything else; check the server log for the technical error
//
// Domain sentinels are matched with errors.Is first. Remaining errors are
// matched by case-insensitive substring, first match wins. File paths and
// raw file keys are removed before matching since they embed upload names.

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// UserMessage is the user-facing form of an error.
type UserMessage struct {
	Message string // what happened
	Action  string // what to do about it
	Code    string // support reference
}

var (
	msgFileTooLarge = UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}
	msgInvalidCSV = UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Ensure the file is comma-separated with a header row and no extra fields",
		Code:    "FILE002",
	}
	msgNoFile = UserMessage{
		Message: "No file was provided",
		Action:  `Send the CSV as multipart form field "file"`,
		Code:    "FILE004",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file has no columns",
		Action:  "Upload a CSV file with a header row",
		Code:    "FILE005",
	}
	msgNotFound = UserMessage{
		Message: "Dataset not found",
		Action:  "Only the most recent uploads are kept; list datasets to see what is available",
		Code:    "DS001",
	}
	msgRender = UserMessage{
		Message: "The report could not be laid out",
		Action:  "Check the report layout settings",
		Code:    "RPT001",
	}
	msgBusy = UserMessage{
		Message: "Too many uploads in progress",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgCanceled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}
	msgDeadline = UserMessage{
		Message: "Request timed out",
		Action:  "Try uploading a smaller file or check your connection",
		Code:    "UPL005",
	}
)

// sentinelMessages is checked in order with errors.Is.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrMalformedInput, msgInvalidCSV},
	{ErrEmptyTable, msgEmptyFile},
	{ErrNotFound, msgNotFound},
	{ErrRender, msgRender},
	{ErrTooManyUploads, msgBusy},
	{context.DeadlineExceeded, msgDeadline},
	{context.Canceled, msgCanceled},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns covers errors from drivers and transports that arrive as
// plain text.
var errorPatterns = []errorPattern{
	{"file too large", msgFileTooLarge},
	{"request body too large", msgFileTooLarge},
	{"no file provided", msgNoFile},
	{"invalid upload form", UserMessage{
		Message: "Upload is not a multipart form",
		Action:  `Send the CSV as multipart/form-data with field "file"`,
		Code:    "FILE003",
	}},
	{"invalid dataset id", UserMessage{
		Message: "Dataset id is not valid",
		Action:  "Use the numeric id returned by the upload or list endpoints",
		Code:    "DS002",
	}},
	{"invalid csv", msgInvalidCSV},
	{"empty file", msgEmptyFile},
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}},
	{"database is locked", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Try uploading a smaller file or try again later",
		Code:    "DB006",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-facing message. nil maps to
// the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	errStr := strings.ToLower(matchText(err))
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// matchText is err's message without the file paths and raw file keys
// found in its chain.
func matchText(err error) string {
	text := err.Error()
	strip := func(s string) {
		if s != "" {
			text = strings.ReplaceAll(text, s, "")
		}
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch te := e.(type) {
		case *StorageError:
			strip(te.Key)
		case *fs.PathError:
			strip(te.Path)
		case *os.LinkError:
			strip(te.Old)
			strip(te.New)
		}
	}
	return text
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than
// ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

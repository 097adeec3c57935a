package core

// # Error Codes Reference
//
// MapError turns any operation error into a UserMessage with a code that can
// be quoted when reporting a problem. Typed errors (*Error) map by kind;
// anything else falls back to case-insensitive pattern matching.
//
//	IO001  - File access failed (open, read, write, close)
//	FMT001 - Malformed delimited row, or input that is not UTF-8
//	IDX001 - Column index beyond the record width
//	ARG001 - Invalid argument (delimiter, max rows, match mode, URL)
//	EXP001 - Entity name did not resolve to a schema
//	DB001  - Query failed
//	DB002  - Could not connect to the data store
//	JOB001 - Too many operations running
//	JOB004 - Operation cancelled
//	JOB005 - Operation timed out
//	ERR000 - Anything else; check the logs for the technical error

import (
	"errors"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var kindMessages = map[Kind]UserMessage{
	KindIO: {
		Message: "A file could not be read or written",
		Action:  "Check that the path exists and is accessible",
		Code:    "IO001",
	},
	KindFormat: {
		Message: "The file is not valid delimited text",
		Action:  "Check the delimiter and that every row has the same number of fields",
		Code:    "FMT001",
	},
	KindIndex: {
		Message: "The column index is beyond the width of a record",
		Action:  "Use a zero-based column index smaller than the field count",
		Code:    "IDX001",
	},
	KindInvalidArgument: {
		Message: "A request parameter is invalid",
		Action:  "Review the parameters and try again",
		Code:    "ARG001",
	},
	KindNoCodeFound: {
		Message: "The entity name did not match any known schema",
		Action:  "Check the entity name against the lookup table",
		Code:    "EXP001",
	},
	KindQuery: {
		Message: "A database query failed",
		Action:  "Check the data store logs; no partial shards were cleaned up",
		Code:    "DB001",
	},
	KindConnection: {
		Message: "Unable to connect to the data store",
		Action:  "Check the connection URL and that the server is reachable",
		Code:    "DB002",
	},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are checked in order when the error carries no kind, and
// before the kind lookup for cancellation, which can hit any phase.
var errorPatterns = []errorPattern{
	{
		pattern: "too many concurrent",
		msg: UserMessage{
			Message: "Too many operations are running",
			Action:  "Please wait a moment and try again",
			Code:    "JOB001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The operation was cancelled",
			Action:  "Start it again when ready",
			Code:    "JOB004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The operation timed out",
			Action:  "Split the input or raise JOB_TIMEOUT",
			Code:    "JOB005",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the logs",
	Code:    "ERR000",
}

// MapError converts an error to a UserMessage. A nil error maps to the zero
// UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if errors.Is(err, ErrTooManyJobs) {
		return errorPatterns[0].msg
	}

	lower := strings.ToLower(err.Error())
	for _, p := range errorPatterns[1:] {
		if strings.Contains(lower, p.pattern) {
			return p.msg
		}
	}

	if msg, ok := kindMessages[KindOf(err)]; ok {
		return msg
	}

	for _, p := range errorPatterns {
		if strings.Contains(lower, p.pattern) {
			return p.msg
		}
	}

	return defaultMessage
}

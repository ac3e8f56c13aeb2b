package importer

// messages.go maps technical errors to operator-friendly messages with
// codes for support reference.
//
// Codes by category:
//
//	CSV001-CSV099  file structure (empty headers, no data rows, size)
//	MAP001-MAP099  field mapping problems
//	DB001-DB099    record store failures
//	RUN001-RUN099  import run lifecycle
//	ERR000         fallback when nothing matches
//
// Patterns are matched case-insensitively with strings.Contains; the
// first match wins, so more specific patterns come first.

import "strings"

// UserMessage provides operator-friendly error information with
// actionable guidance.
type UserMessage struct {
	Message string `json:"message"`          // What happened
	Action  string `json:"action,omitempty"` // What to do about it
	Code    string `json:"code"`             // Code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File structure (CSV001-CSV003)
	{
		pattern: "header row has no columns",
		msg: UserMessage{
			Message: "The file has no header row",
			Action:  "Ensure the first line of the CSV lists the column names",
			Code:    "CSV001",
		},
	},
	{
		pattern: "no data rows",
		msg: UserMessage{
			Message: "The file has no data rows",
			Action:  "Export at least one certification row below the header",
			Code:    "CSV002",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "The file exceeds the size limit",
			Action:  "Split the export into smaller files",
			Code:    "CSV003",
		},
	},

	// Field mapping (MAP001-MAP002)
	{
		pattern: "email column is not mapped",
		msg: UserMessage{
			Message: "No email column is mapped",
			Action:  "Map the column that holds instructor email addresses",
			Code:    "MAP001",
		},
	},
	{
		pattern: "mapped to unknown column",
		msg: UserMessage{
			Message: "A field is mapped to a column that is not in the file",
			Action:  "Re-check the mapping against the file's headers",
			Code:    "MAP002",
		},
	},

	// Record store (DB001-DB004)
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A matching certification already exists",
			Action:  "Review the error rows for duplicates within the file",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "A matching certification already exists",
			Action:  "Review the error rows for duplicates within the file",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "The record store is unreachable",
			Action:  "Try again in a few moments",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "The record store connection was interrupted",
			Action:  "Try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "The operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "DB004",
		},
	},

	// Run lifecycle (RUN001-RUN004)
	{
		pattern: "import run not found",
		msg: UserMessage{
			Message: "The import run was not found",
			Action:  "The run may have expired; start a new import",
			Code:    "RUN001",
		},
	},
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "Too many imports are in progress",
			Action:  "Wait a moment and try again",
			Code:    "RUN002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The import was cancelled",
			Action:  "Start a new import when ready",
			Code:    "RUN003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The import ran out of time",
			Action:  "Try a smaller file or check your connection",
			Code:    "RUN004",
		},
	},
}

// defaultMessage is the ERR000 fallback. Support staff should check the
// application logs for the original technical error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to an operator-friendly message.
// It returns the first matching pattern, or the ERR000 fallback.
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

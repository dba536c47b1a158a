package core

// error_messages.go maps technical errors to user-facing messages with codes.
//
// # Error Codes Reference
//
// When users encounter errors, they can quote the code to support staff.
//
// # Catalog and Load Errors (CAT001-CAT099)
//
//	CAT001 - Missing column: a source file lacks required columns
//	         Action: Add the named columns to the file and restart
//	CAT002 - Sheet not found: a workbook lacks the configured worksheet
//	         Action: Check the sheet name settings
//	CAT003 - Empty file: a source file has no header row
//	CAT004 - Unsupported format: only .xlsx and .csv files can be read
//	CAT005 - File not found: a configured data file does not exist
//	CAT006 - Bad price matrix: the price sheet has no article column
//
// # Currency Errors (CUR001-CUR099)
//
//	CUR001 - Unknown currency: the currency belongs to no market
//	CUR002 - No currency: a currency must be chosen first
//
// # Selection Errors (SEL001-SEL099)
//
//	SEL001 - Unknown combination: the product is not offered in this upholstery
//	SEL002 - Not selected: the combination is not in the selection
//	SEL003 - No base choice: the combination has a single variant
//	SEL004 - Base not available: the base color is not offered
//	SEL005 - Unknown family: no products for the family in this market
//	SEL006 - Item not found: the item is not in the resolved list
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Nothing to export: the selection resolves to no rows
//	EXP002 - System busy: too many exports in progress
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session not found: expired or never existed
//	SES002 - Too many sessions
//
// # Request Errors (REQ001-REQ003), Rate Limiting (RATE001), Default (ERR000)
//
// Sentinel errors are matched with errors.Is first. Remaining rules match
// case-insensitively on the error text; the first match wins.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/JonMunkholm/m2o/internal/market"
	"github.com/JonMunkholm/m2o/internal/pricing"
	"github.com/JonMunkholm/m2o/internal/selection"
	"github.com/JonMunkholm/m2o/internal/sheet"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorRule matches an error by sentinel or by text.
type errorRule struct {
	target  error
	pattern string
	msg     UserMessage
}

var errorRules = []errorRule{
	// =========================================================================
	// Catalog and Load Errors (CAT001-CAT006)
	// =========================================================================
	{
		target: sheet.ErrMissingColumns,
		msg: UserMessage{
			Message: "A data file is missing required columns",
			Action:  "Add the named columns to the file and restart",
			Code:    "CAT001",
		},
	},
	{
		target: sheet.ErrSheetNotFound,
		msg: UserMessage{
			Message: "A workbook does not contain the expected sheet",
			Action:  "Check the sheet name settings",
			Code:    "CAT002",
		},
	},
	{
		target: sheet.ErrNoHeader,
		msg: UserMessage{
			Message: "A data file is empty",
			Action:  "Provide a file with a header row",
			Code:    "CAT003",
		},
	},
	{
		target: sheet.ErrUnsupportedFormat,
		msg: UserMessage{
			Message: "Unsupported file format",
			Action:  "Use .xlsx or .csv files",
			Code:    "CAT004",
		},
	},
	{
		target: os.ErrNotExist,
		msg: UserMessage{
			Message: "A data file was not found",
			Action:  "Check the configured file paths",
			Code:    "CAT005",
		},
	},
	{
		target: pricing.ErrNoKeyColumn,
		msg: UserMessage{
			Message: "A price matrix has no article column",
			Action:  "Put article numbers in the first column of the price sheet",
			Code:    "CAT006",
		},
	},

	// =========================================================================
	// Currency Errors (CUR001-CUR002)
	// =========================================================================
	{
		target: market.ErrUnknownCurrency,
		msg: UserMessage{
			Message: "This currency is not sold in any market",
			Action:  "Choose one of the listed currencies",
			Code:    "CUR001",
		},
	},
	{
		target: ErrNoCurrency,
		msg: UserMessage{
			Message: "No currency selected",
			Action:  "Choose a currency first",
			Code:    "CUR002",
		},
	},

	// =========================================================================
	// Selection Errors (SEL001-SEL006)
	// =========================================================================
	{
		target: selection.ErrUnknownCombination,
		msg: UserMessage{
			Message: "This product is not available in the chosen upholstery",
			Action:  "Pick an available cell of the matrix",
			Code:    "SEL001",
		},
	},
	{
		target: selection.ErrNotSelected,
		msg: UserMessage{
			Message: "The product is not selected",
			Action:  "Select the product before choosing bases",
			Code:    "SEL002",
		},
	},
	{
		target: selection.ErrBaseChoiceNotRequired,
		msg: UserMessage{
			Message: "This product comes in a single variant",
			Action:  "No base color choice is needed",
			Code:    "SEL003",
		},
	},
	{
		target: selection.ErrBaseNotAvailable,
		msg: UserMessage{
			Message: "The base color is not offered for this product",
			Action:  "Choose one of the listed base colors",
			Code:    "SEL004",
		},
	},
	{
		target: ErrUnknownFamily,
		msg: UserMessage{
			Message: "No products found for this family",
			Action:  "Choose one of the listed families",
			Code:    "SEL005",
		},
	},
	{
		target: ErrItemNotFound,
		msg: UserMessage{
			Message: "The item is not in the selection",
			Action:  "Refresh the item list",
			Code:    "SEL006",
		},
	},

	// =========================================================================
	// Export Errors (EXP001-EXP002)
	// =========================================================================
	{
		target: ErrNothingToExport,
		msg: UserMessage{
			Message: "Nothing to export",
			Action:  "Select at least one product, and a base color where required",
			Code:    "EXP001",
		},
	},
	{
		target: ErrTooManyExports,
		msg: UserMessage{
			Message: "System is busy generating other exports",
			Action:  "Please wait a moment and try again",
			Code:    "EXP002",
		},
	},

	// =========================================================================
	// Session Errors (SES001-SES002)
	// =========================================================================
	{
		target: ErrSessionNotFound,
		msg: UserMessage{
			Message: "Session not found",
			Action:  "The session may have expired. Please start a new one",
			Code:    "SES001",
		},
	},
	{
		target: ErrTooManySessions,
		msg: UserMessage{
			Message: "Too many active sessions",
			Action:  "Please try again later",
			Code:    "SES002",
		},
	},

	// =========================================================================
	// Request Errors (REQ001-REQ003) and Rate Limiting (RATE001)
	// =========================================================================
	{
		target: context.Canceled,
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		target: context.DeadlineExceeded,
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again",
			Code:    "REQ002",
		},
	},
	{
		target: ErrInvalidRequest,
		msg: UserMessage{
			Message: "The request could not be understood",
			Action:  "Check the request body and parameters",
			Code:    "REQ003",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no rule matches (ERR000).
// Support staff should check application logs for the original error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. If no
// rule matches, a generic fallback message with code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, r := range errorRules {
		if r.target != nil && errors.Is(err, r.target) {
			return r.msg
		}
		if r.pattern != "" && strings.Contains(errStr, r.pattern) {
			return r.msg
		}
	}

	return defaultMessage
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

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

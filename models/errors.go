package models

import (
	"errors"
	"fmt"
)

// Blocking errors. These are returned from the engine layer as values;
// callers map them to user-facing messages.
var (
	ErrDayNotFound            = errors.New("business day not found")
	ErrDuplicateOpenDay       = errors.New("a business day is already open")
	ErrInvalidStateTransition = errors.New("business day state does not allow this operation")
	ErrNoOpeningSnapshot      = errors.New("day has no opening snapshot")
	ErrNegativeQuantity       = errors.New("quantity must not be negative")
	ErrNonPositiveQuantity    = errors.New("quantity must be positive")
	ErrNonIntegerCount        = errors.New("count-type ingredient requires a whole-number quantity")
	ErrInsufficientStock      = errors.New("insufficient stock at source location")
	ErrClosingExceedsExpected = errors.New("closing quantity exceeds expected closing")
	ErrVoidReasonRequired     = errors.New("void reason is required")
	ErrSpoilageNoteRequired   = errors.New("spoilage reason 'other' requires a note")
	ErrReopenReasonRequired   = errors.New("reopen reason is required")
)

// MissingCountError reports which active ingredients lack a counted value
// for an opening or closing snapshot.
type MissingCountError struct {
	Stage         EventKind // EventKindOpeningSnapshot or EventKindClosingSnapshot
	IngredientIds []int
}

func (e *MissingCountError) Error() string {
	if e.Stage == EventKindOpeningSnapshot {
		return fmt.Sprintf("missing opening count for ingredients %v", e.IngredientIds)
	}
	return fmt.Sprintf("incomplete closing count for ingredients %v", e.IngredientIds)
}

type WarningCode string

const (
	WarningPreviousDayNotClosed   WarningCode = "PreviousDayNotClosed"
	WarningInsufficientStock      WarningCode = "InsufficientStock"
	WarningClosingExceedsExpected WarningCode = "ClosingExceedsExpected"
	WarningNegativeUsage          WarningCode = "NegativeUsage"
)

// Warning is a non-blocking business-rule finding returned beside a result.
// Override-gated rules surface as blocking errors first; the caller retries
// with Override set and receives the same finding as a Warning instead.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

/*
errors.go - Centralized error types for billing and scheduling

PURPOSE:
  All error types in one place for consistency and discoverability.
  Service packages (schedule, company, auth) return these directly or wrap
  them with context; the api package maps them onto HTTP statuses.

ERROR CATEGORIES:
  1. Business rule errors - insufficient balance, nothing to schedule, plan rules
  2. Lookup errors        - missing company, schedule, transaction, top-up
  3. Validation errors    - malformed or out-of-range input
  4. Access errors        - caller may not see or touch the resource

USAGE:
  if errors.Is(err, billing.ErrInsufficientBalance) {
      var ibe *billing.InsufficientBalanceError
      if errors.As(err, &ibe) { ... ibe.Charge ... }
  }

SEE ALSO:
  - ledger.go: Produces InsufficientBalanceError on a failed conditional debit
  - schedule/engine.go: Produces NothingToScheduleError
  - api/errors.go: HTTP status mapping
*/
package billing

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientBalance is returned when a debit exceeds the company balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNothingToSchedule is returned when every requested date is a weekend,
	// a holiday, or already scheduled.
	ErrNothingToSchedule = errors.New("nothing to schedule")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when the request collides with existing state
	// (duplicate username, pending top-up, already reviewed, already joined).
	ErrConflict = errors.New("conflict")

	// ErrForbidden is returned when the caller may not access a resource.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthenticated is returned for bad credentials or tokens.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError carries the computed charge so the caller can
// prompt for a top-up and retry.
type InsufficientBalanceError struct {
	Company    string
	Available  Money
	Charge     Money
	ActiveDays int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s, charge %s",
		e.Available, e.Charge)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// NothingToScheduleError is the no-op outcome of a create request.
type NothingToScheduleError struct {
	Start            string
	End              string
	OffDays          int
	AlreadyScheduled int
}

func (e *NothingToScheduleError) Error() string {
	return fmt.Sprintf("no active days between %s and %s (%d off days, %d already scheduled)",
		e.Start, e.End, e.OffDays, e.AlreadyScheduled)
}

func (e *NothingToScheduleError) Unwrap() error {
	return ErrNothingToSchedule
}

// ValidationError names the offending field. Message is client-facing.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidationErrors aggregates several field failures into one error.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Message
	}
	return strings.Join(msgs, "; ")
}

func (e ValidationErrors) Unwrap() error {
	return ErrValidation
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// Messagef attaches a client-facing message to a sentinel.
// The message is what the api layer renders.
func Messagef(sentinel error, format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), sentinel)
}

// IsClientError returns true if the error is due to invalid client input
// or a business rule, never to infrastructure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrNothingToSchedule) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

/*
errors.go - Centralized error types for the receivables engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Outer layers (API, store) wrap these with additional context.

ERROR CATEGORIES:
  1. Request errors - Genuinely invalid caller requests (fail fast)
  2. Store errors - Record persistence failures
  3. Fetch errors - External record store unreachable

  Note what is NOT here: malformed-but-present receipt data. Missing
  numerics read as zero, missing timestamps sort as oldest. Historical
  data is incomplete and the calculators degrade instead of failing.

USAGE:
  if errors.Is(err, ledger.ErrNonPositivePayment) {
      // 400, never partially applied
  }
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNonPositivePayment is returned when a cascade is requested with
	// a zero or negative amount. This is a caller error: rejected
	// synchronously, never partially applied, not retried.
	ErrNonPositivePayment = errors.New("payment amount must be positive")

	// ErrReceiptNotFound is returned when a referenced receipt doesn't exist.
	ErrReceiptNotFound = errors.New("receipt not found")

	// ErrFetchFailed is returned when the external record store cannot
	// supply a customer's receipts. The cache reports it and moves on;
	// retry policy belongs to the caller.
	ErrFetchFailed = errors.New("receipt fetch failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidPaymentError provides details about a rejected payment request.
type InvalidPaymentError struct {
	ReceiptID ReceiptID
	Amount    decimal.Decimal
}

func (e *InvalidPaymentError) Error() string {
	return fmt.Sprintf("invalid payment of %s against receipt %s: amount must be positive",
		e.Amount.StringFixed(2), e.ReceiptID)
}

func (e *InvalidPaymentError) Unwrap() error {
	return ErrNonPositivePayment
}

// FetchError wraps a failure to obtain receipts for a customer.
type FetchError struct {
	CustomerName string
	Err          error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching receipts for %q: %v", e.CustomerName, e.Err)
}

func (e *FetchError) Unwrap() error {
	return ErrFetchFailed
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNonPositivePayment)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrReceiptNotFound)
}

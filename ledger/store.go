/*
store.go - Persistence boundary for receipt records

PURPOSE:
  Defines the interface between the calculation engine and the record
  store that owns receipts. The engine never creates or deletes
  receipts on its own authority; it reads snapshots and hands field
  deltas back.

CONTRACT:
  - FetchByCustomer is the "fetch capability" the balance cache
    recomputes through. It may fail; the cache treats a failure as a
    reported, non-retried miss.
  - ApplyAdjustments writes a cascade's per-receipt deltas atomically:
    either every touched receipt is updated or none is. Partial
    application of a payment would corrupt money totals.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - store/memory: in-memory store for tests and dev

SEE ALSO:
  - cascade.go: Produces the adjustments ApplyAdjustments persists
  - cache package: Consumes FetchByCustomer
*/
package ledger

import "context"

// =============================================================================
// RECEIPT STORE - The external record store boundary
// =============================================================================

// ReceiptStore is the persistence contract for receipt records.
type ReceiptStore interface {
	// FetchByCustomer returns all receipts whose customer name matches
	// (case-insensitive) the given name.
	FetchByCustomer(ctx context.Context, customerName string) ([]Receipt, error)

	// Get returns a receipt by ID, or nil when absent.
	Get(ctx context.Context, id ReceiptID) (*Receipt, error)

	// Save inserts or replaces a receipt record.
	Save(ctx context.Context, r Receipt) error

	// ApplyAdjustments persists a cascade's output atomically: for each
	// adjustment, amount_paid becomes NewAmountPaid and any historical
	// portion of the application reduces the receipt's old_balance.
	ApplyAdjustments(ctx context.Context, adjustments []CascadeAdjustment) error

	// ListCustomers returns the distinct display names of customers
	// with at least one receipt.
	ListCustomers(ctx context.Context) ([]string, error)

	// AllByCustomer returns every receipt grouped by normalized
	// customer key. Used for bulk cache refresh.
	AllByCustomer(ctx context.Context) (map[string][]Receipt, error)
}

// ReceiptFetcher is the minimal fetch capability the balance cache
// depends on. A *sqlite.Store method value satisfies it directly.
type ReceiptFetcher func(ctx context.Context, customerName string) ([]Receipt, error)

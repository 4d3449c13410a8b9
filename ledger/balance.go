/*
balance.go - Per-receipt and per-customer balance calculation

PURPOSE:
  Computes outstanding balances from receipt snapshots. This is the
  central calculation that answers "how much does this customer owe?"

KEY INSIGHT:
  A customer's total is TWO terms, not a naive sum:

    total = H + sum(balance(r) for every receipt r)

  where H is the historical (pre-ledger) debt carried by the single
  chronologically oldest receipt - and only that one. OldBalance values
  on newer receipts are typically running totals DERIVED from earlier
  receipts; summing them independently double-counts debt already
  captured by the per-receipt term.

ROUNDING:
  Every arithmetic step rounds to cents. Totals with magnitude below
  one cent collapse to exactly zero so "paid off" customers read 0.00,
  not 0.0000000003.

SEE ALSO:
  - historical.go: How H is resolved for the oldest receipt
  - cascade.go: Uses Balance() to size per-receipt payments
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECEIPT BALANCE - One receipt, no context needed
// =============================================================================

// Balance returns a receipt's own outstanding balance:
// max(0, round2(total - amountPaid)). Missing numeric fields read as
// zero; a receipt can never owe a negative amount.
func Balance(r Receipt) decimal.Decimal {
	b := Round2(r.Total.Sub(r.AmountPaid))
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}

// IsPaid reports whether a receipt's own balance counts as settled.
func IsPaid(r Receipt) bool {
	return Settled(Balance(r))
}

// Balances computes ReceiptBalance entries for a receipt set.
func Balances(receipts []Receipt) []ReceiptBalance {
	out := make([]ReceiptBalance, len(receipts))
	for i, r := range receipts {
		out[i] = ReceiptBalance{ReceiptID: r.ID, Balance: Balance(r)}
	}
	return out
}

// =============================================================================
// CUSTOMER AGGREGATION - Historical debt counted once + per-receipt sum
// =============================================================================

// TotalBalance computes a customer's total outstanding balance from a
// snapshot of their receipts. The result is a pure function of the set:
// input order does not matter (sorting is internal), and calling it
// twice on an unchanged set yields identical results.
func TotalBalance(receipts []Receipt) decimal.Decimal {
	if len(receipts) == 0 {
		return decimal.Zero
	}

	sorted := SortByEffectiveTime(receipts)

	// Exactly one receipt (the oldest) may contribute historical debt.
	oldest := sorted[0]
	debt := ResolveHistoricalDebt(oldest, sorted)

	sum := decimal.Zero
	for _, r := range sorted {
		sum = Round2(sum.Add(Balance(r)))
	}

	return collapse(Round2(debt.Amount.Add(sum)))
}

// UnpaidCount returns how many receipts carry a balance above the paid
// threshold. Historical debt does not affect the count.
func UnpaidCount(receipts []Receipt) int {
	count := 0
	for _, r := range receipts {
		if !IsPaid(r) {
			count++
		}
	}
	return count
}

// Snapshot bundles TotalBalance and UnpaidCount into a CustomerBalance.
// The display name is taken from the caller, not normalized.
func Snapshot(customerName string, receipts []Receipt, asOf time.Time) CustomerBalance {
	return CustomerBalance{
		CustomerName:       customerName,
		TotalBalance:       TotalBalance(receipts),
		UnpaidReceiptCount: UnpaidCount(receipts),
		LastUpdated:        asOf,
	}
}

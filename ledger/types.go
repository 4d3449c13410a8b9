/*
Package ledger provides the customer receivables calculation engine.

PURPOSE:
  This package contains the pure types and algorithms that answer two
  questions for a retail point-of-sale backend:
    1. "How much does this customer owe across all their receipts?"
    2. "When a payment comes in, how is it split across those receipts?"

KEY CONCEPTS IN THIS FILE (types.go):
  - Receipt: A single sale record with a total, amount paid, and an
    optional carried-forward debt figure (OldBalance)
  - Provenance: Tagged meaning of OldBalance (manual / derived / unknown)
  - CustomerBalance: A derived snapshot, never a source of truth
  - CascadeAdjustment / CascadeResult: Output of distributing one payment

DESIGN PRINCIPLES:
  1. Purity: Everything in this package is a pure function over receipt
     snapshots. State lives in the cache package, persistence in store.
  2. Precision: decimal.Decimal for money, rounded to 2 places after
     every arithmetic step so repeated operations cannot drift.
  3. Lenience: Historical data is incomplete. Missing numbers read as
     zero, missing timestamps sort as oldest. Calculators never fail
     on malformed-but-present data.

USAGE:
  total := ledger.TotalBalance(receipts)
  result, err := ledger.Cascade(target, payment, others)

SEE ALSO:
  - balance.go: Per-receipt and per-customer balance calculation
  - historical.go: OldBalance provenance resolution
  - cascade.go: FIFO payment distribution
*/
package ledger

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Two-decimal arithmetic with a noise floor
// =============================================================================

// paidThreshold is the "effectively zero" cutoff. Balances at or below
// this are treated as fully paid to absorb floating-point noise carried
// in from older data.
var paidThreshold = decimal.New(1, -2) // 0.01

// Round2 rounds a monetary value to cents. Applied after every
// arithmetic step, not just at the end.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Settled reports whether an outstanding amount counts as fully paid.
func Settled(d decimal.Decimal) bool {
	return d.LessThanOrEqual(paidThreshold)
}

// collapse snaps values with magnitude below one cent to exactly zero.
func collapse(d decimal.Decimal) decimal.Decimal {
	if d.Abs().LessThan(paidThreshold) {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// RECEIPT - Owned by the record store; this package only reads it
// =============================================================================

type ReceiptID string

// Receipt is a single sale/invoice record.
//
// OldBalance is ambiguous by construction: it is either pre-ledger debt
// entered by hand, or a running total previously computed from older
// receipts. ManualOldBalance disambiguates on newer records; legacy
// records leave it nil and the meaning is inferred at read time
// (see historical.go). Stored data is never mutated by the inference.
type Receipt struct {
	ID           ReceiptID
	CustomerName string // free-text debtor key; case-insensitive for grouping

	Total      decimal.Decimal // amount owed by this receipt alone, >= 0
	AmountPaid decimal.Decimal // already paid against this receipt

	OldBalance       decimal.Decimal
	ManualOldBalance *bool // tri-state: true / false / absent

	CreatedAt time.Time // takes precedence for ordering
	Date      time.Time // fallback when CreatedAt is missing
}

// EffectiveTime returns the timestamp used for FIFO ordering.
// Undated receipts return the zero time and therefore sort as oldest.
func (r Receipt) EffectiveTime() time.Time {
	if !r.CreatedAt.IsZero() {
		return r.CreatedAt
	}
	return r.Date
}

// Provenance is the tagged meaning of a receipt's OldBalance.
type Provenance int

const (
	// ProvenanceUnknown: legacy receipt, flag absent; inferred at read time.
	ProvenanceUnknown Provenance = iota
	// ProvenanceManual: pre-ledger debt entered by a person, billed with
	// this receipt.
	ProvenanceManual
	// ProvenanceDerived: running total computed from older receipts;
	// counting it again would double-bill.
	ProvenanceDerived
)

func (p Provenance) String() string {
	switch p {
	case ProvenanceManual:
		return "manual"
	case ProvenanceDerived:
		return "derived"
	default:
		return "unknown"
	}
}

// OldBalanceProvenance maps the stored tri-state flag to a Provenance tag.
func (r Receipt) OldBalanceProvenance() Provenance {
	if r.ManualOldBalance == nil {
		return ProvenanceUnknown
	}
	if *r.ManualOldBalance {
		return ProvenanceManual
	}
	return ProvenanceDerived
}

// CustomerKey normalizes a customer name for grouping and cache keys.
// The display string on the receipt is preserved; only lookups fold case.
func CustomerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SortByEffectiveTime returns a copy of receipts sorted oldest-first.
// Callers never see the sort; TotalBalance and Cascade sort internally
// so their results are independent of input order.
func SortByEffectiveTime(receipts []Receipt) []Receipt {
	sorted := make([]Receipt, len(receipts))
	copy(sorted, receipts)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := sorted[i].EffectiveTime(), sorted[j].EffectiveTime()
		if ti.Equal(tj) {
			return sorted[i].ID < sorted[j].ID
		}
		return ti.Before(tj)
	})
	return sorted
}

// =============================================================================
// DERIVED ENTITIES - Computed by this package, persisted by nobody
// =============================================================================

// ReceiptBalance pairs a receipt with its outstanding balance.
type ReceiptBalance struct {
	ReceiptID ReceiptID
	Balance   decimal.Decimal
}

// CustomerBalance is a derived snapshot of one customer's position.
// It must always be reproducible from the receipt set; treat it as a
// cache line, never as a source of truth.
type CustomerBalance struct {
	CustomerName       string
	TotalBalance       decimal.Decimal
	UnpaidReceiptCount int
	LastUpdated        time.Time
}

// CascadeAdjustment is one receipt touched by a single payment.
// The caller is responsible for writing NewAmountPaid (and any reduced
// OldBalance) back to the record store.
type CascadeAdjustment struct {
	ReceiptID      ReceiptID
	BalanceBefore  decimal.Decimal
	PaymentApplied decimal.Decimal // items portion + historical portion
	BalanceAfter   decimal.Decimal
	NewAmountPaid  decimal.Decimal
	FullyPaidAfter bool
}

// CascadeResult is the full outcome of distributing one payment.
type CascadeResult struct {
	Adjustments           []CascadeAdjustment
	TotalApplied          decimal.Decimal
	OverpaymentRemainder  decimal.Decimal // never silently discarded
	HistoricalDebtCleared decimal.Decimal
}

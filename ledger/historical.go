/*
historical.go - OldBalance provenance resolution

PURPOSE:
  Decides what a receipt's OldBalance actually means. This is a data
  migration problem frozen into the records: newer receipts carry an
  explicit ManualOldBalance flag, older ones do not, and the two
  possible meanings have opposite effects on the customer total:

    manual:  pre-ledger debt, billed against this receipt -> counts
    derived: stale running total of older receipts -> already counted

INFERENCE FOR LEGACY RECEIPTS:
  When the flag is absent we ask: can the tracked receipts explain this
  OldBalance? Sum the outstanding balances of every receipt strictly
  older than the one under test. If that sum falls short of OldBalance
  by more than one cent, the difference cannot come from tracked
  receipts, so the value must be manual pre-ledger debt. Otherwise it
  is treated as derived and NOT counted again.

  The inference is pure and runs at read time only. Stored records are
  never rewritten to carry the inferred flag.

SEE ALSO:
  - balance.go: TotalBalance counts the resolved debt exactly once
  - cascade.go: Bills manual historical debt together with the receipt
*/
package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// HISTORICAL DEBT - Resolved, not stored
// =============================================================================

// HistoricalDebt is the resolved meaning of the oldest receipt's
// OldBalance. Amount is zero unless the debt is manual.
type HistoricalDebt struct {
	ReceiptID ReceiptID
	Amount    decimal.Decimal
	Manual    bool
	Inferred  bool // flag was absent and the legacy inference ran
}

// ResolveHistoricalDebt decides whether the given receipt's OldBalance
// is pre-ledger manual debt or a stale figure already explained by
// older receipts in the set.
//
// The receipt under test is expected to be the chronologically oldest
// of the customer's set; `all` is the full set (it may include the
// receipt itself, which is excluded from the older-sum by identity).
func ResolveHistoricalDebt(r Receipt, all []Receipt) HistoricalDebt {
	none := HistoricalDebt{ReceiptID: r.ID, Amount: decimal.Zero}

	oldBalance := Round2(r.OldBalance)
	if !oldBalance.IsPositive() {
		return none
	}

	switch r.OldBalanceProvenance() {
	case ProvenanceManual:
		return HistoricalDebt{ReceiptID: r.ID, Amount: oldBalance, Manual: true}

	case ProvenanceDerived:
		return none

	default:
		// Legacy receipt: infer. Sum outstanding balances of receipts
		// strictly older than this one.
		cutoff := r.EffectiveTime()
		olderSum := decimal.Zero
		for _, other := range all {
			if other.ID == r.ID {
				continue
			}
			if other.EffectiveTime().Before(cutoff) {
				olderSum = Round2(olderSum.Add(Balance(other)))
			}
		}

		shortfall := Round2(oldBalance.Sub(olderSum))
		if shortfall.GreaterThan(paidThreshold) {
			// Tracked receipts cannot explain the figure: manual debt.
			return HistoricalDebt{ReceiptID: r.ID, Amount: oldBalance, Manual: true, Inferred: true}
		}
		return HistoricalDebt{ReceiptID: r.ID, Amount: decimal.Zero, Inferred: true}
	}
}

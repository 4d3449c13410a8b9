/*
cascade.go - FIFO payment distribution across a customer's receipts

PURPOSE:
  Decides how one incoming payment is split across a customer's
  outstanding receipts. The targeted receipt is paid first; anything
  left over cascades to the remaining receipts oldest-first until the
  money runs out or every receipt is settled.

HISTORICAL DEBT DURING CASCADE:
  A receipt that carries MANUAL historical debt is billed for it
  together with its own items: its consumable amount is
  balance + historical. Derived OldBalance is never billed here - the
  older receipts that actually own that debt are in the cascade and
  collect it themselves.

  At most ONE receipt's historical debt is resolved per cascade call.
  "Oldest" can shift reference frames mid-call (when the target is not
  the true oldest), so the first resolution is authoritative and no
  later receipt may re-resolve the same amount. That single-resolution
  rule is tracked explicitly rather than re-derived per receipt.

OVERPAYMENT:
  Legal, never an error. Whatever the receipts cannot consume comes
  back as OverpaymentRemainder and the caller decides (store credit,
  reject, ...). Nothing is silently discarded.

SEE ALSO:
  - balance.go: Per-receipt balance used to size each application
  - historical.go: Manual-vs-derived resolution
*/
package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// CASCADE - One payment, many receipts, oldest first
// =============================================================================

// Cascade distributes paymentAmount across the target receipt and the
// customer's other receipts. others must exclude the target.
//
// The returned adjustments are transient: the caller persists
// NewAmountPaid (and any reduced OldBalance) back to the record store
// and then refreshes the balance cache.
func Cascade(target Receipt, paymentAmount decimal.Decimal, others []Receipt) (CascadeResult, error) {
	if !paymentAmount.IsPositive() {
		return CascadeResult{}, &InvalidPaymentError{ReceiptID: target.ID, Amount: paymentAmount}
	}

	// Chronology is judged across the whole set, target included.
	full := make([]Receipt, 0, len(others)+1)
	full = append(full, target)
	full = append(full, others...)
	full = SortByEffectiveTime(full)
	oldestID := full[0].ID

	remaining := Round2(paymentAmount)
	result := CascadeResult{
		TotalApplied:          decimal.Zero,
		OverpaymentRemainder:  decimal.Zero,
		HistoricalDebtCleared: decimal.Zero,
	}

	// One authoritative historical resolution per call.
	historicalResolved := false

	// Step 1: the target consumes first, regardless of age.
	adj, applied, cleared := applyToReceipt(target, remaining, full, oldestID, &historicalResolved)
	if applied.IsPositive() {
		result.Adjustments = append(result.Adjustments, adj)
		remaining = Round2(remaining.Sub(applied))
		result.HistoricalDebtCleared = Round2(result.HistoricalDebtCleared.Add(cleared))
	}

	// Step 2: cascade to the rest, oldest first, until the money runs out.
	if remaining.GreaterThan(paidThreshold) && len(others) > 0 {
		for _, r := range SortByEffectiveTime(others) {
			if IsPaid(r) {
				// Settled receipts are always skipped, even the oldest.
				continue
			}

			adj, applied, cleared := applyToReceipt(r, remaining, full, oldestID, &historicalResolved)
			if !applied.IsPositive() {
				continue
			}
			result.Adjustments = append(result.Adjustments, adj)
			remaining = Round2(remaining.Sub(applied))
			result.HistoricalDebtCleared = Round2(result.HistoricalDebtCleared.Add(cleared))

			if remaining.LessThanOrEqual(paidThreshold) {
				break
			}
		}
	}

	result.OverpaymentRemainder = remaining
	result.TotalApplied = Round2(paymentAmount.Sub(remaining))
	return result, nil
}

// applyToReceipt applies up to `remaining` against one receipt and
// returns the adjustment, the amount consumed, and the historical
// portion. The receipt's consumable amount is its own balance, plus its
// manual historical debt when it is the chronologically oldest and no
// earlier receipt in this call already claimed the historical slot.
func applyToReceipt(
	r Receipt,
	remaining decimal.Decimal,
	full []Receipt,
	oldestID ReceiptID,
	historicalResolved *bool,
) (CascadeAdjustment, decimal.Decimal, decimal.Decimal) {

	balance := Balance(r)

	historical := decimal.Zero
	if r.ID == oldestID && !*historicalResolved {
		debt := ResolveHistoricalDebt(r, full)
		if debt.Manual {
			historical = debt.Amount
			*historicalResolved = true
		}
	}

	consumable := Round2(balance.Add(historical))
	applied := decimal.Min(remaining, consumable)
	if !applied.IsPositive() {
		return CascadeAdjustment{}, decimal.Zero, decimal.Zero
	}

	// Items first, historical with the remainder of the application.
	itemsPortion := decimal.Min(applied, balance)
	historicalPortion := Round2(applied.Sub(itemsPortion))

	balanceAfter := Round2(balance.Sub(itemsPortion))
	if balanceAfter.IsNegative() {
		balanceAfter = decimal.Zero
	}

	adj := CascadeAdjustment{
		ReceiptID:      r.ID,
		BalanceBefore:  balance,
		PaymentApplied: Round2(applied),
		BalanceAfter:   balanceAfter,
		NewAmountPaid:  Round2(r.AmountPaid.Add(itemsPortion)),
		FullyPaidAfter: Settled(balanceAfter),
	}
	return adj, Round2(applied), historicalPortion
}

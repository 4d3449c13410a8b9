package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/receivables-engine/ledger"
)

// =============================================================================
// EXPLICIT FLAG
// =============================================================================

func TestResolveHistoricalDebt_ExplicitManual(t *testing.T) {
	// GIVEN: isManualOldBalance = true
	// THEN: The full oldBalance is historical debt on this receipt
	r := rcptWithOld("A", 100, 0, 80, boolPtr(true), day(1))

	debt := ledger.ResolveHistoricalDebt(r, []ledger.Receipt{r})
	assert.True(t, debt.Manual)
	assert.False(t, debt.Inferred)
	assert.True(t, debt.Amount.Equal(dec(80)))
	assert.Equal(t, ledger.ReceiptID("A"), debt.ReceiptID)
}

func TestResolveHistoricalDebt_ExplicitDerived(t *testing.T) {
	// GIVEN: isManualOldBalance = false
	// THEN: oldBalance is not separate debt, regardless of its size
	r := rcptWithOld("A", 100, 0, 500, boolPtr(false), day(1))

	debt := ledger.ResolveHistoricalDebt(r, []ledger.Receipt{r})
	assert.False(t, debt.Manual)
	assert.True(t, debt.Amount.Equal(decimal.Zero))
}

func TestResolveHistoricalDebt_ZeroOldBalance(t *testing.T) {
	r := rcptWithOld("A", 100, 0, 0, boolPtr(true), day(1))

	debt := ledger.ResolveHistoricalDebt(r, []ledger.Receipt{r})
	assert.False(t, debt.Manual)
	assert.True(t, debt.Amount.Equal(decimal.Zero))
}

// =============================================================================
// LEGACY INFERENCE - Flag absent
// =============================================================================

func TestResolveHistoricalDebt_Inferred_ExplainedByOlderReceipts(t *testing.T) {
	// GIVEN: Legacy receipt D (no flag) with oldBalance=40, and an older
	//        receipt E with an outstanding balance of exactly 40
	// THEN: D's oldBalance is explained by E -> inferred derived, no debt
	e := rcpt("E", 40, 0, day(1))
	d := rcptWithOld("D", 60, 0, 40, nil, day(2))

	debt := ledger.ResolveHistoricalDebt(d, []ledger.Receipt{d, e})
	assert.False(t, debt.Manual)
	assert.True(t, debt.Inferred)
	assert.True(t, debt.Amount.Equal(decimal.Zero))
}

func TestResolveHistoricalDebt_Inferred_UnexplainedShortfall(t *testing.T) {
	// GIVEN: Legacy receipt with oldBalance=100 but only 30 of tracked
	//        older balances
	// THEN: The 70 gap cannot come from tracked receipts -> manual debt,
	//       counted at the FULL oldBalance value
	older := rcpt("E", 30, 0, day(1))
	r := rcptWithOld("D", 60, 0, 100, nil, day(2))

	debt := ledger.ResolveHistoricalDebt(r, []ledger.Receipt{r, older})
	assert.True(t, debt.Manual)
	assert.True(t, debt.Inferred)
	assert.True(t, debt.Amount.Equal(dec(100)))
}

func TestResolveHistoricalDebt_Inferred_NoOlderReceipts(t *testing.T) {
	// The oldest receipt of a legacy ledger: nothing older can explain
	// its oldBalance, so the whole value is historical.
	r := rcptWithOld("A", 100, 0, 55.50, nil, day(1))

	debt := ledger.ResolveHistoricalDebt(r, []ledger.Receipt{r})
	assert.True(t, debt.Manual)
	assert.True(t, debt.Amount.Equal(dec(55.50)))
}

func TestResolveHistoricalDebt_Inferred_ToleranceBoundary(t *testing.T) {
	// A shortfall of exactly one cent is within tolerance: not manual.
	older := rcpt("E", 39.99, 0, day(1))
	r := rcptWithOld("D", 60, 0, 40, nil, day(2))

	debt := ledger.ResolveHistoricalDebt(r, []ledger.Receipt{r, older})
	assert.False(t, debt.Manual)

	// One cent beyond the tolerance flips the inference.
	older2 := rcpt("E", 39.98, 0, day(1))
	debt2 := ledger.ResolveHistoricalDebt(r, []ledger.Receipt{r, older2})
	assert.True(t, debt2.Manual)
	assert.True(t, debt2.Amount.Equal(dec(40)))
}

func TestResolveHistoricalDebt_Inference_OnlyCountsStrictlyOlder(t *testing.T) {
	// GIVEN: Receipts newer than the one under test with large balances
	// THEN: They do not participate in the older-sum
	r := rcptWithOld("D", 60, 0, 40, nil, day(2))
	newer := rcpt("F", 500, 0, day(3))

	debt := ledger.ResolveHistoricalDebt(r, []ledger.Receipt{r, newer})
	assert.True(t, debt.Manual, "newer receipts cannot explain oldBalance")
}

func TestResolveHistoricalDebt_Inference_IgnoresPaidPortionOfOlder(t *testing.T) {
	// Only OUTSTANDING balances of older receipts count toward the
	// explanation, not their full totals.
	older := rcpt("E", 100, 80, day(1)) // outstanding 20
	r := rcptWithOld("D", 60, 0, 40, nil, day(2))

	debt := ledger.ResolveHistoricalDebt(r, []ledger.Receipt{r, older})
	assert.True(t, debt.Manual, "20 outstanding cannot explain 40")
}

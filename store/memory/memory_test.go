package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/receivables-engine/ledger"
	"github.com/warp/receivables-engine/store/memory"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func day(n int) time.Time {
	return time.Date(2025, time.March, n, 0, 0, 0, 0, time.UTC)
}

func TestFetchByCustomer_NormalizesAndSorts(t *testing.T) {
	m := memory.New()
	ctx := context.Background()
	require.NoError(t, m.SaveBatch(ctx, []ledger.Receipt{
		{ID: "a2", CustomerName: "ALICE", Total: dec(20), CreatedAt: day(2)},
		{ID: "a1", CustomerName: "alice", Total: dec(10), CreatedAt: day(1)},
		{ID: "b1", CustomerName: "Bob", Total: dec(30), CreatedAt: day(1)},
	}))

	receipts, err := m.FetchByCustomer(ctx, " Alice ")
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, ledger.ReceiptID("a1"), receipts[0].ID)
	assert.Equal(t, ledger.ReceiptID("a2"), receipts[1].ID)
}

func TestApplyAdjustments_AllOrNothing(t *testing.T) {
	m := memory.New()
	ctx := context.Background()
	require.NoError(t, m.Save(ctx, ledger.Receipt{ID: "a", CustomerName: "Alice", Total: dec(100)}))

	err := m.ApplyAdjustments(ctx, []ledger.CascadeAdjustment{
		{ReceiptID: "a", PaymentApplied: dec(100), NewAmountPaid: dec(100)},
		{ReceiptID: "missing", PaymentApplied: dec(10), NewAmountPaid: dec(10)},
	})
	require.ErrorIs(t, err, ledger.ErrReceiptNotFound)

	a, _ := m.Get(ctx, "a")
	assert.True(t, a.AmountPaid.Equal(decimal.Zero))
}

func TestApplyAdjustments_DrainsManualOldBalance(t *testing.T) {
	m := memory.New()
	ctx := context.Background()
	manual := true
	require.NoError(t, m.Save(ctx, ledger.Receipt{
		ID: "a", CustomerName: "Alice",
		Total: dec(200), OldBalance: dec(80), ManualOldBalance: &manual,
		CreatedAt: day(1),
	}))

	err := m.ApplyAdjustments(ctx, []ledger.CascadeAdjustment{
		{ReceiptID: "a", PaymentApplied: dec(280), NewAmountPaid: dec(200), FullyPaidAfter: true},
	})
	require.NoError(t, err)

	a, _ := m.Get(ctx, "a")
	assert.True(t, a.AmountPaid.Equal(dec(200)))
	assert.True(t, a.OldBalance.Equal(decimal.Zero))
}

func TestListCustomers_SortedByKey(t *testing.T) {
	m := memory.New()
	ctx := context.Background()
	require.NoError(t, m.SaveBatch(ctx, []ledger.Receipt{
		{ID: "c1", CustomerName: "carol", Total: dec(1)},
		{ID: "a1", CustomerName: "Alice", Total: dec(1)},
		{ID: "b1", CustomerName: "bob", Total: dec(1)},
	}))

	names, err := m.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "bob", "carol"}, names)
}

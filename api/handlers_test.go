package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/receivables-engine/api"
	"github.com/warp/receivables-engine/cache"
	"github.com/warp/receivables-engine/ledger"
	"github.com/warp/receivables-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	store  *sqlite.Store
	cache  *cache.BalanceCache
	router http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	balances := cache.New(store.FetchByCustomer, nil)
	h := api.NewHandler(store, balances, nil)

	return &fixture{
		store:  store,
		cache:  balances,
		router: api.NewRouter(h, []string{"*"}),
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func day(n int) time.Time {
	return time.Date(2025, time.March, n, 0, 0, 0, 0, time.UTC)
}

func seed(t *testing.T, f *fixture, receipts ...ledger.Receipt) {
	t.Helper()
	require.NoError(t, f.store.SaveBatch(context.Background(), receipts))
}

// =============================================================================
// RECEIPT ENDPOINTS
// =============================================================================

func TestCreateReceipt_PersistsAndUpdatesBalance(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/receipts", api.CreateReceiptRequest{
		CustomerName: "Alice Smith",
		Total:        120.50,
		AmountPaid:   20,
		CreatedAt:    day(1).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	dto := decodeJSON[api.ReceiptDTO](t, rec)
	assert.NotEmpty(t, dto.ID)
	assert.InDelta(t, 100.50, dto.Balance, 0.001)
	assert.False(t, dto.Paid)

	// The customer's cached balance reflects the write immediately.
	assert.True(t, f.cache.Get("alice smith").Equal(dec(100.50)))
}

func TestCreateReceipt_RejectsMissingCustomer(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/receipts", api.CreateReceiptRequest{Total: 10})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateReceipt_RejectsNegativeTotal(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/receipts", api.CreateReceiptRequest{
		CustomerName: "Alice", Total: -5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetReceipt_ReportsProvenance(t *testing.T) {
	f := newFixture(t)
	manual := true
	seed(t, f, ledger.Receipt{
		ID: "r1", CustomerName: "Alice",
		Total: dec(200), OldBalance: dec(80), ManualOldBalance: &manual,
		CreatedAt: day(1),
	})

	rec := f.do(t, "GET", "/api/receipts/r1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	dto := decodeJSON[api.ReceiptDTO](t, rec)
	assert.Equal(t, "manual", dto.OldBalanceProvenance)
	assert.InDelta(t, 80, dto.OldBalance, 0.001)
}

func TestGetReceipt_Missing404(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/receipts/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// CUSTOMER ENDPOINTS
// =============================================================================

func TestListCustomers_ReturnsBalances(t *testing.T) {
	f := newFixture(t)
	seed(t, f,
		ledger.Receipt{ID: "a1", CustomerName: "Alice", Total: dec(100), AmountPaid: dec(40), CreatedAt: day(1)},
		ledger.Receipt{ID: "b1", CustomerName: "Bob", Total: dec(50), AmountPaid: dec(50), CreatedAt: day(1)},
	)

	rec := f.do(t, "GET", "/api/customers", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	dtos := decodeJSON[[]api.CustomerDTO](t, rec)
	require.Len(t, dtos, 2)
	assert.Equal(t, "Alice", dtos[0].Name)
	assert.InDelta(t, 60, dtos[0].TotalBalance, 0.001)
	assert.Equal(t, 1, dtos[0].UnpaidCount)
	assert.Equal(t, "Bob", dtos[1].Name)
	assert.InDelta(t, 0, dtos[1].TotalBalance, 0.001)
}

func TestGetBalance_UncachedReportsZeroUncached(t *testing.T) {
	f := newFixture(t)
	seed(t, f, ledger.Receipt{ID: "a1", CustomerName: "Alice", Total: dec(100), CreatedAt: day(1)})

	rec := f.do(t, "GET", "/api/customers/Alice/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	dto := decodeJSON[api.BalanceDTO](t, rec)
	assert.False(t, dto.Cached)
	assert.InDelta(t, 0, dto.TotalBalance, 0.001)
}

func TestGetBalance_RefreshRecomputesFromStore(t *testing.T) {
	f := newFixture(t)
	seed(t, f, ledger.Receipt{ID: "a1", CustomerName: "Alice", Total: dec(100), AmountPaid: dec(25), CreatedAt: day(1)})

	rec := f.do(t, "GET", "/api/customers/Alice/balance?refresh=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	dto := decodeJSON[api.BalanceDTO](t, rec)
	assert.True(t, dto.Cached)
	assert.InDelta(t, 75, dto.TotalBalance, 0.001)
	assert.Equal(t, 1, dto.UnpaidCount)
	assert.NotEmpty(t, dto.LastUpdated)
}

func TestGetReceipts_SortedOldestFirst(t *testing.T) {
	f := newFixture(t)
	seed(t, f,
		ledger.Receipt{ID: "new", CustomerName: "Alice", Total: dec(10), CreatedAt: day(9)},
		ledger.Receipt{ID: "old", CustomerName: "Alice", Total: dec(20), CreatedAt: day(1)},
	)

	rec := f.do(t, "GET", "/api/customers/Alice/receipts", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Receipts     []api.ReceiptDTO `json:"receipts"`
		TotalBalance float64          `json:"total_balance"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Receipts, 2)
	assert.Equal(t, "old", resp.Receipts[0].ID)
	assert.Equal(t, "new", resp.Receipts[1].ID)
	assert.InDelta(t, 30, resp.TotalBalance, 0.001)
}

// =============================================================================
// PAYMENT ENDPOINT
// =============================================================================

func TestSubmitPayment_OverpaymentCascadesToOlderReceipt(t *testing.T) {
	// GIVEN: Alice owes 100 on receipt A (older) and 100 on B
	// WHEN: She pays 120 against B
	// THEN: B is settled, 20 flows to A, her balance drops to 80
	f := newFixture(t)
	seed(t, f,
		ledger.Receipt{ID: "a", CustomerName: "Alice", Total: dec(100), CreatedAt: day(1)},
		ledger.Receipt{ID: "b", CustomerName: "Alice", Total: dec(100), CreatedAt: day(2)},
	)

	rec := f.do(t, "POST", "/api/payments", api.PaymentRequest{ReceiptID: "b", Amount: 120})
	require.Equal(t, http.StatusOK, rec.Code)

	result := decodeJSON[api.PaymentResultDTO](t, rec)
	assert.InDelta(t, 120, result.TotalApplied, 0.001)
	assert.InDelta(t, 0, result.OverpaymentRemainder, 0.001)
	assert.InDelta(t, 80, result.CustomerBalance, 0.001)
	require.Len(t, result.Adjustments, 2)
	assert.Equal(t, "b", result.Adjustments[0].ReceiptID)
	assert.True(t, result.Adjustments[0].FullyPaid)
	assert.Equal(t, "a", result.Adjustments[1].ReceiptID)
	assert.InDelta(t, 20, result.Adjustments[1].PaymentApplied, 0.001)

	// Persisted state matches the response.
	ctx := context.Background()
	a, _ := f.store.Get(ctx, "a")
	b, _ := f.store.Get(ctx, "b")
	assert.True(t, a.AmountPaid.Equal(dec(20)))
	assert.True(t, b.AmountPaid.Equal(dec(100)))

	// And so does the cache.
	assert.True(t, f.cache.Get("alice").Equal(dec(80)))
}

func TestSubmitPayment_RemainderWhenEverythingSettled(t *testing.T) {
	f := newFixture(t)
	seed(t, f, ledger.Receipt{ID: "a", CustomerName: "Alice", Total: dec(50), CreatedAt: day(1)})

	rec := f.do(t, "POST", "/api/payments", api.PaymentRequest{ReceiptID: "a", Amount: 70})
	require.Equal(t, http.StatusOK, rec.Code)

	result := decodeJSON[api.PaymentResultDTO](t, rec)
	assert.InDelta(t, 50, result.TotalApplied, 0.001)
	assert.InDelta(t, 20, result.OverpaymentRemainder, 0.001)
	assert.InDelta(t, 0, result.CustomerBalance, 0.001)
}

func TestSubmitPayment_ClearsManualHistoricalDebt(t *testing.T) {
	// Oldest receipt bills 200 of items plus 80 of hand-entered debt.
	f := newFixture(t)
	manual := true
	seed(t, f, ledger.Receipt{
		ID: "a", CustomerName: "Ruth",
		Total: dec(200), OldBalance: dec(80), ManualOldBalance: &manual,
		CreatedAt: day(1),
	})

	rec := f.do(t, "POST", "/api/payments", api.PaymentRequest{ReceiptID: "a", Amount: 280})
	require.Equal(t, http.StatusOK, rec.Code)

	result := decodeJSON[api.PaymentResultDTO](t, rec)
	assert.InDelta(t, 280, result.TotalApplied, 0.001)
	assert.InDelta(t, 80, result.HistoricalDebtCleared, 0.001)
	assert.InDelta(t, 0, result.CustomerBalance, 0.001)

	a, _ := f.store.Get(context.Background(), "a")
	assert.True(t, a.AmountPaid.Equal(dec(200)))
	assert.True(t, a.OldBalance.Equal(decimal.Zero))
}

func TestSubmitPayment_NonPositiveAmountIs400(t *testing.T) {
	f := newFixture(t)
	seed(t, f, ledger.Receipt{ID: "a", CustomerName: "Alice", Total: dec(50), CreatedAt: day(1)})

	rec := f.do(t, "POST", "/api/payments", api.PaymentRequest{ReceiptID: "a", Amount: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "POST", "/api/payments", api.PaymentRequest{ReceiptID: "a", Amount: -10})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Nothing was written.
	a, _ := f.store.Get(context.Background(), "a")
	assert.True(t, a.AmountPaid.Equal(decimal.Zero))
}

func TestSubmitPayment_UnknownReceiptIs404(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/payments", api.PaymentRequest{ReceiptID: "ghost", Amount: 10})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// ADMIN + RESET
// =============================================================================

func TestRefreshCache_RebuildsFromStore(t *testing.T) {
	f := newFixture(t)
	seed(t, f,
		ledger.Receipt{ID: "a1", CustomerName: "Alice", Total: dec(100), CreatedAt: day(1)},
		ledger.Receipt{ID: "b1", CustomerName: "Bob", Total: dec(30), CreatedAt: day(1)},
	)

	rec := f.do(t, "POST", "/api/admin/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 2, f.cache.Len())
	assert.True(t, f.cache.Get("Alice").Equal(dec(100)))
}

func TestResetDatabase_ClearsStoreAndCache(t *testing.T) {
	f := newFixture(t)
	seed(t, f, ledger.Receipt{ID: "a1", CustomerName: "Alice", Total: dec(100)})
	f.do(t, "POST", "/api/admin/refresh", nil)

	rec := f.do(t, "POST", "/api/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	count, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, 0, f.cache.Len())
}

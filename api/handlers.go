/*
handlers.go - HTTP API handlers for the receivables engine

PURPOSE:
  Exposes the receivables engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Customers:
    GET    /api/customers                    List customers with balances
    GET    /api/customers/{name}/balance     Cached balance (?refresh=true recomputes)
    GET    /api/customers/{name}/receipts    Receipt history with provenance

  Receipts:
    POST   /api/receipts                     Record a receipt
    GET    /api/receipts/{id}                Get receipt details

  Payments:
    POST   /api/payments                     Apply a payment (FIFO cascade)

  Admin:
    POST   /api/admin/refresh                Rebuild the balance cache

  Scenarios:
    GET    /api/scenarios                    List demo scenarios
    POST   /api/scenarios/load               Load a demo scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - Cache: Derived balance snapshots
  - Log: Structured logging

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (ledger calculators, cascade)
  4. Persist and refresh the cache
  5. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid payment amounts
  - 404: Receipt not found
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/receivables-engine/cache"
	"github.com/warp/receivables-engine/ledger"
	"github.com/warp/receivables-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store
	Cache *cache.BalanceCache
	Log   *zap.Logger

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store and cache.
func NewHandler(store *sqlite.Store, balances *cache.BalanceCache, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Store: store,
		Cache: balances,
		Log:   log,
	}
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns all customers with their current balances.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	grouped, err := h.Store.AllByCustomer(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list customers", err)
		return
	}

	names, err := h.Store.ListCustomers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list customers", err)
		return
	}

	dtos := make([]CustomerDTO, len(names))
	for i, name := range names {
		receipts := grouped[ledger.CustomerKey(name)]
		dtos[i] = CustomerDTO{
			Name:         name,
			TotalBalance: ledger.TotalBalance(receipts).InexactFloat64(),
			UnpaidCount:  ledger.UnpaidCount(receipts),
		}
	}

	writeJSON(w, http.StatusOK, dtos)
}

// GetBalance returns a customer's cached balance. Pass ?refresh=true to
// recompute from the store before answering.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	name := customerParam(r)
	if strings.TrimSpace(name) == "" {
		writeError(w, http.StatusBadRequest, "Customer name is required", nil)
		return
	}

	if r.URL.Query().Get("refresh") == "true" {
		if _, err := h.Cache.Recompute(r.Context(), name); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to refresh balance", err)
			return
		}
	}

	snap, cached := h.Cache.GetSnapshot(name)
	dto := BalanceDTO{
		CustomerName: name,
		TotalBalance: snap.TotalBalance.InexactFloat64(),
		UnpaidCount:  snap.UnpaidReceiptCount,
		Cached:       cached,
		InProgress:   h.Cache.InProgress(name),
	}
	if cached {
		dto.CustomerName = snap.CustomerName
		dto.LastUpdated = snap.LastUpdated.Format("2006-01-02T15:04:05Z07:00")
	}

	writeJSON(w, http.StatusOK, dto)
}

// GetReceipts returns a customer's receipts, oldest first, with
// per-receipt balances and old-balance provenance.
func (h *Handler) GetReceipts(w http.ResponseWriter, r *http.Request) {
	name := customerParam(r)
	if strings.TrimSpace(name) == "" {
		writeError(w, http.StatusBadRequest, "Customer name is required", nil)
		return
	}

	receipts, err := h.Store.FetchByCustomer(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch receipts", err)
		return
	}

	sorted := ledger.SortByEffectiveTime(receipts)
	dtos := make([]ReceiptDTO, len(sorted))
	for i, rec := range sorted {
		dtos[i] = toReceiptDTO(rec)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"customer_name": name,
		"receipts":      dtos,
		"total_balance": ledger.TotalBalance(receipts).InexactFloat64(),
	})
}

// =============================================================================
// RECEIPT HANDLERS
// =============================================================================

// CreateReceipt records a new receipt and refreshes the customer's
// cached balance.
func (h *Handler) CreateReceipt(w http.ResponseWriter, r *http.Request) {
	var req CreateReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if strings.TrimSpace(req.CustomerName) == "" {
		writeError(w, http.StatusBadRequest, "customer_name is required", nil)
		return
	}
	if req.Total < 0 {
		writeError(w, http.StatusBadRequest, "total must not be negative", nil)
		return
	}

	id := ledger.ReceiptID(req.ID)
	if id == "" {
		id = ledger.ReceiptID(uuid.NewString())
	}

	receipt, err := req.toReceipt(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid timestamp", err)
		return
	}

	if err := h.Store.Save(r.Context(), receipt); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save receipt", err)
		return
	}

	h.refreshCustomer(r, receipt.CustomerName)
	h.Log.Info("receipt recorded",
		zap.String("receipt_id", string(id)),
		zap.String("customer", receipt.CustomerName))

	writeJSON(w, http.StatusCreated, toReceiptDTO(receipt))
}

// GetReceipt returns a single receipt.
func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	receipt, err := h.Store.Get(r.Context(), ledger.ReceiptID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get receipt", err)
		return
	}
	if receipt == nil {
		writeError(w, http.StatusNotFound, "Receipt not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toReceiptDTO(*receipt))
}

// =============================================================================
// PAYMENT HANDLER
// =============================================================================

// SubmitPayment applies a payment to a receipt. Overpayment cascades
// oldest-first across the customer's other unpaid receipts; the
// adjusted receipts are persisted atomically and the cached balance is
// refreshed before responding.
func (h *Handler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ReceiptID == "" {
		writeError(w, http.StatusBadRequest, "receipt_id is required", nil)
		return
	}

	ctx := r.Context()
	target, err := h.Store.Get(ctx, ledger.ReceiptID(req.ReceiptID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get receipt", err)
		return
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "Receipt not found", nil)
		return
	}

	all, err := h.Store.FetchByCustomer(ctx, target.CustomerName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch receipts", err)
		return
	}

	others := make([]ledger.Receipt, 0, len(all))
	for _, rec := range all {
		if rec.ID != target.ID {
			others = append(others, rec)
		}
	}

	amount := decimal.NewFromFloat(req.Amount)
	result, err := ledger.Cascade(*target, amount, others)
	if err != nil {
		if ledger.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "Invalid payment", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Payment failed", err)
		return
	}

	if err := h.Store.ApplyAdjustments(ctx, result.Adjustments); err != nil {
		if ledger.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Receipt vanished during payment", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to persist payment", err)
		return
	}

	balance := h.refreshCustomer(r, target.CustomerName)
	h.Log.Info("payment applied",
		zap.String("receipt_id", req.ReceiptID),
		zap.String("customer", target.CustomerName),
		zap.Float64("amount", req.Amount),
		zap.Int("receipts_touched", len(result.Adjustments)),
		zap.String("remainder", result.OverpaymentRemainder.String()))

	writeJSON(w, http.StatusOK, PaymentResultDTO{
		ReceiptID:             req.ReceiptID,
		Amount:                amount.InexactFloat64(),
		TotalApplied:          result.TotalApplied.InexactFloat64(),
		OverpaymentRemainder:  result.OverpaymentRemainder.InexactFloat64(),
		HistoricalDebtCleared: result.HistoricalDebtCleared.InexactFloat64(),
		Adjustments:           toAdjustmentDTOs(result.Adjustments),
		CustomerBalance:       balance.InexactFloat64(),
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RefreshCache rebuilds the whole balance cache from the store.
func (h *Handler) RefreshCache(w http.ResponseWriter, r *http.Request) {
	grouped, err := h.Store.AllByCustomer(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read receipts", err)
		return
	}

	h.Cache.Clear()
	h.Cache.UpdateMany(grouped)

	writeJSON(w, http.StatusOK, map[string]any{
		"customers": h.Cache.Len(),
	})
}

// ResetDatabase clears all receipts and the cache (dev/demo only).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.Cache.Clear()
	h.currentScenario = ""

	writeJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

// customerParam extracts the {name} path parameter. Customer names can
// contain spaces, so the raw segment may arrive percent-encoded.
func customerParam(r *http.Request) string {
	name := chi.URLParam(r, "name")
	if decoded, err := url.PathUnescape(name); err == nil {
		return decoded
	}
	return name
}

// refreshCustomer recomputes one customer's cached balance from the
// store after a write. Failures are logged, not surfaced: the write
// already succeeded and the cache will self-heal on the next refresh.
func (h *Handler) refreshCustomer(r *http.Request, customerName string) decimal.Decimal {
	receipts, err := h.Store.FetchByCustomer(r.Context(), customerName)
	if err != nil {
		h.Log.Warn("cache refresh after write failed",
			zap.String("customer", customerName),
			zap.Error(err))
		return h.Cache.Get(customerName)
	}
	return h.Cache.UpdateFromKnownReceipts(customerName, receipts)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates customers and
	receipts that demonstrate specific engine behaviors.

AVAILABLE SCENARIOS:

	corner-store:  A handful of customers with mixed paid/partial receipts
	legacy-ledger: Untagged old balances resolved by inference
	manual-debt:   Pre-system debt carried on a customer's oldest receipt
	cascade-demo:  One customer with a stack of unpaid receipts for
	               overpayment walkthroughs
	penny-drift:   Sub-cent residue imported from the old float-based books

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Save a batch of receipts
 3. Rebuild the balance cache

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "cascade-demo"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ListScenarios, LoadScenario handlers
  - ledger/historical.go: The inference legacy-ledger demonstrates
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/receivables-engine/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "corner-store",
		Name:        "Corner Store",
		Description: "A few regulars with a mix of settled and partially paid receipts",
	},
	{
		ID:          "legacy-ledger",
		Name:        "Legacy Ledger",
		Description: "Imported receipts with untagged old balances; meaning is inferred",
	},
	{
		ID:          "manual-debt",
		Name:        "Manual Debt",
		Description: "Pre-system debt entered by hand on a customer's oldest receipt",
	},
	{
		ID:          "cascade-demo",
		Name:        "Cascade Demo",
		Description: "One customer, five unpaid receipts; overpay to watch FIFO distribution",
	},
	{
		ID:          "penny-drift",
		Name:        "Penny Drift",
		Description: "Sub-cent residue from float-based books that must read as settled",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a demo scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.Cache.Clear()

	var err error
	switch req.ScenarioID {
	case "corner-store":
		err = h.loadCornerStoreScenario(ctx)
	case "legacy-ledger":
		err = h.loadLegacyLedgerScenario(ctx)
	case "manual-debt":
		err = h.loadManualDebtScenario(ctx)
	case "cascade-demo":
		err = h.loadCascadeDemoScenario(ctx)
	case "penny-drift":
		err = h.loadPennyDriftScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	// Warm the cache so the first balance read is already answered.
	grouped, err := h.Store.AllByCustomer(ctx)
	if err == nil {
		h.Cache.UpdateMany(grouped)
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func scenarioDay(n int) time.Time {
	return time.Date(2025, time.June, n, 10, 0, 0, 0, time.UTC)
}

func boolPtr(b bool) *bool { return &b }

// loadCornerStoreScenario: three regulars, everyday balances.
func (h *Handler) loadCornerStoreScenario(ctx context.Context) error {
	return h.Store.SaveBatch(ctx, []ledger.Receipt{
		{ID: "maria-1", CustomerName: "Maria Lopez", Total: decimal.NewFromFloat(45.20),
			AmountPaid: decimal.NewFromFloat(45.20), CreatedAt: scenarioDay(1)},
		{ID: "maria-2", CustomerName: "Maria Lopez", Total: decimal.NewFromFloat(80),
			AmountPaid: decimal.NewFromFloat(30), CreatedAt: scenarioDay(8)},
		{ID: "maria-3", CustomerName: "Maria Lopez", Total: decimal.NewFromFloat(25.50),
			CreatedAt: scenarioDay(15)},

		{ID: "sam-1", CustomerName: "Sam Okafor", Total: decimal.NewFromFloat(120),
			AmountPaid: decimal.NewFromFloat(120), CreatedAt: scenarioDay(3)},
		{ID: "sam-2", CustomerName: "Sam Okafor", Total: decimal.NewFromFloat(60.75),
			CreatedAt: scenarioDay(12)},

		{ID: "dana-1", CustomerName: "Dana Kim", Total: decimal.NewFromFloat(15),
			AmountPaid: decimal.NewFromFloat(15), CreatedAt: scenarioDay(5)},
	})
}

// loadLegacyLedgerScenario: untagged old balances. Nadia's is fully
// explained by her older receipts (derived); Omar's is not (manual).
func (h *Handler) loadLegacyLedgerScenario(ctx context.Context) error {
	return h.Store.SaveBatch(ctx, []ledger.Receipt{
		// Nadia: older receipts leave 70 outstanding; newest carries
		// old_balance 70 with no flag. Inference reads it as derived.
		{ID: "nadia-1", CustomerName: "Nadia Haddad", Total: decimal.NewFromFloat(100),
			AmountPaid: decimal.NewFromFloat(60), CreatedAt: scenarioDay(1)},
		{ID: "nadia-2", CustomerName: "Nadia Haddad", Total: decimal.NewFromFloat(30),
			CreatedAt: scenarioDay(5)},
		{ID: "nadia-3", CustomerName: "Nadia Haddad", Total: decimal.NewFromFloat(50),
			OldBalance: decimal.NewFromFloat(70), CreatedAt: scenarioDay(10)},

		// Omar: only receipt carries old_balance 40 that nothing older
		// explains. Inference reads it as manual pre-system debt.
		{ID: "omar-1", CustomerName: "Omar Diallo", Total: decimal.NewFromFloat(55),
			OldBalance: decimal.NewFromFloat(40), CreatedAt: scenarioDay(2)},
	})
}

// loadManualDebtScenario: explicit flags on both sides of the tri-state.
func (h *Handler) loadManualDebtScenario(ctx context.Context) error {
	return h.Store.SaveBatch(ctx, []ledger.Receipt{
		{ID: "ruth-1", CustomerName: "Ruth Alem", Total: decimal.NewFromFloat(200),
			OldBalance: decimal.NewFromFloat(80), ManualOldBalance: boolPtr(true),
			CreatedAt: scenarioDay(1)},
		{ID: "ruth-2", CustomerName: "Ruth Alem", Total: decimal.NewFromFloat(45),
			CreatedAt: scenarioDay(9)},
		// Running-total column kept by the old books; explicitly derived.
		{ID: "ruth-3", CustomerName: "Ruth Alem", Total: decimal.NewFromFloat(30),
			OldBalance: decimal.NewFromFloat(325), ManualOldBalance: boolPtr(false),
			CreatedAt: scenarioDay(16)},
	})
}

// loadCascadeDemoScenario: one customer, five unpaid receipts. Pay more
// than any single receipt to watch the oldest-first distribution.
func (h *Handler) loadCascadeDemoScenario(ctx context.Context) error {
	receipts := make([]ledger.Receipt, 5)
	amounts := []float64{40, 25.50, 60, 15.25, 80}
	for i, amt := range amounts {
		receipts[i] = ledger.Receipt{
			ID:           ledger.ReceiptID(fmt.Sprintf("leo-%d", i+1)),
			CustomerName: "Leo Brandt",
			Total:        decimal.NewFromFloat(amt),
			CreatedAt:    scenarioDay(i*3 + 1),
		}
	}
	return h.Store.SaveBatch(ctx, receipts)
}

// loadPennyDriftScenario: residues below one cent, imported from
// float-based books. Every customer here must read as settled.
func (h *Handler) loadPennyDriftScenario(ctx context.Context) error {
	return h.Store.SaveBatch(ctx, []ledger.Receipt{
		{ID: "ivy-1", CustomerName: "Ivy Chen", Total: decimal.NewFromFloat(49.99),
			AmountPaid: decimal.NewFromFloat(49.986), CreatedAt: scenarioDay(1)},
		{ID: "ivy-2", CustomerName: "Ivy Chen", Total: decimal.NewFromFloat(12.30),
			AmountPaid: decimal.NewFromFloat(12.2962), CreatedAt: scenarioDay(4)},
		{ID: "gus-1", CustomerName: "Gus Ferreira", Total: decimal.NewFromFloat(99.99),
			AmountPaid: decimal.NewFromFloat(99.9858), CreatedAt: scenarioDay(2)},
	})
}

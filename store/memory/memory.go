// Package memory provides an in-memory ReceiptStore implementation
// (for testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/receivables-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	receipts map[ledger.ReceiptID]ledger.Receipt
}

func New() *Memory {
	return &Memory{
		receipts: make(map[ledger.ReceiptID]ledger.Receipt),
	}
}

// FetchByCustomer returns all receipts matching the normalized
// customer key, ordered chronologically.
func (m *Memory) FetchByCustomer(_ context.Context, customerName string) ([]ledger.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := ledger.CustomerKey(customerName)
	var out []ledger.Receipt
	for _, r := range m.receipts {
		if ledger.CustomerKey(r.CustomerName) == key {
			out = append(out, r)
		}
	}
	return ledger.SortByEffectiveTime(out), nil
}

// Get returns a receipt by ID, or nil when absent.
func (m *Memory) Get(_ context.Context, id ledger.ReceiptID) (*ledger.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.receipts[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// Save inserts or replaces a receipt record.
func (m *Memory) Save(_ context.Context, r ledger.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.receipts[r.ID] = r
	return nil
}

// SaveBatch inserts or replaces multiple receipts atomically.
func (m *Memory) SaveBatch(_ context.Context, receipts []ledger.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range receipts {
		m.receipts[r.ID] = r
	}
	return nil
}

// ApplyAdjustments persists a cascade's output atomically. All touched
// receipts must exist; on a missing receipt nothing is written.
func (m *Memory) ApplyAdjustments(_ context.Context, adjustments []ledger.CascadeAdjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate first so the write is all-or-nothing.
	for _, adj := range adjustments {
		if _, ok := m.receipts[adj.ReceiptID]; !ok {
			return ledger.ErrReceiptNotFound
		}
	}

	for _, adj := range adjustments {
		r := m.receipts[adj.ReceiptID]

		itemsPortion := ledger.Round2(adj.NewAmountPaid.Sub(r.AmountPaid))
		historicalPortion := ledger.Round2(adj.PaymentApplied.Sub(itemsPortion))

		r.AmountPaid = adj.NewAmountPaid
		if historicalPortion.IsPositive() {
			r.OldBalance = ledger.Round2(r.OldBalance.Sub(historicalPortion))
			if r.OldBalance.IsNegative() {
				r.OldBalance = decimal.Zero
			}
		}

		m.receipts[adj.ReceiptID] = r
	}
	return nil
}

// ListCustomers returns the distinct display names of customers with at
// least one receipt, sorted by normalized key.
func (m *Memory) ListCustomers(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]string)
	for _, r := range m.receipts {
		seen[ledger.CustomerKey(r.CustomerName)] = r.CustomerName
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, seen[k])
	}
	return names, nil
}

// AllByCustomer returns every receipt grouped by normalized customer key.
func (m *Memory) AllByCustomer(_ context.Context) (map[string][]ledger.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	grouped := make(map[string][]ledger.Receipt)
	for _, r := range m.receipts {
		key := ledger.CustomerKey(r.CustomerName)
		grouped[key] = append(grouped[key], r)
	}
	for key, receipts := range grouped {
		grouped[key] = ledger.SortByEffectiveTime(receipts)
	}
	return grouped, nil
}

// Delete removes a receipt by ID.
func (m *Memory) Delete(_ context.Context, id ledger.ReceiptID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.receipts, id)
	return nil
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.receipts = make(map[ledger.ReceiptID]ledger.Receipt)
	return nil
}

// Count returns the total number of stored receipts.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.receipts), nil
}

/*
Package cache holds the last computed balance per customer.

PURPOSE:
  The calculators in the ledger package are pure; this is the one
  stateful component. It keeps a CustomerBalance per normalized
  customer name so UI and reporting reads never force a recompute.

KEY DECISIONS:
  - Explicit object, injected by reference. No package-level singleton:
    the concurrency behavior below is visible and testable instead of
    implicit.
  - Cached values are cache lines, not truth. Every entry must be
    reproducible from the receipt set via ledger.Snapshot.
  - Recompute suspends only while fetching receipts from the record
    store; the calculation itself never blocks.

CONCURRENCY:
  Two concurrent Recompute calls for the same customer may both fetch
  and both write; the later write wins. That race is accepted and
  preserved: de-duplicating in-flight recomputes would change no
  single-caller result but is deliberately not done here. What IS
  guarded against is resurrection: a recompute that lands after an
  Invalidate or Clear of the same key is dropped, so explicitly
  cleared entries never come back with stale data. Generations track
  this per key, plus a cache-wide epoch for Clear.

FAILURE:
  A failed fetch clears the in-progress marker, leaves any previous
  cached value untouched, and reports the error. No retry: retry
  policy belongs to the caller.

SEE ALSO:
  - ledger/balance.go: The aggregation this cache memoizes
  - refresher.go: Bulk refresh feed driving UpdateMany
*/
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/receivables-engine/ledger"
)

// =============================================================================
// BALANCE CACHE
// =============================================================================

// BalanceCache maps normalized customer names to their last computed
// balance snapshot.
type BalanceCache struct {
	mu          sync.RWMutex
	entries     map[string]ledger.CustomerBalance
	inflight    map[string]bool
	generations map[string]uint64
	epoch       uint64

	fetch ledger.ReceiptFetcher
	log   *zap.Logger
	subs  []chan ledger.CustomerBalance
}

// New creates a cache that recomputes through the given fetch
// capability. A nil logger disables logging.
func New(fetch ledger.ReceiptFetcher, log *zap.Logger) *BalanceCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &BalanceCache{
		entries:     make(map[string]ledger.CustomerBalance),
		inflight:    make(map[string]bool),
		generations: make(map[string]uint64),
		fetch:       fetch,
		log:         log,
	}
}

// Get returns the cached total for a customer, or zero when absent.
// Read-only: a miss never triggers a fetch.
func (c *BalanceCache) Get(customerName string) decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if entry, ok := c.entries[ledger.CustomerKey(customerName)]; ok {
		return entry.TotalBalance
	}
	return decimal.Zero
}

// GetSnapshot returns the full cached snapshot and whether one exists.
func (c *BalanceCache) GetSnapshot(customerName string) (ledger.CustomerBalance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[ledger.CustomerKey(customerName)]
	return entry, ok
}

// InProgress reports whether a recompute is currently in flight for the
// customer.
func (c *BalanceCache) InProgress(customerName string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inflight[ledger.CustomerKey(customerName)]
}

// Recompute fetches the customer's receipts and recalculates their
// balance. Blocks only for the fetch itself. On fetch failure the
// previous cached value survives untouched (aside from the in-progress
// marker) and the error is returned, not retried.
func (c *BalanceCache) Recompute(ctx context.Context, customerName string) (decimal.Decimal, error) {
	key := ledger.CustomerKey(customerName)

	c.mu.Lock()
	c.inflight[key] = true
	gen := c.generations[key]
	epoch := c.epoch
	c.mu.Unlock()

	receipts, err := c.fetch(ctx, customerName)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, key)

	if err != nil {
		c.log.Warn("balance recompute failed",
			zap.String("customer", customerName),
			zap.Error(err))
		return decimal.Zero, &ledger.FetchError{CustomerName: customerName, Err: err}
	}

	snapshot := ledger.Snapshot(customerName, receipts, time.Now().UTC())

	if c.generations[key] != gen || c.epoch != epoch {
		// Invalidated or cleared while we were fetching. The result is
		// still correct for this caller, but writing it back would
		// silently resurrect an entry someone chose to drop.
		c.log.Debug("dropping superseded recompute",
			zap.String("customer", customerName))
		return snapshot.TotalBalance, nil
	}

	c.storeLocked(key, snapshot)
	return snapshot.TotalBalance, nil
}

// UpdateFromKnownReceipts applies a receipt snapshot the caller already
// holds (e.g. from a live subscription). Synchronous, no fetch.
func (c *BalanceCache) UpdateFromKnownReceipts(customerName string, receipts []ledger.Receipt) decimal.Decimal {
	snapshot := ledger.Snapshot(customerName, receipts, time.Now().UTC())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeLocked(ledger.CustomerKey(customerName), snapshot)
	return snapshot.TotalBalance
}

// UpdateMany is the batch variant of UpdateFromKnownReceipts, used for
// bulk refresh.
func (c *BalanceCache) UpdateMany(receiptsByCustomer map[string][]ledger.Receipt) {
	now := time.Now().UTC()

	c.mu.Lock()
	defer c.mu.Unlock()
	for customerName, receipts := range receiptsByCustomer {
		c.storeLocked(ledger.CustomerKey(customerName), ledger.Snapshot(customerName, receipts, now))
	}
}

// Invalidate drops the cached entry for a customer, forcing the next
// Recompute to hit the fetch path. In-flight recomputes started before
// the invalidation will not write back.
func (c *BalanceCache) Invalidate(customerName string) {
	key := ledger.CustomerKey(customerName)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.generations[key]++
}

// Clear drops all entries.
func (c *BalanceCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]ledger.CustomerBalance)
	c.epoch++
}

// Len returns the number of cached customers.
func (c *BalanceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// =============================================================================
// CHANGE NOTIFICATION
// =============================================================================

// Subscribe returns a channel that receives every stored snapshot.
// Slow consumers miss updates rather than blocking the cache: this is
// a notification feed, not a durable queue.
func (c *BalanceCache) Subscribe(buffer int) <-chan ledger.CustomerBalance {
	ch := make(chan ledger.CustomerBalance, buffer)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, ch)
	return ch
}

func (c *BalanceCache) storeLocked(key string, snapshot ledger.CustomerBalance) {
	c.entries[key] = snapshot
	for _, ch := range c.subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

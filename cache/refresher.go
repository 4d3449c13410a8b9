/*
refresher.go - Periodic bulk refresh of cached balances

PURPOSE:
  Feeds the balance cache from the record store on a timer, so every
  customer's cached balance converges even when no payment or explicit
  recompute touches them. This is the polling consumer of the "live
  snapshot" boundary: swap Source for a push subscription and the cache
  side stays identical.

DESIGN:
  - Background goroutine with a configurable interval
  - One store query per tick, grouped by customer, fed to UpdateMany
  - A failed tick is logged and skipped; the next tick retries naturally

USAGE:
  refresher := cache.NewRefresher(balances, store, time.Minute, log)
  refresher.Start()
  // ... later
  refresher.Stop()
*/
package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/receivables-engine/ledger"
)

// Snapshotter supplies the full receipt set grouped by customer.
type Snapshotter interface {
	AllByCustomer(ctx context.Context) (map[string][]ledger.Receipt, error)
}

// Refresher periodically rebuilds every cached balance from the store.
type Refresher struct {
	Cache    *BalanceCache
	Source   Snapshotter
	Interval time.Duration

	log    *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRefresher creates a refresher. A nil logger disables logging.
func NewRefresher(c *BalanceCache, source Snapshotter, interval time.Duration, log *zap.Logger) *Refresher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Refresher{
		Cache:    c,
		Source:   source,
		Interval: interval,
		log:      log,
		stop:     make(chan struct{}),
	}
}

// Start begins the refresh loop. The first refresh runs immediately.
func (r *Refresher) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ticker = time.NewTicker(r.Interval)
	r.wg.Add(1)
	go r.run()

	r.log.Info("balance refresher started", zap.Duration("interval", r.Interval))
}

// Stop halts the refresh loop and waits for an in-flight tick.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ticker != nil {
		r.ticker.Stop()
		close(r.stop)
		r.wg.Wait()
		r.log.Info("balance refresher stopped")
	}
}

// RunNow triggers an immediate refresh (for admin endpoints and tests).
func (r *Refresher) RunNow() {
	r.refreshOnce()
}

func (r *Refresher) run() {
	defer r.wg.Done()

	r.refreshOnce()
	for {
		select {
		case <-r.ticker.C:
			r.refreshOnce()
		case <-r.stop:
			return
		}
	}
}

func (r *Refresher) refreshOnce() {
	ctx := context.Background()

	byCustomer, err := r.Source.AllByCustomer(ctx)
	if err != nil {
		r.log.Warn("bulk balance refresh failed", zap.Error(err))
		return
	}

	r.Cache.UpdateMany(byCustomer)
	r.log.Debug("balances refreshed", zap.Int("customers", len(byCustomer)))
}

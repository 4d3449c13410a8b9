/*
Package sqlite provides a SQLite-backed implementation of the receipt store.

PURPOSE:
  Implements ledger.ReceiptStore using SQLite. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLE:
  receipts: One row per sale record. Monetary columns are stored as
  TEXT and parsed with shopspring/decimal; REAL would reintroduce the
  float drift the engine exists to avoid.

CUSTOMER GROUPING:
  customer_key holds the normalized (trimmed, lowercased) form of the
  display name and is what every customer-scoped query filters on.
  The original display name is kept alongside it for presentation.

TRI-STATE FLAG:
  manual_old_balance is a nullable INTEGER. NULL means the record
  predates the flag and its old_balance meaning must be inferred at
  read time (see ledger/historical.go). 0/1 map to explicit
  derived/manual. The store never backfills NULLs.

ATOMIC PAYMENTS:
  ApplyAdjustments writes a whole cascade inside one database
  transaction. A payment that touches five receipts either lands on
  all five or on none.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/receivables.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  receipts, err := store.FetchByCustomer(ctx, "Alice Smith")

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definition
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/receivables-engine/ledger"
)

// Store implements ledger.ReceiptStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS receipts (
		id TEXT PRIMARY KEY,
		customer_name TEXT NOT NULL,
		customer_key TEXT NOT NULL,
		total TEXT NOT NULL DEFAULT '0',
		amount_paid TEXT NOT NULL DEFAULT '0',
		old_balance TEXT NOT NULL DEFAULT '0',
		manual_old_balance INTEGER,
		created_at TEXT,
		receipt_date TEXT
	);

	-- Customer-scoped fetch is the hot path (every cache recompute)
	CREATE INDEX IF NOT EXISTS idx_receipts_customer_key
		ON receipts(customer_key);

	-- Chronological scans within a customer
	CREATE INDEX IF NOT EXISTS idx_receipts_customer_created
		ON receipts(customer_key, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECEIPT STORE (ledger.ReceiptStore interface)
// =============================================================================

const receiptColumns = `id, customer_name, total, amount_paid, old_balance, manual_old_balance, created_at, receipt_date`

// FetchByCustomer returns all receipts for a customer, matched
// case-insensitively on the normalized key.
func (s *Store) FetchByCustomer(ctx context.Context, customerName string) ([]ledger.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + receiptColumns + `
		FROM receipts
		WHERE customer_key = ?
		ORDER BY created_at ASC, id ASC
	`

	return s.queryReceipts(ctx, query, ledger.CustomerKey(customerName))
}

// Get returns a receipt by ID, or nil when absent.
func (s *Store) Get(ctx context.Context, id ledger.ReceiptID) (*ledger.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE id = ?`

	receipts, err := s.queryReceipts(ctx, query, string(id))
	if err != nil {
		return nil, err
	}
	if len(receipts) == 0 {
		return nil, nil
	}
	return &receipts[0], nil
}

// Save inserts or replaces a receipt record.
func (s *Store) Save(ctx context.Context, r ledger.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveTx(ctx, s.db, r)
}

// SaveBatch inserts or replaces multiple receipts atomically.
func (s *Store) SaveBatch(ctx context.Context, receipts []ledger.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, r := range receipts {
		if err := s.saveTx(ctx, sqlTx, r); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

func (s *Store) saveTx(ctx context.Context, db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, r ledger.Receipt) error {
	query := `
		INSERT INTO receipts
		(id, customer_name, customer_key, total, amount_paid, old_balance,
		 manual_old_balance, created_at, receipt_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer_name = excluded.customer_name,
			customer_key = excluded.customer_key,
			total = excluded.total,
			amount_paid = excluded.amount_paid,
			old_balance = excluded.old_balance,
			manual_old_balance = excluded.manual_old_balance,
			created_at = excluded.created_at,
			receipt_date = excluded.receipt_date
	`

	_, err := db.ExecContext(ctx, query,
		string(r.ID),
		r.CustomerName,
		ledger.CustomerKey(r.CustomerName),
		r.Total.String(),
		r.AmountPaid.String(),
		r.OldBalance.String(),
		nullBool(r.ManualOldBalance),
		nullTime(r.CreatedAt),
		nullTime(r.Date),
	)
	if err != nil {
		return fmt.Errorf("failed to save receipt %s: %w", r.ID, err)
	}
	return nil
}

// ApplyAdjustments persists a cascade's output atomically. For each
// adjustment, amount_paid becomes NewAmountPaid; any portion of the
// applied payment beyond the items balance reduced is treated as
// historical debt clearing and subtracted from old_balance.
func (s *Store) ApplyAdjustments(ctx context.Context, adjustments []ledger.CascadeAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, adj := range adjustments {
		var amountPaidStr, oldBalanceStr string
		err := sqlTx.QueryRowContext(ctx,
			"SELECT amount_paid, old_balance FROM receipts WHERE id = ?",
			string(adj.ReceiptID),
		).Scan(&amountPaidStr, &oldBalanceStr)
		if err == sql.ErrNoRows {
			return ledger.ErrReceiptNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load receipt %s: %w", adj.ReceiptID, err)
		}

		amountPaid := parseDecimal(amountPaidStr)
		oldBalance := parseDecimal(oldBalanceStr)

		// The items portion is what moved amount_paid; the remainder of
		// the applied payment cleared historical debt.
		itemsPortion := ledger.Round2(adj.NewAmountPaid.Sub(amountPaid))
		historicalPortion := ledger.Round2(adj.PaymentApplied.Sub(itemsPortion))

		newOldBalance := oldBalance
		if historicalPortion.IsPositive() {
			newOldBalance = ledger.Round2(oldBalance.Sub(historicalPortion))
			if newOldBalance.IsNegative() {
				newOldBalance = decimal.Zero
			}
		}

		_, err = sqlTx.ExecContext(ctx,
			"UPDATE receipts SET amount_paid = ?, old_balance = ? WHERE id = ?",
			adj.NewAmountPaid.String(), newOldBalance.String(), string(adj.ReceiptID),
		)
		if err != nil {
			return fmt.Errorf("failed to update receipt %s: %w", adj.ReceiptID, err)
		}
	}

	return sqlTx.Commit()
}

// ListCustomers returns the distinct display names of customers with at
// least one receipt. When the same key appears under several spellings,
// the most recently created spelling wins.
func (s *Store) ListCustomers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// SQLite resolves the bare customer_name column from the row that
	// holds the MAX, which picks the newest spelling per key.
	query := `
		SELECT customer_name, MAX(COALESCE(created_at, ''))
		FROM receipts
		GROUP BY customer_key
		ORDER BY customer_key ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name, latest string
		if err := rows.Scan(&name, &latest); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AllByCustomer returns every receipt grouped by normalized customer key.
func (s *Store) AllByCustomer(ctx context.Context) (map[string][]ledger.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + receiptColumns + `
		FROM receipts
		ORDER BY customer_key ASC, created_at ASC, id ASC
	`

	receipts, err := s.queryReceipts(ctx, query)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]ledger.Receipt)
	for _, r := range receipts {
		key := ledger.CustomerKey(r.CustomerName)
		grouped[key] = append(grouped[key], r)
	}
	return grouped, nil
}

// Delete removes a receipt by ID.
func (s *Store) Delete(ctx context.Context, id ledger.ReceiptID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM receipts WHERE id = ?", string(id))
	return err
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM receipts")
	return err
}

// Count returns the total number of stored receipts.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM receipts").Scan(&count)
	return count, err
}

// =============================================================================
// ROW SCANNING
// =============================================================================

func (s *Store) queryReceipts(ctx context.Context, query string, args ...any) ([]ledger.Receipt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []ledger.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}

	return receipts, rows.Err()
}

func scanReceipt(rows *sql.Rows) (ledger.Receipt, error) {
	var (
		r          ledger.Receipt
		id         string
		total      string
		amountPaid string
		oldBalance string
		manual     sql.NullBool
		createdAt  sql.NullString
		date       sql.NullString
	)

	err := rows.Scan(&id, &r.CustomerName, &total, &amountPaid, &oldBalance,
		&manual, &createdAt, &date)
	if err != nil {
		return r, fmt.Errorf("failed to scan receipt: %w", err)
	}

	r.ID = ledger.ReceiptID(id)
	r.Total = parseDecimal(total)
	r.AmountPaid = parseDecimal(amountPaid)
	r.OldBalance = parseDecimal(oldBalance)
	if manual.Valid {
		v := manual.Bool
		r.ManualOldBalance = &v
	}
	r.CreatedAt = parseTime(createdAt)
	r.Date = parseTime(date)

	return r, nil
}

// Helper functions

func nullBool(b *bool) any {
	if b == nil {
		return nil
	}
	if *b {
		return 1
	}
	return 0
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s.String)
	return t
}

// parseDecimal is lenient: malformed stored values read as zero, the
// same way the calculators treat missing fields.
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

/*
Package sqlite provides a SQLite-backed implementation of engine.Store.

PURPOSE:
  Persists promoters, stores, brands, visit targets, promoter coverage,
  prices and visits, and serves them to the engine services. The engine only
  reads through engine.Store; the write methods here back the HTTP API and
  the demo scenarios.

INTERFACES IMPLEMENTED:
  engine.VisitStore:      Visits with promoter/store/brand names joined in
  engine.PriceStore:      Per-(store, brand) billing prices
  engine.AssignmentStore: Target frequencies and promoter coverage
  engine.PromoterStore:   Promoter directory

KEY TABLES:
  store_brands:         (store, brand) with visit_frequency, default 1
  promoter_assignments: Which promoter covers which (store, brand)
  visit_prices:         UNIQUE(store_id, brand_id), price TEXT >= 0
  visits:               Scheduled/performed visits with optional price override

MONEY:
  Prices are stored as TEXT decimal strings and parsed with shopspring/decimal,
  so no value ever round-trips through float64.

DATES:
  Visit dates are stored as YYYY-MM-DD text. Lexicographic comparison equals
  chronological comparison, so range filters run in SQL.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block
  the single writer.

USAGE:
  store, err := sqlite.New("./data/visits.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  snap, err := engine.NewAssembler(store).Assemble(ctx, window, scope)

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/visit-engine/engine"
)

// Store implements engine.Store using SQLite.
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
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
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

// Ping checks the connection, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS promoters (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stores (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		number INTEGER,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS brands (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Target visits per window for each (store, brand)
	CREATE TABLE IF NOT EXISTS store_brands (
		store_id INTEGER NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
		brand_id INTEGER NOT NULL REFERENCES brands(id) ON DELETE CASCADE,
		visit_frequency INTEGER NOT NULL DEFAULT 1 CHECK (visit_frequency >= 0),
		PRIMARY KEY (store_id, brand_id)
	);

	CREATE TABLE IF NOT EXISTS promoter_assignments (
		promoter_id INTEGER NOT NULL REFERENCES promoters(id) ON DELETE CASCADE,
		store_id INTEGER NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
		brand_id INTEGER NOT NULL REFERENCES brands(id) ON DELETE CASCADE,
		PRIMARY KEY (promoter_id, store_id, brand_id)
	);

	CREATE INDEX IF NOT EXISTS idx_promoter_assignments_pair
		ON promoter_assignments(store_id, brand_id);

	-- One price per pair; uniqueness is what makes price resolution total
	CREATE TABLE IF NOT EXISTS visit_prices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		store_id INTEGER NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
		brand_id INTEGER NOT NULL REFERENCES brands(id) ON DELETE CASCADE,
		price TEXT NOT NULL CHECK (CAST(price AS REAL) >= 0),
		updated_at TEXT NOT NULL,
		UNIQUE (store_id, brand_id)
	);

	CREATE TABLE IF NOT EXISTS visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		promoter_id INTEGER NOT NULL REFERENCES promoters(id),
		store_id INTEGER NOT NULL REFERENCES stores(id),
		brand_id INTEGER NOT NULL REFERENCES brands(id),
		visit_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'in_progress', 'completed', 'cancelled')),
		price_override TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Hot path: promoter-scoped window queries
	CREATE INDEX IF NOT EXISTS idx_visits_promoter_date
		ON visits(promoter_id, visit_date);
	CREATE INDEX IF NOT EXISTS idx_visits_date
		ON visits(visit_date);
	CREATE INDEX IF NOT EXISTS idx_visits_pair
		ON visits(store_id, brand_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// VISIT STORE (engine.VisitStore interface)
// =============================================================================

const visitColumns = `
	v.id, v.promoter_id, p.name, v.store_id, st.name, st.number,
	v.brand_id, b.name, v.visit_date, v.status, v.price_override
	FROM visits v
	JOIN promoters p ON p.id = v.promoter_id
	JOIN stores st ON st.id = v.store_id
	JOIN brands b ON b.id = v.brand_id`

// ListVisits returns visits matching q, ordered by id.
func (s *Store) ListVisits(ctx context.Context, q engine.VisitQuery) ([]engine.Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if q.PromoterID != nil {
		where = append(where, "v.promoter_id = ?")
		args = append(args, int64(*q.PromoterID))
	}
	if q.Start != nil {
		where = append(where, "v.visit_date >= ?")
		args = append(args, q.Start.String())
	}
	if q.End != nil {
		where = append(where, "v.visit_date <= ?")
		args = append(args, q.End.String())
	}
	if q.Status != nil {
		where = append(where, "v.status = ?")
		args = append(args, string(*q.Status))
	}

	query := "SELECT " + visitColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY v.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	visits := []engine.Visit{}
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// GetVisit retrieves a visit by ID.
func (s *Store) GetVisit(ctx context.Context, id engine.VisitID) (*engine.Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getVisit(ctx, id)
}

func (s *Store) getVisit(ctx context.Context, id engine.VisitID) (*engine.Visit, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+visitColumns+" WHERE v.id = ?", int64(id))
	v, err := scanVisit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrVisitNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateVisit inserts v and returns it with its ID and names populated.
// A zero status defaults to pending.
func (s *Store) CreateVisit(ctx context.Context, v engine.Visit) (*engine.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.Status == "" {
		v.Status = engine.StatusPending
	}
	if v.PriceOverride != nil {
		if err := engine.ValidateAmount(*v.PriceOverride); err != nil {
			return nil, fmt.Errorf("override: %w", err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO visits
		(promoter_id, store_id, brand_id, visit_date, status, price_override, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		int64(v.Promoter.ID), int64(v.Store.ID), int64(v.Brand.ID),
		v.Date.String(), string(v.Status), nullDecimal(v.PriceOverride), now, now,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return nil, fmt.Errorf("%w: visit %s/%s", engine.ErrUnknownReference, v.Pair(), promoterLabel(v.Promoter.ID))
		}
		return nil, fmt.Errorf("failed to create visit: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.getVisit(ctx, engine.VisitID(id))
}

// UpdateVisitStatus changes the status of an existing visit.
func (s *Store) UpdateVisitStatus(ctx context.Context, id engine.VisitID, status engine.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE visits SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UTC().Format(time.RFC3339), int64(id),
	)
	if err != nil {
		return fmt.Errorf("failed to update visit status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrVisitNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisit(row rowScanner) (engine.Visit, error) {
	var (
		v           engine.Visit
		id          int64
		promoterID  int64
		storeID     int64
		brandID     int64
		storeNumber sql.NullInt64
		visitDate   string
		status      string
		override    sql.NullString
	)
	if err := row.Scan(&id, &promoterID, &v.Promoter.Name, &storeID, &v.Store.Name, &storeNumber,
		&brandID, &v.Brand.Name, &visitDate, &status, &override); err != nil {
		return engine.Visit{}, err
	}

	v.ID = engine.VisitID(id)
	v.Promoter.ID = engine.PromoterID(promoterID)
	v.Store.ID = engine.StoreID(storeID)
	v.Brand.ID = engine.BrandID(brandID)
	v.Store.Number = intPtr(storeNumber)
	v.Status = engine.Status(status)

	d, err := engine.ParseDate(visitDate)
	if err != nil {
		return engine.Visit{}, fmt.Errorf("visit %d: %w", id, err)
	}
	v.Date = d

	if override.Valid {
		p, err := decimal.NewFromString(override.String)
		if err != nil {
			return engine.Visit{}, fmt.Errorf("visit %d: bad price override: %w", id, err)
		}
		v.PriceOverride = &p
	}
	return v, nil
}

// =============================================================================
// PRICE STORE (engine.PriceStore interface)
// =============================================================================

// ListPrices returns every price entry ordered by store then brand.
func (s *Store) ListPrices(ctx context.Context) ([]engine.PriceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT store_id, brand_id, price FROM visit_prices ORDER BY store_id, brand_id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	prices := []engine.PriceEntry{}
	for rows.Next() {
		var storeID, brandID int64
		var value string
		if err := rows.Scan(&storeID, &brandID, &value); err != nil {
			return nil, err
		}
		p, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("price %d/%d: %w", storeID, brandID, err)
		}
		prices = append(prices, engine.PriceEntry{
			StoreID: engine.StoreID(storeID),
			BrandID: engine.BrandID(brandID),
			Price:   p,
		})
	}
	return prices, rows.Err()
}

// SavePrice inserts or replaces the price of a (store, brand) pair.
func (s *Store) SavePrice(ctx context.Context, p engine.PriceEntry) error {
	if err := engine.ValidateAmount(p.Price); err != nil {
		return fmt.Errorf("price for %s: %w", p.Pair(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO visit_prices (store_id, brand_id, price, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(store_id, brand_id) DO UPDATE SET
			price = excluded.price,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		int64(p.StoreID), int64(p.BrandID), p.Price.StringFixed(engine.PriceDecimals),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: price for %s", engine.ErrUnknownReference, p.Pair())
		}
		return fmt.Errorf("failed to save price: %w", err)
	}
	return nil
}

// DeletePrice removes the price of a pair.
func (s *Store) DeletePrice(ctx context.Context, store engine.StoreID, brand engine.BrandID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM visit_prices WHERE store_id = ? AND brand_id = ?",
		int64(store), int64(brand),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrPriceNotFound
	}
	return nil
}

// =============================================================================
// ASSIGNMENT STORE (engine.AssignmentStore interface)
// =============================================================================

// ListAssignments returns every (store, brand) target in insertion order.
func (s *Store) ListAssignments(ctx context.Context) ([]engine.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT sb.store_id, st.name, st.number, sb.brand_id, b.name, sb.visit_frequency
		FROM store_brands sb
		JOIN stores st ON st.id = sb.store_id
		JOIN brands b ON b.id = sb.brand_id
		ORDER BY sb.rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	assignments := []engine.Assignment{}
	for rows.Next() {
		var a engine.Assignment
		var storeID, brandID int64
		var number sql.NullInt64
		if err := rows.Scan(&storeID, &a.Store.Name, &number, &brandID, &a.Brand.Name, &a.TargetFrequency); err != nil {
			return nil, err
		}
		a.Store.ID = engine.StoreID(storeID)
		a.Store.Number = intPtr(number)
		a.Brand.ID = engine.BrandID(brandID)
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// ListPromoterAssignments returns the pairs covered by promoter, or by every
// promoter when promoter is nil.
func (s *Store) ListPromoterAssignments(ctx context.Context, promoter *engine.PromoterID) ([]engine.PromoterAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT promoter_id, store_id, brand_id FROM promoter_assignments"
	var args []any
	if promoter != nil {
		query += " WHERE promoter_id = ?"
		args = append(args, int64(*promoter))
	}
	query += " ORDER BY promoter_id, store_id, brand_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query promoter assignments: %w", err)
	}
	defer rows.Close()

	var result []engine.PromoterAssignment
	for rows.Next() {
		var p, st, b int64
		if err := rows.Scan(&p, &st, &b); err != nil {
			return nil, err
		}
		result = append(result, engine.PromoterAssignment{
			PromoterID: engine.PromoterID(p),
			StoreID:    engine.StoreID(st),
			BrandID:    engine.BrandID(b),
		})
	}
	return result, rows.Err()
}

// SaveAssignment sets the target frequency of a (store, brand) pair.
func (s *Store) SaveAssignment(ctx context.Context, store engine.StoreID, brand engine.BrandID, target int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO store_brands (store_id, brand_id, visit_frequency)
		VALUES (?, ?, ?)
		ON CONFLICT(store_id, brand_id) DO UPDATE SET
			visit_frequency = excluded.visit_frequency
	`, int64(store), int64(brand), target)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: assignment %d/%d", engine.ErrUnknownReference, store, brand)
		}
		return fmt.Errorf("failed to save assignment: %w", err)
	}
	return nil
}

// SavePromoterAssignment records that a promoter covers a pair.
func (s *Store) SavePromoterAssignment(ctx context.Context, pa engine.PromoterAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO promoter_assignments (promoter_id, store_id, brand_id)
		VALUES (?, ?, ?)
	`, int64(pa.PromoterID), int64(pa.StoreID), int64(pa.BrandID))
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: coverage %s for %s", engine.ErrUnknownReference, pa.Pair(), promoterLabel(pa.PromoterID))
		}
		return fmt.Errorf("failed to save promoter assignment: %w", err)
	}
	return nil
}

// =============================================================================
// DIRECTORY (promoters, stores, brands)
// =============================================================================

// ListPromoters returns all promoters ordered by name.
func (s *Store) ListPromoters(ctx context.Context) ([]engine.Promoter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM promoters ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	promoters := []engine.Promoter{}
	for rows.Next() {
		var id int64
		var p engine.Promoter
		if err := rows.Scan(&id, &p.Name); err != nil {
			return nil, err
		}
		p.ID = engine.PromoterID(id)
		promoters = append(promoters, p)
	}
	return promoters, rows.Err()
}

// SavePromoter inserts or renames a promoter.
func (s *Store) SavePromoter(ctx context.Context, p engine.Promoter) error {
	return s.upsertNamed(ctx, "promoters", int64(p.ID), p.Name)
}

// SaveBrand inserts or renames a brand.
func (s *Store) SaveBrand(ctx context.Context, b engine.BrandRef) error {
	return s.upsertNamed(ctx, "brands", int64(b.ID), b.Name)
}

// SaveStore inserts or updates a store.
func (s *Store) SaveStore(ctx context.Context, st engine.StoreRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var number sql.NullInt64
	if st.Number != nil {
		number = sql.NullInt64{Int64: int64(*st.Number), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stores (id, name, number, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			number = excluded.number
	`, int64(st.ID), st.Name, number, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *Store) upsertNamed(ctx context.Context, table string, id int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO `+table+` (id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, id, name, time.Now().UTC().Format(time.RFC3339))
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// children first so foreign keys hold
	tables := []string{"visits", "visit_prices", "promoter_assignments", "store_brands", "promoters", "stores", "brands"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.StringFixed(engine.PriceDecimals), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func promoterLabel(id engine.PromoterID) string {
	return fmt.Sprintf("promoter=%d", id)
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

var _ engine.Store = (*Store)(nil)

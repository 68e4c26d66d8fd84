package source

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gigledger/gigtax/internal/normalizer"
	"github.com/gigledger/gigtax/internal/types"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteSource reads the ledger tables of a SQLite database.
type SQLiteSource struct {
	db *sql.DB
}

// OpenSQLite opens an existing ledger database.
func OpenSQLite(dbPath string) (*SQLiteSource, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &SQLiteSource{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the handle for seeding and inspection.
func (s *SQLiteSource) DB() *sql.DB {
	return s.db
}

// InitSQLite creates the database file if needed and brings its schema up to
// date.
func InitSQLite(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer db.Close()

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Dated tables are read whole for the user and filtered by year in Go, since
// dates may be stored in any format the normalizer accepts.
const (
	gigsQuery     = `SELECT * FROM gigs WHERE user_id = ? ORDER BY date, id`
	expensesQuery = `SELECT * FROM expenses WHERE user_id = ? ORDER BY date, id`
	mileageQuery  = `SELECT * FROM mileage WHERE user_id = ? ORDER BY date, id`
	payersQuery   = `SELECT * FROM payers WHERE user_id = ? ORDER BY id`
)

// Load implements Source. A zero TaxYear loads every year.
func (s *SQLiteSource) Load(ctx context.Context, q Query) (*types.RawData, error) {
	if q.UserID == "" {
		return nil, errors.New("sqlite source needs a user id")
	}

	var data types.RawData
	var err error
	if data.Income, err = s.dated(ctx, gigsQuery, q); err != nil {
		return nil, fmt.Errorf("failed to load gigs: %w", err)
	}
	if data.Expenses, err = s.dated(ctx, expensesQuery, q); err != nil {
		return nil, fmt.Errorf("failed to load expenses: %w", err)
	}
	if data.Mileage, err = s.dated(ctx, mileageQuery, q); err != nil {
		return nil, fmt.Errorf("failed to load mileage: %w", err)
	}
	if data.Payers, err = s.query(ctx, payersQuery, q.UserID); err != nil {
		return nil, fmt.Errorf("failed to load payers: %w", err)
	}
	return &data, nil
}

func (s *SQLiteSource) dated(ctx context.Context, query string, q Query) ([]types.RawRow, error) {
	rows, err := s.query(ctx, query, q.UserID)
	if err != nil || q.TaxYear == 0 {
		return rows, err
	}
	kept := rows[:0]
	for _, r := range rows {
		if inYear(r["date"], q.TaxYear) {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// inYear reports whether a stored date may belong to year. Dates that do not
// parse are kept so the normalizer reports them.
func inYear(raw string, year int) bool {
	d, ok := normalizer.ParseDate(raw)
	return !ok || d.Year() == year
}

// query runs a SELECT and converts every row to a RawRow keyed by column
// name. NULLs read as empty strings; the user_id column is dropped.
func (s *SQLiteSource) query(ctx context.Context, query string, args ...any) ([]types.RawRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []types.RawRow{}
	values := make([]sql.NullString, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		raw := make(types.RawRow, len(cols))
		for i, col := range cols {
			if col == "user_id" {
				continue
			}
			raw[col] = values[i].String
		}
		out = append(out, raw)
	}
	return out, rows.Err()
}

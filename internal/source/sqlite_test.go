package source

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededDB(t *testing.T) *SQLiteSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger", "gigtax.db")
	require.NoError(t, InitSQLite(path))
	require.NoError(t, InitSQLite(path), "migrating twice is a no-op")

	src, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })

	stmts := []string{
		`INSERT INTO payers (id, user_id, name, tax_id_hint) VALUES ('p-1', 'u-1', 'RideCo Inc', '1234')`,
		`INSERT INTO payers (id, user_id, name) VALUES ('p-9', 'u-2', 'Other User Co')`,
		`INSERT INTO gigs (id, user_id, date, payer_id, amount, fees, tips) VALUES ('g-1', 'u-1', '2024-02-01', 'p-1', '1000.00', '50', '100')`,
		`INSERT INTO gigs (id, user_id, date, amount) VALUES ('g-0', 'u-1', '2023-12-31', '10')`,
		`INSERT INTO gigs (id, user_id, date, amount) VALUES ('g-7', 'u-2', '2024-02-01', '99')`,
		`INSERT INTO gigs (id, user_id, date, amount) VALUES ('g-us', 'u-1', '03/15/2024', '500')`,
		`INSERT INTO gigs (id, user_id, date, amount) VALUES ('g-old', 'u-1', 'Dec 30, 2023', '20')`,
		`INSERT INTO gigs (id, user_id, date, amount) VALUES ('g-bad', 'u-1', 'sometime in spring', '30')`,
		`INSERT INTO expenses (id, user_id, date, category, amount, deductible_fraction) VALUES ('e-1', 'u-1', '2024-03-01', 'Meals', '80', '0.5')`,
		`INSERT INTO mileage (id, user_id, date, miles, is_estimate) VALUES ('m-1', 'u-1', '2024-04-01', '20.5', 1)`,
	}
	for _, stmt := range stmts {
		_, err := src.DB().Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return src
}

func TestSQLiteSource_Load(t *testing.T) {
	src := seededDB(t)

	data, err := src.Load(context.Background(), Query{UserID: "u-1", TaxYear: 2024})
	require.NoError(t, err)

	require.Len(t, data.Income, 3, "other years and other users are filtered out")
	gig := data.Income[1]
	assert.Equal(t, "g-1", gig["id"])
	assert.Equal(t, "1000.00", gig["amount"], "amounts keep their entered text")
	assert.Equal(t, "p-1", gig["payer_id"])
	assert.NotContains(t, gig, "user_id")

	require.Len(t, data.Expenses, 1)
	assert.Equal(t, "0.5", data.Expenses[0]["deductible_fraction"])

	require.Len(t, data.Mileage, 1)
	assert.Equal(t, "1", data.Mileage[0]["is_estimate"])

	require.Len(t, data.Payers, 1)
	assert.Equal(t, "RideCo Inc", data.Payers[0]["name"])
}

func TestSQLiteSource_KeepsNonISODates(t *testing.T) {
	src := seededDB(t)

	data, err := src.Load(context.Background(), Query{UserID: "u-1", TaxYear: 2024})
	require.NoError(t, err)

	ids := make([]string, len(data.Income))
	for i, r := range data.Income {
		ids[i] = r["id"]
	}
	assert.ElementsMatch(t, []string{"g-1", "g-us", "g-bad"}, ids)
	assert.NotContains(t, ids, "g-old", "a parseable date in another year is filtered out")
}

func TestSQLiteSource_AllYears(t *testing.T) {
	src := seededDB(t)

	data, err := src.Load(context.Background(), Query{UserID: "u-1"})
	require.NoError(t, err)
	require.Len(t, data.Income, 5)
	var ids []string
	for _, r := range data.Income {
		ids = append(ids, r["id"])
	}
	assert.Equal(t, []string{"g-us", "g-0", "g-1", "g-old", "g-bad"}, ids, "ordered by stored date text")
}
func TestSQLiteSource_Errors(t *testing.T) {
	src := seededDB(t)
	_, err := src.Load(context.Background(), Query{TaxYear: 2024})
	assert.Error(t, err)

	_, err = OpenSQLite(filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}

func TestInYear(t *testing.T) {
	assert.True(t, inYear("2024-06-01", 2024))
	assert.True(t, inYear("06/01/2024", 2024))
	assert.False(t, inYear("2023-06-01", 2024))
	assert.True(t, inYear("", 2024), "blank dates reach the normalizer")
	assert.True(t, inYear("n/a", 2024))
}

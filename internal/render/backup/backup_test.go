package backup

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gigledger/gigtax/internal/render/rendertest"
	"github.com/gigledger/gigtax/internal/types"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, pkg *types.TaxExportPackage) {
	t.Helper()
	arts, err := New().Render(context.Background(), pkg)
	require.NoError(t, err)
	require.Len(t, arts, 1)

	got, err := Parse(arts[0].Data)
	require.NoError(t, err)
	if diff := cmp.Diff(pkg, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTrip_FullPackage(t *testing.T) {
	roundTrip(t, rendertest.Package())
}

func TestRoundTrip_EmptyPackage(t *testing.T) {
	roundTrip(t, rendertest.Build(types.RawData{}))
}

func TestRoundTrip_RecordedFractionsAndPrecision(t *testing.T) {
	pkg := rendertest.Build(types.RawData{
		Expenses: []types.RawRow{
			{"date": "2024-02-02", "category": "phone", "amount": "89.999", "business_use_pct": "62.5"},
			{"date": "2024-02-03", "category": "meals", "amount": "0.015", "deductible_fraction": "1"},
		},
		Mileage: []types.RawRow{
			{"date": "2024-02-04", "origin": "a", "destination": "b", "purpose": "c", "miles": "0.333333", "is_estimate": "true"},
		},
	})
	roundTrip(t, pkg)
}

func TestRender_Layout(t *testing.T) {
	arts, err := New().Render(context.Background(), rendertest.Package())
	require.NoError(t, err)
	assert.Equal(t, "tax_export_2024_backup.yaml", arts[0].Name)

	doc := string(arts[0].Data)
	assert.True(t, strings.HasPrefix(doc, "format_version: 1\n"))
	assert.Contains(t, doc, "export_id: 7f1c2a5e-4b7d-4c1e-9a51-2f0c6d1b8e11")
	assert.Contains(t, doc, `net_profit: "1072.32"`)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("format_version: 9\npackage: {}\n"))
	assert.True(t, errors.Is(err, ErrUnsupportedVersion))

	_, err = Parse([]byte("format_version: 1\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("format_version: [\n"))
	assert.Error(t, err)
}

func TestRender_NilPackage(t *testing.T) {
	_, err := New().Render(context.Background(), nil)
	assert.True(t, types.IsContractError(err))
}

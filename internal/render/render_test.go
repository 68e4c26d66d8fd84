package render

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/gigledger/gigtax/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"csv":    FormatCSV,
		" TXF ":  FormatTXF,
		"excel":  FormatXLSX,
		"xlsx":   FormatXLSX,
		"pdf":    FormatPDF,
		"yaml":   FormatBackup,
		"json":   FormatBackup,
		"backup": FormatBackup,
	}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("docx")
	assert.ErrorContains(t, err, `unknown output format "docx"`)
}

func TestAllFormats_FreshSlice(t *testing.T) {
	a := AllFormats()
	a[0] = "changed"
	assert.Equal(t, FormatCSV, AllFormats()[0])
}

func TestCheckPackage(t *testing.T) {
	err := CheckPackage(FormatPDF, nil)
	require.Error(t, err)
	assert.True(t, types.IsContractError(err))
	assert.Contains(t, err.Error(), "render pdf")

	assert.NoError(t, CheckPackage(FormatPDF, &types.TaxExportPackage{}))
}

func TestBaseName(t *testing.T) {
	pkg := &types.TaxExportPackage{Metadata: types.Metadata{TaxYear: 2024}}
	assert.Equal(t, "tax_export_2024", BaseName(pkg))
}

func TestZip(t *testing.T) {
	modified := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	files := []Artifact{
		{Name: "b.csv", Data: []byte("b\n")},
		{Name: "a.csv", Data: []byte("a\n")},
	}

	data, err := Zip(files, modified)
	require.NoError(t, err)
	again, err := Zip(files, modified)
	require.NoError(t, err)
	assert.Equal(t, data, again, "same input zips identically")

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "b.csv", zr.File[0].Name, "entries keep their order")
	assert.True(t, zr.File[0].Modified.Equal(modified))

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "a\n", string(body))
}

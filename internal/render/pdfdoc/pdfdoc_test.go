package pdfdoc

import (
	"bytes"
	"context"
	"testing"

	"github.com/gigledger/gigtax/internal/render"
	"github.com/gigledger/gigtax/internal/render/rendertest"
	"github.com/gigledger/gigtax/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Document(t *testing.T) {
	arts, err := New().Render(context.Background(), rendertest.Package())
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, "tax_export_2024.pdf", arts[0].Name)
	assert.Equal(t, render.ContentTypePDF, arts[0].ContentType)

	data := arts[0].Data
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.Contains(t, string(data), "Schedule C Summary - Tax Year 2024")
	assert.Contains(t, string(data), "$1,300.50")
	assert.Contains(t, string(data), "$1,072.32")
	assert.Regexp(t, `Page 1 of \d+`, string(data))
}

func TestRender_IncludesWarningText(t *testing.T) {
	arts, err := New().Render(context.Background(), rendertest.Package())
	require.NoError(t, err)
	assert.Contains(t, string(arts[0].Data), rendertest.MissingPayerWarning)
	assert.Contains(t, string(arts[0].Data), `Warnings \(1\)`, "parentheses are escaped in PDF strings")
}

func TestRender_Deterministic(t *testing.T) {
	pkg := rendertest.Package()
	a, err := New().Render(context.Background(), pkg)
	require.NoError(t, err)
	b, err := New().Render(context.Background(), pkg)
	require.NoError(t, err)
	assert.Equal(t, a[0].Data, b[0].Data)
}

func TestRender_NilPackage(t *testing.T) {
	_, err := New().Render(context.Background(), nil)
	assert.True(t, types.IsContractError(err))
}

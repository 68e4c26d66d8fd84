package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gigledger/gigtax/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 1, 15, 14, 30, 22, 0, time.UTC)

func newTestManager(t *testing.T, format string, archive bool) *FileManager {
	t.Helper()
	root := t.TempDir()
	archiveDir := ""
	if archive {
		archiveDir = filepath.Join(root, "archive")
	}
	fm := NewFileManager(filepath.Join(root, "out"), archiveDir, format)
	fm.now = func() time.Time { return fixedNow }
	return fm
}

func artifacts() []render.Artifact {
	return []render.Artifact{
		{Name: "tax_export_2024.txf", Data: []byte("V042\n")},
		{Name: "tax_export_2024.pdf", Data: []byte("%PDF-1.3")},
	}
}

func TestWriteArtifacts_DefaultName(t *testing.T) {
	fm := newTestManager(t, "", true)

	paths, err := fm.WriteArtifacts(artifacts(), 2024)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(fm.OutputDir, "tax_export_2024.txf"), paths[0])

	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(data))

	assert.FileExists(t, filepath.Join(fm.OutputArchiveDir, "tax_export_2024.pdf"))
}

func TestWriteArtifacts_Placeholders(t *testing.T) {
	fm := newTestManager(t, "{year}_{timestamp}_{uuid}", false)

	paths, err := fm.WriteArtifacts(artifacts(), 2024)
	require.NoError(t, err)

	txf := filepath.Base(paths[0])
	pdf := filepath.Base(paths[1])
	assert.True(t, strings.HasPrefix(txf, "2024_20250115_143022_"), txf)
	assert.True(t, strings.HasSuffix(txf, ".txf"), "extension is kept")
	assert.Equal(t, strings.TrimSuffix(txf, ".txf"), strings.TrimSuffix(pdf, ".pdf"), "one uuid per run")
}

func TestWriteArtifacts_NameCollision(t *testing.T) {
	fm := newTestManager(t, "{year}", false)
	in := []render.Artifact{
		{Name: "income.csv", Data: []byte("a")},
		{Name: "expenses.csv", Data: []byte("b")},
	}
	_, err := fm.WriteArtifacts(in, 2024)
	assert.ErrorContains(t, err, "both map to file name 2024.csv")
}

func TestArchiveOutputFile_TimestampSubdirs(t *testing.T) {
	fm := newTestManager(t, "", true)
	fm.UseTimestampSubdirs = true
	require.NoError(t, fm.EnsureDirectories())

	src := filepath.Join(fm.OutputDir, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	dst, err := fm.ArchiveOutputFile(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.OutputArchiveDir, "2025", "01", "15", "a.txt"), dst)
	assert.FileExists(t, dst)
}

func TestGenerateOutputFileName(t *testing.T) {
	name := GenerateOutputFileName("{name}", "tax_export_2024.zip", nil)
	assert.Equal(t, "tax_export_2024.zip", name)

	name = GenerateOutputFileName("gig_{year}", "tax_export_2024_backup.yaml", map[string]string{"year": "2024"})
	assert.Equal(t, "gig_2024.yaml", name)
}

func TestWriteSummaryLog(t *testing.T) {
	fm := newTestManager(t, "", false)

	path, err := fm.WriteSummaryLog(RunSummary{
		StartTime:   fixedNow,
		EndTime:     fixedNow.Add(2 * time.Second),
		ExportID:    "exp-1",
		TaxYear:     2024,
		Source:      "dir ./input",
		RowsRead:    7,
		LineItems:   5,
		Warnings:    []string{"warning gig g-2 row 2 payer_name: gig has no payer name"},
		OutputFiles: []string{"out/tax_export_2024.pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, "export_summary_2024_20250115_143022.txt", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Export ID:      exp-1")
	assert.Contains(t, text, "Duration:       2s")
	assert.Contains(t, text, "gig has no payer name")
	assert.Contains(t, text, "out/tax_export_2024.pdf")
}

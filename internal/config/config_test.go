package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "./output", c.OutputDir)
	assert.Equal(t, SourceDir, c.Source.Type)
	assert.True(t, c.IncludeTips)
	assert.True(t, c.IncludeFees)
	assert.Equal(t, []string{"csv", "txf", "xlsx", "pdf", "backup"}, c.Formats)
	assert.Equal(t, 2, c.CSVSettings.DataStartRow)
	assert.NoError(t, c.Validate())

	rate, err := c.MileageRate(2024)
	require.NoError(t, err)
	assert.Equal(t, "0.67", rate.String())
	_, err = c.MileageRate(1999)
	assert.Error(t, err)
}

func TestParseMainConfig_OverlaysFile(t *testing.T) {
	c, err := ParseMainConfig([]byte(`
output_dir: /tmp/out
tax_year: 2024
include_tips: false
mileage_rates:
  2024: 0.69
  2030: 0.9
formats: [pdf, txf]
source:
  type: sqlite
  path: ledger.db
  user_id: u-1
csv_settings:
  delimiter: "|"
  header_rows: 2
`))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/out", c.OutputDir)
	assert.Equal(t, 2024, c.TaxYear)
	assert.False(t, c.IncludeTips)
	assert.True(t, c.IncludeFees, "keys missing from the file keep their defaults")
	assert.Equal(t, []string{"pdf", "txf"}, c.Formats)
	assert.Equal(t, SourceSQLite, c.Source.Type)
	assert.Equal(t, "u-1", c.Source.UserID)
	assert.Equal(t, 3, c.CSVSettings.DataStartRow)

	rate, err := c.MileageRate(2024)
	require.NoError(t, err)
	assert.Equal(t, "0.69", rate.String())
	rate, err = c.MileageRate(2023)
	require.NoError(t, err)
	assert.Equal(t, "0.655", rate.String())
	_, err = c.MileageRate(2030)
	assert.NoError(t, err)
}

func TestParseMainConfig_DerivedDefaults(t *testing.T) {
	c, err := ParseMainConfig([]byte("csv_settings:\n  header_rows: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, c.CSVSettings.DataStartRow, "data starts after the configured header rows")
	assert.True(t, c.IncludeTips)
	assert.True(t, c.IncludeFees)
	assert.False(t, c.UseTimestampSubdirs)

	c, err = ParseMainConfig([]byte("use_timestamp_subdirs: true\n"))
	require.NoError(t, err)
	assert.True(t, c.UseTimestampSubdirs)
}

func TestParseMainConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"source type":   "source: {type: ftp}",
		"csv shape":     "csv_shape: tarball",
		"log format":    "log_format: xml",
		"negative rate": "mileage_rates: {2024: -1}",
		"start row":     "csv_settings: {header_rows: 2, data_start_row: 2}",
		"yaml":          "output_dir: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMainConfig([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadMainConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o644))

	c, err := LoadMainConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", c.LogLevel)

	_, err = LoadMainConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

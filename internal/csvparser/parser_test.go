package csvparser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gigledger/gigtax/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settings(delim string, headerRows int) config.CSVSettings {
	return config.CSVSettings{Delimiter: delim, HeaderRows: headerRows, DataStartRow: headerRows + 1}
}

func TestParseReader_Basic(t *testing.T) {
	in := "Date,Payer Name,Amount,Notes\n" +
		"2024-01-05,RideCo,\"1,000.00\",\"said \"\"thanks\"\"\nand left\"\n" +
		",,,\n" +
		"2024-01-06,Direct\n"

	data, err := ParseReader(strings.NewReader(in), settings(",", 1))
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "payer_name", "amount", "notes"}, data.Headers)
	require.Equal(t, 2, data.RowCount, "blank rows are skipped")
	assert.Equal(t, "1,000.00", data.Rows[0]["amount"])
	assert.Equal(t, "said \"thanks\"\nand left", data.Rows[0]["notes"])
	assert.Equal(t, "", data.Rows[1]["amount"], "ragged rows are padded")
}

func TestParseReader_Delimiters(t *testing.T) {
	for _, delim := range []string{"|", "pipe", "\\t", "tab", ";"} {
		sep := map[string]string{"|": "|", "pipe": "|", "\\t": "\t", "tab": "\t", ";": ";"}[delim]
		in := "id" + sep + "miles\nm-1" + sep + "12.5\n"
		data, err := ParseReader(strings.NewReader(in), settings(delim, 1))
		require.NoError(t, err, delim)
		assert.Equal(t, "12.5", data.Rows[0]["miles"], delim)
	}
}

func TestParseReader_MultiLineHeaders(t *testing.T) {
	in := "Payer,,Trip\nName,Amount,Miles\nAcme,10,3\n"
	data, err := ParseReader(strings.NewReader(in), settings(",", 2))
	require.NoError(t, err)
	assert.Equal(t, []string{"payer_name", "amount", "trip_miles"}, data.Headers)
	assert.Equal(t, "Acme", data.Rows[0]["payer_name"])
}

func TestParseReader_Empty(t *testing.T) {
	_, err := ParseReader(strings.NewReader(""), settings(",", 1))
	assert.True(t, errors.Is(err, ErrEmpty))

	data, err := ParseReader(strings.NewReader("id,amount\n"), settings(",", 1))
	require.NoError(t, err)
	assert.Empty(t, data.Rows)
}

func TestParse_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gigs.csv")
	require.NoError(t, os.WriteFile(path, []byte("\ufeffid,amount\ng-1,5\n"), 0o644))

	data, err := Parse(path, settings(",", 1))
	require.NoError(t, err)
	assert.Equal(t, path, data.SourceFile)
	assert.Equal(t, "g-1", data.Rows[0]["id"], "byte order mark is stripped")

	_, err = Parse(filepath.Join(t.TempDir(), "nope.csv"), settings(",", 1))
	assert.Error(t, err)
}

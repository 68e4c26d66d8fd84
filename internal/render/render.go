// =============================================================================
// gigtax - Format Renderers
// =============================================================================
//
// This package defines the contract every output format implements. The
// concrete renderers live in sub-packages:
//
//   csvbundle  one delimited table per entity plus the Schedule C summary
//   txf        caret-delimited exchange format for desktop tax software
//   workbook   multi-sheet XLSX workbook with numeric cells
//   pdfdoc     paginated summary document
//   backup     lossless YAML snapshot of the whole package
//
// RENDERING RULES:
//   - A renderer reads the package and static formatting rules, nothing else.
//   - A renderer never recomputes or re-rounds a total. Every number it
//     prints is a field already present in the package.
//   - A renderer never modifies the package, so any number of them may run
//     concurrently against the same instance.
//
// =============================================================================

package render

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gigledger/gigtax/internal/types"
)

// Format identifies an output format.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatTXF    Format = "txf"
	FormatXLSX   Format = "xlsx"
	FormatPDF    Format = "pdf"
	FormatBackup Format = "backup"
)

// AllFormats lists every format in output order.
func AllFormats() []Format {
	return []Format{FormatCSV, FormatTXF, FormatXLSX, FormatPDF, FormatBackup}
}

// ParseFormat resolves a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatCSV, FormatTXF, FormatXLSX, FormatPDF, FormatBackup:
		return f, nil
	case "yaml", "json":
		return FormatBackup, nil
	case "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Content types recorded on artifacts.
const (
	ContentTypeCSV  = "text/csv"
	ContentTypeZip  = "application/zip"
	ContentTypeTXF  = "text/plain"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"
	ContentTypeYAML = "application/yaml"
)

// Artifact is one rendered buffer, ready for an output sink.
type Artifact struct {
	// Name is a file name without directories.
	Name        string
	ContentType string
	Data        []byte
}

// Renderer turns a package into one or more artifacts.
type Renderer interface {
	Format() Format
	Render(ctx context.Context, pkg *types.TaxExportPackage) ([]Artifact, error)
}

// CheckPackage is called first by every renderer. A nil package is an engine
// fault, not a data problem.
func CheckPackage(format Format, pkg *types.TaxExportPackage) error {
	if pkg == nil {
		return types.NewContractError("render "+string(format), "package is nil")
	}
	return nil
}

// BaseName is the file stem shared by every artifact of a package.
func BaseName(pkg *types.TaxExportPackage) string {
	return fmt.Sprintf("tax_export_%d", pkg.Metadata.TaxYear)
}

// Zip packs artifacts into one zip archive, in order. Entries are stamped
// with modified so the same input always zips identically.
func Zip(files []Artifact, modified time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: modified})
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", f.Name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, fmt.Errorf("failed to write %s to archive: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close archive: %w", err)
	}
	return buf.Bytes(), nil
}

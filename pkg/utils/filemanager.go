// =============================================================================
// gigtax - File Manager Utility
// =============================================================================
//
// This module writes rendered artifacts to disk:
//   - Output directory management
//   - Output file naming from a placeholder format
//   - Optional archive copies of every written file
//   - A plain-text run summary next to the artifacts
//
// ARCHIVAL STRATEGY:
//   - Artifacts are written to the output directory
//   - When an archive directory is configured, each file is also copied there,
//     optionally below a YYYY/MM/DD subdirectory
//   - Existing files with the same name are overwritten
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gigledger/gigtax/internal/render"
	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager writes artifacts for the export command.
type FileManager struct {
	// OutputDir is the directory where artifacts are written.
	OutputDir string

	// OutputArchiveDir receives a copy of every artifact. Empty disables it.
	OutputArchiveDir string

	// NameFormat is the on-disk name format. See GenerateOutputFileName.
	NameFormat string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: output_archive/2025/01/15/tax_export_2024.pdf
	UseTimestampSubdirs bool

	now func() time.Time
}

// NewFileManager creates a new FileManager with the specified directories.
// Set UseTimestampSubdirs on the result to file archive copies by date.
func NewFileManager(outputDir, outputArchiveDir, nameFormat string) *FileManager {
	if nameFormat == "" {
		nameFormat = "{name}"
	}
	return &FileManager{
		OutputDir:        outputDir,
		OutputArchiveDir: outputArchiveDir,
		NameFormat:       nameFormat,
		now:              time.Now,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the output and archive directories.
func (fm *FileManager) EnsureDirectories() error {
	dirs := []string{fm.OutputDir}
	if fm.OutputArchiveDir != "" {
		dirs = append(dirs, fm.OutputArchiveDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// ARTIFACT OUTPUT
// =============================================================================

// WriteArtifacts writes every artifact to the output directory.
//
// PARAMETERS:
//   - artifacts: The rendered artifacts, written in order.
//   - taxYear: The value of the {year} placeholder.
//
// RETURNS:
//   - The paths written to the output directory.
//   - An error if two artifacts map to the same file name or writing fails.
//
// All artifacts of one call share a single {uuid} and {timestamp}.
func (fm *FileManager) WriteArtifacts(artifacts []render.Artifact, taxYear int) ([]string, error) {
	if err := fm.EnsureDirectories(); err != nil {
		return nil, err
	}

	params := map[string]string{
		"uuid":      uuid.New().String(),
		"timestamp": fm.clock().Format("20060102_150405"),
		"year":      fmt.Sprintf("%d", taxYear),
	}

	seen := make(map[string]string, len(artifacts))
	names := make([]string, len(artifacts))
	for i, a := range artifacts {
		params["name"] = a.Name
		name := GenerateOutputFileName(fm.NameFormat, a.Name, params)
		if prev, dup := seen[name]; dup {
			return nil, fmt.Errorf("artifacts %s and %s both map to file name %s", prev, a.Name, name)
		}
		seen[name] = a.Name
		names[i] = name
	}

	paths := make([]string, 0, len(artifacts))
	for i, a := range artifacts {
		path := filepath.Join(fm.OutputDir, names[i])
		if err := os.WriteFile(path, a.Data, 0644); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", path, err)
		}
		if _, err := fm.ArchiveOutputFile(path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ArchiveOutputFile copies an output file to the archive directory.
//
// RETURNS:
//   - The archived path, or filePath itself when archiving is disabled.
//   - An error if archival fails.
func (fm *FileManager) ArchiveOutputFile(filePath string) (string, error) {
	if fm.OutputArchiveDir == "" {
		return filePath, nil
	}

	archivePath := fm.getArchivePath(fm.OutputArchiveDir, filePath)
	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := copyFile(filePath, archivePath); err != nil {
		return "", fmt.Errorf("failed to copy file to archive: %w", err)
	}
	return archivePath, nil
}

// getArchivePath constructs the archive path for a file.
func (fm *FileManager) getArchivePath(archiveDir, filePath string) string {
	fileName := filepath.Base(filePath)

	if fm.UseTimestampSubdirs {
		now := fm.clock()
		return filepath.Join(
			archiveDir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
			fileName,
		)
	}
	return filepath.Join(archiveDir, fileName)
}

func (fm *FileManager) clock() time.Time {
	if fm.now == nil {
		return time.Now()
	}
	return fm.now()
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName builds an on-disk file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//             Placeholders:
//               {name}      - The artifact name (tax_export_2024.pdf)
//               {uuid}      - A random UUID
//               {year}      - The tax year
//               {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//   - artifactName: The artifact name; its extension is appended when the
//             result does not already end with it.
//   - params: The placeholder values. Missing {uuid} and {timestamp} values
//             are generated.
//
// EXAMPLE:
//   format: "{year}_{timestamp}_{uuid}"
//   artifactName: "tax_export_2024.txf"
//   output: "2024_20250115_143022_a1b2c3d4-e5f6-7890-abcd-ef1234567890.txf"
func GenerateOutputFileName(format, artifactName string, params map[string]string) string {
	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": time.Now().Format("20060102_150405"),
		"{name}":      artifactName,
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if ext := filepath.Ext(artifactName); ext != "" && !strings.HasSuffix(strings.ToLower(result), strings.ToLower(ext)) {
		result += ext
	}
	return result
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

// RunSummary describes one export run.
type RunSummary struct {
	StartTime   time.Time
	EndTime     time.Time
	ExportID    string
	TaxYear     int
	Source      string
	RowsRead    int
	LineItems   int
	Warnings    []string
	OutputFiles []string
}

// WriteSummaryLog writes a run summary next to the artifacts.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func (fm *FileManager) WriteSummaryLog(summary RunSummary) (string, error) {
	if err := os.MkdirAll(fm.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", fm.OutputDir, err)
	}

	summaryFileName := fmt.Sprintf("export_summary_%d_%s.txt", summary.TaxYear, summary.StartTime.Format("20060102_150405"))
	summaryPath := filepath.Join(fm.OutputDir, summaryFileName)

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "gigtax - Export Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Export ID:      %s\n"+
		"  Tax Year:       %d\n"+
		"  Source:         %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Rows Read:      %d\n"+
		"  Line Items:     %d\n"+
		"  Warnings:       %d\n\n",
		summary.ExportID,
		summary.TaxYear,
		summary.Source,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		summary.RowsRead,
		summary.LineItems,
		len(summary.Warnings))

	if len(summary.Warnings) > 0 {
		writer.WriteString("Warnings:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, w := range summary.Warnings {
			fmt.Fprintf(writer, "  %s\n", w)
		}
		writer.WriteString("\n")
	}

	if len(summary.OutputFiles) > 0 {
		writer.WriteString("Output Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, f := range summary.OutputFiles {
			fmt.Fprintf(writer, "  %s\n", f)
		}
		writer.WriteString("\n")
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}
	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	return destFile.Sync()
}

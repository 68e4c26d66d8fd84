// =============================================================================
// gigtax - Export Command
// =============================================================================
//
// This file defines the 'export' command, which runs the full pipeline for
// one tax year and writes every artifact to the output directory.
//
// COMMAND USAGE:
//   gigtax export --year 2024 [flags]
//
// PROCESSING PIPELINE:
//   1. Resolve configuration (file, environment, flags)
//   2. Load raw rows from the configured source
//   3. Normalize and validate; stop with the full issue list on errors
//   4. Aggregate and assemble the tax package
//   5. Render the selected formats concurrently
//   6. Write artifacts (and archive copies) plus a run summary
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gigledger/gigtax/internal/config"
	"github.com/gigledger/gigtax/internal/exporter"
	"github.com/gigledger/gigtax/internal/money"
	"github.com/gigledger/gigtax/internal/render"
	"github.com/gigledger/gigtax/internal/render/csvbundle"
	"github.com/gigledger/gigtax/internal/source"
	"github.com/gigledger/gigtax/internal/types"
	"github.com/gigledger/gigtax/internal/validation"
	"github.com/gigledger/gigtax/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// exportBlockedError is returned when validation stops an export. The issue
// report has already been printed.
type exportBlockedError struct {
	cause *types.ValidationFailedError
}

func (e *exportBlockedError) Error() string { return e.cause.Error() }
func (e *exportBlockedError) Unwrap() error { return e.cause }

// =============================================================================
// EXPORT COMMAND DEFINITION
// =============================================================================

func (c *cli) exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Build the tax package and render every output format",
		Long: `The export command loads one tax year of gig income, expenses and mileage,
validates it, computes the Schedule C totals and renders the selected formats.

On success:
  - Every artifact is written to the output directory
  - A copy goes to the archive directory when one is configured
  - A run summary is written next to the artifacts

On blocking validation errors:
  - The complete issue list is printed
  - Nothing is written
  - The command exits with status 2`,
		RunE: c.runExport,
	}

	addPipelineFlags(cmd)
	cmd.Flags().StringP("out", "o", "", "Output directory (default ./output)")
	cmd.Flags().String("archive-to", "", "Also copy every artifact into this directory")
	cmd.Flags().Bool("archive-by-date", false, "File archive copies under YYYY/MM/DD")
	cmd.Flags().StringSlice("formats", nil, "Formats to render: csv, txf, xlsx, pdf, backup (default all)")
	cmd.Flags().String("csv-shape", "", "CSV bundle shape: archive or files")
	cmd.Flags().String("name", "", "Output file name format ({name}, {year}, {uuid}, {timestamp})")
	cmd.Flags().Bool("bundle", false, "Write a single zip holding every artifact")
	cmd.Flags().Bool("dry-run", false, "Render without writing any file")
	return cmd
}

// addPipelineFlags registers the flags shared by export and validate.
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("year", "y", 0, "Tax year to export")
	cmd.Flags().String("source", "", "Source type: dir, workbook or sqlite")
	cmd.Flags().String("path", "", "Source directory, workbook or database file")
	cmd.Flags().String("user", "", "User id (sqlite source)")
	cmd.Flags().String("delimiter", "", "CSV delimiter (dir source)")
	cmd.Flags().Bool("strict", false, "Treat warnings as blocking errors")
	cmd.Flags().Bool("no-tips", false, "Leave tips out of gross receipts")
	cmd.Flags().Bool("no-fees", false, "Do not net platform fees out of gross receipts")
}

// =============================================================================
// MAIN EXPORT FUNCTION
// =============================================================================

func (c *cli) runExport(cmd *cobra.Command, _ []string) error {
	started := time.Now()
	ctx := cmd.Context()
	cfg := c.config
	w := cmd.OutOrStdout()

	req, err := c.loadRequest(ctx)
	if err != nil {
		return err
	}

	options, err := exporterOptions(cfg)
	if err != nil {
		return err
	}
	exp, err := exporter.New(options, c.logger)
	if err != nil {
		return err
	}

	pkg, result, err := exp.Prepare(req)
	if err != nil {
		return blocked(w, err)
	}

	var artifacts []render.Artifact
	if bundle, _ := cmd.Flags().GetBool("bundle"); bundle {
		a, err := exp.RenderArchive(ctx, pkg)
		if err != nil {
			return err
		}
		artifacts = []render.Artifact{a}
	} else if artifacts, err = exp.RenderAll(ctx, pkg); err != nil {
		return err
	}

	printTotals(w, pkg)
	if len(pkg.Warnings) > 0 {
		fmt.Fprintln(w)
		if err := validation.WriteReport(w, pkg.Warnings); err != nil {
			return err
		}
	}

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		fmt.Fprintf(w, "\nDry run: %d artifact(s) rendered, nothing written\n", len(artifacts))
		return nil
	}

	fm := utils.NewFileManager(cfg.OutputDir, cfg.OutputArchiveDir, cfg.FileNameFormat)
	fm.UseTimestampSubdirs = cfg.UseTimestampSubdirs
	paths, err := fm.WriteArtifacts(artifacts, pkg.Metadata.TaxYear)
	if err != nil {
		return fmt.Errorf("failed to write artifacts: %w", err)
	}

	warnings := make([]string, len(pkg.Warnings))
	for i, is := range pkg.Warnings {
		warnings[i] = is.String()
	}
	summaryPath, err := fm.WriteSummaryLog(utils.RunSummary{
		StartTime:   started,
		EndTime:     time.Now(),
		ExportID:    pkg.Metadata.ExportID,
		TaxYear:     pkg.Metadata.TaxYear,
		Source:      cfg.Source.Type + " " + cfg.Source.Path,
		RowsRead:    result.RowsValidated,
		LineItems:   len(pkg.ScheduleCLineItems),
		Warnings:    warnings,
		OutputFiles: paths,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "\n=== Export Complete ===")
	for _, p := range paths {
		fmt.Fprintf(w, "  %s\n", p)
	}
	fmt.Fprintf(w, "Summary:         %s\n", summaryPath)
	fmt.Fprintf(w, "Time elapsed:    %s\n", time.Since(started).Round(time.Millisecond))
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// loadRequest reads the source named by the configuration into a request.
func (c *cli) loadRequest(ctx context.Context) (exporter.Request, error) {
	cfg := c.config
	if cfg.TaxYear <= 0 {
		return exporter.Request{}, errors.New("a tax year is required (--year, tax_year or GIGTAX_TAX_YEAR)")
	}
	rate, err := cfg.MileageRate(cfg.TaxYear)
	if err != nil {
		return exporter.Request{}, err
	}

	src, err := source.Open(cfg.Source, cfg.CSVSettings)
	if err != nil {
		return exporter.Request{}, err
	}
	if closer, ok := src.(io.Closer); ok {
		defer closer.Close()
	}

	data, err := src.Load(ctx, source.Query{UserID: cfg.Source.UserID, TaxYear: cfg.TaxYear})
	if err != nil {
		return exporter.Request{}, fmt.Errorf("failed to load input: %w", err)
	}
	c.logger.WithFields(logrus.Fields{
		"source":   cfg.Source.Type,
		"path":     cfg.Source.Path,
		"gigs":     len(data.Income),
		"expenses": len(data.Expenses),
		"mileage":  len(data.Mileage),
		"payers":   len(data.Payers),
	}).Info("input loaded")

	return exporter.Request{
		TaxYear:     cfg.TaxYear,
		IncludeTips: cfg.IncludeTips,
		IncludeFees: cfg.IncludeFees,
		MileageRate: rate,
		Data:        *data,
	}, nil
}

// exporterOptions maps the configuration onto exporter options.
func exporterOptions(cfg *config.MainConfig) (exporter.Options, error) {
	options := exporter.DefaultOptions()
	options.StrictWarnings = cfg.StrictWarnings
	options.TXF.AppName = cfg.TXFAppName
	if cfg.CSVShape == config.ShapeFiles {
		options.CSV.Shape = csvbundle.ShapeFiles
	}

	options.Formats = nil
	for _, name := range cfg.Formats {
		f, err := render.ParseFormat(name)
		if err != nil {
			return exporter.Options{}, err
		}
		options.Formats = append(options.Formats, f)
	}
	return options, nil
}

// blocked prints the issue report of a validation failure and wraps it.
func blocked(w io.Writer, err error) error {
	var vf *types.ValidationFailedError
	if !errors.As(err, &vf) {
		return err
	}
	if werr := validation.WriteReport(w, vf.Issues); werr != nil {
		return werr
	}
	return &exportBlockedError{cause: vf}
}

// printTotals prints the headline Schedule C numbers.
func printTotals(w io.Writer, pkg *types.TaxExportPackage) {
	sc := pkg.ScheduleC
	fmt.Fprintf(w, "=== Schedule C - Tax Year %d ===\n", pkg.Metadata.TaxYear)
	fmt.Fprintf(w, "Export ID:       %s\n", pkg.Metadata.ExportID)
	fmt.Fprintf(w, "Gross receipts:  %s\n", money.Format(sc.GrossReceipts))
	fmt.Fprintf(w, "Total expenses:  %s\n", money.Format(sc.TotalExpenses))
	fmt.Fprintf(w, "Net profit:      %s\n", money.Format(sc.NetProfit))
	fmt.Fprintf(w, "Mileage:         %s mi, %s deduction\n",
		pkg.MileageSummary.TotalMiles.String(), money.Format(pkg.MileageSummary.Deduction))
}

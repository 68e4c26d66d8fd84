// =============================================================================
// gigtax - Exporter
// =============================================================================
//
// This module orchestrates one export run, from raw rows to rendered
// artifacts.
//
// EXPORT PIPELINE:
//   1. Normalize the raw rows into typed rows
//   2. Validate the batch
//   3. Stop if any blocking error exists; nothing is rendered
//   4. Aggregate the Schedule C totals
//   5. Assemble the canonical package
//   6. Render every selected format
//
// CONCURRENCY:
//   Steps 1-5 run synchronously. Renderers run concurrently against the one
//   package, which none of them modify. Runs share no mutable state, so one
//   Exporter may serve any number of concurrent requests.
//
// ERRORS:
//   - *types.ValidationFailedError: the user's data has blocking problems.
//   - *types.ContractError: the engine itself is broken.
//   - anything else: a renderer failed. Nothing is retried.
//
// =============================================================================

package exporter

import (
	"context"
	"fmt"
	"time"

	"github.com/gigledger/gigtax/internal/aggregator"
	"github.com/gigledger/gigtax/internal/assembler"
	"github.com/gigledger/gigtax/internal/logging"
	"github.com/gigledger/gigtax/internal/normalizer"
	"github.com/gigledger/gigtax/internal/render"
	"github.com/gigledger/gigtax/internal/render/backup"
	"github.com/gigledger/gigtax/internal/render/csvbundle"
	"github.com/gigledger/gigtax/internal/render/pdfdoc"
	"github.com/gigledger/gigtax/internal/render/txf"
	"github.com/gigledger/gigtax/internal/render/workbook"
	"github.com/gigledger/gigtax/internal/types"
	"github.com/gigledger/gigtax/internal/validation"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// REQUEST AND RESULT
// =============================================================================

// Request is the input contract for one user and tax year.
type Request struct {
	TaxYear int

	// Start and End bound the export period. Zero values mean the calendar
	// tax year.
	Start time.Time
	End   time.Time

	IncludeTips bool
	IncludeFees bool

	// MileageRate is the standard per-mile rate for TaxYear.
	MileageRate decimal.Decimal

	Data types.RawData
}

// period resolves the request's date range.
func (r Request) period() (time.Time, time.Time) {
	start, end := r.Start, r.End
	if start.IsZero() {
		start = time.Date(r.TaxYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	if end.IsZero() {
		end = time.Date(r.TaxYear, time.December, 31, 0, 0, 0, 0, time.UTC)
	}
	return start, end
}

// check rejects requests missing the metadata every run needs.
func (r Request) check() error {
	if r.TaxYear <= 0 {
		return types.NewContractError("request", fmt.Sprintf("tax year %d is not positive", r.TaxYear))
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return types.NewContractError("request", fmt.Sprintf("period ends %s before it starts %s",
			r.End.Format("2006-01-02"), r.Start.Format("2006-01-02")))
	}
	return nil
}

// Result represents the outcome of a successful export run.
type Result struct {
	Package    *types.TaxExportPackage
	Validation *validation.Result
	Artifacts  []render.Artifact

	// Summary is the one-line validation state.
	Summary string

	Stats Stats
}

// Stats contains statistics about the run.
type Stats struct {
	// RowsProcessed is the number of gig, expense and mileage rows.
	RowsProcessed int

	// LineItems is the number of Schedule C lines in the package.
	LineItems int

	// Warnings is the number of non-blocking issues carried in the package.
	Warnings int

	// ArtifactsRendered is the number of buffers produced.
	ArtifactsRendered int

	// ProcessingTime is the wall time of the run.
	ProcessingTime time.Duration
}

// =============================================================================
// EXPORTER
// =============================================================================

// Options contains options for the exporter.
type Options struct {
	// Formats selects the renderers to run, in output order.
	// Default: every format
	Formats []render.Format

	// StrictWarnings blocks the export on warnings too.
	// Default: false
	StrictWarnings bool

	// CSV, TXF and PDF configure their renderers.
	CSV csvbundle.Options
	TXF txf.Options
	PDF pdfdoc.Options
}

// DefaultOptions returns the default exporter options.
func DefaultOptions() Options {
	return Options{
		Formats: render.AllFormats(),
		CSV:     csvbundle.DefaultOptions(),
		TXF:     txf.DefaultOptions(),
		PDF:     pdfdoc.DefaultOptions(),
	}
}

// Exporter runs export requests.
type Exporter struct {
	options   Options
	validator *validation.Validator
	renderers []render.Renderer
	logger    logrus.FieldLogger
}

// New creates an Exporter whose renderers are built from options.Formats.
//
// PARAMETERS:
//   - options: The exporter options.
//   - logger: Where stage transitions are logged.
//
// RETURNS:
//   - The Exporter, or an error if a format is unknown.
func New(options Options, logger logrus.FieldLogger) (*Exporter, error) {
	formats := options.Formats
	if len(formats) == 0 {
		formats = render.AllFormats()
	}

	renderers := make([]render.Renderer, 0, len(formats))
	for _, f := range formats {
		r, err := newRenderer(f, options)
		if err != nil {
			return nil, err
		}
		renderers = append(renderers, r)
	}
	return NewWithRenderers(options, logger, renderers...), nil
}

// NewWithRenderers creates an Exporter with an explicit renderer list. A nil
// logger discards everything.
func NewWithRenderers(options Options, logger logrus.FieldLogger, renderers ...render.Renderer) *Exporter {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Exporter{
		options:   options,
		validator: validation.NewValidatorWithOptions(validation.Options{TreatWarningsAsErrors: options.StrictWarnings}),
		renderers: renderers,
		logger:    logger,
	}
}

func newRenderer(f render.Format, options Options) (render.Renderer, error) {
	switch f {
	case render.FormatCSV:
		return csvbundle.NewWithOptions(options.CSV), nil
	case render.FormatTXF:
		return txf.NewWithOptions(options.TXF), nil
	case render.FormatXLSX:
		return workbook.New(), nil
	case render.FormatPDF:
		return pdfdoc.NewWithOptions(options.PDF), nil
	case render.FormatBackup:
		return backup.New(), nil
	}
	return nil, fmt.Errorf("unknown output format %q", f)
}

// =============================================================================
// PIPELINE
// =============================================================================

// Check runs normalization and validation only. It returns a
// *types.ContractError when the request lacks its tax year or period.
func (e *Exporter) Check(req Request) (*normalizer.Batch, *validation.Result, error) {
	if err := req.check(); err != nil {
		return nil, nil, err
	}
	start, end := req.period()
	batch := normalizer.Normalize(req.Data, normalizer.Options{Start: start, End: end})
	return batch, e.validator.ValidateAll(batch), nil
}

// Prepare runs every step up to and including assembly.
//
// RETURNS:
//   - The package and the validation result on success.
//   - The validation result and a *types.ValidationFailedError when blocking
//     issues exist; the package is nil.
//   - A *types.ContractError for a request without a tax year or with an
//     inverted period.
func (e *Exporter) Prepare(req Request) (*types.TaxExportPackage, *validation.Result, error) {
	log := e.logger.WithField("tax_year", req.TaxYear)

	batch, result, err := e.Check(req)
	if err != nil {
		log.WithError(err).Error("request rejected")
		return nil, nil, err
	}
	log.WithFields(logrus.Fields{
		"stage":    "validate",
		"rows":     result.RowsValidated,
		"errors":   result.ErrorCount,
		"warnings": result.WarningCount,
	}).Info(result.Summary())

	if !result.IsValid {
		return nil, result, &types.ValidationFailedError{Issues: result.Issues, ErrorCount: result.ErrorCount}
	}

	totals := aggregator.Aggregate(batch, aggregator.Params{
		IncludeTips: req.IncludeTips,
		IncludeFees: req.IncludeFees,
		MileageRate: req.MileageRate,
	})
	log.WithFields(logrus.Fields{
		"stage":      "aggregate",
		"net_profit": totals.ScheduleC.NetProfit.StringFixed(2),
		"line_items": len(totals.LineItems),
	}).Debug("aggregated schedule c")

	start, end := req.period()
	pkg, err := assembler.Assemble(assembler.Input{
		TaxYear:     req.TaxYear,
		Start:       start,
		End:         end,
		IncludeTips: req.IncludeTips,
		IncludeFees: req.IncludeFees,
		MileageRate: req.MileageRate,
		Batch:       batch,
		Validation:  result,
		Totals:      totals,
	})
	if err != nil {
		log.WithError(err).Error("assembly failed")
		return nil, result, err
	}
	log.WithFields(logrus.Fields{"stage": "assemble", "export_id": pkg.Metadata.ExportID}).Debug("package assembled")
	return pkg, result, nil
}

// Run executes the full pipeline.
//
// RETURNS:
//   - A Result with the package and every artifact, in renderer order.
//   - A *types.ValidationFailedError when blocking issues exist. No renderer
//     runs in that case.
//   - Any contract or render error.
func (e *Exporter) Run(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()

	pkg, result, err := e.Prepare(req)
	if err != nil {
		return nil, err
	}

	artifacts, err := e.RenderAll(ctx, pkg)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Package:    pkg,
		Validation: result,
		Artifacts:  artifacts,
		Summary:    result.Summary(),
		Stats: Stats{
			RowsProcessed:     result.RowsValidated,
			LineItems:         len(pkg.ScheduleCLineItems),
			Warnings:          len(pkg.Warnings),
			ArtifactsRendered: len(artifacts),
			ProcessingTime:    time.Since(started),
		},
	}
	e.logger.WithFields(logrus.Fields{
		"stage":     "render",
		"export_id": pkg.Metadata.ExportID,
		"artifacts": res.Stats.ArtifactsRendered,
		"duration":  res.Stats.ProcessingTime.String(),
	}).Info("export complete")
	return res, nil
}

// RenderAll runs every configured renderer concurrently against pkg and
// returns their artifacts in renderer order. The first failure cancels the
// others.
func (e *Exporter) RenderAll(ctx context.Context, pkg *types.TaxExportPackage) ([]render.Artifact, error) {
	if pkg == nil {
		return nil, types.NewContractError("render", "package is nil")
	}

	outputs := make([][]render.Artifact, len(e.renderers))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range e.renderers {
		g.Go(func() error {
			started := time.Now()
			arts, err := r.Render(gctx, pkg)
			if err != nil {
				return fmt.Errorf("render %s: %w", r.Format(), err)
			}
			outputs[i] = arts
			e.logger.WithFields(logrus.Fields{
				"format":   r.Format(),
				"files":    len(arts),
				"duration": time.Since(started).String(),
			}).Debug("rendered")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.WithError(err).Error("rendering failed")
		return nil, err
	}

	var all []render.Artifact
	for _, arts := range outputs {
		all = append(all, arts...)
	}
	return all, nil
}

// RenderArchive renders every configured format and packs all artifacts
// into one zip named tax_export_<year>_bundle.zip.
func (e *Exporter) RenderArchive(ctx context.Context, pkg *types.TaxExportPackage) (render.Artifact, error) {
	arts, err := e.RenderAll(ctx, pkg)
	if err != nil {
		return render.Artifact{}, err
	}
	data, err := render.Zip(arts, pkg.Metadata.GeneratedAt)
	if err != nil {
		return render.Artifact{}, err
	}
	return render.Artifact{
		Name:        render.BaseName(pkg) + "_bundle.zip",
		ContentType: render.ContentTypeZip,
		Data:        data,
	}, nil
}

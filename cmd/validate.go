// =============================================================================
// gigtax - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which loads and checks one tax
// year without aggregating or rendering anything.
//
// COMMAND USAGE:
//   gigtax validate --year 2024 [flags]
//
// OUTPUT:
//   The full issue list, errors first, then one summary line. The command
//   exits with status 2 when blocking errors exist.
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/gigledger/gigtax/internal/exporter"
	"github.com/gigledger/gigtax/internal/types"
	"github.com/gigledger/gigtax/internal/validation"
	"github.com/spf13/cobra"
)

func (c *cli) validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the input data without exporting",
		Long: `The validate command loads the configured source for one tax year, normalizes
every row and reports every validation issue at once. Nothing is written.`,
		RunE: c.runValidate,
	}
	addPipelineFlags(cmd)
	return cmd
}

func (c *cli) runValidate(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()

	req, err := c.loadRequest(cmd.Context())
	if err != nil {
		return err
	}

	options := exporter.DefaultOptions()
	options.StrictWarnings = c.config.StrictWarnings
	exp := exporter.NewWithRenderers(options, c.logger)

	_, result, err := exp.Check(req)
	if err != nil {
		return err
	}
	if err := validation.WriteReport(w, result.Issues); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nRows checked: %d\n", result.RowsValidated)

	if !result.IsValid {
		return &exportBlockedError{cause: &types.ValidationFailedError{Issues: result.Issues, ErrorCount: result.ErrorCount}}
	}
	return nil
}

// =============================================================================
// gigtax - Lines Command
// =============================================================================
//
// This file defines the 'lines' command, which prints the Schedule C lines
// and the expense category table used to classify free-form categories.
//
// COMMAND USAGE:
//   gigtax lines [--categories]
//
// =============================================================================

package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/gigledger/gigtax/internal/taxline"
	"github.com/spf13/cobra"
)

func (c *cli) linesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lines",
		Short: "List Schedule C lines and the category table",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

			fmt.Fprintln(tw, "LINE\tLABEL\tKIND\tTXF")
			for _, l := range taxline.All() {
				fmt.Fprintf(tw, "%s\t%s\t%s\tN%d\n", l.Number, l.Label, l.Kind, l.TXFRef)
			}

			if show, _ := cmd.Flags().GetBool("categories"); show {
				fmt.Fprintln(tw)
				fmt.Fprintln(tw, "CATEGORY\tLINE\tDEDUCTIBLE")
				for _, e := range taxline.Categories() {
					line := taxline.MustLookup(e.Line)
					fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Category, line.Number, e.DeductibleFraction.String())
				}
				fmt.Fprintln(tw, "(anything else)\t27a\t1")
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Bool("categories", false, "Also print the category table")
	return cmd
}

// =============================================================================
// gigtax - Init DB Command
// =============================================================================
//
// This file defines the 'init-db' command, which creates a SQLite ledger
// database (or upgrades an existing one) with the gigs, expenses, mileage and
// payers tables read by the sqlite source.
//
// COMMAND USAGE:
//   gigtax init-db --path ./ledger.db
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/gigledger/gigtax/internal/config"
	"github.com/gigledger/gigtax/internal/source"
	"github.com/spf13/cobra"
)

func (c *cli) initDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create or migrate a SQLite ledger database",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.config.Source.Path
			if !cmd.Flags().Changed("path") && c.config.Source.Type != config.SourceSQLite {
				return fmt.Errorf("--path is required unless source.type is sqlite")
			}
			if err := source.InitSQLite(path); err != nil {
				return err
			}
			c.logger.WithField("path", path).Info("ledger schema up to date")
			fmt.Fprintf(cmd.OutOrStdout(), "Ledger database ready: %s\n", path)
			return nil
		},
	}
	cmd.Flags().String("path", "", "Database file (default source.path)")
	return cmd
}

// =============================================================================
// gigtax - Main Entry Point
// =============================================================================
//
// This is the main entry point for the gigtax CLI. It delegates command
// execution to the cmd package.
//
// USAGE:
//   gigtax export      - Build and render the tax package for one year
//   gigtax validate    - Check the input data without exporting
//   gigtax lines       - List Schedule C lines and categories
//   gigtax init-db     - Create a SQLite ledger database
//   gigtax version     - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : The export engine and its input adapters
//   - pkg/           : Output file management
//
// =============================================================================

package main

import (
	"github.com/gigledger/gigtax/cmd"
)

func main() {
	cmd.Execute()
}

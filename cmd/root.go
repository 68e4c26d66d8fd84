// =============================================================================
// gigtax - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI and the configuration
// layering shared by every subcommand.
//
// COBRA CLI STRUCTURE:
//   rootCmd (gigtax)
//   ├── export    (gigtax export)
//   ├── validate  (gigtax validate)
//   ├── lines     (gigtax lines)
//   ├── init-db   (gigtax init-db)
//   └── version   (gigtax version)
//
// CONFIGURATION LAYERS (later wins):
//   1. Built-in defaults
//   2. config.yaml (--config)
//   3. GIGTAX_* environment variables (GIGTAX_TAX_YEAR, GIGTAX_SOURCE_PATH, ...),
//      including those listed in a .env file
//   4. Command-line flags
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gigledger/gigtax/internal/config"
	"github.com/gigledger/gigtax/internal/logging"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// defaultConfigFile is read when present; --config makes the file required.
const defaultConfigFile = "config.yaml"

// =============================================================================
// CLI STATE
// =============================================================================

// cli holds what the root command resolves before a subcommand runs.
type cli struct {
	cfgFile string
	v       *viper.Viper

	config *config.MainConfig
	logger *logrus.Logger
}

// flagKeys maps command-line flags to configuration keys. A flag overrides
// its key only when set on the command line.
var flagKeys = map[string]string{
	"log-level":       "log_level",
	"log-format":      "log_format",
	"year":            "tax_year",
	"source":          "source.type",
	"path":            "source.path",
	"user":            "source.user_id",
	"out":             "output_dir",
	"archive-to":      "output_archive_dir",
	"archive-by-date": "use_timestamp_subdirs",
	"formats":         "formats",
	"strict":          "strict_warnings",
	"csv-shape":       "csv_shape",
	"name":            "file_name_format",
	"delimiter":       "csv_settings.delimiter",
}

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "gigtax",
		Short: "gigtax - Schedule C tax exports for gig workers",
		Long: `gigtax turns a year of gig income, expenses and mileage into a Schedule C
tax package and renders it as a CSV bundle, a TXF import file, an Excel
workbook, a PDF summary and a YAML backup.

Example Usage:
  gigtax export --year 2024                 # Export from ./input
  gigtax export --year 2024 --formats pdf   # Only the PDF summary
  gigtax validate --year 2024               # Check the data without exporting
  gigtax lines                              # Show the category table`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.initConfig,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "Path to the main configuration file (default is ./config.yaml when present)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(
		c.exportCmd(),
		c.validateCmd(),
		c.linesCmd(),
		c.initDBCmd(),
		c.versionCmd(),
	)
	return rootCmd
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the CLI. It is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode separates blocked exports (2) from other failures (1).
func exitCode(err error) int {
	var blocked *exportBlockedError
	if errors.As(err, &blocked) {
		return 2
	}
	return 1
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// initConfig loads config.yaml, applies environment and flag overrides and
// builds the logger.
func (c *cli) initConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := c.loadFile()
	if err != nil {
		return err
	}

	// A .env file in the working directory seeds GIGTAX_* variables; the
	// real environment wins.
	_ = godotenv.Load()

	c.v.SetEnvPrefix("GIGTAX")
	c.v.SetEnvKeyReplacer(newKeyReplacer())
	c.v.AutomaticEnv()

	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := c.v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind flag --%s: %w", flag, err)
			}
		}
	}

	applyOverrides(cfg, c.v)
	if cmd.Flags().Changed("no-tips") {
		cfg.IncludeTips = false
	}
	if cmd.Flags().Changed("no-fees") {
		cfg.IncludeFees = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	c.config = cfg
	c.logger = logger
	return nil
}

func (c *cli) loadFile() (*config.MainConfig, error) {
	path := c.cfgFile
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err != nil {
			cfg := config.Default()
			return &cfg, nil
		}
		path = defaultConfigFile
	}
	cfg, err := config.LoadMainConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load main config: %w", err)
	}
	return cfg, nil
}

// newKeyReplacer maps nested keys to variable names: source.path is read
// from GIGTAX_SOURCE_PATH.
func newKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

// applyOverrides copies every key set in the environment or on the command
// line into cfg.
func applyOverrides(cfg *config.MainConfig, v *viper.Viper) {
	strs := map[string]*string{
		"output_dir":             &cfg.OutputDir,
		"output_archive_dir":     &cfg.OutputArchiveDir,
		"source.type":            &cfg.Source.Type,
		"source.path":            &cfg.Source.Path,
		"source.user_id":         &cfg.Source.UserID,
		"csv_settings.delimiter": &cfg.CSVSettings.Delimiter,
		"csv_shape":              &cfg.CSVShape,
		"txf_app_name":           &cfg.TXFAppName,
		"file_name_format":       &cfg.FileNameFormat,
		"log_level":              &cfg.LogLevel,
		"log_format":             &cfg.LogFormat,
	}
	for key, dst := range strs {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	bools := map[string]*bool{
		"include_tips":          &cfg.IncludeTips,
		"include_fees":          &cfg.IncludeFees,
		"strict_warnings":       &cfg.StrictWarnings,
		"use_timestamp_subdirs": &cfg.UseTimestampSubdirs,
	}
	for key, dst := range bools {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	if v.IsSet("tax_year") {
		cfg.TaxYear = v.GetInt("tax_year")
	}
	if v.IsSet("formats") {
		cfg.Formats = splitList(v.GetStringSlice("formats"))
	}
}

// splitList flattens comma-separated entries, as given by an environment
// variable like GIGTAX_FORMATS=pdf,txf.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

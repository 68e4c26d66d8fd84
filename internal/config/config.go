// =============================================================================
// gigtax - Configuration Module
// =============================================================================
//
// This module loads the main configuration file (config.yaml). Command-line
// flags and GIGTAX_* environment variables override it; that layering lives
// in cmd/root.go.
//
// LOADING ORDER:
//   1. Start from Default()
//   2. Overlay the keys present in the YAML file
//   3. Fill any value the file blanked out with its default
//   4. Validate
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Source types.
const (
	SourceDir      = "dir"
	SourceWorkbook = "workbook"
	SourceSQLite   = "sqlite"
)

// CSV bundle shapes.
const (
	ShapeArchive = "archive"
	ShapeFiles   = "files"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// OutputDir is where rendered artifacts are written.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// OutputArchiveDir receives a copy of every written artifact when set.
	// Default: "" (no archive copy)
	OutputArchiveDir string `yaml:"output_archive_dir"`

	// UseTimestampSubdirs files archive copies under YYYY/MM/DD.
	// Default: false
	UseTimestampSubdirs bool `yaml:"use_timestamp_subdirs"`

	// =========================================================================
	// SOURCE SETTINGS
	// =========================================================================

	// Source selects where the raw rows come from.
	Source SourceSettings `yaml:"source"`

	// CSVSettings configures the directory source's CSV reader.
	CSVSettings CSVSettings `yaml:"csv_settings"`

	// =========================================================================
	// EXPORT SETTINGS
	// =========================================================================

	// TaxYear is the year exported when no --year flag is given.
	// Default: 0 (must be supplied on the command line)
	TaxYear int `yaml:"tax_year"`

	// IncludeTips adds tips to gross receipts.
	// Default: true
	IncludeTips bool `yaml:"include_tips"`

	// IncludeFees nets platform fees out of gross receipts and reports them
	// on line 10.
	// Default: true
	IncludeFees bool `yaml:"include_fees"`

	// MileageRates maps a tax year to its standard mileage rate in dollars.
	MileageRates map[int]decimal.Decimal `yaml:"mileage_rates"`

	// Formats lists the output formats to render.
	// Valid values: "csv", "txf", "xlsx", "pdf", "backup"
	// Default: all five
	Formats []string `yaml:"formats"`

	// CSVShape packages the CSV bundle as one zip or as loose files.
	// Valid values: "archive", "files"
	// Default: "archive"
	CSVShape string `yaml:"csv_shape"`

	// StrictWarnings blocks the export on warnings as well as errors.
	// Default: false
	StrictWarnings bool `yaml:"strict_warnings"`

	// TXFAppName is written into the TXF header.
	// Default: "gigtax"
	TXFAppName string `yaml:"txf_app_name"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// FileNameFormat defines the on-disk name of every artifact.
	// Placeholders:
	//   {name}      - The artifact's own name (tax_export_2024.pdf)
	//   {uuid}      - A random UUID
	//   {year}      - The tax year
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	// Default: "{name}"
	FileNameFormat string `yaml:"file_name_format"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat selects the log formatter.
	// Valid values: "text", "json"
	// Default: "text"
	LogFormat string `yaml:"log_format"`
}

// SourceSettings selects and locates the input data.
type SourceSettings struct {
	// Type is one of "dir", "workbook", "sqlite".
	// Default: "dir"
	Type string `yaml:"type"`

	// Path is the directory, workbook file or database file.
	// Default: "./input"
	Path string `yaml:"path"`

	// UserID filters rows in a multi-user database.
	UserID string `yaml:"user_id"`
}

// CSVSettings contains settings for parsing input CSV files.
type CSVSettings struct {
	// Delimiter is the character used to separate fields.
	// Common values: "," (comma), "|" (pipe), "\t" (tab), ";"
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// HeaderRows is the number of header rows. Multi-row headers are merged.
	// Default: 1
	HeaderRows int `yaml:"header_rows"`

	// DataStartRow is the 1-based row where data begins.
	// Default: HeaderRows + 1
	DataStartRow int `yaml:"data_start_row"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// defaultMileageRates are the IRS standard business mileage rates.
var defaultMileageRates = map[int]string{
	2020: "0.575",
	2021: "0.56",
	2022: "0.625",
	2023: "0.655",
	2024: "0.67",
	2025: "0.70",
}

// Default returns a configuration with every default applied.
func Default() MainConfig {
	config := MainConfig{IncludeTips: true, IncludeFees: true}
	applyMainConfigDefaults(&config)
	return config
}

// applyMainConfigDefaults sets default values for any unset option.
func applyMainConfigDefaults(config *MainConfig) {
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.Source.Type == "" {
		config.Source.Type = SourceDir
	}
	if config.Source.Path == "" {
		config.Source.Path = "./input"
	}
	if config.CSVSettings.Delimiter == "" {
		config.CSVSettings.Delimiter = ","
	}
	if config.CSVSettings.HeaderRows == 0 {
		config.CSVSettings.HeaderRows = 1
	}
	if config.CSVSettings.DataStartRow == 0 {
		config.CSVSettings.DataStartRow = config.CSVSettings.HeaderRows + 1
	}
	if config.MileageRates == nil {
		config.MileageRates = make(map[int]decimal.Decimal, len(defaultMileageRates))
	}
	for year, rate := range defaultMileageRates {
		if _, ok := config.MileageRates[year]; !ok {
			config.MileageRates[year] = decimal.RequireFromString(rate)
		}
	}
	if len(config.Formats) == 0 {
		config.Formats = []string{"csv", "txf", "xlsx", "pdf", "backup"}
	}
	if config.CSVShape == "" {
		config.CSVShape = ShapeArchive
	}
	if config.TXFAppName == "" {
		config.TXFAppName = "gigtax"
	}
	if config.FileNameFormat == "" {
		config.FileNameFormat = "{name}"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be read, parsed or validated.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseMainConfig(data)
}

// ParseMainConfig parses and validates configuration YAML. Keys missing
// from data keep their defaults.
func ParseMainConfig(data []byte) (*MainConfig, error) {
	// Derived defaults such as data_start_row are filled after decoding so
	// they follow the values the file sets.
	config := MainConfig{IncludeTips: true, IncludeFees: true}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// Validate checks every option that has a closed set of values.
func (c *MainConfig) Validate() error {
	var problems []string

	switch c.Source.Type {
	case SourceDir, SourceWorkbook, SourceSQLite:
	default:
		problems = append(problems, fmt.Sprintf("source.type %q is not one of dir, workbook, sqlite", c.Source.Type))
	}
	switch c.CSVShape {
	case ShapeArchive, ShapeFiles:
	default:
		problems = append(problems, fmt.Sprintf("csv_shape %q is not one of archive, files", c.CSVShape))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log_format %q is not one of text, json", c.LogFormat))
	}
	if c.TaxYear < 0 {
		problems = append(problems, "tax_year cannot be negative")
	}
	if c.CSVSettings.HeaderRows < 1 {
		problems = append(problems, "csv_settings.header_rows must be at least 1")
	}
	if c.CSVSettings.DataStartRow <= c.CSVSettings.HeaderRows {
		problems = append(problems, "csv_settings.data_start_row must come after the header rows")
	}

	years := make([]int, 0, len(c.MileageRates))
	for year := range c.MileageRates {
		years = append(years, year)
	}
	sort.Ints(years)
	for _, year := range years {
		if c.MileageRates[year].IsNegative() {
			problems = append(problems, fmt.Sprintf("mileage_rates[%d] cannot be negative", year))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// MileageRate returns the standard mileage rate for year.
func (c *MainConfig) MileageRate(year int) (decimal.Decimal, error) {
	rate, ok := c.MileageRates[year]
	if !ok {
		return decimal.Zero, fmt.Errorf("no mileage rate configured for tax year %d", year)
	}
	return rate, nil
}

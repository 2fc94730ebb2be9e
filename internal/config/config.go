package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Registry storage
	DataBackend  string
	SQLiteDBPath string
	RegistryFile string

	// Pipeline input and output
	RawDir    string
	OutputDir string

	// Analysis
	AnalysisStartYear int
	ClassifyTopN      int
	ClassifyWorkers   int
	CorrectionsFile   string

	// Workbook export
	ExportXLSX bool
	XLSXPath   string

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets (optional)
	GoogleSpreadsheetID string
	GoogleSheetPrefix   string

	// Sheets worker
	SyncInterval    time.Duration
	VendorTableRows int

	// Prometheus textfile (optional)
	MetricsTextfile string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	outputDir := getEnv("OUTPUT_DIR", "./data/processed")
	cfg := &Config{
		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/ledger.db"),
		RegistryFile: getEnv("REGISTRY_FILE", filepath.Join(outputDir, "vendors_master.json")),

		RawDir:    getEnv("RAW_DIR", "./data/raw"),
		OutputDir: outputDir,

		AnalysisStartYear: getEnvInt("ANALYSIS_START_YEAR", 2018),
		ClassifyTopN:      getEnvInt("CLASSIFY_TOP_N", 2000),
		ClassifyWorkers:   getEnvInt("CLASSIFY_WORKERS", 4),
		CorrectionsFile:   getEnv("CORRECTIONS_FILE", ""),

		ExportXLSX: getEnvBool("EXPORT_XLSX", true),
		XLSXPath:   getEnv("XLSX_PATH", filepath.Join(outputDir, "ledger.xlsx")),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_runs"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetPrefix:   getEnv("GOOGLE_SHEET_PREFIX", "Ledger"),

		SyncInterval:    getEnvDuration("SYNC_INTERVAL", time.Hour),
		VendorTableRows: getEnvInt("VENDOR_TABLE_ROWS", 500),

		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate data backend
	validBackends := []string{"file", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" && c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
	}
	if c.DataBackend == "file" && c.RegistryFile == "" {
		errors = append(errors, "registry file cannot be empty when using file backend")
	}

	if c.RawDir == "" {
		errors = append(errors, "raw data directory cannot be empty")
	}
	if c.OutputDir == "" {
		errors = append(errors, "output directory cannot be empty")
	}

	if c.AnalysisStartYear < 2000 || c.AnalysisStartYear > 2100 {
		errors = append(errors, fmt.Sprintf("invalid analysis start year %d: must be between 2000 and 2100", c.AnalysisStartYear))
	}
	if c.ClassifyTopN < 0 {
		errors = append(errors, fmt.Sprintf("invalid classify top N %d: must be 0 (all) or positive", c.ClassifyTopN))
	}
	if c.ClassifyWorkers < 1 {
		errors = append(errors, fmt.Sprintf("invalid classify workers %d: must be at least 1", c.ClassifyWorkers))
	} else if c.ClassifyWorkers > 64 {
		errors = append(errors, fmt.Sprintf("invalid classify workers %d: must be at most 64", c.ClassifyWorkers))
	}

	if c.CorrectionsFile != "" {
		switch strings.ToLower(filepath.Ext(c.CorrectionsFile)) {
		case ".yaml", ".yml", ".json":
		default:
			errors = append(errors, fmt.Sprintf("invalid corrections file '%s': must be .yaml, .yml or .json", c.CorrectionsFile))
		}
		if _, err := os.Stat(c.CorrectionsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("corrections file does not exist: %s", c.CorrectionsFile))
		}
	}

	if c.ExportXLSX && c.XLSXPath == "" {
		errors = append(errors, "XLSX path cannot be empty when XLSX export is enabled")
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" && strings.TrimSpace(c.GoogleSheetPrefix) == "" {
		errors = append(errors, "Google sheet prefix cannot be empty when a spreadsheet ID is provided")
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}
	if c.VendorTableRows < 0 {
		errors = append(errors, fmt.Sprintf("invalid vendor table rows %d: must be 0 (all) or positive", c.VendorTableRows))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Package config loads ledger settings from environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by DATA_BACKEND.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

var validBackends = []string{BackendMemory, BackendSQLite, BackendBolt}

type Config struct {
	// Backend selection
	DataBackend  string
	SQLiteDBPath string
	BoltDBPath   string

	// Session owner
	UserID string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Auditor
	AuditDedupeSize int
	AuditDedupeTTL  time.Duration
	AuditInterval   time.Duration

	// Google Sheets
	GoogleSpreadsheetID   string
	GoogleReportSheetName string
	GoogleAuditSheetName  string

	CategorySeedFile string
	LogLevel         string
}

func Load() *Config {
	return &Config{
		DataBackend:  getEnv("DATA_BACKEND", BackendMemory),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/ledger.db"),
		BoltDBPath:   getEnv("BOLT_DB_PATH", "./data/ledger.bolt"),

		UserID: strings.TrimSpace(os.Getenv("LEDGER_USER_ID")),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "balance_events"),

		AuditDedupeSize: getEnvInt("AUDIT_DEDUPE_SIZE", 10000),
		AuditDedupeTTL:  getEnvDuration("AUDIT_DEDUPE_TTL", 24*time.Hour),
		AuditInterval:   getEnvDuration("AUDIT_INTERVAL", time.Hour),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleReportSheetName: getEnv("GOOGLE_REPORT_SHEET_NAME", "Reports"),
		GoogleAuditSheetName:  getEnv("GOOGLE_AUDIT_SHEET_NAME", "Audit"),

		CategorySeedFile: getEnv("CATEGORY_SEED_FILE", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns every problem found in
// a single error.
func (c *Config) Validate() error {
	return joinProblems(c.problems())
}

// ValidateAuditor additionally requires the broker settings the audit
// worker consumes from.
func (c *Config) ValidateAuditor() error {
	problems := c.problems()
	if c.AMQPURL == "" {
		problems = append(problems, "AMQP URL is required for the auditor")
	}
	if c.AuditDedupeSize < 1 {
		problems = append(problems, fmt.Sprintf("invalid audit dedupe size %d: must be at least 1", c.AuditDedupeSize))
	}
	if c.AuditDedupeTTL < time.Second {
		problems = append(problems, fmt.Sprintf("invalid audit dedupe TTL %v: must be at least 1 second", c.AuditDedupeTTL))
	}
	if c.AuditInterval < time.Minute {
		problems = append(problems, fmt.Sprintf("invalid audit interval %v: must be at least 1 minute", c.AuditInterval))
	}
	return joinProblems(problems)
}

func (c *Config) problems() []string {
	var problems []string

	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		problems = append(problems, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendSQLite && c.SQLiteDBPath == "" {
		problems = append(problems, "SQLite database path cannot be empty when using sqlite backend")
	}
	if c.DataBackend == BackendBolt && c.BoltDBPath == "" {
		problems = append(problems, "bolt database path cannot be empty when using bolt backend")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			problems = append(problems, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" && c.GoogleReportSheetName == "" {
		problems = append(problems, "Google report sheet name is required when a spreadsheet is configured")
	}

	if c.CategorySeedFile != "" {
		if _, err := os.Stat(c.CategorySeedFile); os.IsNotExist(err) {
			problems = append(problems, fmt.Sprintf("category seed file does not exist: %s", c.CategorySeedFile))
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	return problems
}

func joinProblems(problems []string) error {
	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

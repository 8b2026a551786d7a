package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// HTTP Server
	Port         string `yaml:"port"`
	RateLimitRPM int    `yaml:"rate_limit_rpm"`

	// Backend selection
	DataBackend  string `yaml:"data_backend"`
	SQLiteDBPath string `yaml:"sqlite_db_path"`
	DatabaseURL  string `yaml:"database_url"`

	// AMQP (optional, empty URL disables ledger events)
	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`
	AMQPQueue    string `yaml:"amqp_queue"`

	// Google Sheets statement mirror
	GoogleSpreadsheetID   string `yaml:"google_spreadsheet_id"`
	GoogleSheetName       string `yaml:"google_sheet_name"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`
	GoogleCredentialsJSON string `yaml:"-"`

	// Exchange rate source
	RateAPIURL          string        `yaml:"rate_api_url"`
	RateTimeout         time.Duration `yaml:"rate_timeout"`
	RateRefreshInterval time.Duration `yaml:"rate_refresh_interval"`
	// AutoRate refreshes the stored quote in-process every RateRefreshInterval.
	AutoRate bool `yaml:"auto_rate"`

	// SeedCatalog pushes the default objectives at server startup. When off,
	// the first Sync Client to load an empty store seeds them instead.
	SeedCatalog bool `yaml:"seed_catalog"`

	// Login
	AuthEnabled       bool          `yaml:"auth_enabled"`
	LoginUsername     string        `yaml:"login_username"`
	LoginPasswordHash string        `yaml:"login_password_hash"`
	JWTSecret         string        `yaml:"-"`
	JWTTTL            time.Duration `yaml:"jwt_ttl"`

	// Observability
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`

	// journeyctl and rate-worker
	APIURL   string `yaml:"api_url"`
	APIToken string `yaml:"-"`
}

const DefaultRateAPIURL = "https://economia.awesomeapi.com.br/last/USD-BRL"

// Defaults returns the configuration used when neither a file nor env overrides a key.
func Defaults() *Config {
	return &Config{
		Port:         "5011",
		RateLimitRPM: 120,

		DataBackend:  "memory",
		SQLiteDBPath: "./data/journey.db",

		AMQPExchange: "journey",
		AMQPQueue:    "ledger_events",

		GoogleSheetName: "Extrato",

		RateAPIURL:          DefaultRateAPIURL,
		RateTimeout:         5 * time.Second,
		RateRefreshInterval: 30 * time.Minute,

		SeedCatalog: true,

		LoginUsername: "admin",
		JWTTTL:        12 * time.Hour,

		LogLevel:  "info",
		LogFormat: "text",

		APIURL: "http://localhost:5011",
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.RateLimitRPM = getEnvInt("RATE_LIMIT_RPM", cfg.RateLimitRPM)

	cfg.DataBackend = getEnv("DATA_BACKEND", cfg.DataBackend)
	cfg.SQLiteDBPath = getEnv("SQLITE_DB_PATH", cfg.SQLiteDBPath)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)

	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.AMQPQueue = getEnv("AMQP_QUEUE", cfg.AMQPQueue)

	cfg.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", cfg.GoogleSpreadsheetID)
	cfg.GoogleSheetName = getEnv("GOOGLE_SHEET_NAME", cfg.GoogleSheetName)
	cfg.GoogleCredentialsFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", cfg.GoogleCredentialsFile))
	cfg.GoogleCredentialsJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", cfg.GoogleCredentialsJSON)

	cfg.RateAPIURL = getEnv("RATE_API_URL", cfg.RateAPIURL)
	cfg.RateTimeout = getEnvDuration("RATE_TIMEOUT", cfg.RateTimeout)
	cfg.RateRefreshInterval = getEnvDuration("RATE_REFRESH_INTERVAL", cfg.RateRefreshInterval)
	cfg.AutoRate = getEnvBool("AUTO_RATE", cfg.AutoRate)
	cfg.SeedCatalog = getEnvBool("SEED_CATALOG", cfg.SeedCatalog)

	cfg.AuthEnabled = getEnvBool("AUTH_ENABLED", cfg.AuthEnabled)
	cfg.LoginUsername = getEnv("LOGIN_USERNAME", cfg.LoginUsername)
	cfg.LoginPasswordHash = getEnv("LOGIN_PASSWORD_HASH", cfg.LoginPasswordHash)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTTTL = getEnvDuration("JWT_TTL", cfg.JWTTTL)

	cfg.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	cfg.APIURL = getEnv("API_URL", cfg.APIURL)
	cfg.APIToken = getEnv("API_TOKEN", cfg.APIToken)

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// MirrorEnabled reports whether the Google Sheets statement mirror is configured.
func (c *Config) MirrorEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sqlite", "postgres"}
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

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == "postgres" {
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL '%s': must be a postgres:// URL", c.DatabaseURL))
		}
	}

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

	if c.MirrorEnabled() {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleCredentialsFile == "" && c.GoogleCredentialsJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for the statement mirror")
		} else if c.GoogleCredentialsFile != "" && c.GoogleCredentialsJSON == "" {
			if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleCredentialsFile))
			}
		}
	}

	if u, err := url.Parse(c.RateAPIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errors = append(errors, fmt.Sprintf("invalid rate API URL '%s': must be http or https", c.RateAPIURL))
	}
	if c.RateTimeout < 100*time.Millisecond || c.RateTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid rate timeout %v: must be between 100ms and 1m", c.RateTimeout))
	}
	if c.RateRefreshInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid rate refresh interval %v: must be at least 1 minute", c.RateRefreshInterval))
	} else if c.RateRefreshInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid rate refresh interval %v: must be at most 24 hours", c.RateRefreshInterval))
	}

	if c.RateLimitRPM < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitRPM))
	}

	if c.AuthEnabled {
		if c.LoginUsername == "" {
			errors = append(errors, "LOGIN_USERNAME cannot be empty when AUTH_ENABLED is true")
		}
		if !strings.HasPrefix(c.LoginPasswordHash, "$2") {
			errors = append(errors, "LOGIN_PASSWORD_HASH must be a bcrypt hash when AUTH_ENABLED is true")
		}
		if len(c.JWTSecret) < 32 {
			errors = append(errors, "JWT_SECRET must be at least 32 characters when AUTH_ENABLED is true")
		}
		if c.JWTTTL < time.Minute {
			errors = append(errors, fmt.Sprintf("invalid JWT TTL %v: must be at least 1 minute", c.JWTTTL))
		}
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

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

package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all process parameters. Everything is read once at startup
// and stays fixed for the process lifetime.
type Config struct {
	// Exchange credentials
	APIKey    string `env:"GATE_API_KEY"`
	APISecret string `env:"GATE_API_SECRET"`
	BaseURL   string `env:"GATE_BASE_URL"` // override for testing

	// Strategy parameters
	Pair            string        `env:"PAIR" envDefault:"XCAD_USDT"`
	Timeframe       string        `env:"TIMEFRAME" envDefault:"1m"`
	CandleLimit     int           `env:"CANDLE_LIMIT" envDefault:"100"`
	IndicatorPeriod int           `env:"INDICATOR_PERIOD" envDefault:"14"`
	BaseSpread      float64       `env:"BASE_SPREAD" envDefault:"0.013"`
	SpreadThreshold float64       `env:"SPREAD_THRESHOLD" envDefault:"1.3"` // percent
	SellNudge       float64       `env:"SELL_NUDGE" envDefault:"1.005"`
	OrderAmount     float64       `env:"ORDER_AMOUNT" envDefault:"15"`
	CycleInterval   time.Duration `env:"CYCLE_INTERVAL" envDefault:"75s"`
	MinNotional     float64       `env:"MIN_NOTIONAL" envDefault:"3"` // quote currency
	MinQuoteReserve float64       `env:"MIN_QUOTE_RESERVE" envDefault:"0"`

	// Resilience
	MaxRetries int           `env:"MAX_RETRIES" envDefault:"5"`
	RetryDelay time.Duration `env:"RETRY_DELAY" envDefault:"5s"`

	// Audit sink
	AuditBackend    string `env:"AUDIT_BACKEND" envDefault:"csv"` // csv | postgres
	AuditPath       string `env:"AUDIT_PATH" envDefault:"quoter_audit.csv"`
	AuditMaxRecords int    `env:"AUDIT_MAX_RECORDS" envDefault:"10000"`

	// Postgres audit backend
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"quoter"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"quoter"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load initializes configuration from environment variables, reading a .env
// file first if one is present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := &Config{
		APIKey:           os.Getenv("GATE_API_KEY"),
		APISecret:        os.Getenv("GATE_API_SECRET"),
		BaseURL:          os.Getenv("GATE_BASE_URL"),
		Pair:             getEnvWithDefault("PAIR", "XCAD_USDT"),
		Timeframe:        getEnvWithDefault("TIMEFRAME", "1m"),
		CandleLimit:      getEnvIntWithDefault("CANDLE_LIMIT", 100),
		IndicatorPeriod:  getEnvIntWithDefault("INDICATOR_PERIOD", 14),
		BaseSpread:       getEnvFloatWithDefault("BASE_SPREAD", 0.013),
		SpreadThreshold:  getEnvFloatWithDefault("SPREAD_THRESHOLD", 1.3),
		SellNudge:        getEnvFloatWithDefault("SELL_NUDGE", 1.005),
		OrderAmount:      getEnvFloatWithDefault("ORDER_AMOUNT", 15),
		CycleInterval:    getEnvDurationWithDefault("CYCLE_INTERVAL", 75*time.Second),
		MinNotional:      getEnvFloatWithDefault("MIN_NOTIONAL", 3),
		MinQuoteReserve:  getEnvFloatWithDefault("MIN_QUOTE_RESERVE", 0),
		MaxRetries:       getEnvIntWithDefault("MAX_RETRIES", 5),
		RetryDelay:       getEnvDurationWithDefault("RETRY_DELAY", 5*time.Second),
		AuditBackend:     getEnvWithDefault("AUDIT_BACKEND", "csv"),
		AuditPath:        getEnvWithDefault("AUDIT_PATH", "quoter_audit.csv"),
		AuditMaxRecords:  getEnvIntWithDefault("AUDIT_MAX_RECORDS", 10000),
		PostgresHost:     getEnvWithDefault("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvWithDefault("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnvWithDefault("POSTGRES_USER", "quoter"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       getEnvWithDefault("POSTGRES_DB", "quoter"),
		PostgresSSLMode:  getEnvWithDefault("POSTGRES_SSLMODE", "disable"),
		LogLevel:         getEnvWithDefault("LOG_LEVEL", "info"),
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.APIKey == "" || c.APISecret == "" {
		return errors.New("GATE_API_KEY and GATE_API_SECRET are required")
	}
	if c.BaseSpread <= 0 {
		return errors.New("BASE_SPREAD must be positive")
	}
	if c.OrderAmount <= 0 {
		return errors.New("ORDER_AMOUNT must be positive")
	}
	if c.MaxRetries < 1 {
		return errors.New("MAX_RETRIES must be at least 1")
	}
	// A cycle must comfortably outlast worst-case retry exhaustion of a
	// single call, or cycles would overlap if the loop were ever
	// parallelized.
	if c.CycleInterval <= time.Duration(c.MaxRetries)*c.RetryDelay {
		return errors.New("CYCLE_INTERVAL must exceed MAX_RETRIES * RETRY_DELAY")
	}
	return nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

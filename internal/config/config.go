// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP. Empty AMQPURL disables event publishing.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Recalculation
	DebounceDelay time.Duration

	// Housekeeping: terminal settlements older than SettlementRetention
	// are purged every HousekeepingInterval.
	SettlementRetention  time.Duration
	HousekeepingInterval time.Duration

	// Logging
	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/tabmates.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "tabmates"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "recalculations"),

		DebounceDelay: getEnvDuration("DEBOUNCE_DELAY", 500*time.Millisecond),

		SettlementRetention:  getEnvDuration("SETTLEMENT_RETENTION", 90*24*time.Hour),
		HousekeepingInterval: getEnvDuration("HOUSEKEEPING_INTERVAL", time.Hour),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks the configuration and returns an error listing every
// invalid field.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.DebounceDelay < 0 {
		errs = append(errs, fmt.Sprintf("invalid debounce delay %v: must not be negative", c.DebounceDelay))
	} else if c.DebounceDelay > time.Minute {
		errs = append(errs, fmt.Sprintf("invalid debounce delay %v: must be at most 1 minute", c.DebounceDelay))
	}

	if c.SettlementRetention < time.Hour {
		errs = append(errs, fmt.Sprintf("invalid settlement retention %v: must be at least 1 hour", c.SettlementRetention))
	}
	if c.HousekeepingInterval < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid housekeeping interval %v: must be at least 1 minute", c.HousekeepingInterval))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

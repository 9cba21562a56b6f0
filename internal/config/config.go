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
	// HTTP Server
	Port string

	// FAST Protocol API
	APIBaseURL        string
	APITimeout        time.Duration
	APIRateDelay      time.Duration
	MaxUsersPerEntity int

	// Etherscan
	EtherscanAPIURL  string
	EtherscanAPIKey  string
	BalanceBatchSize int
	MaxBalanceFetch  int

	// Refresh
	RefreshInterval time.Duration

	// Snapshot store
	DataBackend  string
	SQLiteDBPath string

	// AMQP (optional; empty URL disables snapshot events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Export worker
	ExportDir string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8080"),

		APIBaseURL:        getEnv("API_BASE_URL", "https://www.fastprotocol.io"),
		APITimeout:        getEnvDuration("API_TIMEOUT", 30*time.Second),
		APIRateDelay:      getEnvDuration("API_RATE_DELAY", 500*time.Millisecond),
		MaxUsersPerEntity: getEnvInt("MAX_USERS_PER_ENTITY", 1000),

		EtherscanAPIURL:  getEnv("ETHERSCAN_API_URL", "https://api.etherscan.io/api"),
		EtherscanAPIKey:  getEnv("ETHERSCAN_API_KEY", ""),
		BalanceBatchSize: getEnvInt("BALANCE_BATCH_SIZE", 20),
		MaxBalanceFetch:  getEnvInt("MAX_BALANCE_FETCH", 5),

		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 15*time.Minute),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fastboard.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fastboard"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "snapshot_export"),

		ExportDir: getEnv("EXPORT_DIR", "./output"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if parsed, err := url.Parse(c.APIBaseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s'", c.APIBaseURL))
	}
	if parsed, err := url.Parse(c.EtherscanAPIURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid Etherscan API URL '%s'", c.EtherscanAPIURL))
	}

	if c.APITimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be at least 1 second", c.APITimeout))
	}
	if c.APIRateDelay < 0 {
		errors = append(errors, fmt.Sprintf("invalid API rate delay %v: must not be negative", c.APIRateDelay))
	}
	if c.MaxUsersPerEntity < 1 {
		errors = append(errors, fmt.Sprintf("invalid max users per entity %d: must be at least 1", c.MaxUsersPerEntity))
	}

	if c.BalanceBatchSize < 1 || c.BalanceBatchSize > 20 {
		errors = append(errors, fmt.Sprintf("invalid balance batch size %d: Etherscan allows 1-20 addresses per call", c.BalanceBatchSize))
	}
	if c.MaxBalanceFetch < 1 {
		errors = append(errors, fmt.Sprintf("invalid max balance fetch %d: must be at least 1", c.MaxBalanceFetch))
	}

	if c.RefreshInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at least 1 second", c.RefreshInterval))
	} else if c.RefreshInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at most 24 hours", c.RefreshInterval))
	}

	validBackends := []string{"sqlite", "memory"}
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

	if c.ExportDir == "" {
		errors = append(errors, "export directory cannot be empty")
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like ORACLE_RPC_URL
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored if not present
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile tries .env from the usual run locations plus the project root.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.AI.BaseURL == "" {
		if val := os.Getenv("AI_AGENTS_URL"); val != "" {
			cfg.AI.BaseURL = val
		}
	}

	if cfg.Ledger.RPCURL == "" {
		if val := os.Getenv("ORACLE_RPC_URL"); val != "" {
			cfg.Ledger.RPCURL = val
		}
	}
	if cfg.Ledger.OracleAddress == "" {
		if val := os.Getenv("ORACLE_CONTRACT_ADDRESS"); val != "" {
			cfg.Ledger.OracleAddress = val
		}
	}

	if cfg.Store.BaseURL == "" {
		if val := os.Getenv("BACKEND_API_URL"); val != "" {
			cfg.Store.BaseURL = val
		}
	}

	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3003
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 120000
	}
	if cfg.Server.QueueSize == 0 {
		cfg.Server.QueueSize = 100
	}
	if cfg.Server.QueueWorkers == 0 {
		cfg.Server.QueueWorkers = 2
	}

	// AI defaults
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 60000
	}

	// Ledger defaults
	if cfg.Ledger.SubmitTimeout == 0 {
		cfg.Ledger.SubmitTimeout = 30000
	}
	if cfg.Ledger.ConfirmTimeout == 0 {
		cfg.Ledger.ConfirmTimeout = 120000
	}
	if cfg.Ledger.ConfirmPollInterval == 0 {
		cfg.Ledger.ConfirmPollInterval = 2000
	}

	// Store defaults
	if cfg.Store.Mode == "" {
		cfg.Store.Mode = "http"
	}
	if cfg.Store.Timeout == 0 {
		cfg.Store.Timeout = 10000
	}

	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	// Scanner defaults
	if cfg.Scanner.Interval == 0 {
		cfg.Scanner.Interval = 300000
	}
	if cfg.Scanner.BatchSize == 0 {
		cfg.Scanner.BatchSize = 50
	}
	if cfg.Scanner.ItemDelay == 0 {
		cfg.Scanner.ItemDelay = 2000
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Store.Mode != "http" && cfg.Store.Mode != "postgres" {
		return fmt.Errorf("store.mode must be \"http\" or \"postgres\", got %q", cfg.Store.Mode)
	}

	if cfg.Store.Mode == "http" && cfg.Store.BaseURL == "" {
		return fmt.Errorf("store.base_url is required in http mode")
	}

	if cfg.Store.Mode == "postgres" {
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required in postgres mode")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required in postgres mode")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required in postgres mode")
		}
	}

	if cfg.AI.BaseURL == "" {
		return fmt.Errorf("ai.base_url is required")
	}

	// Ledger may legitimately be unconfigured: the attestation client then
	// degrades to synthetic hashes. But a contract address without an RPC
	// endpoint is a misconfiguration.
	if cfg.Ledger.OracleAddress != "" && cfg.Ledger.RPCURL == "" {
		return fmt.Errorf("ledger.rpc_url is required when ledger.oracle_address is set")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

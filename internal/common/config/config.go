// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	AI       AIConfig       `mapstructure:"ai"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Store    StoreConfig    `mapstructure:"store"`
	Database DatabaseConfig `mapstructure:"database"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds the inbound HTTP server settings.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	RequestTimeout int      `mapstructure:"request_timeout"` // milliseconds
	CORSOrigins    []string `mapstructure:"cors_origins"`
	QueueSize      int      `mapstructure:"queue_size"`
	QueueWorkers   int      `mapstructure:"queue_workers"`
}

// AIConfig holds settings for the AI inference endpoint.
type AIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// LedgerConfig holds settings for the oracle contract gateway.
type LedgerConfig struct {
	RPCURL              string `mapstructure:"rpc_url"`
	OracleAddress       string `mapstructure:"oracle_address"`
	SubmitTimeout       int    `mapstructure:"submit_timeout"`        // milliseconds
	ConfirmTimeout      int    `mapstructure:"confirm_timeout"`       // milliseconds
	ConfirmPollInterval int    `mapstructure:"confirm_poll_interval"` // milliseconds
}

// StoreConfig selects how the proposal store is reached.
// Mode "http" talks to the backend API; mode "postgres" queries the
// database directly.
type StoreConfig struct {
	Mode    string `mapstructure:"mode"`
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ScannerConfig holds settings for the periodic proposal scanner.
type ScannerConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	Interval  int  `mapstructure:"interval"`   // milliseconds
	BatchSize int  `mapstructure:"batch_size"` // proposals per tick
	ItemDelay int  `mapstructure:"item_delay"` // milliseconds between proposals
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

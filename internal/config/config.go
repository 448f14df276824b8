// Package config provides configuration management for the chain sync service.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Chain     ChainConfig
	Executor  ExecutorConfig
	Sync      SyncConfig
	Portfolio PortfolioConfig
	Logging   LoggingConfig
}

// ServerConfig holds admin API server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ChainConfig holds blockchain connectivity configuration.
// RPCURL, ChainID, ContractAddress and SignerKey are mandatory: the service
// must not come up able to serve chain traffic against an unknown network.
type ChainConfig struct {
	RPCURL          string
	ChainID         int64
	ContractAddress string
	SignerKey       string
	MinWalletWei    *big.Int // balance below this logs a startup warning
	RPCRateLimit    int      // requests per second against the RPC endpoint
}

// ExecutorConfig holds transaction executor configuration
type ExecutorConfig struct {
	MaxRetries         int
	ConfirmationBlocks uint64
	GasSafetyFactor    float64
	ReceiptTimeout     time.Duration
}

// SyncConfig holds historical sync configuration
type SyncConfig struct {
	BatchSize    uint64
	PollInterval time.Duration
}

// PortfolioConfig holds portfolio aggregation configuration
type PortfolioConfig struct {
	SweepInterval time.Duration
	CacheTTL      time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "chain_sync"),
				User:           getEnv("POSTGRES_USER", "chain_sync"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "chain_sync"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Chain: ChainConfig{
			RPCURL:          getEnv("CHAIN_RPC_URL", ""),
			ChainID:         int64(getEnvAsInt("CHAIN_ID", 0)),
			ContractAddress: getEnv("CONTRACT_ADDRESS", ""),
			SignerKey:       getEnv("SIGNER_PRIVATE_KEY", ""),
			MinWalletWei:    getEnvAsBigInt("MIN_WALLET_WEI", "100000000000000000"), // 0.1 native token
			RPCRateLimit:    getEnvAsInt("RPC_RATE_LIMIT", 20),
		},
		Executor: ExecutorConfig{
			MaxRetries:         getEnvAsInt("TX_MAX_RETRIES", 3),
			ConfirmationBlocks: uint64(getEnvAsInt("TX_CONFIRMATION_BLOCKS", 1)),
			GasSafetyFactor:    getEnvAsFloat("TX_GAS_SAFETY_FACTOR", 1.2),
			ReceiptTimeout:     getEnvAsDuration("TX_RECEIPT_TIMEOUT", 60*time.Second),
		},
		Sync: SyncConfig{
			BatchSize:    uint64(getEnvAsInt("SYNC_BATCH_SIZE", 1000)),
			PollInterval: getEnvAsDuration("SYNC_POLL_INTERVAL", 30*time.Second),
		},
		Portfolio: PortfolioConfig{
			SweepInterval: getEnvAsDuration("PORTFOLIO_SWEEP_INTERVAL", 10*time.Minute),
			CacheTTL:      getEnvAsDuration("PORTFOLIO_CACHE_TTL", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Chain.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that the mandatory chain settings are present.
// A misconfigured chain must fail the boot, not surface later as
// submission errors against the wrong network.
func (c *ChainConfig) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("CHAIN_RPC_URL is required")
	}
	if c.ChainID == 0 {
		return fmt.Errorf("CHAIN_ID is required")
	}
	if c.ContractAddress == "" {
		return fmt.Errorf("CONTRACT_ADDRESS is required")
	}
	if c.SignerKey == "" {
		return fmt.Errorf("SIGNER_PRIVATE_KEY is required")
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBigInt gets an environment variable as a base-10 big integer
func getEnvAsBigInt(key, defaultValue string) *big.Int {
	valueStr := getEnv(key, defaultValue)
	value, ok := new(big.Int).SetString(valueStr, 10)
	if !ok {
		value, _ = new(big.Int).SetString(defaultValue, 10)
	}
	return value
}

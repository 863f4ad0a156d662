package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Data        DataConfig        `mapstructure:"data"`
	Session     SessionConfig     `mapstructure:"session"`
	Interpreter InterpreterConfig `mapstructure:"interpreter"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DataConfig points at the pre-processed lookup artifacts the engine loads at
// startup. All paths are required unless noted.
type DataConfig struct {
	Dir                   string `mapstructure:"dir"`
	ComorbidityMatrixCSV  string `mapstructure:"comorbidity_matrix_csv"`
	ICDMappingJSON        string `mapstructure:"icd_mapping_json"`
	ConditionCostsCSV     string `mapstructure:"condition_costs_csv"`
	ConditionSummaryJSON  string `mapstructure:"condition_summary_json"`
	DrugCostsJSON         string `mapstructure:"drug_costs_json"`
	InterventionCostsJSON string `mapstructure:"intervention_costs_json"`
}

// SessionConfig selects and configures the session store backend.
type SessionConfig struct {
	Backend         string        `mapstructure:"backend"` // "sqlite" or "postgres"
	SQLitePath      string        `mapstructure:"sqlite_path"`
	PostgresURL     string        `mapstructure:"postgres_url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// InterpreterConfig configures the external free-text interpreter (relevance
// scoring and unmapped-condition progression generation).
type InterpreterConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RetryCount int           `mapstructure:"retry_count"`
}

// CacheConfig represents cache configuration for interpreter responses.
type CacheConfig struct {
	RedisEnabled bool          `mapstructure:"redis_enabled"`
	RedisURL     string        `mapstructure:"redis_url"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	LRUSize      int           `mapstructure:"lru_size"`
	LRUTTL       time.Duration `mapstructure:"lru_ttl"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

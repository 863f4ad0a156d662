// Package config loads and validates the application configuration from
// config files and environment variables.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/caregraph/caregraph-server/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/caregraph/")

	viper.SetEnvPrefix("CAREGRAPH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars suffice.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Data artifact defaults
	viper.SetDefault("data.dir", "./data/processed")
	viper.SetDefault("data.comorbidity_matrix_csv", "comorbidity_matrix.csv")
	viper.SetDefault("data.icd_mapping_json", "icd_mapping.json")
	viper.SetDefault("data.condition_costs_csv", "condition_costs.csv")
	viper.SetDefault("data.condition_summary_json", "condition_summary.json")
	viper.SetDefault("data.drug_costs_json", "drug_costs_by_condition.json")
	viper.SetDefault("data.intervention_costs_json", "intervention_drug_costs.json")

	// Session store defaults
	viper.SetDefault("session.backend", "sqlite")
	viper.SetDefault("session.sqlite_path", "./data/sessions.db")
	viper.SetDefault("session.max_open_conns", 25)
	viper.SetDefault("session.max_idle_conns", 5)
	viper.SetDefault("session.conn_max_lifetime", "5m")

	// Interpreter defaults
	viper.SetDefault("interpreter.base_url", "https://api.openai.com/v1")
	viper.SetDefault("interpreter.model", "gpt-4o-mini")
	viper.SetDefault("interpreter.timeout", "15s")
	viper.SetDefault("interpreter.rate_limit", 5)
	viper.SetDefault("interpreter.retry_count", 2)

	// Cache defaults
	viper.SetDefault("cache.redis_enabled", false)
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "24h")
	viper.SetDefault("cache.max_retries", 3)
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")
	viper.SetDefault("cache.lru_size", 512)
	viper.SetDefault("cache.lru_ttl", "1h")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetDataConfig returns data artifact configuration
func (m *Manager) GetDataConfig() *domain.DataConfig {
	return &m.config.Data
}

// GetInterpreterConfig returns interpreter configuration
func (m *Manager) GetInterpreterConfig() *domain.InterpreterConfig {
	return &m.config.Interpreter
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Data.Dir == "" {
		return fmt.Errorf("data directory is required")
	}
	for name, file := range map[string]string{
		"comorbidity matrix CSV":  config.Data.ComorbidityMatrixCSV,
		"ICD mapping JSON":        config.Data.ICDMappingJSON,
		"condition costs CSV":     config.Data.ConditionCostsCSV,
		"condition summary JSON":  config.Data.ConditionSummaryJSON,
		"drug costs JSON":         config.Data.DrugCostsJSON,
		"intervention costs JSON": config.Data.InterventionCostsJSON,
	} {
		if file == "" {
			return fmt.Errorf("%s filename is required", name)
		}
	}

	switch config.Session.Backend {
	case "sqlite":
		if config.Session.SQLitePath == "" {
			return fmt.Errorf("session sqlite path is required")
		}
	case "postgres":
		if config.Session.PostgresURL == "" {
			return fmt.Errorf("session postgres URL is required")
		}
	default:
		return fmt.Errorf("invalid session backend: %s", config.Session.Backend)
	}

	if config.Interpreter.BaseURL == "" {
		return fmt.Errorf("interpreter base URL is required")
	}

	if config.Cache.RedisEnabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when Redis is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// DataPath resolves a data artifact filename against the data directory.
func (m *Manager) DataPath(filename string) string {
	return filepath.Join(m.config.Data.Dir, filename)
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(viper.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}

package domain

import (
	"context"
)

// ComorbidityNetwork answers neighbor queries against the per-stratum
// association tables. Implementations must be safe for concurrent use after
// their one-time load.
type ComorbidityNetwork interface {
	// Neighbors returns the comorbid conditions of condition for the stratum
	// derived from (age, sex), sorted by weight descending, excluding the
	// condition itself. A missing condition or stratum yields an empty slice,
	// never an error.
	Neighbors(condition string, age int, sex string) []ComorbidNeighbor
}

// RelevanceScorer supplies, per condition key, how strongly free text supports
// that condition. Implementations may be model-backed, rule-based, or mocked;
// the engine treats any failure as "no score".
type RelevanceScorer interface {
	ScoreConditions(ctx context.Context, text string, candidates []string) (map[string]float64, error)
}

// ProgressionStep is one possible future state for a condition outside the
// fixed vocabulary.
type ProgressionStep struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"`
	AnnualCost  float64 `json:"annual_cost"`
}

// ProgressionGenerator produces progression estimates for free-text condition
// descriptions the vocabulary cannot map. A failed or malformed response must
// be treated by callers as an empty result, never a fatal error.
type ProgressionGenerator interface {
	GenerateProgressions(ctx context.Context, description string, age int, sex string) ([]ProgressionStep, error)
}

// SessionStore persists simulation sessions.
type SessionStore interface {
	Save(ctx context.Context, session *SimulationSession) error
	Get(ctx context.Context, id string) (*SimulationSession, error)
	List(ctx context.Context, limit, offset int) ([]*SimulationSession, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDataConfig() *DataConfig
	GetInterpreterConfig() *InterpreterConfig
	Reload() error
	Validate() error
	IsProduction() bool
	IsDevelopment() bool
}

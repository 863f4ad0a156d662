package session

import (
	"fmt"

	"github.com/caregraph/caregraph-server/internal/domain"
)

// Backend names accepted in the session configuration.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Open creates the session store selected by the configuration.
func Open(cfg domain.SessionConfig) (domain.SessionStore, error) {
	switch cfg.Backend {
	case BackendSQLite, "":
		return NewSQLiteStore(cfg.SQLitePath)
	case BackendPostgres:
		return NewPostgresStoreFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

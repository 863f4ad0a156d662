package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/caregraph/caregraph-server/internal/domain"
)

// PostgresStore implements domain.SessionStore using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a session store over an existing connection. The
// schema is created if absent.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.createSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return store, nil
}

// NewPostgresStoreFromConfig opens a pooled connection from the session
// configuration.
func NewPostgresStoreFromConfig(cfg domain.SessionConfig) (*PostgresStore, error) {
	db, err := sql.Open("pgx", cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		profile JSONB NOT NULL,
		interventions JSONB NOT NULL DEFAULT '[]',
		graph JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save stores or updates a session using an upsert.
func (s *PostgresStore) Save(ctx context.Context, session *domain.SimulationSession) error {
	if session.ID == "" {
		return fmt.Errorf("session id is required")
	}

	profile, interventions, graph, err := marshalSession(session)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	query := `
		INSERT INTO sessions (id, profile, interventions, graph, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			profile = EXCLUDED.profile,
			interventions = EXCLUDED.interventions,
			graph = EXCLUDED.graph,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query,
		session.ID, profile, interventions, graph, session.CreatedAt, session.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Get retrieves a session by id. A missing session returns (nil, nil).
func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.SimulationSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, profile::text, interventions::text, graph::text, created_at, updated_at
		FROM sessions
		WHERE id = $1
	`, id)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return session, nil
}

// List returns sessions newest first with pagination.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*domain.SimulationSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile::text, interventions::text, graph::text, created_at, updated_at
		FROM sessions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var result []*domain.SimulationSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, session)
	}
	return result, rows.Err()
}

// Delete removes a session by id.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = $1", id)
	return err
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Package session persists simulation sessions so a saved pathway can be
// reloaded, shared, or compared later. Two backends implement
// domain.SessionStore: SQLite for single-node deployments and PostgreSQL for
// shared ones.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/caregraph/caregraph-server/internal/domain"
)

// SQLiteStore implements domain.SessionStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite session store. It creates the database
// file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		profile TEXT NOT NULL,
		interventions TEXT NOT NULL DEFAULT '[]',
		graph TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(s scanner) (*domain.SimulationSession, error) {
	session := &domain.SimulationSession{}
	var profileJSON, interventionsJSON string
	var graphJSON sql.NullString

	err := s.Scan(&session.ID, &profileJSON, &interventionsJSON, &graphJSON,
		&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(profileJSON), &session.Profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if err := json.Unmarshal([]byte(interventionsJSON), &session.Interventions); err != nil {
		return nil, fmt.Errorf("failed to decode interventions: %w", err)
	}
	if graphJSON.Valid && graphJSON.String != "" {
		session.Graph = &domain.PathwayGraph{}
		if err := json.Unmarshal([]byte(graphJSON.String), session.Graph); err != nil {
			return nil, fmt.Errorf("failed to decode graph: %w", err)
		}
	}
	return session, nil
}

func marshalSession(session *domain.SimulationSession) (profile, interventions string, graph sql.NullString, err error) {
	profileBytes, err := json.Marshal(session.Profile)
	if err != nil {
		return "", "", sql.NullString{}, fmt.Errorf("failed to encode profile: %w", err)
	}
	interventionList := session.Interventions
	if interventionList == nil {
		interventionList = []string{}
	}
	interventionBytes, err := json.Marshal(interventionList)
	if err != nil {
		return "", "", sql.NullString{}, fmt.Errorf("failed to encode interventions: %w", err)
	}
	if session.Graph != nil {
		graphBytes, err := json.Marshal(session.Graph)
		if err != nil {
			return "", "", sql.NullString{}, fmt.Errorf("failed to encode graph: %w", err)
		}
		graph = sql.NullString{String: string(graphBytes), Valid: true}
	}
	return string(profileBytes), string(interventionBytes), graph, nil
}

// Save stores or updates a session.
func (s *SQLiteStore) Save(ctx context.Context, session *domain.SimulationSession) error {
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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, profile, interventions, graph, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			profile = excluded.profile,
			interventions = excluded.interventions,
			graph = excluded.graph,
			updated_at = excluded.updated_at
	`, session.ID, profile, interventions, graph, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Get retrieves a session by id. A missing session returns (nil, nil).
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.SimulationSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, profile, interventions, graph, created_at, updated_at
		FROM sessions
		WHERE id = ?
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
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*domain.SimulationSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile, interventions, graph, created_at, updated_at
		FROM sessions
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
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
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	return err
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

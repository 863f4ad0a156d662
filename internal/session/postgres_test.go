package session

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caregraph/caregraph-server/internal/domain"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sessions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, mock
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WithArgs("s-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	session := &domain.SimulationSession{
		ID:      "s-1",
		Profile: domain.PatientProfile{Age: 45, Sex: "M", Conditions: []string{"hypertension"}},
	}
	require.NoError(t, store.Save(context.Background(), session))
	assert.False(t, session.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockStore(t)

	profile, err := json.Marshal(domain.PatientProfile{Age: 45, Sex: "M"})
	require.NoError(t, err)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "profile", "interventions", "graph", "created_at", "updated_at"}).
		AddRow("s-1", string(profile), `["statin"]`, nil, now, now)
	mock.ExpectQuery("SELECT id, profile::text").
		WithArgs("s-1").
		WillReturnRows(rows)

	got, err := store.Get(context.Background(), "s-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "s-1", got.ID)
	assert.Equal(t, 45, got.Profile.Age)
	assert.Equal(t, []string{"statin"}, got.Interventions)
	assert.Nil(t, got.Graph)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, profile::text").
		WithArgs("absent").
		WillReturnRows(sqlmock.NewRows([]string{"id", "profile", "interventions", "graph", "created_at", "updated_at"}))

	got, err := store.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List(t *testing.T) {
	store, mock := newMockStore(t)

	profile, err := json.Marshal(domain.PatientProfile{Age: 60, Sex: "F"})
	require.NoError(t, err)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "profile", "interventions", "graph", "created_at", "updated_at"}).
		AddRow("s-2", string(profile), `[]`, nil, now, now).
		AddRow("s-1", string(profile), `[]`, nil, now.Add(-time.Hour), now.Add(-time.Hour))
	mock.ExpectQuery("SELECT id, profile::text").
		WithArgs(10, 0).
		WillReturnRows(rows)

	got, err := store.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s-2", got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM sessions").
		WithArgs("s-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Delete(context.Background(), "s-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caregraph/caregraph-server/internal/domain"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testSession() *domain.SimulationSession {
	return &domain.SimulationSession{
		ID: uuid.New().String(),
		Profile: domain.PatientProfile{
			Age:           45,
			Sex:           "M",
			Conditions:    []string{"hypertension"},
			InsuranceType: "PPO",
			Deductible:    1000,
			Coinsurance:   0.2,
			OOPMax:        4000,
		},
		Interventions: []string{"ace_inhibitor"},
		Graph: &domain.PathwayGraph{
			Nodes: []domain.PathwayNode{{
				ID:          "current_hypertension",
				Label:       "Hypertension",
				Role:        domain.NodeCurrent,
				Probability: 1.0,
				AnnualCost:  1800,
				OOPEstimate: 1160,
			}},
			Edges:     []domain.PathwayEdge{},
			TotalCost: 10800,
			TotalOOP:  6960,
		},
	}
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	session := testSession()
	require.NoError(t, store.Save(ctx, session))
	assert.False(t, session.CreatedAt.IsZero())

	got, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, session.Profile, got.Profile)
	assert.Equal(t, session.Interventions, got.Interventions)
	require.NotNil(t, got.Graph)
	assert.Equal(t, session.Graph.TotalCost, got.Graph.TotalCost)
	assert.Len(t, got.Graph.Nodes, 1)
}

func TestSQLiteStore_SaveUpdatesExisting(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	session := testSession()
	require.NoError(t, store.Save(ctx, session))

	session.Interventions = []string{"ace_inhibitor", "statin"}
	require.NoError(t, store.Save(ctx, session))

	got, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"ace_inhibitor", "statin"}, got.Interventions)

	all, err := store.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	store := testStore(t)

	got, err := store.Get(context.Background(), uuid.New().String())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_SaveWithoutGraph(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	session := testSession()
	session.Graph = nil
	require.NoError(t, store.Save(ctx, session))

	got, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Graph)
}

func TestSQLiteStore_ListNewestFirst(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	first := testSession()
	first.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.Save(ctx, first))

	second := testSession()
	require.NoError(t, store.Save(ctx, second))

	all, err := store.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)

	page, err := store.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	session := testSession()
	require.NoError(t, store.Save(ctx, session))
	require.NoError(t, store.Delete(ctx, session.ID))

	got, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_RejectsEmptyID(t *testing.T) {
	store := testStore(t)

	session := testSession()
	session.ID = ""
	assert.Error(t, store.Save(context.Background(), session))
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(domain.SessionConfig{Backend: "cassandra"})
	assert.Error(t, err)
}

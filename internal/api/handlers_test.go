package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caregraph/caregraph-server/internal/domain"
	"github.com/caregraph/caregraph-server/internal/service"
	"github.com/caregraph/caregraph-server/internal/session"
)

type stubConfigManager struct {
	config *domain.Config
}

func (m *stubConfigManager) GetConfig() *domain.Config             { return m.config }
func (m *stubConfigManager) GetServerConfig() *domain.ServerConfig { return &m.config.Server }
func (m *stubConfigManager) GetDataConfig() *domain.DataConfig     { return &m.config.Data }
func (m *stubConfigManager) GetInterpreterConfig() *domain.InterpreterConfig {
	return &m.config.Interpreter
}
func (m *stubConfigManager) Reload() error       { return nil }
func (m *stubConfigManager) Validate() error     { return nil }
func (m *stubConfigManager) IsProduction() bool  { return false }
func (m *stubConfigManager) IsDevelopment() bool { return true }

type stubNetwork struct{}

func (stubNetwork) Neighbors(condition string, _ int, _ string) []domain.ComorbidNeighbor {
	if condition == "hypertension" {
		return []domain.ComorbidNeighbor{
			{Condition: "ckd", Weight: 3.5, Label: "Chronic Kidney Disease"},
		}
	}
	return nil
}

type stubCosts struct{}

func (stubCosts) AnnualCost(condition string, _ *domain.PatientProfile) float64 {
	if condition == "ckd" {
		return 12000
	}
	return 1800
}

func (stubCosts) InterventionAnnualCost(string) float64 { return 600 }

type stubScorer struct {
	scores map[string]float64
	err    error
}

func (s *stubScorer) ScoreConditions(_ context.Context, _ string, _ []string) (map[string]float64, error) {
	return s.scores, s.err
}

func testServer(t *testing.T, scorer domain.RelevanceScorer) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	sessions, err := session.NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sessions.Close() })

	sim := service.NewSimulator(stubNetwork{}, stubCosts{}, nil, 0, logger)
	cfg := &stubConfigManager{config: &domain.Config{
		Logging: domain.LoggingConfig{Level: "error"},
	}}
	return NewServer(cfg, sim, sessions, scorer, logger)
}

func doRequest(s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func validScenario() map[string]interface{} {
	return map[string]interface{}{
		"profile": map[string]interface{}{
			"age":            45,
			"sex":            "M",
			"conditions":     []string{"hypertension"},
			"insurance_type": "PPO",
			"deductible":     1000,
			"coinsurance":    0.2,
			"oop_max":        4000,
		},
		"time_horizon_years": 5,
	}
}

func TestHandleHealth(t *testing.T) {
	w := doRequest(testServer(t, nil), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHandleSimulatePathway(t *testing.T) {
	w := doRequest(testServer(t, nil), http.MethodPost, "/api/v1/simulation/pathway", validScenario())
	require.Equal(t, http.StatusOK, w.Code)

	var graph domain.PathwayGraph
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &graph))
	require.NotEmpty(t, graph.Nodes)
	assert.Equal(t, "current_hypertension", graph.Nodes[0].ID)
	assert.Positive(t, graph.TotalCost)
}

func TestHandleSimulatePathway_ValidationError(t *testing.T) {
	body := validScenario()
	body["profile"].(map[string]interface{})["conditions"] = []string{"not_a_condition"}

	w := doRequest(testServer(t, nil), http.MethodPost, "/api/v1/simulation/pathway", body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var apiErr domain.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	assert.Equal(t, domain.ErrValidation, apiErr.Code)
}

func TestHandleSimulatePathway_MalformedBody(t *testing.T) {
	server := testServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/simulation/pathway",
		bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCompareScenarios(t *testing.T) {
	body := map[string]interface{}{
		"profile":            validScenario()["profile"],
		"scenarios":          [][]string{nil, {"ace_inhibitor"}},
		"time_horizon_years": 5,
	}
	w := doRequest(testServer(t, nil), http.MethodPost, "/api/v1/simulation/compare", body)
	require.Equal(t, http.StatusOK, w.Code)

	var parsed struct {
		Scenarios []service.ScenarioComparison `json:"scenarios"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	assert.Len(t, parsed.Scenarios, 2)
}

func TestHandleComparePlans(t *testing.T) {
	body := map[string]interface{}{
		"profile": validScenario()["profile"],
		"plans": []map[string]interface{}{
			{"name": "HDHP", "deductible": 5000, "coinsurance": 0.3, "oop_max": 8000, "monthly_premium": 200},
			{"name": "PPO", "deductible": 500, "coinsurance": 0.1, "oop_max": 3000, "monthly_premium": 450},
		},
		"time_horizon_years": 5,
	}
	w := doRequest(testServer(t, nil), http.MethodPost, "/api/v1/plans/compare", body)
	require.Equal(t, http.StatusOK, w.Code)

	var parsed struct {
		PlanComparisons []service.PlanComparison `json:"plan_comparisons"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	require.Len(t, parsed.PlanComparisons, 2)
	assert.Positive(t, parsed.PlanComparisons[0].TotalWithPremium)
}

func TestHandleComparePlans_NoPlans(t *testing.T) {
	body := map[string]interface{}{
		"profile": validScenario()["profile"],
		"plans":   []map[string]interface{}{},
	}
	w := doRequest(testServer(t, nil), http.MethodPost, "/api/v1/plans/compare", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleInterpretSymptoms(t *testing.T) {
	server := testServer(t, &stubScorer{scores: map[string]float64{
		"migraine": 0.8,
		"anxiety":  0.3,
	}})

	body := map[string]interface{}{"text": "recurring headaches and light sensitivity"}
	w := doRequest(server, http.MethodPost, "/api/v1/interpret", body)
	require.Equal(t, http.StatusOK, w.Code)

	var parsed struct {
		SuspectedConditions []domain.SuspectedCondition `json:"suspected_conditions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	require.Len(t, parsed.SuspectedConditions, 2)
	assert.Equal(t, "migraine", parsed.SuspectedConditions[0].Condition)
	assert.InDelta(t, 0.8, parsed.SuspectedConditions[0].Relevance, 1e-9)
}

func TestHandleInterpretSymptoms_NotConfigured(t *testing.T) {
	body := map[string]interface{}{"text": "headaches"}
	w := doRequest(testServer(t, nil), http.MethodPost, "/api/v1/interpret", body)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleInterpretSymptoms_EmptyText(t *testing.T) {
	server := testServer(t, &stubScorer{scores: map[string]float64{}})
	w := doRequest(server, http.MethodPost, "/api/v1/interpret", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleInterpretSymptoms_ScorerFailure(t *testing.T) {
	server := testServer(t, &stubScorer{err: context.DeadlineExceeded})
	body := map[string]interface{}{"text": "headaches"}
	w := doRequest(server, http.MethodPost, "/api/v1/interpret", body)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandleListConditions(t *testing.T) {
	w := doRequest(testServer(t, nil), http.MethodGet, "/api/v1/conditions", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var parsed struct {
		Conditions map[string]struct {
			Label    string   `json:"label"`
			ICDCodes []string `json:"icd_codes"`
		} `json:"conditions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	assert.Contains(t, parsed.Conditions, "hypertension")
	assert.Equal(t, "Hypertension", parsed.Conditions["hypertension"].Label)
}

func TestSessionLifecycle(t *testing.T) {
	server := testServer(t, nil)

	body := map[string]interface{}{
		"profile":       validScenario()["profile"],
		"interventions": []string{"ace_inhibitor"},
	}
	w := doRequest(server, http.MethodPost, "/api/v1/sessions", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var created domain.SimulationSession
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	w = doRequest(server, http.MethodGet, "/api/v1/sessions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(server, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Sessions []*domain.SimulationSession `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Len(t, listed.Sessions, 1)

	w = doRequest(server, http.MethodDelete, "/api/v1/sessions/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(server, http.MethodGet, "/api/v1/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

package api

import (
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/caregraph/caregraph-server/internal/data"
	"github.com/caregraph/caregraph-server/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func requestID(c *gin.Context) string {
	if id, ok := c.Get("request_id"); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// writeError maps engine errors onto HTTP responses: validation failures are
// the caller's fault, everything else is a server error.
func (s *Server) writeError(c *gin.Context, err error) {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrValidation, vErr.Error(), "", requestID(c)))
		return
	}

	s.logger.WithError(err).Error("Request failed")
	c.JSON(http.StatusInternalServerError, domain.NewAPIError(
		domain.ErrInternalServer, "internal server error", "", requestID(c)))
}

func (s *Server) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrInvalidInput, "invalid request body", err.Error(), requestID(c)))
		return false
	}
	return true
}

// handleSimulatePathway generates a care pathway graph for one scenario.
func (s *Server) handleSimulatePathway(c *gin.Context) {
	var req domain.ScenarioRequest
	if !s.bindJSON(c, &req) {
		return
	}

	graph, err := s.simulator.SimulatePathway(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, graph)
}

type compareScenariosRequest struct {
	Profile          domain.PatientProfile `json:"profile"`
	Scenarios        [][]string            `json:"scenarios"`
	TimeHorizonYears int                   `json:"time_horizon_years"`
}

// handleCompareScenarios simulates the same profile under multiple
// intervention lists.
func (s *Server) handleCompareScenarios(c *gin.Context) {
	var req compareScenariosRequest
	if !s.bindJSON(c, &req) {
		return
	}

	results, err := s.simulator.CompareScenarios(c.Request.Context(),
		req.Profile, req.Scenarios, req.TimeHorizonYears)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": results})
}

type comparePlansRequest struct {
	Profile          domain.PatientProfile `json:"profile"`
	Interventions    []string              `json:"interventions"`
	Plans            []domain.PlanTerms    `json:"plans"`
	TimeHorizonYears int                   `json:"time_horizon_years"`
}

// handleComparePlans prices the same pathway under each plan's cost-sharing
// terms.
func (s *Server) handleComparePlans(c *gin.Context) {
	var req comparePlansRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if len(req.Plans) == 0 {
		c.JSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrInvalidInput, "at least one plan is required", "", requestID(c)))
		return
	}

	results, err := s.simulator.ComparePlans(c.Request.Context(),
		req.Profile, req.Interventions, req.Plans, req.TimeHorizonYears)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan_comparisons": results})
}

type interpretRequest struct {
	Text       string   `json:"text"`
	Candidates []string `json:"candidates,omitempty"`
}

// handleInterpretSymptoms scores free-text symptoms against the condition
// vocabulary, producing suspected conditions for a subsequent simulation call.
func (s *Server) handleInterpretSymptoms(c *gin.Context) {
	if s.scorer == nil {
		c.JSON(http.StatusServiceUnavailable, domain.NewAPIError(
			domain.ErrExternalAPI, "symptom interpretation is not configured", "", requestID(c)))
		return
	}

	var req interpretRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if req.Text == "" {
		c.JSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrInvalidInput, "text is required", "", requestID(c)))
		return
	}

	candidates := req.Candidates
	if len(candidates) == 0 {
		candidates = data.AllConditionKeys()
	} else {
		known := candidates[:0]
		for _, candidate := range candidates {
			if data.KnownCondition(candidate) {
				known = append(known, candidate)
			}
		}
		candidates = known
	}

	scores, err := s.scorer.ScoreConditions(c.Request.Context(), req.Text, candidates)
	if err != nil {
		s.logger.WithError(err).Warn("Symptom interpretation failed")
		c.JSON(http.StatusBadGateway, domain.NewAPIError(
			domain.ErrExternalAPI, "symptom interpretation failed", "", requestID(c)))
		return
	}

	suspected := make([]domain.SuspectedCondition, 0, len(scores))
	for condition, relevance := range scores {
		suspected = append(suspected, domain.SuspectedCondition{
			Condition: condition,
			Relevance: relevance,
		})
	}
	sort.Slice(suspected, func(i, j int) bool {
		if suspected[i].Relevance != suspected[j].Relevance {
			return suspected[i].Relevance > suspected[j].Relevance
		}
		return suspected[i].Condition < suspected[j].Condition
	})
	c.JSON(http.StatusOK, gin.H{"suspected_conditions": suspected})
}

// handleListConditions returns the full condition vocabulary.
func (s *Server) handleListConditions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"conditions": data.ConditionCatalog()})
}

// handleSaveSession persists a simulation session, assigning an id when the
// client does not supply one.
func (s *Server) handleSaveSession(c *gin.Context) {
	var session domain.SimulationSession
	if !s.bindJSON(c, &session) {
		return
	}
	if session.ID == "" {
		session.ID = uuid.New().String()
	}

	if err := s.sessions.Save(c.Request.Context(), &session); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (s *Server) handleListSessions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	sessions, err := s.sessions.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if sessions == nil {
		sessions = []*domain.SimulationSession{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) handleGetSession(c *gin.Context) {
	session, err := s.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if session == nil {
		c.JSON(http.StatusNotFound, domain.NewAPIError(
			domain.ErrInvalidInput, "session not found", "", requestID(c)))
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if err := s.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

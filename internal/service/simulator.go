package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/caregraph/caregraph-server/internal/data"
	"github.com/caregraph/caregraph-server/internal/domain"
)

// Expansion bounds. Edges below MinEdgeWeight are noise and never followed;
// only edges at or above StrongEdgeWeight permit another hop; branches whose
// joint probability falls below MinJointProbability are pruned.
const (
	MinEdgeWeight       = 1.5
	StrongEdgeWeight    = 3.0
	MinJointProbability = 0.001
	maxExpansionDepth   = 2
)

// defaultProgressionTimeout bounds the external generator call for unmapped
// conditions so a slow collaborator degrades to "no extra nodes".
const defaultProgressionTimeout = 10 * time.Second

// CostResolver prices conditions and interventions for a patient profile.
// *data.CostTables is the production implementation.
type CostResolver interface {
	AnnualCost(condition string, profile *domain.PatientProfile) float64
	InterventionAnnualCost(intervention string) float64
}

// Simulator orchestrates one pathway simulation: seeding, bounded recursive
// expansion over the comorbidity network, intervention adjustment, pricing,
// and final cost aggregation. Every call builds a fresh graph; the simulator
// itself holds no per-call state and is safe for concurrent use.
type Simulator struct {
	network            domain.ComorbidityNetwork
	costs              CostResolver
	calibrator         *ProbabilityCalibrator
	interventions      *InterventionModel
	blender            *SymptomBlender
	progressions       domain.ProgressionGenerator
	progressionTimeout time.Duration
	logger             *logrus.Logger
}

// NewSimulator wires the simulation engine. progressions may be nil, in which
// case unmapped conditions produce only their reported seed node.
func NewSimulator(
	network domain.ComorbidityNetwork,
	costs CostResolver,
	progressions domain.ProgressionGenerator,
	progressionTimeout time.Duration,
	logger *logrus.Logger,
) *Simulator {
	if progressionTimeout <= 0 {
		progressionTimeout = defaultProgressionTimeout
	}
	calibrator := NewProbabilityCalibrator()
	return &Simulator{
		network:            network,
		costs:              costs,
		calibrator:         calibrator,
		interventions:      NewInterventionModel(),
		blender:            NewSymptomBlender(network, calibrator),
		progressions:       progressions,
		progressionTimeout: progressionTimeout,
		logger:             logger,
	}
}

// SimulatePathway validates the request and produces the complete pathway
// graph. It either returns a fully consistent graph or a validation error
// before any computation starts; lookup misses and external failures degrade
// internally and never fail the call.
func (s *Simulator) SimulatePathway(ctx context.Context, req *domain.ScenarioRequest) (*domain.PathwayGraph, error) {
	if err := domain.ValidateScenarioRequest(req, data.KnownCondition); err != nil {
		return nil, err
	}

	profile := &req.Profile
	builder := newGraphBuilder(profile.Conditions)

	// Confirmed condition seeds.
	for _, condition := range profile.Conditions {
		cost := s.costs.AnnualCost(condition, profile)
		builder.addNode(domain.PathwayNode{
			ID:          currentNodeID(condition),
			Label:       data.ConditionLabel(condition),
			Role:        domain.NodeCurrent,
			Probability: 1.0,
			AnnualCost:  cost,
			OOPEstimate: round2(data.OutOfPocket(cost, profile)),
			Year:        0,
			Provenance:  domain.ProvenanceModel,
		})
	}

	// Suspected condition seeds, blended from external relevance and
	// comorbidity support.
	suspectedProbs := make(map[string]float64, len(req.SuspectedConditions))
	for _, sc := range req.SuspectedConditions {
		relevance := sc.Relevance
		if relevance <= 0 {
			relevance = NeutralRelevance
		}
		blended := s.blender.Blend(sc.Condition, relevance, profile.Conditions, profile.Age, profile.Sex)
		cost := s.costs.AnnualCost(sc.Condition, profile)
		if builder.addNode(domain.PathwayNode{
			ID:          suspectedNodeID(sc.Condition),
			Label:       data.ConditionLabel(sc.Condition),
			Role:        domain.NodeSuspected,
			Probability: round4(blended),
			AnnualCost:  cost,
			OOPEstimate: round2(data.OutOfPocket(cost, profile)),
			Year:        0,
			Provenance:  domain.ProvenanceModel,
		}) {
			suspectedProbs[sc.Condition] = blended
		}
	}

	// Intervention nodes plus edges onto the confirmed conditions they act on.
	for _, intervention := range req.Interventions {
		if !s.interventions.Known(intervention) {
			s.logger.WithField("intervention", intervention).Warn("Intervention has no defined effects")
		}
		rxCost := s.costs.InterventionAnnualCost(intervention)
		builder.addNode(domain.PathwayNode{
			ID:          interventionNodeID(intervention),
			Label:       InterventionLabel(intervention),
			Role:        domain.NodeIntervention,
			Probability: 1.0,
			AnnualCost:  rxCost,
			OOPEstimate: round2(data.OutOfPocket(rxCost, profile)),
			Year:        0,
			Provenance:  domain.ProvenanceModel,
		})
		for _, source := range s.interventions.AffectedSources(intervention) {
			if !builder.isConfirmed(source) {
				continue
			}
			builder.addEdge(domain.PathwayEdge{
				Source: interventionNodeID(intervention),
				Target: currentNodeID(source),
				Role:   domain.EdgeIntervention,
				Label:  InterventionLabel(intervention),
			})
		}
	}

	// Expansion: confirmed roots carry full probability, suspected roots
	// carry their blended probability as the initial cumulative probability.
	for _, condition := range profile.Conditions {
		s.expand(builder, req, condition, currentNodeID(condition), 1, 1.0, 0)
	}
	for _, sc := range req.SuspectedConditions {
		if prob, ok := suspectedProbs[sc.Condition]; ok {
			s.expand(builder, req, sc.Condition, suspectedNodeID(sc.Condition), 1, prob, 0)
		}
	}

	// Unmapped conditions are delegated to the external generator.
	for _, description := range req.UnmappedConditions {
		s.mergeUnmapped(ctx, builder, profile, description)
	}

	return builder.finalize(req.TimeHorizonYears), nil
}

// expand walks the comorbidity neighborhood of source, creating future nodes
// and edges within the year, depth, weight and joint-probability bounds.
func (s *Simulator) expand(
	builder *graphBuilder,
	req *domain.ScenarioRequest,
	source, sourceID string,
	year int,
	cumProb float64,
	depth int,
) {
	if year > req.TimeHorizonYears {
		return
	}
	profile := &req.Profile

	for _, neighbor := range s.network.Neighbors(source, profile.Age, profile.Sex) {
		if neighbor.Weight < MinEdgeWeight {
			continue
		}
		if builder.isConfirmed(neighbor.Condition) {
			continue
		}

		base := s.calibrator.ToAnnualProbability(neighbor.Weight, neighbor.Condition)
		prob := s.interventions.EffectiveProbability(source, neighbor.Condition, base, req.Interventions)
		joint := cumProb * prob
		if joint < MinJointProbability {
			continue
		}

		nodeID := futureNodeID(neighbor.Condition, year)
		cost := s.costs.AnnualCost(neighbor.Condition, profile)
		role := domain.NodeFuture
		if cost > HighCostThreshold {
			role = domain.NodeHighCost
		}
		builder.addNode(domain.PathwayNode{
			ID:          nodeID,
			Label:       neighbor.Label,
			Role:        role,
			Probability: round4(joint),
			AnnualCost:  cost,
			OOPEstimate: round2(data.OutOfPocket(cost, profile)),
			Year:        year,
			Provenance:  domain.ProvenanceModel,
		})
		builder.addEdge(domain.PathwayEdge{
			Source:      sourceID,
			Target:      nodeID,
			Role:        domain.EdgeComorbidity,
			Probability: round4(prob),
			Label:       edgeRateLabel(prob),
		})

		// A second hop requires a strong association; this bounds the graph
		// to short chains of compounding risk.
		if depth < maxExpansionDepth && neighbor.Weight >= StrongEdgeWeight {
			s.expand(builder, req, neighbor.Condition, nodeID, year+1, joint, depth+1)
		}
	}
}

// mergeUnmapped adds a reported seed node for a free-text condition outside
// the vocabulary and, when the external generator answers in time, its
// progression estimates as external-provenance first-year nodes. Any failure
// degrades to the seed node alone.
func (s *Simulator) mergeUnmapped(ctx context.Context, builder *graphBuilder, profile *domain.PatientProfile, description string) {
	slug := slugify(description)
	if slug == "" {
		return
	}
	seedID := "reported_" + slug
	builder.addNode(domain.PathwayNode{
		ID:          seedID,
		Label:       strings.TrimSpace(description),
		Role:        domain.NodeCurrent,
		Probability: 1.0,
		Year:        0,
		Provenance:  domain.ProvenanceExternal,
	})

	if s.progressions == nil {
		return
	}
	genCtx, cancel := context.WithTimeout(ctx, s.progressionTimeout)
	defer cancel()

	steps, err := s.progressions.GenerateProgressions(genCtx, description, profile.Age, profile.Sex)
	if err != nil {
		s.logger.WithError(err).WithField("condition", description).
			Warn("Progression generation failed, continuing without estimates")
		return
	}

	for _, step := range steps {
		stepSlug := slugify(step.Name)
		if stepSlug == "" {
			continue
		}
		prob := step.Probability
		if prob > MaxAnnualProbability {
			prob = MaxAnnualProbability
		}
		if prob <= 0 {
			continue
		}
		cost := step.AnnualCost
		if cost < 0 {
			cost = 0
		}
		role := domain.NodeFuture
		if cost > HighCostThreshold {
			role = domain.NodeHighCost
		}
		nodeID := futureNodeID(stepSlug, 1)
		builder.addNode(domain.PathwayNode{
			ID:          nodeID,
			Label:       step.Name,
			Role:        role,
			Probability: round4(prob),
			AnnualCost:  cost,
			OOPEstimate: round2(data.OutOfPocket(cost, profile)),
			Year:        1,
			Provenance:  domain.ProvenanceExternal,
		})
		builder.addEdge(domain.PathwayEdge{
			Source:      seedID,
			Target:      nodeID,
			Role:        domain.EdgeProgression,
			Probability: round4(prob),
			Label:       edgeRateLabel(prob),
		})
	}
}

package service

import (
	"context"

	"github.com/caregraph/caregraph-server/internal/domain"
)

// ScenarioComparison is one intervention list simulated against the same
// profile.
type ScenarioComparison struct {
	Interventions []string             `json:"interventions"`
	Graph         *domain.PathwayGraph `json:"graph"`
}

// PlanComparison is the same pathway priced under one plan's cost-sharing
// terms. TotalWithPremium adds the plan's premium over the full horizon to
// the expected out-of-pocket total.
type PlanComparison struct {
	Plan             domain.PlanTerms     `json:"plan"`
	Graph            *domain.PathwayGraph `json:"graph"`
	TotalWithPremium float64              `json:"total_with_premium"`
}

// CompareScenarios simulates the same profile under each intervention list.
// An empty scenario list is allowed and yields an empty result.
func (s *Simulator) CompareScenarios(
	ctx context.Context,
	profile domain.PatientProfile,
	scenarios [][]string,
	horizonYears int,
) ([]ScenarioComparison, error) {
	results := make([]ScenarioComparison, 0, len(scenarios))
	for _, interventions := range scenarios {
		req := &domain.ScenarioRequest{
			Profile:          profile,
			Interventions:    interventions,
			TimeHorizonYears: horizonYears,
		}
		graph, err := s.SimulatePathway(ctx, req)
		if err != nil {
			return nil, err
		}
		results = append(results, ScenarioComparison{
			Interventions: interventions,
			Graph:         graph,
		})
	}
	return results, nil
}

// ComparePlans reruns the same scenario with each plan's deductible,
// coinsurance and out-of-pocket maximum substituted into the profile, then
// adds the annualized premium over the horizon.
func (s *Simulator) ComparePlans(
	ctx context.Context,
	profile domain.PatientProfile,
	interventions []string,
	plans []domain.PlanTerms,
	horizonYears int,
) ([]PlanComparison, error) {
	results := make([]PlanComparison, 0, len(plans))
	for _, plan := range plans {
		planProfile := profile
		planProfile.InsuranceType = plan.Name
		planProfile.Deductible = plan.Deductible
		planProfile.Coinsurance = plan.Coinsurance
		planProfile.OOPMax = plan.OOPMax

		req := &domain.ScenarioRequest{
			Profile:          planProfile,
			Interventions:    interventions,
			TimeHorizonYears: horizonYears,
		}
		graph, err := s.SimulatePathway(ctx, req)
		if err != nil {
			return nil, err
		}

		annualPremium := plan.MonthlyPremium * 12
		results = append(results, PlanComparison{
			Plan:             plan,
			Graph:            graph,
			TotalWithPremium: round2(graph.TotalOOP + annualPremium*float64(req.TimeHorizonYears)),
		})
	}
	return results, nil
}

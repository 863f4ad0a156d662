// Package service implements the pathway simulation engine: probability
// calibration, intervention effects, symptom blending, and the bounded
// graph expansion that ties them together.
package service

import (
	"github.com/caregraph/caregraph-server/internal/data"
)

// MaxAnnualProbability caps every calibrated annual transition probability.
const MaxAnnualProbability = 0.15

// diseaseWindowYears converts a lifetime co-occurrence estimate into an
// annual incidence rate.
const diseaseWindowYears = 10.0

// ProbabilityCalibrator converts association weights (odds ratios) into
// bounded annual transition probabilities.
type ProbabilityCalibrator struct {
	prevalence func(condition string) float64
}

// NewProbabilityCalibrator creates a calibrator backed by the built-in
// per-condition prevalence table.
func NewProbabilityCalibrator() *ProbabilityCalibrator {
	return &ProbabilityCalibrator{prevalence: data.Prevalence}
}

// ToAnnualProbability converts an association weight into the annual
// probability of developing target. The odds ratio is first converted to a
// conditional co-occurrence probability against the target's baseline
// prevalence p0, then spread over the disease-development window:
//
//	c = (w * p0) / (1 - p0 + w * p0)
//	annual = c / window, clamped to MaxAnnualProbability
//
// A zero weight yields zero; the result is non-decreasing in the weight.
func (c *ProbabilityCalibrator) ToAnnualProbability(weight float64, target string) float64 {
	if weight <= 0 {
		return 0
	}
	p0 := c.prevalence(target)
	cooccurrence := (weight * p0) / (1 - p0 + weight*p0)
	annual := cooccurrence / diseaseWindowYears
	if annual > MaxAnnualProbability {
		return MaxAnnualProbability
	}
	return annual
}

// CooccurrenceProbability exposes the raw odds-ratio conversion without the
// annualization step, used by the symptom blender for its comorbidity prior.
func (c *ProbabilityCalibrator) CooccurrenceProbability(weight float64, target string) float64 {
	if weight <= 0 {
		return 0
	}
	p0 := c.prevalence(target)
	return (weight * p0) / (1 - p0 + weight*p0)
}

package service

import (
	"github.com/caregraph/caregraph-server/internal/domain"
)

// Symptom blending bounds. A suspected condition is never reported above the
// relevance cap or below the floor, and the comorbidity prior alone can never
// push it past its own cap.
const (
	MaxBlendProbability = 0.85
	MaxComorbidityPrior = 0.50
	MinBlendProbability = 0.05
	NeutralRelevance    = 0.4
)

// SymptomBlender combines an externally supplied relevance score with a
// comorbidity-derived prior into one probability for suspected conditions.
type SymptomBlender struct {
	network    domain.ComorbidityNetwork
	calibrator *ProbabilityCalibrator
}

// NewSymptomBlender creates a blender over the comorbidity network.
func NewSymptomBlender(network domain.ComorbidityNetwork, calibrator *ProbabilityCalibrator) *SymptomBlender {
	return &SymptomBlender{network: network, calibrator: calibrator}
}

// Blend returns the probability assigned to a suspected condition. Signal one
// is the external relevance score capped at MaxBlendProbability; signal two is
// the strongest co-occurrence probability implied by any confirmed condition's
// association with it, capped at MaxComorbidityPrior. The stronger signal
// wins, floored at MinBlendProbability.
func (b *SymptomBlender) Blend(condition string, relevance float64, confirmed []string, age int, sex string) float64 {
	signal := relevance
	if signal > MaxBlendProbability {
		signal = MaxBlendProbability
	}

	for _, source := range confirmed {
		for _, neighbor := range b.network.Neighbors(source, age, sex) {
			if neighbor.Condition != condition {
				continue
			}
			prior := b.calibrator.CooccurrenceProbability(neighbor.Weight, condition)
			if prior > MaxComorbidityPrior {
				prior = MaxComorbidityPrior
			}
			if prior > signal {
				signal = prior
			}
		}
	}

	if signal < MinBlendProbability {
		signal = MinBlendProbability
	}
	return signal
}

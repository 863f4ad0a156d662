package service

import (
	"sort"
	"strings"
)

type conditionPair struct {
	source string
	target string
}

// interventionEffects maps each intervention to the condition transitions it
// suppresses. Multipliers below 1.0 come from published trial effect sizes
// rounded to two digits.
var interventionEffects = map[string]map[conditionPair]float64{
	"metformin": {
		{"obesity", "diabetes"}: 0.42,
	},
	"sglt2_inhibitor": {
		{"diabetes", "ckd"}:           0.52,
		{"diabetes", "heart_failure"}: 0.65,
	},
	"statin": {
		{"high_cholesterol", "cad"}: 0.50,
		{"cad", "heart_failure"}:    0.70,
	},
	"ace_inhibitor": {
		{"hypertension", "ckd"}:           0.55,
		{"hypertension", "stroke"}:        0.60,
		{"hypertension", "heart_failure"}: 0.65,
	},
	"lifestyle_change": {
		{"obesity", "diabetes"}:    0.42,
		{"hypertension", "stroke"}: 0.75,
	},
}

// InterventionModel applies static risk-reduction multipliers to transition
// probabilities.
type InterventionModel struct {
	effects map[string]map[conditionPair]float64
}

// NewInterventionModel creates the model over the built-in effects table.
func NewInterventionModel() *InterventionModel {
	return &InterventionModel{effects: interventionEffects}
}

// EffectiveProbability multiplies base by the multiplier of every active
// intervention with an entry for (source, target). Multipliers compose
// multiplicatively, so the result is independent of intervention order.
// Interventions without a matching entry leave the probability unchanged.
func (m *InterventionModel) EffectiveProbability(source, target string, base float64, active []string) float64 {
	prob := base
	for _, intervention := range active {
		if mult, ok := m.effects[intervention][conditionPair{source, target}]; ok {
			prob *= mult
		}
	}
	return prob
}

// Known reports whether an intervention has any defined effect.
func (m *InterventionModel) Known(intervention string) bool {
	_, ok := m.effects[intervention]
	return ok
}

// AffectedSources returns, sorted, the distinct source conditions an
// intervention acts on. Used to draw intervention edges onto confirmed
// condition nodes.
func (m *InterventionModel) AffectedSources(intervention string) []string {
	seen := make(map[string]struct{})
	for pair := range m.effects[intervention] {
		seen[pair.source] = struct{}{}
	}
	sources := make([]string, 0, len(seen))
	for s := range seen {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources
}

// InterventionLabel renders an intervention key as a display label,
// "ace_inhibitor" → "Ace Inhibitor".
func InterventionLabel(intervention string) string {
	words := strings.Split(intervention, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

package domain

import (
	"time"
)

// Core Enums and Types

// NodeRole identifies what a pathway node represents.
type NodeRole string

const (
	NodeCurrent      NodeRole = "current"
	NodeSuspected    NodeRole = "suspected"
	NodeFuture       NodeRole = "future"
	NodeHighCost     NodeRole = "high_cost"
	NodeIntervention NodeRole = "intervention"
)

// EdgeRole identifies the relationship an edge encodes.
type EdgeRole string

const (
	EdgeProgression  EdgeRole = "progression"
	EdgeComorbidity  EdgeRole = "comorbidity"
	EdgeIntervention EdgeRole = "intervention"
)

// NodeProvenance records whether a node's numbers came from the model's own
// lookup tables or from an external generator.
type NodeProvenance string

const (
	ProvenanceModel    NodeProvenance = "model"
	ProvenanceExternal NodeProvenance = "external"
)

// Sex codes accepted in patient profiles.
const (
	SexMale   = "M"
	SexFemale = "F"
)

// PatientProfile describes one patient for a single simulation call.
// It is immutable for the duration of the call.
type PatientProfile struct {
	Age           int      `json:"age"`
	Sex           string   `json:"sex"`
	Conditions    []string `json:"conditions"`
	InsuranceType string   `json:"insurance_type"`
	Deductible    float64  `json:"deductible"`
	Coinsurance   float64  `json:"coinsurance"`
	OOPMax        float64  `json:"oop_max"`
}

// SuspectedCondition is a condition the patient may have, with an externally
// supplied relevance score in [0,1].
type SuspectedCondition struct {
	Condition string  `json:"condition"`
	Relevance float64 `json:"relevance"`
}

// ScenarioRequest is the input to one pathway simulation.
type ScenarioRequest struct {
	Profile             PatientProfile       `json:"profile"`
	Interventions       []string             `json:"interventions"`
	TimeHorizonYears    int                  `json:"time_horizon_years"`
	SuspectedConditions []SuspectedCondition `json:"suspected_conditions,omitempty"`
	UnmappedConditions  []string             `json:"unmapped_conditions,omitempty"`
}

// PathwayNode is one state in the care pathway graph.
type PathwayNode struct {
	ID          string         `json:"id"`
	Label       string         `json:"label"`
	Role        NodeRole       `json:"node_type"`
	Probability float64        `json:"probability"`
	AnnualCost  float64        `json:"annual_cost"`
	OOPEstimate float64        `json:"oop_estimate"`
	Year        int            `json:"year"`
	Provenance  NodeProvenance `json:"provenance"`
}

// PathwayEdge is a directed transition between two pathway nodes.
// Probability is the conditional per-edge probability, not the joint
// probability of reaching the target.
type PathwayEdge struct {
	Source      string   `json:"source"`
	Target      string   `json:"target"`
	Role        EdgeRole `json:"edge_type"`
	Probability float64  `json:"probability"`
	Label       string   `json:"label"`
}

// PathwayGraph is the complete output of one simulation call. It is never
// mutated after being returned.
type PathwayGraph struct {
	Nodes     []PathwayNode `json:"nodes"`
	Edges     []PathwayEdge `json:"edges"`
	TotalCost float64       `json:"total_5yr_cost"`
	TotalOOP  float64       `json:"total_5yr_oop"`
}

// ComorbidNeighbor is one entry in a comorbidity network query result.
type ComorbidNeighbor struct {
	Condition string  `json:"condition"`
	Weight    float64 `json:"weight"`
	Label     string  `json:"label"`
}

// SimulationSession is a persisted simulation run.
type SimulationSession struct {
	ID            string         `json:"id"`
	Profile       PatientProfile `json:"profile"`
	Interventions []string       `json:"interventions"`
	Graph         *PathwayGraph  `json:"graph,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// PlanTerms describes one insurance plan's cost-sharing terms for comparison.
type PlanTerms struct {
	Name           string  `json:"name"`
	Deductible     float64 `json:"deductible"`
	Coinsurance    float64 `json:"coinsurance"`
	OOPMax         float64 `json:"oop_max"`
	MonthlyPremium float64 `json:"monthly_premium"`
}

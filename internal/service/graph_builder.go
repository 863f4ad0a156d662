package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/caregraph/caregraph-server/internal/domain"
)

// HighCostThreshold marks nodes whose annual cost flags them for attention.
const HighCostThreshold = 10000.0

// graphBuilder accumulates the nodes and edges of one simulation call. The
// seen set owns the "already created" node ids so the recursive expansion
// never re-adds a condition reached along another path. One builder per call,
// never shared.
type graphBuilder struct {
	nodes []domain.PathwayNode
	edges []domain.PathwayEdge
	seen  map[string]struct{}

	// confirmed condition keys, excluded from re-derivation during expansion
	confirmed map[string]struct{}
}

func newGraphBuilder(confirmedConditions []string) *graphBuilder {
	confirmed := make(map[string]struct{}, len(confirmedConditions))
	for _, c := range confirmedConditions {
		confirmed[c] = struct{}{}
	}
	return &graphBuilder{
		seen:      make(map[string]struct{}),
		confirmed: confirmed,
	}
}

func (b *graphBuilder) isConfirmed(condition string) bool {
	_, ok := b.confirmed[condition]
	return ok
}

func (b *graphBuilder) hasNode(id string) bool {
	_, ok := b.seen[id]
	return ok
}

// addNode appends the node unless its id already exists. Returns true when
// the node was added.
func (b *graphBuilder) addNode(node domain.PathwayNode) bool {
	if b.hasNode(node.ID) {
		return false
	}
	b.seen[node.ID] = struct{}{}
	b.nodes = append(b.nodes, node)
	return true
}

func (b *graphBuilder) addEdge(edge domain.PathwayEdge) {
	b.edges = append(b.edges, edge)
}

// finalize computes the expected-value cost totals and assembles the graph.
// Each node contributes annualCost x probability x yearsActive where a node
// created in year y is active for the remaining horizon. Branches are treated
// as independent risk contributions; sibling probabilities are deliberately
// not normalized.
func (b *graphBuilder) finalize(horizonYears int) *domain.PathwayGraph {
	var totalCost, totalOOP float64
	for _, node := range b.nodes {
		yearsActive := horizonYears - node.Year + 1
		if yearsActive < 1 {
			yearsActive = 1
		}
		totalCost += node.AnnualCost * node.Probability * float64(yearsActive)
		totalOOP += node.OOPEstimate * node.Probability * float64(yearsActive)
	}

	nodes := b.nodes
	if nodes == nil {
		nodes = []domain.PathwayNode{}
	}
	edges := b.edges
	if edges == nil {
		edges = []domain.PathwayEdge{}
	}
	return &domain.PathwayGraph{
		Nodes:     nodes,
		Edges:     edges,
		TotalCost: round2(totalCost),
		TotalOOP:  round2(totalOOP),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func currentNodeID(condition string) string {
	return "current_" + condition
}

func suspectedNodeID(condition string) string {
	return "suspected_" + condition
}

func futureNodeID(condition string, year int) string {
	return fmt.Sprintf("future_%s_y%d", condition, year)
}

func interventionNodeID(intervention string) string {
	return "intervention_" + intervention
}

// edgeRateLabel renders a conditional per-edge probability as a
// percent-per-year display string.
func edgeRateLabel(prob float64) string {
	return fmt.Sprintf("%.0f%% / yr", prob*100)
}

// slugify folds a free-text condition description into a node-id-safe key.
func slugify(text string) string {
	var sb strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && sb.Len() > 0 {
				sb.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(sb.String(), "_")
}

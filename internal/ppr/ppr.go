// Package ppr computes Personalized PageRank over a transaction graph to
// measure how strongly a target address connects to a seed set (e.g. OFAC
// SDN addresses, known mixers). This project has no Go graph/PageRank
// library in its dependency set, so this is a direct power-iteration
// implementation over plain adjacency maps, mirroring networkx.pagerank's
// personalization-vector API shape without depending on it.
package ppr

import (
	"strings"

	"github.com/rawblock/evm-risk-engine/pkg/models"
)

const epsilon = 1e-6

// Graph is the directed weighted adjacency PPR walks over, built once per
// analysis and reused for every seed-set query.
type Graph struct {
	nodes map[string]bool
	out   map[string]map[string]float64
	in    map[string]map[string]float64
}

// RawEdge is a minimal (from,to,weight) triple used to build a Graph
// without going through a full ScoringGraph — the rule evaluator builds a
// small per-target graph from just that address's own transaction history.
type RawEdge struct {
	From   string
	To     string
	Weight float64
}

// BuildFromEdges constructs a Graph from a flat edge list.
func BuildFromEdges(edges []RawEdge) *Graph {
	pg := &Graph{nodes: map[string]bool{}, out: map[string]map[string]float64{}, in: map[string]map[string]float64{}}
	for _, e := range edges {
		from := strings.ToLower(e.From)
		to := strings.ToLower(e.To)
		if from == "" || to == "" {
			continue
		}
		pg.nodes[from] = true
		pg.nodes[to] = true
		if pg.out[from] == nil {
			pg.out[from] = map[string]float64{}
		}
		if pg.in[to] == nil {
			pg.in[to] = map[string]float64{}
		}
		weight := e.Weight
		if weight <= 0 {
			weight = 1
		}
		pg.out[from][to] += weight
		pg.in[to][from] += weight
	}
	return pg
}

// Build constructs a Graph from a ScoringGraph's edges.
func Build(g *models.ScoringGraph) *Graph {
	pg := &Graph{nodes: map[string]bool{}, out: map[string]map[string]float64{}, in: map[string]map[string]float64{}}
	for _, n := range g.Nodes {
		pg.nodes[strings.ToLower(n.Address)] = true
	}
	for _, e := range g.Edges {
		from := strings.ToLower(e.FromAddress)
		to := strings.ToLower(e.ToAddress)
		if from == "" || to == "" {
			continue
		}
		pg.nodes[from] = true
		pg.nodes[to] = true
		if pg.out[from] == nil {
			pg.out[from] = map[string]float64{}
		}
		if pg.in[to] == nil {
			pg.in[to] = map[string]float64{}
		}
		weight := e.USDValue
		if weight <= 0 {
			weight = 1 // unweighted fallback keeps the walk well-defined for zero-valued edges
		}
		pg.out[from][to] += weight
		pg.in[to][from] += weight
	}
	return pg
}

// Has reports whether address is a node in the graph.
func (g *Graph) Has(address string) bool {
	return g.nodes[strings.ToLower(address)]
}

// Score runs personalized PageRank with teleportation mass spread evenly
// over sourceAddresses and returns target's stationary score. Damping
// alpha=0.85, capped at 100 iterations, converges when the L1 change
// between iterations drops below 1e-6 — matching networkx.pagerank's
// default tolerance.
func (g *Graph) Score(target string, sourceAddresses []string, damping float64, maxIter int) float64 {
	target = strings.ToLower(target)
	if !g.Has(target) {
		return 0
	}

	var validSources []string
	for _, a := range sourceAddresses {
		a = strings.ToLower(a)
		if g.Has(a) {
			validSources = append(validSources, a)
		}
	}
	if len(validSources) == 0 {
		return 0
	}

	personalization := make(map[string]float64, len(g.nodes))
	mass := 1.0 / float64(len(validSources))
	for _, a := range validSources {
		personalization[a] += mass
	}

	rank := make(map[string]float64, len(g.nodes))
	for n := range g.nodes {
		rank[n] = personalization[n]
	}

	n := len(g.nodes)
	if n == 0 {
		return 0
	}

	for iter := 0; iter < maxIter; iter++ {
		next := make(map[string]float64, n)
		// dangling mass: nodes with no outgoing edges redistribute their
		// rank according to the personalization vector, as networkx does.
		var danglingMass float64
		for node := range g.nodes {
			if len(g.out[node]) == 0 {
				danglingMass += rank[node]
			}
		}

		for node := range g.nodes {
			next[node] = (1-damping)*personalization[node] + damping*danglingMass*personalization[node]
		}
		for from, tos := range g.out {
			total := 0.0
			for _, w := range tos {
				total += w
			}
			if total <= 0 {
				continue
			}
			for to, w := range tos {
				next[to] += damping * rank[from] * (w / total)
			}
		}

		var delta float64
		for node := range g.nodes {
			d := next[node] - rank[node]
			if d < 0 {
				d = -d
			}
			delta += d
		}
		rank = next
		if delta < epsilon {
			break
		}
	}

	return rank[target]
}

// ConnectionRisk blends sanctioned-address PPR and mixer PPR into one
// reported risk band. Note: this reporting band is informational only —
// the E-102 rule's FIRE threshold is a fixed 0.05 on the combined total,
// evaluated independently of this function's "high"/"medium"/"low" labels.
type ConnectionRisk struct {
	SDNPPR      float64
	MixerPPR    float64
	TotalPPR    float64
	RiskLevel   string
}

// CalculateConnectionRisk computes the 0.6/0.4-weighted blend of SDN and
// mixer PPR scores for target.
func (g *Graph) CalculateConnectionRisk(target string, damping float64, maxIter int, sdnAddresses, mixerAddresses []string) ConnectionRisk {
	sdnPPR := g.Score(target, sdnAddresses, damping, maxIter)
	mixerPPR := g.Score(target, mixerAddresses, damping, maxIter)
	total := sdnPPR*0.6 + mixerPPR*0.4

	level := "low"
	switch {
	case total >= 0.1:
		level = "high"
	case total >= 0.05:
		level = "medium"
	}

	return ConnectionRisk{SDNPPR: sdnPPR, MixerPPR: mixerPPR, TotalPPR: total, RiskLevel: level}
}

// Package graph builds FlowGraph and ScoringGraph views over collected
// transactions and assigns each node's reputation-derived role label.
package graph

import (
	"github.com/rawblock/evm-risk-engine/internal/lists"
	"github.com/rawblock/evm-risk-engine/pkg/models"
)

// Labeler assigns a node's role from the reputation lists, in fixed
// precedence order: mixer > cex > bridge > scam > unknown. Contract and
// token addresses are not distinguished: unless listed, they label as
// unknown. This is the single place that precedence is decided; nothing
// else in the engine re-derives it.
type Labeler struct {
	lists *lists.Loader
}

// NewLabeler returns a Labeler backed by the given list loader.
func NewLabeler(l *lists.Loader) *Labeler {
	return &Labeler{lists: l}
}

// Label returns the role and whether the address is sanctioned/mixer, used
// to populate a Node's Role/IsSanctioned/IsMixer fields.
func (lb *Labeler) Label(address string) (role string, sanctioned bool, mixer bool) {
	sanctioned = lb.lists.Contains(lists.SDN, address)
	mixer = lb.lists.Contains(lists.Mixer, address)

	switch {
	case mixer:
		role = "mixer"
	case lb.lists.Contains(lists.CEX, address):
		role = "cex"
	case lb.lists.Contains(lists.Bridge, address):
		role = "bridge"
	case lb.lists.Contains(lists.Scam, address):
		role = "scam"
	default:
		role = "unknown"
	}
	return role, sanctioned, mixer
}

// ApplyLabels labels every node in place, leaving the seed node's existing
// "source" role untouched.
func (lb *Labeler) ApplyLabels(g *models.ScoringGraph) {
	for i := range g.Nodes {
		if g.Nodes[i].Role == "source" {
			continue
		}
		role, sanctioned, mixer := lb.Label(g.Nodes[i].Address)
		g.Nodes[i].Role = role
		g.Nodes[i].IsSanctioned = sanctioned
		g.Nodes[i].IsMixer = mixer
	}
}

// BuildFlowGraph reduces a ScoringGraph down to a single-address,
// single-direction FlowGraph view: only edges touching seed are kept, and
// nodes are deduplicated on (chain_id, address) as HasNode already
// guarantees for the source graph.
func BuildFlowGraph(g *models.ScoringGraph, seed string, direction string) models.FlowGraph {
	flow := models.FlowGraph{SeedAddress: seed, ChainID: g.ChainID}

	seen := map[string]bool{seed: true}
	flow.Nodes = append(flow.Nodes, nodeFor(g, seed))

	for _, e := range g.Edges {
		var counterparty string
		switch direction {
		case "inbound":
			if e.ToAddress != seed {
				continue
			}
			counterparty = e.FromAddress
		default:
			if e.FromAddress != seed {
				continue
			}
			counterparty = e.ToAddress
		}

		flow.Edges = append(flow.Edges, e)
		if !seen[counterparty] {
			seen[counterparty] = true
			flow.Nodes = append(flow.Nodes, nodeFor(g, counterparty))
		}
	}

	return flow
}

func nodeFor(g *models.ScoringGraph, address string) models.Node {
	for _, n := range g.Nodes {
		if n.Address == address {
			return n
		}
	}
	return models.Node{ChainID: g.ChainID, Address: address, Role: "unknown"}
}

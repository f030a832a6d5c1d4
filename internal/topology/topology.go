// Package topology detects layering chains (successive hops of
// similarly-sized transfers) and value cycles over a transaction graph,
// optionally partitioned by token so layering across different assets
// isn't mistaken for one chain.
package topology

import "strings"

// Edge is the minimal per-transaction shape topology detection needs.
type Edge struct {
	From     string
	To       string
	Token    string // asset_contract; "" for native transfers
	USDValue float64
}

type foldedGraph struct {
	out map[string]map[string]float64
}

func fold(edges []Edge) *foldedGraph {
	g := &foldedGraph{out: map[string]map[string]float64{}}
	for _, e := range edges {
		from := strings.ToLower(e.From)
		to := strings.ToLower(e.To)
		if from == "" || to == "" {
			continue
		}
		if g.out[from] == nil {
			g.out[from] = map[string]float64{}
		}
		g.out[from][to] += e.USDValue
	}
	return g
}

func byToken(edges []Edge) map[string]*foldedGraph {
	byTok := map[string][]Edge{}
	for _, e := range edges {
		tok := strings.ToLower(e.Token)
		byTok[tok] = append(byTok[tok], e)
	}
	out := make(map[string]*foldedGraph, len(byTok))
	for tok, es := range byTok {
		out[tok] = fold(es)
	}
	return out
}

const maxChainDepth = 10

// LayeringSpec parameterizes a layering-chain detection rule.
type LayeringSpec struct {
	SameToken           bool
	HopLengthGTE        int
	HopAmountDeltaPctLTE float64
	MinUSDValue         float64
}

// EvaluateLayeringChain reports whether target is the start of a layering
// chain of at least HopLengthGTE hops, each transfer at least MinUSDValue,
// with every hop's value within HopAmountDeltaPctLTE percent of the first
// hop's value.
func EvaluateLayeringChain(target string, edges []Edge, spec LayeringSpec) bool {
	target = strings.ToLower(target)

	if spec.SameToken {
		for _, g := range byToken(edges) {
			if findLayeringChain(target, g, spec) {
				return true
			}
		}
		return false
	}
	return findLayeringChain(target, fold(edges), spec)
}

func findLayeringChain(start string, g *foldedGraph, spec LayeringSpec) bool {
	if _, ok := g.out[start]; !ok {
		return false
	}

	visited := map[string]bool{start: true}
	path := []string{start}
	weights := []float64{}

	var dfs func(current string) bool
	dfs = func(current string) bool {
		if len(path) >= spec.HopLengthGTE+1 {
			if checkAmountDelta(weights, spec.HopAmountDeltaPctLTE) {
				return true
			}
		}
		if len(path) >= maxChainDepth {
			return false
		}
		for succ, w := range g.out[current] {
			if visited[succ] || w < spec.MinUSDValue {
				continue
			}
			visited[succ] = true
			path = append(path, succ)
			weights = append(weights, w)

			if dfs(succ) {
				return true
			}

			path = path[:len(path)-1]
			weights = weights[:len(weights)-1]
			delete(visited, succ)
		}
		return false
	}
	return dfs(start)
}

func checkAmountDelta(amounts []float64, maxDeltaPct float64) bool {
	if len(amounts) < 2 {
		return true
	}
	base := amounts[0]
	for _, a := range amounts[1:] {
		if base == 0 {
			return false
		}
		deltaPct := ((a - base) / base) * 100
		if deltaPct < 0 {
			deltaPct = -deltaPct
		}
		if deltaPct > maxDeltaPct {
			return false
		}
	}
	return true
}

// CycleSpec parameterizes a cycle-detection rule.
type CycleSpec struct {
	SameToken        bool
	CycleLengthIn    []int
	CycleTotalUSDGTE float64
}

// EvaluateCycle reports whether target participates in a cycle of one of
// the requested lengths whose summed edge weight reaches CycleTotalUSDGTE.
func EvaluateCycle(target string, edges []Edge, spec CycleSpec) bool {
	target = strings.ToLower(target)

	if spec.SameToken {
		for _, g := range byToken(edges) {
			if findCycle(target, g, spec) {
				return true
			}
		}
		return false
	}
	return findCycle(target, fold(edges), spec)
}

func findCycle(start string, g *foldedGraph, spec CycleSpec) bool {
	if _, ok := g.out[start]; !ok {
		return false
	}
	for _, length := range spec.CycleLengthIn {
		if findCycleOfLength(start, g, length, spec.CycleTotalUSDGTE) {
			return true
		}
	}
	return false
}

func findCycleOfLength(start string, g *foldedGraph, length int, minTotal float64) bool {
	visited := map[string]bool{start: true}
	path := []string{start}
	weights := []float64{}

	var dfs func(current string) bool
	dfs = func(current string) bool {
		if len(path) == length+1 {
			if path[len(path)-1] == start {
				var total float64
				for _, w := range weights {
					total += w
				}
				return total >= minTotal
			}
			return false
		}
		if len(path) > length+1 {
			return false
		}
		for succ, w := range g.out[current] {
			if len(path) == length {
				if succ != start {
					continue
				}
			} else if visited[succ] {
				continue
			}

			visited[succ] = true
			path = append(path, succ)
			weights = append(weights, w)

			if dfs(succ) {
				return true
			}

			path = path[:len(path)-1]
			weights = weights[:len(weights)-1]
			delete(visited, succ)
		}
		return false
	}
	return dfs(start)
}

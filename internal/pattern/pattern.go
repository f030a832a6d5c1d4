// Package pattern folds a scoring graph's edges into a weighted directed
// multigraph-as-DAG (multi-edges summed into one weight per ordered pair)
// and detects fan-in, fan-out, stacking, and bipartite structuring
// patterns over it.
package pattern

import (
	"strings"

	"github.com/rawblock/evm-risk-engine/pkg/models"
)

// Detector holds the folded weighted adjacency built from a ScoringGraph.
type Detector struct {
	out map[string]map[string]float64 // from -> to -> summed USD weight
	in  map[string]map[string]float64 // to -> from -> summed USD weight
}

// Build folds every edge's USD value into the (from,to) pair, summing
// repeated edges between the same two addresses into one weight.
func Build(g *models.ScoringGraph) *Detector {
	d := &Detector{out: map[string]map[string]float64{}, in: map[string]map[string]float64{}}
	for _, e := range g.Edges {
		from := strings.ToLower(e.FromAddress)
		to := strings.ToLower(e.ToAddress)
		if from == "" || to == "" || e.USDValue <= 0 {
			continue
		}
		if d.out[from] == nil {
			d.out[from] = map[string]float64{}
		}
		if d.in[to] == nil {
			d.in[to] = map[string]float64{}
		}
		d.out[from][to] += e.USDValue
		d.in[to][from] += e.USDValue
	}
	return d
}

// FanIn returns the summed weight of every edge arriving at vertex.
func (d *Detector) FanIn(vertex string) float64 {
	var total float64
	for _, w := range d.in[strings.ToLower(vertex)] {
		total += w
	}
	return total
}

// FanInCount returns the number of distinct predecessors of vertex.
func (d *Detector) FanInCount(vertex string) int {
	return len(d.in[strings.ToLower(vertex)])
}

// FanOut returns the summed weight of every edge leaving vertex.
func (d *Detector) FanOut(vertex string) float64 {
	var total float64
	for _, w := range d.out[strings.ToLower(vertex)] {
		total += w
	}
	return total
}

// FanOutCount returns the number of distinct successors of vertex.
func (d *Detector) FanOutCount(vertex string) int {
	return len(d.out[strings.ToLower(vertex)])
}

// GatherScatter is the combined in+out weight, a single score for "this
// address is a pass-through hub".
func (d *Detector) GatherScatter(vertex string) float64 {
	return d.FanIn(vertex) + d.FanOut(vertex)
}

// FanInResult is the outcome of a fan-in structuring check.
type FanInResult struct {
	Detected    bool
	Count       int
	TotalValue  float64
	Sources     []string
	MinEachSeen float64
}

// DetectFanIn flags vertex if at least minCount predecessors each send at
// least minEachValue, summing to at least minTotalValue.
func (d *Detector) DetectFanIn(vertex string, minCount int, minTotalValue, minEachValue float64) FanInResult {
	vertex = strings.ToLower(vertex)
	var sources []string
	var total float64
	minEach := -1.0

	for pred, w := range d.in[vertex] {
		if w >= minEachValue {
			sources = append(sources, pred)
			total += w
			if minEach < 0 || w < minEach {
				minEach = w
			}
		}
	}
	if minEach < 0 {
		minEach = 0
	}

	detected := len(sources) >= minCount && total >= minTotalValue && minEach >= minEachValue
	return FanInResult{Detected: detected, Count: len(sources), TotalValue: total, Sources: sources, MinEachSeen: minEach}
}

// FanOutResult is the outcome of a fan-out structuring check.
type FanOutResult struct {
	Detected    bool
	Count       int
	TotalValue  float64
	Targets     []string
	MinEachSeen float64
}

// DetectFanOut flags vertex if at least minCount successors each receive at
// least minEachValue, summing to at least minTotalValue.
func (d *Detector) DetectFanOut(vertex string, minCount int, minTotalValue, minEachValue float64) FanOutResult {
	vertex = strings.ToLower(vertex)
	var targets []string
	var total float64
	minEach := -1.0

	for succ, w := range d.out[vertex] {
		if w >= minEachValue {
			targets = append(targets, succ)
			total += w
			if minEach < 0 || w < minEach {
				minEach = w
			}
		}
	}
	if minEach < 0 {
		minEach = 0
	}

	detected := len(targets) >= minCount && total >= minTotalValue && minEach >= minEachValue
	return FanOutResult{Detected: detected, Count: len(targets), TotalValue: total, Targets: targets, MinEachSeen: minEach}
}

// StackPath is one discovered layering path through the fold graph.
type StackPath struct {
	Path       []string
	Length     int
	TotalValue float64
}

const maxStackDepth = 10

// DetectStack DFS-walks successors from start, depth-capped at 10, emitting
// every simple path of at least minLength addresses (start included, so
// minLength-1 hops) whose summed weight reaches minPathValue.
func (d *Detector) DetectStack(start string, minLength int, minPathValue float64) []StackPath {
	start = strings.ToLower(start)
	if _, ok := d.out[start]; !ok {
		if _, ok := d.in[start]; !ok {
			return nil
		}
	}

	var results []StackPath
	visited := map[string]bool{start: true}
	path := []string{start}

	var dfs func(current string, value float64)
	dfs = func(current string, value float64) {
		if len(path) >= minLength && value >= minPathValue {
			cp := append([]string(nil), path...)
			results = append(results, StackPath{Path: cp, Length: len(cp), TotalValue: value})
		}
		if len(path) >= maxStackDepth {
			return
		}
		for succ, w := range d.out[current] {
			if visited[succ] {
				continue
			}
			visited[succ] = true
			path = append(path, succ)
			dfs(succ, value+w)
			path = path[:len(path)-1]
			delete(visited, succ)
		}
	}
	dfs(start, 0)
	return results
}

// BipartiteResult is the outcome of a two-coloring check over the
// undirected projection of the fold graph restricted to vertices.
type BipartiteResult struct {
	IsBipartite        bool
	Layer1             []string
	Layer2             []string
	EdgesBetweenLayers int
}

// DetectBipartite two-colors the undirected projection restricted to
// vertices (or the whole graph if vertices is empty) via BFS, the standard
// graph-coloring bipartiteness test.
func (d *Detector) DetectBipartite(vertices []string) BipartiteResult {
	allowed := map[string]bool{}
	if len(vertices) == 0 {
		for v := range d.out {
			allowed[v] = true
		}
		for v := range d.in {
			allowed[v] = true
		}
	} else {
		for _, v := range vertices {
			allowed[strings.ToLower(v)] = true
		}
	}

	adj := map[string]map[string]bool{}
	addEdge := func(a, b string) {
		if adj[a] == nil {
			adj[a] = map[string]bool{}
		}
		if adj[b] == nil {
			adj[b] = map[string]bool{}
		}
		adj[a][b] = true
		adj[b][a] = true
	}
	for from, tos := range d.out {
		if !allowed[from] {
			continue
		}
		for to := range tos {
			if allowed[to] {
				addEdge(from, to)
			}
		}
	}

	color := map[string]int{}
	for v := range allowed {
		if _, seen := color[v]; seen {
			continue
		}
		color[v] = 0
		queue := []string{v}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for nbr := range adj[cur] {
				if c, seen := color[nbr]; seen {
					if c == color[cur] {
						return BipartiteResult{IsBipartite: false}
					}
					continue
				}
				color[nbr] = 1 - color[cur]
				queue = append(queue, nbr)
			}
		}
	}

	var layer1, layer2 []string
	for v, c := range color {
		if c == 0 {
			layer1 = append(layer1, v)
		} else {
			layer2 = append(layer2, v)
		}
	}

	edgesBetween := 0
	for from, tos := range d.out {
		if !allowed[from] {
			continue
		}
		for to := range tos {
			if !allowed[to] {
				continue
			}
			if color[from] != color[to] {
				edgesBetween++
			}
		}
	}

	return BipartiteResult{IsBipartite: true, Layer1: layer1, Layer2: layer2, EdgesBetweenLayers: edgesBetween}
}

// Package mlscore blends the rule-based score with a small feature-based
// score (connectivity to seed sets, structuring patterns, timing/weight
// skew) into one hybrid number. It is optional: the engine only computes it
// when a caller asks for hybrid scoring, since it needs the full
// multi-hop graph rather than just a target address's own history.
package mlscore

import (
	"math"
	"strings"

	"github.com/rawblock/evm-risk-engine/internal/pattern"
	"github.com/rawblock/evm-risk-engine/internal/ppr"
)

// TxRef is the minimal per-transaction shape the normalizer needs: enough
// to tell whether a transaction flowed into or out of a vertex, and when,
// and for how much.
type TxRef struct {
	From      string
	To        string
	Timestamp int64
	USDValue  float64
}

// NormalizeTimestamp scores how tightly a vertex's inbound and outbound
// activity cluster together in time: 1.0 means inflow and outflow happen
// at essentially the same moment (pass-through behavior), 0.0 means they
// are spread far apart or there isn't enough data to tell.
func NormalizeTimestamp(vertex string, txs []TxRef) float64 {
	vertex = strings.ToLower(vertex)
	var tsIn, tsOut []int64
	for _, tx := range txs {
		if tx.Timestamp <= 0 {
			continue
		}
		switch vertex {
		case strings.ToLower(tx.To):
			tsIn = append(tsIn, tx.Timestamp)
		case strings.ToLower(tx.From):
			tsOut = append(tsOut, tx.Timestamp)
		}
	}
	if len(tsIn) == 0 || len(tsOut) == 0 {
		return 0
	}

	inSpread := spread(tsIn)
	outSpread := spread(tsOut)
	timeDiff := math.Abs(meanI64(tsOut) - meanI64(tsIn))

	var normalizedDiff float64
	if inSpread+outSpread > 0 {
		normalizedDiff = timeDiff / (inSpread + outSpread + 1)
	} else {
		normalizedDiff = math.Min(1.0, timeDiff/86400)
	}
	return 1.0 - math.Min(1.0, normalizedDiff)
}

// NormalizeWeight scores how imbalanced a vertex's inbound vs. outbound USD
// value is, both in total and in per-transaction average — a vertex that
// receives and forwards roughly equal value looks like a relay and scores
// near 0, a strongly lopsided one scores close to 1; a vertex with no
// inbound or no outbound value scores 0.
func NormalizeWeight(vertex string, txs []TxRef) float64 {
	vertex = strings.ToLower(vertex)
	var weightsIn, weightsOut []float64
	for _, tx := range txs {
		if tx.USDValue <= 0 {
			continue
		}
		switch vertex {
		case strings.ToLower(tx.To):
			weightsIn = append(weightsIn, tx.USDValue)
		case strings.ToLower(tx.From):
			weightsOut = append(weightsOut, tx.USDValue)
		}
	}
	if len(weightsIn) == 0 || len(weightsOut) == 0 {
		return 0
	}

	totalIn := sumF(weightsIn)
	totalOut := sumF(weightsOut)
	avgIn := totalIn / float64(len(weightsIn))
	avgOut := totalOut / float64(len(weightsOut))

	var imbalance float64
	if totalIn+totalOut > 0 {
		imbalance = math.Abs(totalIn/(totalIn+totalOut) - totalOut/(totalIn+totalOut))
	}

	var avgImbalance float64
	if avgIn+avgOut > 0 {
		avgImbalance = math.Abs(avgIn-avgOut) / (avgIn + avgOut)
	}

	return math.Min(1.0, (imbalance+avgImbalance)/2.0)
}

func spread(vals []int64) float64 {
	if len(vals) < 2 {
		return 0
	}
	min, max := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return float64(max - min)
}

func meanI64(vals []int64) float64 {
	var sum int64
	for _, v := range vals {
		sum += v
	}
	return float64(sum) / float64(len(vals))
}

func sumF(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum
}

// PatternResult reports which structuring patterns a target participates
// in and the pattern-contribution score derived from them.
type PatternResult struct {
	Score     float64
	Detected  []string
	FanIn     pattern.FanInResult
	FanOut    pattern.FanOutResult
	Stack     []pattern.StackPath
	Bipartite pattern.BipartiteResult
}

// CalculatePatternScore runs every structuring detector against target
// using one fixed set of thresholds and sums a fixed per-pattern
// contribution, capped at 100.
func CalculatePatternScore(det *pattern.Detector, target string) PatternResult {
	fanIn := det.DetectFanIn(target, 3, 1000, 100)
	fanOut := det.DetectFanOut(target, 3, 1000, 100)
	stack := det.DetectStack(target, 3, 1000)
	bipartite := det.DetectBipartite(nil)

	var score float64
	var detected []string
	if fanIn.Detected {
		score += 15
		detected = append(detected, "fan_in")
	}
	if fanOut.Detected {
		score += 15
		detected = append(detected, "fan_out")
	}
	if fanIn.Detected && fanOut.Detected {
		score += 10
		detected = append(detected, "gather_scatter")
	}
	if len(stack) > 0 {
		score += 20
		detected = append(detected, "stack")
	}
	if bipartite.IsBipartite {
		score += 15
		detected = append(detected, "bipartite")
	}

	return PatternResult{
		Score:     math.Min(100, score),
		Detected:  detected,
		FanIn:     fanIn,
		FanOut:    fanOut,
		Stack:     stack,
		Bipartite: bipartite,
	}
}

// HybridResult is the full breakdown behind one blended score.
type HybridResult struct {
	FinalScore   float64
	RuleScore    float64
	MLScore      float64
	PPRScore     float64 // 0-100
	PatternScore float64 // 0-100
	TimingScore  float64 // 0-20
	WeightScore  float64 // 0-20
	NTheta       float64
	NOmega       float64
	Detected     []string
}

// Weights configures the rule/ML blend; both should sum to 1 but the
// function doesn't enforce it, so callers can experiment.
type Weights struct {
	Rule float64
	ML   float64
}

// DefaultWeights matches the original rule-first blend: mostly
// rule-based, with a feature-based nudge.
var DefaultWeights = Weights{Rule: 0.7, ML: 0.3}

// CalculateHybridScore blends ruleScore with a feature-based ML score
// built from PPR connectivity, structuring patterns, and timing/weight
// skew around target.
func CalculateHybridScore(
	ruleScore float64,
	target string,
	pprGraph *ppr.Graph,
	patternDetector *pattern.Detector,
	txs []TxRef,
	sourceAddresses, sdnAddresses, mixerAddresses []string,
	damping float64,
	maxIter int,
	w Weights,
) HybridResult {
	var pprScore float64
	if pprGraph != nil && pprGraph.Has(target) {
		connection := pprGraph.CalculateConnectionRisk(target, damping, maxIter, sdnAddresses, mixerAddresses)
		source := pprGraph.Score(target, sourceAddresses, damping, maxIter)
		pprScore = (source*0.4 + connection.SDNPPR*0.4 + connection.MixerPPR*0.2) * 100
	}

	var patternResult PatternResult
	if patternDetector != nil {
		patternResult = CalculatePatternScore(patternDetector, target)
	}

	nTheta := NormalizeTimestamp(target, txs)
	nOmega := NormalizeWeight(target, txs)
	timingScore := nTheta * 20
	weightScore := nOmega * 20

	mlScore := math.Min(100, pprScore*0.3+patternResult.Score*0.4+timingScore*0.15+weightScore*0.15)

	final := math.Min(100, ruleScore*w.Rule+mlScore*w.ML)

	return HybridResult{
		FinalScore:   final,
		RuleScore:    ruleScore,
		MLScore:      mlScore,
		PPRScore:     pprScore,
		PatternScore: patternResult.Score,
		TimingScore:  timingScore,
		WeightScore:  weightScore,
		NTheta:       nTheta,
		NOmega:       nOmega,
		Detected:     patternResult.Detected,
	}
}

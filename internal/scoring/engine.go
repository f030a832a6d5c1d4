package scoring

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rawblock/evm-risk-engine/internal/bucket"
	"github.com/rawblock/evm-risk-engine/internal/collector"
	"github.com/rawblock/evm-risk-engine/internal/graph"
	"github.com/rawblock/evm-risk-engine/internal/history"
	"github.com/rawblock/evm-risk-engine/internal/lists"
	"github.com/rawblock/evm-risk-engine/internal/rules"
	"github.com/rawblock/evm-risk-engine/pkg/models"
)

// Config bounds one Engine's behavior across every analysis it runs.
type Config struct {
	MaxHops                  int
	MaxAddressesPerDirection int
	Workers                  int
	MaxHistoryDays           int
	Damping                  float64
	MaxIter                  int
	RulesetPath              string
	ListsDir                 string
}

// DefaultConfig returns the engine's out-of-the-box tuning.
func DefaultConfig() Config {
	return Config{
		MaxHops:                  3,
		MaxAddressesPerDirection: 50,
		Workers:                  4,
		MaxHistoryDays:           30,
		Damping:                  0.85,
		MaxIter:                  100,
	}
}

// Engine wires collection, labeling, and rule evaluation into the two
// analysis surfaces: one address's full multi-hop history, and one
// transaction in isolation.
type Engine struct {
	cfg Config

	collector *collector.Collector
	labeler   *graph.Labeler
	lists     *lists.Loader
	ruleset   *rules.Loader
}

// New wires an Engine over its dependencies. The collector's IndexerClient
// and the lists/ruleset directories are provided by the caller (cmd/engine
// wires the concrete Etherscan-V2 client and on-disk paths).
func New(cfg Config, coll *collector.Collector, listLoader *lists.Loader, ruleset *rules.Loader) *Engine {
	return &Engine{
		cfg:       cfg,
		collector: coll,
		labeler:   graph.NewLabeler(listLoader),
		lists:     listLoader,
		ruleset:   ruleset,
	}
}

// AnalyzeRequest parameterizes one address analysis run.
type AnalyzeRequest struct {
	RequestID    string
	ChainID      int
	Address      string
	AnalysisType string // "basic" | "advanced"
}

// AnalyzeAddress collects an address's multi-hop transaction graph,
// evaluates every rule against every discovered transaction in
// chronological order, and aggregates the results into one risk verdict.
func (e *Engine) AnalyzeAddress(ctx context.Context, req AnalyzeRequest) (models.AddressAnalysisResult, error) {
	address := strings.ToLower(req.Address)
	includeTopology := req.AnalysisType == "advanced"

	g, collectSummary, err := e.collector.Collect(ctx, req.ChainID, address, collector.Config{
		MaxHops:                  e.cfg.MaxHops,
		MaxAddressesPerDirection: e.cfg.MaxAddressesPerDirection,
		Workers:                  e.cfg.Workers,
	})
	if err != nil {
		return models.AddressAnalysisResult{}, err
	}
	e.labeler.ApplyLabels(g)

	edges := append([]models.Edge(nil), g.Edges...)
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].Timestamp < edges[j].Timestamp })

	hist := history.New(e.cfg.MaxHistoryDays)
	bucketEval := bucket.New(e.cfg.MaxHistoryDays)
	evaluator := rules.NewEvaluator(e.ruleset, e.lists, hist, bucketEval, e.cfg.Damping, e.cfg.MaxIter)

	if len(edges) == 0 {
		return emptyResult(req), nil
	}

	var allFired []models.FiredRule
	var txScores []float64
	timeline := make([]models.TimelineEntry, 0, len(edges))
	var totalVolume float64
	mixerExposure, sanctionedExposure, highValueCount, burstPatterns := 0, 0, 0, 0

	for _, edge := range edges {
		txData := txDataFor(edge, address, e.lists)
		fired := evaluator.EvaluateTransaction(txData, includeTopology, edge.Timestamp)

		txScore := ScoreTransaction(fired)
		txScores = append(txScores, txScore)

		ruleIDs := make([]string, 0, len(fired))
		for _, r := range fired {
			ruleIDs = append(ruleIDs, r.RuleID)
			allFired = append(allFired, models.FiredRule{
				RuleID: r.RuleID, Name: r.Name, Score: r.Score,
				Severity: r.Severity, Tags: r.Tags, TxHash: edge.TxHash,
			})
			if strings.Contains(r.RuleID, "B-101") || strings.Contains(r.RuleID, "B-102") {
				burstPatterns++
			}
		}

		timeline = append(timeline, models.TimelineEntry{
			Timestamp: edge.Timestamp, TxHash: edge.TxHash,
			RiskScore: minF(100, txScore), FiredRules: ruleIDs,
		})

		totalVolume += edge.USDValue
		if b, _ := txData["is_mixer"].(bool); b {
			mixerExposure++
		}
		if b, _ := txData["is_sanctioned"].(bool); b {
			sanctionedExposure++
		}
		if edge.USDValue >= 1000 {
			highValueCount++
		}
	}

	finalScore := FinalScore(txScores)
	riskLevel := DetermineRiskLevel(finalScore)
	aggregated := AggregateFiredRules(allFired)
	riskTags := GenerateRiskTags(aggregated)
	ruleNames := ruleNameMap(e.ruleset)
	explanation := GenerateExplanation(ruleNames, aggregated, riskLevel)

	return models.AddressAnalysisResult{
		RequestID:    req.RequestID,
		Address:      address,
		ChainID:      req.ChainID,
		RiskScore:    finalScore,
		RiskLevel:    riskLevel,
		FiredRules:   aggregated,
		RiskTags:     riskTags,
		Explanation:  explanation,
		Timeline:     timeline,
		Patterns: models.TransactionPatterns{
			MixerExposureCount:      mixerExposure,
			SanctionedExposureCount: sanctionedExposure,
			HighValueCount:          highValueCount,
			BurstPatternCount:       burstPatterns,
			TotalVolumeUSD:          totalVolume,
		},
		AnalysisType: req.AnalysisType,
		Summary: models.Summary{
			TransactionsAnalyzed: len(edges),
			AddressesVisited:     collectSummary.AddressesVisited,
			MaxHopReached:        collectSummary.MaxHopReached,
			PartialData:          collectSummary.SuppressedErrors > 0,
			SuppressedErrors:     collectSummary.SuppressedErrors,
		},
		CompletedAt: time.Now().UTC().Format("2006-01-02T15:04:05Z"),
	}, nil
}

// ScoreTransaction scores one transaction in isolation, without a
// collected multi-hop graph — used by the score-tx surface.
func (e *Engine) ScoreTransaction(ctx context.Context, tx models.Transaction) (models.TxScoreResult, error) {
	hist := history.New(e.cfg.MaxHistoryDays)
	bucketEval := bucket.New(e.cfg.MaxHistoryDays)
	evaluator := rules.NewEvaluator(e.ruleset, e.lists, hist, bucketEval, e.cfg.Damping, e.cfg.MaxIter)

	txData := rules.FromTransaction(tx, e.lists)
	fired := evaluator.EvaluateTransaction(txData, false, tx.Timestamp)

	out := make([]models.FiredRule, 0, len(fired))
	for _, r := range fired {
		out = append(out, models.FiredRule{
			RuleID: r.RuleID, Name: r.Name, Score: r.Score,
			Severity: r.Severity, Tags: r.Tags, TxHash: tx.TxHash,
		})
	}

	return models.TxScoreResult{
		TxHash:     tx.TxHash,
		Score:      ScoreTransaction(fired),
		FiredRules: out,
	}, nil
}

func txDataFor(edge models.Edge, target string, l *lists.Loader) rules.TxData {
	tx := models.Transaction{
		TxHash:      edge.TxHash,
		ChainID:     edge.ChainID,
		Timestamp:   edge.Timestamp,
		FromAddress: edge.FromAddress,
		ToAddress:   edge.ToAddress,
		TxType:      edge.TxType,
		USDValue:    edge.USDValue,
	}
	data := rules.FromTransaction(tx, l)
	data["target_address"] = target
	return data
}

func ruleNameMap(loader *rules.Loader) map[string]string {
	out := make(map[string]string)
	for _, r := range loader.Rules() {
		id := r.ID()
		if id == "" {
			continue
		}
		name, _ := r["name"].(string)
		if name == "" {
			name = id
		}
		out[id] = name
	}
	return out
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func emptyResult(req AnalyzeRequest) models.AddressAnalysisResult {
	return models.AddressAnalysisResult{
		RequestID:    req.RequestID,
		Address:      strings.ToLower(req.Address),
		ChainID:      req.ChainID,
		RiskScore:    0,
		RiskLevel:    "low",
		FiredRules:   nil,
		RiskTags:     nil,
		Explanation:  "정상 거래 패턴으로 리스크가 낮습니다.",
		Timeline:     nil,
		AnalysisType: req.AnalysisType,
		Summary:      models.Summary{},
		CompletedAt:  time.Now().UTC().Format("2006-01-02T15:04:05Z"),
	}
}

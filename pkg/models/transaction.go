package models

// TxType classifies how a transaction moved value.
type TxType string

const (
	TxNative        TxType = "NATIVE"
	TxERC20Transfer TxType = "ERC20_TRANSFER"
	TxBridge        TxType = "BRIDGE"
	TxSwap          TxType = "SWAP"
	TxUnknown       TxType = "UNKNOWN"
)

// Transaction represents a single classified EVM on-chain transfer, already
// normalized (lowercase addresses, USD-valued) for the scoring pipeline.
type Transaction struct {
	TxHash       string  `json:"txHash"`
	ChainID      int     `json:"chainId"`
	BlockHeight  uint64  `json:"blockHeight"`
	Timestamp    int64   `json:"timestamp"` // unix seconds
	FromAddress  string  `json:"fromAddress"`
	ToAddress    string  `json:"toAddress"`
	TxType       TxType  `json:"txType"`
	Amount       string  `json:"amount"` // decimal string, native units
	TokenAddress string  `json:"tokenAddress,omitempty"`
	TokenSymbol  string  `json:"tokenSymbol,omitempty"`
	USDValue     float64 `json:"usdValue"`
	IsSanctioned bool    `json:"isSanctioned,omitempty"`
	IsMixer      bool    `json:"isMixer,omitempty"`
	IsBridge     bool    `json:"isBridge,omitempty"`
	IsKnownScam  bool    `json:"isKnownScam,omitempty"`
}

// Node is a single address participating in a flow or scoring graph.
type Node struct {
	ChainID       int     `json:"chainId"`
	Address       string  `json:"address"` // canonical lowercase, 0x-prefixed
	HopNumber     int     `json:"hopNumber"`
	ValueReceived float64 `json:"valueReceived"`
	ValueSent     float64 `json:"valueSent"`
	Role          string  `json:"role"` // source/mixer/cex/bridge/scam/unknown
	Label         string  `json:"label,omitempty"`
	IsSanctioned  bool    `json:"isSanctioned,omitempty"`
	IsMixer       bool    `json:"isMixer,omitempty"`
}

// Edge is a single fund movement discovered during collection. Edges are
// never deduplicated — the same (from,to) pair may appear many times.
type Edge struct {
	FromAddress string  `json:"fromAddress"`
	ToAddress   string  `json:"toAddress"`
	TxHash      string  `json:"txHash"`
	ChainID     int     `json:"chainId"`
	USDValue    float64 `json:"usdValue"`
	Timestamp   int64   `json:"timestamp"`
	HopNumber   int     `json:"hopNumber"`
	TxType      TxType  `json:"txType"`
}

// FlowGraph is the single-address fund-flow view built by the graph builder
// for one direction (inbound or outbound) of one seed address.
type FlowGraph struct {
	SeedAddress string `json:"seedAddress"`
	ChainID     int    `json:"chainId"`
	Nodes       []Node `json:"nodes"`
	Edges       []Edge `json:"edges"`
}

// ScoringGraph is the richer multi-hop graph consumed by pattern detection,
// topology evaluation and PPR — nodes carry more attributes than FlowGraph.
type ScoringGraph struct {
	SeedAddresses []string `json:"seedAddresses"`
	ChainID       int      `json:"chainId"`
	Nodes         []Node   `json:"nodes"`
	Edges         []Edge   `json:"edges"`
	MaxHopReached int      `json:"maxHopReached"`
}

// HasNode reports whether address is already present on this chain.
func (g *ScoringGraph) HasNode(chainID int, address string) bool {
	for _, n := range g.Nodes {
		if n.ChainID == chainID && n.Address == address {
			return true
		}
	}
	return false
}

// Rule is a single detection rule loaded from the ruleset file.
type Rule struct {
	ID         string                 `yaml:"id" json:"id"`
	Name       string                 `yaml:"name" json:"name"`
	Score      float64                `yaml:"score" json:"score"`
	Severity   string                 `yaml:"severity" json:"severity"`
	Tags       []string               `yaml:"tags" json:"tags"`
	Match      map[string]interface{} `yaml:"match" json:"match"`
	Conditions map[string]interface{} `yaml:"conditions" json:"conditions"`
	Exceptions map[string]interface{} `yaml:"exceptions" json:"exceptions"`
	Window     *WindowSpec            `yaml:"window" json:"window,omitempty"`
	Bucket     *BucketSpec            `yaml:"bucket" json:"bucket,omitempty"`
	Dispatch   string                 `yaml:"dispatch" json:"dispatch,omitempty"` // "" | "window" | "bucket" | "ppr" | "topology"
}

// WindowSpec parameterizes a sliding-window aggregation rule.
type WindowSpec struct {
	Seconds     int64  `yaml:"seconds" json:"seconds"`
	Field       string `yaml:"field" json:"field"`
	Aggregation string `yaml:"aggregation" json:"aggregation"` // sum_gte/count_gte/every_gte/any_gte/avg_gte/distinct_gte
	Threshold   float64 `yaml:"threshold" json:"threshold"`
}

// BucketSpec parameterizes a fixed-size bucket aggregation rule.
type BucketSpec struct {
	Size        int     `yaml:"size" json:"size"`
	Field       string  `yaml:"field" json:"field"`
	Aggregation string  `yaml:"aggregation" json:"aggregation"`
	Threshold   float64 `yaml:"threshold" json:"threshold"`
	Ranges      []BucketRange `yaml:"ranges" json:"ranges,omitempty"`
}

// BucketRange is a half-open [Min,Max) numeric interval used by the dynamic
// bucket rule B-501; the first matching range wins.
type BucketRange struct {
	Min   float64 `yaml:"min" json:"min"`
	Max   float64 `yaml:"max" json:"max"`
	Score float64 `yaml:"score" json:"score"`
	Tag   string  `yaml:"tag" json:"tag"`
}

// Ruleset is the top level of the rules YAML document.
type Ruleset struct {
	Defaults map[string]interface{} `yaml:"defaults" json:"defaults"`
	Rules    []Rule                  `yaml:"rules" json:"rules"`
}

// FiredRule is one rule that matched during evaluation of a single
// transaction or address.
type FiredRule struct {
	RuleID   string   `json:"ruleId"`
	Name     string   `json:"name"`
	Score    float64  `json:"score"`
	Severity string   `json:"severity"`
	Tags     []string `json:"tags"`
	TxHash   string   `json:"txHash,omitempty"`
}

// TimelineEntry is one transaction's contribution to an address analysis,
// in chronological order.
type TimelineEntry struct {
	Timestamp  int64    `json:"timestamp"`
	TxHash     string   `json:"txHash"`
	RiskScore  float64  `json:"riskScore"`
	FiredRules []string `json:"firedRules"` // rule ids, in fired order
}

// TransactionPatterns summarizes coarse exposure counts across every
// transaction an address analysis walked, independent of which rules fired.
type TransactionPatterns struct {
	MixerExposureCount      int     `json:"mixerExposureCount"`
	SanctionedExposureCount int     `json:"sanctionedExposureCount"`
	HighValueCount          int     `json:"highValueCount"`
	BurstPatternCount       int     `json:"burstPatternCount"`
	TotalVolumeUSD          float64 `json:"totalVolumeUsd"`
}

// AddressAnalysisResult is the final output of analyzing one address.
type AddressAnalysisResult struct {
	RequestID    string              `json:"requestId"`
	Address      string              `json:"address"`
	ChainID      int                 `json:"chainId"`
	RiskScore    float64             `json:"riskScore"`
	RiskLevel    string              `json:"riskLevel"` // low/medium/high/critical
	FiredRules   []FiredRule         `json:"firedRules"`
	RiskTags     []string            `json:"riskTags"`
	Explanation  string              `json:"explanation"`
	Timeline     []TimelineEntry     `json:"timeline"`
	Patterns     TransactionPatterns `json:"patterns"`
	AnalysisType string              `json:"analysisType"` // basic/advanced
	Summary      Summary             `json:"summary"`
	CompletedAt  string              `json:"completedAt"` // RFC3339, UTC, "Z" suffix
}

// Summary carries run metadata: counts and a partial-data flag set when the
// engine absorbed transient failures rather than surfacing them.
type Summary struct {
	TransactionsAnalyzed int  `json:"transactionsAnalyzed"`
	AddressesVisited     int  `json:"addressesVisited"`
	MaxHopReached        int  `json:"maxHopReached"`
	PartialData          bool `json:"partialData"`
	SuppressedErrors     int  `json:"suppressedErrors"`
}

// TxScoreResult is the output of scoring a single transaction in isolation
// (used by the score-tx surface, independent of address-level aggregation).
type TxScoreResult struct {
	TxHash     string      `json:"txHash"`
	Score      float64     `json:"score"`
	FiredRules []FiredRule `json:"firedRules"`
}

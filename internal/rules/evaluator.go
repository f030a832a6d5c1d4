package rules

import (
	"strings"

	"github.com/rawblock/evm-risk-engine/internal/bucket"
	"github.com/rawblock/evm-risk-engine/internal/history"
	"github.com/rawblock/evm-risk-engine/internal/lists"
	"github.com/rawblock/evm-risk-engine/internal/ppr"
	"github.com/rawblock/evm-risk-engine/internal/stats"
	"github.com/rawblock/evm-risk-engine/internal/topology"
)

// FiredRule is what a single rule evaluation produces; callers convert it
// to models.FiredRule once they know the transaction hash it fired on.
type FiredRule struct {
	RuleID   string
	Score    float64
	Name     string
	Severity string
	Tags     []string
}

// Evaluator dispatches every loaded rule against one transaction at a
// time, consulting shared per-address history for window/bucket/stats/PPR
// rules.
type Evaluator struct {
	loader     *Loader
	lists      *lists.Loader
	hist       *history.History
	bucketEval *bucket.Evaluator

	damping float64
	maxIter int
}

// NewEvaluator wires an Evaluator over its dependencies.
func NewEvaluator(loader *Loader, l *lists.Loader, hist *history.History, bucketEval *bucket.Evaluator, damping float64, maxIter int) *Evaluator {
	return &Evaluator{loader: loader, lists: l, hist: hist, bucketEval: bucketEval, damping: damping, maxIter: maxIter}
}

// EvaluateTransaction dispatches every loaded rule against tx, recording it
// into per-address history first (every rule in this run, and every rule
// evaluated for later transactions, sees it). includeTopology gates the
// B-201/B-202 layering/cycle rules, which are only evaluated in "advanced"
// analysis mode.
func (e *Evaluator) EvaluateTransaction(tx TxData, includeTopology bool, now int64) []FiredRule {
	target := tx.TargetAddress()
	if target != "" {
		e.hist.Add(strings.ToLower(target), recordFrom(tx))
	}

	var fired []FiredRule
	for _, rule := range e.loader.Rules() {
		id := rule.ID()
		if id == "" {
			continue
		}
		if _, hasState := rule["state"]; hasState {
			continue
		}
		switch id {
		case "E-102":
			if !e.evaluateE102WithPPR(tx, target) {
				continue
			}
			if !e.checkConditions(tx, rule) || e.checkExceptions(tx, rule) {
				continue
			}
			fired = append(fired, makeFired(rule, id, 30, "HIGH"))
			continue

		case "B-103":
			withStd, ok := e.evaluateB103WithStats(tx, rule, target)
			if !ok {
				continue
			}
			tx = withStd
			if !e.checkConditions(tx, rule) || e.checkExceptions(tx, rule) {
				continue
			}
			fired = append(fired, makeFired(rule, id, 10, "LOW"))
			continue

		case "B-201":
			if !includeTopology {
				continue
			}
			if !e.evaluateTopologyRule(tx, rule, "layering_chain", target, now) {
				continue
			}
			if !e.checkConditions(tx, rule) || e.checkExceptions(tx, rule) {
				continue
			}
			fired = append(fired, makeFired(rule, id, 25, "HIGH"))
			continue

		case "B-202":
			if !includeTopology {
				continue
			}
			if !e.evaluateTopologyRule(tx, rule, "cycle", target, now) {
				continue
			}
			if !e.checkConditions(tx, rule) || e.checkExceptions(tx, rule) {
				continue
			}
			fired = append(fired, makeFired(rule, id, 30, "HIGH"))
			continue

		case "B-501":
			if fr, ok := e.evaluateB501(tx, rule); ok {
				fired = append(fired, fr)
			}
			continue
		}

		_, hasBucket := rule["bucket"]
		_, hasBuckets := rule["buckets"]
		isBucketRule := hasBucket || hasBuckets

		_, hasWindow := rule["window"]
		_, hasAggregations := rule["aggregations"]
		isWindowRule := hasWindow || (hasAggregations && !isBucketRule)

		switch {
		case isBucketRule:
			if !e.evaluateBucketRule(tx, rule, now) {
				continue
			}
		case isWindowRule:
			if !e.evaluateWindowRule(tx, rule) {
				continue
			}
		default:
			if !e.matchRule(tx, rule) {
				continue
			}
			if !e.checkConditions(tx, rule) {
				continue
			}
		}

		if e.checkExceptions(tx, rule) {
			continue
		}

		fired = append(fired, makeFired(rule, id, ruleFloat(rule, "score", 0), ruleString(rule, "severity", "MEDIUM")))
	}

	return fired
}

func makeFired(rule Rule, id string, defaultScore float64, defaultSeverity string) FiredRule {
	var tags []string
	if raw, ok := rule["tags"].([]interface{}); ok {
		for _, t := range raw {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
	}
	return FiredRule{
		RuleID:   id,
		Score:    ruleFloat(rule, "score", defaultScore),
		Name:     ruleString(rule, "name", id),
		Severity: ruleString(rule, "severity", defaultSeverity),
		Tags:     tags,
	}
}

func recordFrom(tx TxData) history.Record {
	extra := make(map[string]interface{}, len(tx))
	for k, v := range tx {
		extra[k] = v
	}
	return history.Record{
		Timestamp: tx.int64("timestamp"),
		AmountUSD: tx.float("usd_value"),
		Extra:     extra,
	}
}

// --- match / conditions / exceptions -------------------------------------

func (e *Evaluator) matchRule(tx TxData, rule Rule) bool {
	clause, ok := rule["match"].(map[string]interface{})
	if !ok {
		return true
	}
	return e.evalMatchClause(tx, clause)
}

func (e *Evaluator) evalMatchClause(tx TxData, clause map[string]interface{}) bool {
	if anyList, ok := clause["any"].([]interface{}); ok {
		for _, item := range anyList {
			if m, ok := item.(map[string]interface{}); ok && e.evalSingleMatch(tx, m) {
				return true
			}
		}
		return false
	}
	if allList, ok := clause["all"].([]interface{}); ok {
		for _, item := range allList {
			m, ok := item.(map[string]interface{})
			if !ok || !e.evalSingleMatch(tx, m) {
				return false
			}
		}
		return true
	}
	return e.evalSingleMatch(tx, clause)
}

func (e *Evaluator) evalSingleMatch(tx TxData, item map[string]interface{}) bool {
	spec, ok := item["in_list"].(map[string]interface{})
	if !ok {
		return false
	}
	field := str(spec["field"])
	listName := str(spec["list"])
	value := strings.ToLower(tx.str(field))

	category := listCategory(listName)
	if category != "" && value != "" && e.lists.Contains(category, value) {
		return true
	}
	if listName == "SDN_LIST" && tx.bool("is_sanctioned") {
		return true
	}
	if listName == "MIXER_LIST" && tx.bool("is_mixer") {
		return true
	}
	return false
}

func listCategory(name string) string {
	switch name {
	case "SDN_LIST":
		return lists.SDN
	case "CEX_LIST":
		return lists.CEX
	case "MIXER_LIST":
		return lists.Mixer
	case "BRIDGE_LIST":
		return lists.Bridge
	case "SCAM_LIST":
		return lists.Scam
	default:
		return ""
	}
}

func (e *Evaluator) checkConditions(tx TxData, rule Rule) bool {
	cond, ok := rule["conditions"].(map[string]interface{})
	if !ok {
		return true
	}
	return evalConditions(tx, cond)
}

func (e *Evaluator) checkExceptions(tx TxData, rule Rule) bool {
	exc, ok := rule["exceptions"].(map[string]interface{})
	if !ok {
		return false
	}
	return evalConditions(tx, exc)
}

func evalConditions(tx TxData, conditions map[string]interface{}) bool {
	if allList, ok := conditions["all"].([]interface{}); ok {
		for _, item := range allList {
			m, ok := item.(map[string]interface{})
			if !ok || !evalSingleCondition(tx, m) {
				return false
			}
		}
		return true
	}
	if anyList, ok := conditions["any"].([]interface{}); ok {
		for _, item := range anyList {
			if m, ok := item.(map[string]interface{}); ok && evalSingleCondition(tx, m) {
				return true
			}
		}
		return false
	}
	return evalSingleCondition(tx, conditions)
}

func evalSingleCondition(tx TxData, condition map[string]interface{}) bool {
	for _, op := range []string{"gte", "lte", "gt", "lt", "eq"} {
		spec, ok := condition[op].(map[string]interface{})
		if !ok {
			continue
		}
		field := str(spec["field"])
		txValue := tx.float(field)
		value := toFloat(spec["value"])

		switch op {
		case "gte":
			return txValue >= value
		case "lte":
			return txValue <= value
		case "gt":
			return txValue > value
		case "lt":
			return txValue < value
		case "eq":
			return txValue == value
		}
	}
	return false
}

// --- E-102: PPR-based sanctions/mixer connectivity ------------------------

const pprFireThreshold = 0.05

func (e *Evaluator) evaluateE102WithPPR(tx TxData, target string) bool {
	if target == "" {
		return false
	}
	target = strings.ToLower(target)

	past := e.hist.LastN(target, 1<<30) // full history; eviction already bounds it
	if len(past) < 2 {
		return false
	}

	var edges []ppr.RawEdge
	for _, rec := range past {
		from, _ := rec.Extra["from"].(string)
		to, _ := rec.Extra["to"].(string)
		if from == "" {
			to = target // defensive: should always be present
		}
		edges = append(edges, ppr.RawEdge{From: from, To: to, Weight: rec.AmountUSD})
	}
	edges = append(edges, ppr.RawEdge{From: tx.str("from"), To: target, Weight: tx.float("usd_value")})

	graph := ppr.BuildFromEdges(edges)
	if !graph.Has(target) {
		return false
	}

	sdnAddrs := []string{} // PPR seeds are resolved lazily: any address in the
	mixerAddrs := []string{} // mini-graph that is itself sanction/mixer-listed.
	for _, e2 := range edges {
		if e.lists.Contains(lists.SDN, e2.From) {
			sdnAddrs = append(sdnAddrs, e2.From)
		}
		if e.lists.Contains(lists.Mixer, e2.From) {
			mixerAddrs = append(mixerAddrs, e2.From)
		}
	}

	risk := graph.CalculateConnectionRisk(target, e.damping, e.maxIter, sdnAddrs, mixerAddrs)
	return risk.TotalPPR >= pprFireThreshold
}

// --- B-103: inter-arrival burst statistics --------------------------------

func (e *Evaluator) evaluateB103WithStats(tx TxData, rule Rule, target string) (TxData, bool) {
	if prereqs, ok := rule["prerequisites"].([]interface{}); ok {
		for _, p := range prereqs {
			m, ok := p.(map[string]interface{})
			if !ok {
				continue
			}
			if minEdges, ok := m["min_edges"]; ok {
				count := 1
				if target != "" {
					count += len(e.hist.LastN(strings.ToLower(target), 1<<30))
				}
				if !stats.CheckPrerequisites(count, int(toFloat(minEdges))) {
					return tx, false
				}
			}
		}
	}

	if target == "" {
		return tx, false
	}
	target = strings.ToLower(target)

	past := e.hist.LastN(target, 1<<30)
	timestamps := make([]int64, 0, len(past)+1)
	for _, rec := range past {
		timestamps = append(timestamps, rec.Timestamp)
	}
	timestamps = append(timestamps, tx.int64("timestamp"))

	std, ok := stats.InterarrivalStd(timestamps)
	if !ok {
		return tx, false
	}

	out := make(TxData, len(tx)+1)
	for k, v := range tx {
		out[k] = v
	}
	out["interarrival_std"] = std
	return out, true
}

// --- B-201/B-202: topology rules ------------------------------------------

func (e *Evaluator) evaluateTopologyRule(tx TxData, rule Rule, kind string, target string, now int64) bool {
	if target == "" {
		return false
	}
	target = strings.ToLower(target)

	past := e.hist.LastN(target, 1<<30)
	edges := make([]topology.Edge, 0, len(past)+1)
	for _, rec := range past {
		edges = append(edges, topologyEdgeFromRecord(rec))
	}
	edges = append(edges, topology.Edge{
		From:     tx.str("from"),
		To:       target,
		Token:    tx.str("asset_contract"),
		USDValue: tx.float("usd_value"),
	})

	spec, _ := rule["topology"].(map[string]interface{})

	switch kind {
	case "layering_chain":
		return topology.EvaluateLayeringChain(target, edges, topology.LayeringSpec{
			SameToken:            boolOf(spec["same_token"]),
			HopLengthGTE:         intOf(spec["hop_length_gte"], 3),
			HopAmountDeltaPctLTE: floatOf(spec["hop_amount_delta_pct_lte"], 5),
			MinUSDValue:          floatOf(spec["min_usd_value"], 100),
		})
	case "cycle":
		lengths := []int{2, 3}
		if raw, ok := spec["cycle_length_in"].([]interface{}); ok {
			lengths = lengths[:0]
			for _, v := range raw {
				lengths = append(lengths, int(toFloat(v)))
			}
		}
		return topology.EvaluateCycle(target, edges, topology.CycleSpec{
			SameToken:        boolOf(spec["same_token"]),
			CycleLengthIn:    lengths,
			CycleTotalUSDGTE: floatOf(spec["cycle_total_usd_gte"], 100),
		})
	}
	return false
}

func topologyEdgeFromRecord(rec history.Record) topology.Edge {
	from, _ := rec.Extra["from"].(string)
	to, _ := rec.Extra["to"].(string)
	token, _ := rec.Extra["asset_contract"].(string)
	return topology.Edge{From: from, To: to, Token: token, USDValue: rec.AmountUSD}
}

// --- B-501: dynamic numeric-range bucket scorer ---------------------------

func (e *Evaluator) evaluateB501(tx TxData, rule Rule) (FiredRule, bool) {
	spec, ok := rule["buckets"].(map[string]interface{})
	if !ok {
		return FiredRule{}, false
	}
	field := ruleString(spec, "field", "usd_value")
	value := tx.float(field)

	rawRanges, _ := spec["ranges"].([]interface{})
	for _, rr := range rawRanges {
		rangeSpec, ok := rr.(map[string]interface{})
		if !ok {
			continue
		}
		minV := floatOf(rangeSpec["min"], 0)
		maxV := floatOf(rangeSpec["max"], 1e18)
		if value >= minV && value < maxV {
			score := floatOf(rangeSpec["score"], 0)
			if score <= 0 {
				return FiredRule{}, false
			}
			return FiredRule{
				RuleID:   rule.ID(),
				Score:    score,
				Name:     ruleString(rule, "name", rule.ID()),
				Severity: ruleString(rule, "severity", "MEDIUM"),
			}, true
		}
	}
	return FiredRule{}, false
}

// --- window / bucket rules -------------------------------------------------

func (e *Evaluator) evaluateWindowRule(tx TxData, rule Rule) bool {
	spec, ok := rule["window"].(map[string]interface{})
	if !ok {
		return false
	}
	durationSec := int64(floatOf(spec["duration_sec"], 0))

	target := tx.TargetAddress()
	if target == "" {
		return false
	}
	target = strings.ToLower(target)

	now := tx.int64("timestamp")
	windowTxs := e.hist.Window(target, now, durationSec)
	// EvaluateTransaction has already recorded tx, so it is normally the
	// window's last record; it is added here only when eviction dropped it,
	// so the current transaction is counted once.
	if n := len(windowTxs); n == 0 || windowTxs[n-1].Timestamp != now || windowTxs[n-1].Extra["tx_hash"] != tx["tx_hash"] {
		windowTxs = append(windowTxs, recordFrom(tx))
	}

	aggs := parseAggregations(rule["aggregations"])
	return history.Evaluate(windowTxs, aggs)
}

func (e *Evaluator) evaluateBucketRule(tx TxData, rule Rule, now int64) bool {
	bucketSpec, ok := rule["bucket"].(map[string]interface{})
	if !ok {
		return false
	}
	sizeSec := int64(floatOf(bucketSpec["size_sec"], 600))

	var groupFields []string
	if raw, ok := bucketSpec["group"].([]interface{}); ok {
		for _, f := range raw {
			groupFields = append(groupFields, str(f))
		}
	}

	fields := make(map[string]string, len(tx))
	for k, v := range tx {
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}
	groupKey := bucket.GroupKey(fields, groupFields)
	if groupKey == "" {
		return false
	}

	aggs := parseAggregations(rule["aggregations"])
	return e.bucketEval.Evaluate(groupKey, recordFrom(tx), bucket.Spec{SizeSec: sizeSec, Group: groupFields}, aggs, now)
}

func parseAggregations(raw interface{}) []history.Aggregation {
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	var out []history.Aggregation
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		for _, kind := range []string{
			history.AggSumGTE, history.AggCountGTE, history.AggEveryGTE,
			history.AggAnyGTE, history.AggAvgGTE, history.AggDistinctGTE,
		} {
			spec, ok := m[kind].(map[string]interface{})
			if !ok {
				continue
			}
			out = append(out, history.Aggregation{
				Kind:      kind,
				Field:     ruleString(spec, "field", "usd_value"),
				Threshold: floatOf(spec["value"], 0),
			})
		}
	}
	return out
}

// --- small generic-map helpers --------------------------------------------

func ruleFloat(m map[string]interface{}, key string, def float64) float64 {
	return floatOf(m[key], def)
}

func ruleString(m map[string]interface{}, key, def string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return def
}

func floatOf(v interface{}, def float64) float64 {
	if v == nil {
		return def
	}
	return toFloat(v)
}

func intOf(v interface{}, def int) int {
	if v == nil {
		return def
	}
	return int(toFloat(v))
}

func boolOf(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

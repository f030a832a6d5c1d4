// Package scoring turns fired rules into an address-level risk verdict:
// per-transaction scores, the recency-weighted final score, deduplicated
// rule aggregation, risk tags, and a short Korean-language explanation —
// all ported from the original address analyzer's scoring pass.
package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/rawblock/evm-risk-engine/internal/rules"
	"github.com/rawblock/evm-risk-engine/pkg/models"
)

// ScoreTransaction sums every fired rule's score for one transaction,
// capped at 100.
func ScoreTransaction(fired []rules.FiredRule) float64 {
	var total float64
	for _, r := range fired {
		total += r.Score
	}
	return math.Min(100, total)
}

// FinalScore combines per-transaction scores into one address-level score.
// With more than one transaction, the most recent ceil(30%) of scores (at
// least one) are averaged separately from the rest and weighted 0.7/0.3
// against the older average; the final score is the greater of that
// weighted average and the single highest transaction score, capped at 100.
func FinalScore(txScores []float64) float64 {
	if len(txScores) == 0 {
		return 0
	}

	maxScore := txScores[0]
	for _, s := range txScores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}

	if len(txScores) == 1 {
		return math.Min(100, maxScore)
	}

	recentCount := int(math.Ceil(float64(len(txScores)) * 0.3))
	if recentCount < 1 {
		recentCount = 1
	}
	recent := txScores[len(txScores)-recentCount:]
	old := txScores[:len(txScores)-recentCount]

	recentAvg := avg(recent)
	oldAvg := avg(old)
	weighted := recentAvg*0.7 + oldAvg*0.3

	return math.Min(100, math.Max(maxScore, weighted))
}

func avg(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// DetermineRiskLevel maps a 0-100 score to its risk band.
func DetermineRiskLevel(score float64) string {
	switch {
	case score >= 80:
		return "critical"
	case score >= 60:
		return "high"
	case score >= 30:
		return "medium"
	default:
		return "low"
	}
}

// AggregateFiredRules collapses every fired instance down to one entry per
// rule id, keeping the highest-scored instance — unlike the original's
// "last write wins" dict fold, ties on severity/tags resolved in favor of
// whichever instance carried the higher score.
func AggregateFiredRules(all []models.FiredRule) []models.FiredRule {
	best := make(map[string]models.FiredRule)
	order := make([]string, 0)
	for _, r := range all {
		if r.RuleID == "" {
			continue
		}
		if existing, ok := best[r.RuleID]; !ok {
			best[r.RuleID] = r
			order = append(order, r.RuleID)
		} else if r.Score > existing.Score {
			best[r.RuleID] = r
		}
	}

	out := make([]models.FiredRule, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out
}

// GenerateRiskTags derives a deduplicated, sorted set of summary tags from
// the rule id/name keywords the original evaluator looks for.
func GenerateRiskTags(fired []models.FiredRule) []string {
	tags := make(map[string]struct{})
	for _, r := range fired {
		name := strings.ToLower(r.Name)
		id := r.RuleID

		if strings.Contains(name, "mixer") || strings.Contains(id, "E-101") {
			tags["mixer_inflow"] = struct{}{}
		}
		if strings.Contains(name, "sanction") || strings.Contains(id, "C-001") {
			tags["sanction_exposure"] = struct{}{}
		}
		if strings.Contains(name, "scam") {
			tags["scam_exposure"] = struct{}{}
		}
		if strings.Contains(name, "high-value") || strings.Contains(id, "C-003") || strings.Contains(id, "C-004") {
			tags["high_value_transfer"] = struct{}{}
		}
		if strings.Contains(name, "bridge") {
			tags["bridge_large_transfer"] = struct{}{}
		}
		if strings.Contains(name, "cex") {
			tags["cex_inflow"] = struct{}{}
		}
		if strings.Contains(id, "B-101") || strings.Contains(id, "B-102") {
			tags["suspicious_pattern"] = struct{}{}
		}
	}

	out := make([]string, 0, len(tags))
	for t := range tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// GenerateExplanation builds a short, fixed-priority-order Korean
// explanation string from the aggregated rules that fired, mirroring the
// original address analyzer's phrasing and risk-level suffix.
func GenerateExplanation(ruleNames map[string]string, aggregated []models.FiredRule, riskLevel string) string {
	if len(aggregated) == 0 {
		return "정상 거래 패턴으로 리스크가 낮습니다."
	}

	sorted := append([]models.FiredRule(nil), aggregated...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	nameFor := func(id string) string {
		if n, ok := ruleNames[id]; ok && n != "" {
			return n
		}
		return id
	}

	var parts []string
	if id := firstMatching(sorted, "E-101"); id != "" {
		parts = append(parts, nameFor(id)+" 패턴 감지")
	}
	if id := firstMatching(sorted, "C-001"); id != "" {
		parts = append(parts, nameFor(id)+" 패턴 감지")
	}
	if id := firstMatching(sorted, "C-003"); id != "" {
		parts = append(parts, nameFor(id)+" 패턴 감지")
	}
	if id := firstMatching(sorted, "C-004"); id != "" {
		parts = append(parts, nameFor(id)+" 패턴 감지")
	}
	if id := firstMatching(sorted, "B-101"); id != "" {
		parts = append(parts, nameFor(id)+" 패턴 감지")
	}

	if len(parts) == 0 && len(sorted) > 0 {
		parts = append(parts, nameFor(sorted[0].RuleID)+" 룰 발동")
	}

	text := strings.Join(parts, ", ")
	if riskLevel == "low" {
		text += "로 인해 낮은 리스크로 분류됨."
	} else {
		text += "로 인해 " + riskLevel + " 리스크로 분류됨."
	}
	return text
}

func firstMatching(sorted []models.FiredRule, substr string) string {
	for _, r := range sorted {
		if strings.Contains(r.RuleID, substr) {
			return r.RuleID
		}
	}
	return ""
}

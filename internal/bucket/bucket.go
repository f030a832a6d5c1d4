// Package bucket groups transactions into fixed-size time buckets keyed by
// an arbitrary set of fields (e.g. recipient + token), and evaluates the
// same aggregation predicates as the sliding-window evaluator against each
// bucket's contents.
package bucket

import (
	"sort"
	"strings"
	"sync"

	"github.com/rawblock/evm-risk-engine/internal/history"
	"github.com/rawblock/evm-risk-engine/pkg/models"
)

// Spec parameterizes a single bucket rule.
type Spec struct {
	SizeSec int64
	Group   []string // field names to group by; "bucket_10m" is a no-op marker kept for parity with rule files
}

// Evaluator groups records into fixed-size time buckets per group key.
type Evaluator struct {
	maxHistoryDays int

	mu      sync.Mutex
	buckets map[string]map[int64][]history.Record
}

// New returns an Evaluator that evicts buckets older than maxHistoryDays.
func New(maxHistoryDays int) *Evaluator {
	return &Evaluator{maxHistoryDays: maxHistoryDays, buckets: make(map[string]map[int64][]history.Record)}
}

// GroupKey derives the bucket group key from the configured fields, in
// insertion order, lowercased and underscore-joined; empty/missing fields
// are skipped. Returns "" (no bucketing) if nothing resolves.
func GroupKey(fields map[string]string, group []string) string {
	var parts []string
	for _, f := range group {
		if f == "bucket_10m" {
			continue
		}
		if v, ok := fields[f]; ok && v != "" {
			parts = append(parts, strings.ToLower(v))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "_")
}

func bucketStart(ts, sizeSec int64) int64 {
	if sizeSec <= 0 {
		return ts
	}
	return (ts / sizeSec) * sizeSec
}

// Add inserts rec into its bucket and evicts anything older than
// maxHistoryDays relative to "now" (passed in rather than read from the
// clock so runs are reproducible).
func (e *Evaluator) Add(groupKey string, rec history.Record, sizeSec, now int64) {
	if groupKey == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.buckets[groupKey] == nil {
		e.buckets[groupKey] = make(map[int64][]history.Record)
	}
	key := bucketStart(rec.Timestamp, sizeSec)
	e.buckets[groupKey][key] = append(e.buckets[groupKey][key], rec)

	if e.maxHistoryDays > 0 {
		cutoff := bucketStart(now-int64(e.maxHistoryDays)*86400, sizeSec)
		for k := range e.buckets[groupKey] {
			if k < cutoff {
				delete(e.buckets[groupKey], k)
			}
		}
	}
}

// Records returns the records currently in rec's bucket.
func (e *Evaluator) Records(groupKey string, rec history.Record, sizeSec int64) []history.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := bucketStart(rec.Timestamp, sizeSec)
	return append([]history.Record(nil), e.buckets[groupKey][key]...)
}

// Evaluate adds rec to its bucket then runs aggs over the bucket's contents.
func (e *Evaluator) Evaluate(groupKey string, rec history.Record, spec Spec, aggs []history.Aggregation, now int64) bool {
	e.Add(groupKey, rec, spec.SizeSec, now)
	txs := e.Records(groupKey, rec, spec.SizeSec)
	return history.Evaluate(txs, aggs)
}

// Range is a half-open [Min,Max) numeric interval for the B-501 dynamic
// range scorer; the first matching range wins.
type Range struct {
	Min   float64
	Max   float64
	Score float64
	Tag   string
}

// MatchRange finds the first range containing value, evaluated in the
// order given (RangesFromModel returns ranges sorted by Min ascending).
func MatchRange(value float64, ranges []Range) (Range, bool) {
	for _, r := range ranges {
		if value >= r.Min && value < r.Max {
			return r, true
		}
	}
	return Range{}, false
}

// RangesFromModel converts ruleset-loaded BucketRange values, sorted by Min
// ascending so "first match wins" is well-defined regardless of authoring
// order.
func RangesFromModel(in []models.BucketRange) []Range {
	out := make([]Range, len(in))
	for i, r := range in {
		out[i] = Range{Min: r.Min, Max: r.Max, Score: r.Score, Tag: r.Tag}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Min < out[j].Min })
	return out
}

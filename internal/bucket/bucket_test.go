package bucket

import (
	"testing"

	"github.com/rawblock/evm-risk-engine/internal/history"
)

func TestGroupKey_JoinsConfiguredFields(t *testing.T) {
	fields := map[string]string{"to": "0xAAA", "token_symbol": "usdt"}
	got := GroupKey(fields, []string{"to", "token_symbol"})
	if got != "0xaaa_usdt" {
		t.Fatalf("expected lowercased underscore-joined key, got %q", got)
	}
}

func TestGroupKey_SkipsBucket10mMarkerAndMissingFields(t *testing.T) {
	fields := map[string]string{"to": "0xAAA"}
	got := GroupKey(fields, []string{"bucket_10m", "to", "missing_field"})
	if got != "0xaaa" {
		t.Fatalf("expected only the resolvable field to contribute, got %q", got)
	}
}

func TestGroupKey_EmptyWhenNothingResolves(t *testing.T) {
	if got := GroupKey(nil, []string{"to"}); got != "" {
		t.Fatalf("expected empty group key, got %q", got)
	}
}

func TestEvaluator_AddAndEvaluate(t *testing.T) {
	e := New(0)
	const sizeSec = 600
	now := int64(1_000_000)

	for i := 0; i < 3; i++ {
		rec := history.Record{Timestamp: now + int64(i*10), AmountUSD: 100}
		fired := e.Evaluate("addr1", rec, Spec{SizeSec: sizeSec}, []history.Aggregation{
			{Kind: history.AggCountGTE, Threshold: 3},
		}, now+int64(i*10))
		if i < 2 && fired {
			t.Fatalf("expected count_gte 3 to fail before the 3rd record, iteration %d", i)
		}
		if i == 2 && !fired {
			t.Fatal("expected count_gte 3 to pass on the 3rd record in the same bucket")
		}
	}
}

func TestEvaluator_DifferentBucketsDoNotShareRecords(t *testing.T) {
	e := New(0)
	const sizeSec = 600

	rec1 := history.Record{Timestamp: 0, AmountUSD: 1}
	rec2 := history.Record{Timestamp: 10_000, AmountUSD: 1} // a much later bucket
	e.Add("addr1", rec1, sizeSec, 0)
	e.Add("addr1", rec2, sizeSec, 10_000)

	if got := e.Records("addr1", rec1, sizeSec); len(got) != 1 {
		t.Fatalf("expected rec1's bucket to hold only itself, got %d records", len(got))
	}
}

func TestMatchRange_FirstMatchWins(t *testing.T) {
	ranges := []Range{
		{Min: 0, Max: 1000, Score: 0},
		{Min: 1000, Max: 10000, Score: 5, Tag: "low"},
		{Min: 10000, Max: 1e9, Score: 15, Tag: "high"},
	}

	r, ok := MatchRange(5000, ranges)
	if !ok || r.Tag != "low" {
		t.Fatalf("expected the 'low' range to match 5000, got %+v (ok=%v)", r, ok)
	}

	if _, ok := MatchRange(-1, ranges); ok {
		t.Fatal("expected a value below every range to not match")
	}
}

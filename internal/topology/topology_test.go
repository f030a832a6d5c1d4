package topology

import "testing"

// A straight chain A->B->C->D of similarly-sized transfers, each above the
// minimum value, should be detected as a layering chain starting at A.
func TestEvaluateLayeringChain_DetectsChain(t *testing.T) {
	edges := []Edge{
		{From: "a", To: "b", USDValue: 1000},
		{From: "b", To: "c", USDValue: 980},
		{From: "c", To: "d", USDValue: 1020},
	}
	spec := LayeringSpec{HopLengthGTE: 3, HopAmountDeltaPctLTE: 5, MinUSDValue: 100}

	if !EvaluateLayeringChain("a", edges, spec) {
		t.Fatal("expected a 3-hop chain within the amount delta tolerance to be detected")
	}
}

// Hop values that diverge beyond the tolerance break the chain.
func TestEvaluateLayeringChain_RejectsDivergingAmounts(t *testing.T) {
	edges := []Edge{
		{From: "a", To: "b", USDValue: 1000},
		{From: "b", To: "c", USDValue: 500}, // 50% drop, over a 5% tolerance
		{From: "c", To: "d", USDValue: 1020},
	}
	spec := LayeringSpec{HopLengthGTE: 3, HopAmountDeltaPctLTE: 5, MinUSDValue: 100}

	if EvaluateLayeringChain("a", edges, spec) {
		t.Fatal("expected diverging hop amounts to break chain detection")
	}
}

// A hop below MinUSDValue is not traversed, even if it would otherwise
// complete a long-enough chain.
func TestEvaluateLayeringChain_RejectsBelowMinValue(t *testing.T) {
	edges := []Edge{
		{From: "a", To: "b", USDValue: 1000},
		{From: "b", To: "c", USDValue: 50}, // below MinUSDValue
		{From: "c", To: "d", USDValue: 1000},
	}
	spec := LayeringSpec{HopLengthGTE: 3, HopAmountDeltaPctLTE: 50, MinUSDValue: 100}

	if EvaluateLayeringChain("a", edges, spec) {
		t.Fatal("expected a sub-minimum hop to block chain detection")
	}
}

// A 3-hop cycle A->B->C->A whose total value clears the threshold fires.
func TestEvaluateCycle_DetectsThreeHopCycle(t *testing.T) {
	edges := []Edge{
		{From: "a", To: "b", USDValue: 400},
		{From: "b", To: "c", USDValue: 400},
		{From: "c", To: "a", USDValue: 400},
	}
	spec := CycleSpec{CycleLengthIn: []int{3}, CycleTotalUSDGTE: 1000}

	if !EvaluateCycle("a", edges, spec) {
		t.Fatal("expected a 3-hop cycle totaling 1200 to be detected")
	}
}

// The same cycle shape below the total-value threshold does not fire.
func TestEvaluateCycle_RejectsBelowTotalThreshold(t *testing.T) {
	edges := []Edge{
		{From: "a", To: "b", USDValue: 100},
		{From: "b", To: "c", USDValue: 100},
		{From: "c", To: "a", USDValue: 100},
	}
	spec := CycleSpec{CycleLengthIn: []int{3}, CycleTotalUSDGTE: 1000}

	if EvaluateCycle("a", edges, spec) {
		t.Fatal("expected a cycle under the total-value threshold to be rejected")
	}
}

// A cycle of a length not requested is not matched even if a valid 3-hop
// cycle of that length exists elsewhere in the same edge set.
func TestEvaluateCycle_RejectsWrongLength(t *testing.T) {
	edges := []Edge{
		{From: "a", To: "b", USDValue: 400},
		{From: "b", To: "c", USDValue: 400},
		{From: "c", To: "a", USDValue: 400},
	}
	spec := CycleSpec{CycleLengthIn: []int{4}, CycleTotalUSDGTE: 100}

	if EvaluateCycle("a", edges, spec) {
		t.Fatal("expected a 3-hop cycle to be rejected when only length 4 is requested")
	}
}

// SameToken splits the graph by token before searching, so a chain whose
// hops use different tokens is not detected under SameToken.
func TestEvaluateLayeringChain_SameTokenSplitsGraph(t *testing.T) {
	edges := []Edge{
		{From: "a", To: "b", USDValue: 1000, Token: "usdt"},
		{From: "b", To: "c", USDValue: 1000, Token: "usdc"},
		{From: "c", To: "d", USDValue: 1000, Token: "usdt"},
	}
	spec := LayeringSpec{SameToken: true, HopLengthGTE: 3, HopAmountDeltaPctLTE: 5, MinUSDValue: 100}

	if EvaluateLayeringChain("a", edges, spec) {
		t.Fatal("expected mixed-token hops to prevent a same-token chain from forming")
	}
}

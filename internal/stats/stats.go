// Package stats computes inter-arrival timing statistics over a
// transaction's timestamp sequence, used by the burst-detection rule.
package stats

import (
	"math"
	"sort"
)

// InterarrivalStd returns the sample standard deviation of positive
// inter-arrival intervals between sorted transaction timestamps. Needs at
// least 2 positive intervals (i.e. at least 3 usable timestamps, more if
// some intervals are non-positive due to same-second transactions, since
// those intervals are dropped) —
// returns (0, false) when undefined, matching statistics.stdev's
// requirement of at least two data points.
func InterarrivalStd(timestamps []int64) (float64, bool) {
	intervals := positiveIntervals(timestamps)
	if len(intervals) < 2 {
		return 0, false
	}

	mean := meanOf(intervals)
	var sumSq float64
	for _, v := range intervals {
		d := float64(v) - mean
		sumSq += d * d
	}
	variance := sumSq / float64(len(intervals)-1) // sample variance, n-1 denominator
	return math.Sqrt(variance), true
}

// InterarrivalMean returns the mean of positive inter-arrival intervals.
// Needs at least 1 positive interval — returns (0, false) when undefined.
func InterarrivalMean(timestamps []int64) (float64, bool) {
	intervals := positiveIntervals(timestamps)
	if len(intervals) == 0 {
		return 0, false
	}
	return meanOf(intervals), true
}

func positiveIntervals(timestamps []int64) []int64 {
	valid := make([]int64, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts != 0 {
			valid = append(valid, ts)
		}
	}
	if len(valid) < 2 {
		return nil
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i] < valid[j] })

	intervals := make([]int64, 0, len(valid)-1)
	for i := 1; i < len(valid); i++ {
		d := valid[i] - valid[i-1]
		if d > 0 {
			intervals = append(intervals, d)
		}
	}
	return intervals
}

func meanOf(vals []int64) float64 {
	var sum int64
	for _, v := range vals {
		sum += v
	}
	return float64(sum) / float64(len(vals))
}

// CheckPrerequisites reports whether there are at least minEdges
// transactions to compute meaningful statistics over.
func CheckPrerequisites(txCount, minEdges int) bool {
	return txCount >= minEdges
}

// Package signal provides the low-level event detection primitives shared
// by the gait and stimulation pipelines: threshold binarization, edge
// detection, nearest-index searches, running means and chunk trimming.
package signal

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrNoSmallerValue is returned by ClosestSmallerIndexStrict when no element
// is strictly below the query point.
var ErrNoSmallerValue = errors.New("no element strictly smaller than the query point")

// BinarizeByMean maps every sample below the arithmetic mean of the signal
// to 0 and everything else to 1. Use only on clear-cut bimodal signals: a
// constant signal binarizes to all ones.
func BinarizeByMean(sig []float64) []int {
	mean := stat.Mean(sig, nil)
	out := make([]int, len(sig))
	for i, v := range sig {
		if v < mean {
			out[i] = 0
		} else {
			out[i] = 1
		}
	}
	return out
}

// DetectRisingEdges returns the sample indices where the signal crosses
// above zero. Falling edges that follow each rising edge are discarded, so
// the result holds onsets only. Stimulators occasionally emit spurious
// transitions when switching off; if expected > 0 the result is truncated
// to the first expected onsets. Fewer onsets than expected pass through
// unchanged, the caller must check the length.
func DetectRisingEdges(sig []float64, expected int) []int {
	var edges []int
	prev := false
	for i, v := range sig {
		cur := v > 0
		if cur != prev {
			edges = append(edges, i)
		}
		prev = cur
	}

	var rising []int
	for i := 0; i < len(edges); i += 2 {
		rising = append(rising, edges[i])
	}
	if expected > 0 && len(rising) > expected {
		rising = rising[:expected]
	}
	return rising
}

// ClosestIndex returns the index of the element with the minimum absolute
// difference to point. NaN comparisons are unsound, so any NaN in data is
// rejected rather than silently winning the search.
func ClosestIndex(data []float64, point float64) (int, error) {
	if len(data) == 0 {
		return 0, errors.New("empty input")
	}
	for _, v := range data {
		if math.IsNaN(v) {
			return 0, fmt.Errorf("input contains NaN which would always compare as nearest to %g", point)
		}
	}
	idx := 0
	best := math.Abs(data[0] - point)
	for i, v := range data[1:] {
		if d := math.Abs(v - point); d < best {
			best = d
			idx = i + 1
		}
	}
	return idx, nil
}

// ClosestSmallerIndex returns the index of the element closest to point
// among those strictly below it. When no element is strictly smaller it
// returns 0, indistinguishable from a genuine match at index 0. This
// degenerate default is kept for compatibility with existing datasets; use
// ClosestSmallerIndexStrict to detect the condition.
func ClosestSmallerIndex(data []float64, point float64) int {
	idx := 0
	best := math.Inf(1)
	for i, v := range data {
		if d := math.Abs(v - point); d < best && v < point {
			best = d
			idx = i
		}
	}
	return idx
}

// ClosestSmallerIndexStrict behaves like ClosestSmallerIndex but reports
// ErrNoSmallerValue instead of defaulting to index 0.
func ClosestSmallerIndexStrict(data []float64, point float64) (int, error) {
	idx := 0
	best := math.Inf(1)
	found := false
	for i, v := range data {
		if d := math.Abs(v - point); d < best && v < point {
			best = d
			idx = i
			found = true
		}
	}
	if !found {
		return 0, ErrNoSmallerValue
	}
	return idx, nil
}

// RunningMean returns the cumulative-sum based moving average of sig with
// the given window. There is no padding: the output has
// len(sig)-window+1 samples, and window == len(sig) yields the single
// whole-signal mean.
func RunningMean(sig []float64, window int) []float64 {
	if window < 1 || window > len(sig) {
		return nil
	}
	cumsum := make([]float64, len(sig)+1)
	for i, v := range sig {
		cumsum[i+1] = cumsum[i] + v
	}
	out := make([]float64, len(sig)-window+1)
	for i := range out {
		out[i] = (cumsum[i+window] - cumsum[i]) / float64(window)
	}
	return out
}

// TrimToEqualLength truncates every sequence to the length of the shortest
// one, preserving each sequence's start. The returned slices alias the
// input storage.
func TrimToEqualLength[T any](seqs [][]T) [][]T {
	if len(seqs) == 0 {
		return nil
	}
	shortest := len(seqs[0])
	for _, s := range seqs[1:] {
		if len(s) < shortest {
			shortest = len(s)
		}
	}
	out := make([][]T, len(seqs))
	for i, s := range seqs {
		out[i] = s[:shortest]
	}
	return out
}

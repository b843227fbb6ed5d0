package features

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Bin bounds one window over a series: [Start, End) in samples.
type Bin struct {
	Start int
	End   int
}

// Bins lays overlapping windows over a series of n samples. Each window is
// window samples wide and consecutive windows share overlap samples. A
// trailing partial window is discarded.
func Bins(n, window, overlap int) ([]Bin, error) {
	if window < 1 || window > n {
		return nil, fmt.Errorf("window %d out of range for %d samples", window, n)
	}
	if overlap < 0 || overlap >= window {
		return nil, fmt.Errorf("overlap %d must be in [0, %d)", overlap, window)
	}
	step := window - overlap
	var bins []Bin
	for start := 0; start+window <= n; start += step {
		bins = append(bins, Bin{Start: start, End: start + window})
	}
	return bins, nil
}

// BinStats holds one summary value per bin for a single series.
type BinStats struct {
	Mean []float64
	Min  []float64
	Max  []float64
}

// BinMetrics computes per-bin mean, min and max over overlapping windows.
func BinMetrics(series []float64, window, overlap int) (BinStats, error) {
	bins, err := Bins(len(series), window, overlap)
	if err != nil {
		return BinStats{}, err
	}
	stats := BinStats{
		Mean: make([]float64, len(bins)),
		Min:  make([]float64, len(bins)),
		Max:  make([]float64, len(bins)),
	}
	for i, b := range bins {
		w := series[b.Start:b.End]
		stats.Mean[i] = floats.Sum(w) / float64(len(w))
		stats.Min[i] = floats.Min(w)
		stats.Max[i] = floats.Max(w)
	}
	return stats, nil
}

// BinTable computes BinMetrics for every column of a feature table.
func BinTable(table *Table, window, overlap int) (map[string]BinStats, error) {
	out := make(map[string]BinStats, len(table.Columns()))
	for _, column := range table.Columns() {
		series, err := table.Series(column)
		if err != nil {
			return nil, err
		}
		stats, err := BinMetrics(series, window, overlap)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", column, err)
		}
		out[column] = stats
	}
	return out, nil
}

// StepHeightOnBins returns the vertical excursion (max minus min) of a
// height trace per bin, a per-window proxy for step height.
func StepHeightOnBins(trace []float64, window, overlap int) ([]float64, error) {
	bins, err := Bins(len(trace), window, overlap)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(bins))
	for i, b := range bins {
		w := trace[b.Start:b.End]
		out[i] = floats.Max(w) - floats.Min(w)
	}
	return out, nil
}

// ForwardMovementOnBins returns the net displacement (last minus first
// sample) of a forward-axis trace per bin.
func ForwardMovementOnBins(trace []float64, window, overlap int) ([]float64, error) {
	bins, err := Bins(len(trace), window, overlap)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(bins))
	for i, b := range bins {
		out[i] = trace[b.End-1] - trace[b.Start]
	}
	return out, nil
}

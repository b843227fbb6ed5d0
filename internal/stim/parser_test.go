package stim

import (
	"math"
	"testing"
)

func TestTimeToSample(t *testing.T) {
	tests := []struct {
		name string
		t    float64
		fs   float64
		mode RoundMode
		want int
	}{
		{"nearest rounds", 0.5004, 1000, RoundNearest, 500},
		{"t1 ceils", 0.5001, 1000, RoundT1, 501},
		{"t2 floors", 0.5006, 1000, RoundT2, 500},
		{"t2 exact steps back", 0.5, 1000, RoundT2, 499},
		{"t1 exact stays", 0.5, 1000, RoundT1, 500},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := TimeToSample(tc.t, tc.fs, tc.mode); got != tc.want {
				t.Errorf("TimeToSample(%g, %g): expected %d, got %d", tc.t, tc.fs, tc.want, got)
			}
		})
	}
}

// pulseTrain builds a sync channel with pulses of width 2 starting at the
// given indices.
func pulseTrain(n int, starts []int) []float64 {
	sync := make([]float64, n)
	for _, s := range starts {
		sync[s] = 1
		sync[s+1] = 1
	}
	return sync
}

func TestDetectOnsets(t *testing.T) {
	sync := pulseTrain(100, []int{10, 30, 50, 70})

	got := DetectOnsets(sync, 0)
	want := []int{10, 30, 50, 70}
	if len(got) != len(want) {
		t.Fatalf("expected %d onsets, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("onset %d: expected %d, got %d", i, want[i], got[i])
		}
	}

	if got := DetectOnsets(sync, 2); len(got) != 2 {
		t.Errorf("expected trim to 2 onsets, got %v", got)
	}
}

func TestLocateBlocks(t *testing.T) {
	// 2 amplitudes x 2 pulses, one block onset per 2 pulses.
	sync := pulseTrain(200, []int{10, 30, 100, 120})

	blocks, err := LocateBlocks([][]float64{sync}, 2, 2, 0.05, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %v", blocks)
	}
	// 0.05s at 1000Hz is exactly 50 samples: the T2 rule steps back to 49.
	want := []Block{{10, 59}, {100, 149}}
	for i := range want {
		if blocks[i] != want[i] {
			t.Errorf("block %d: expected %+v, got %+v", i, want[i], blocks[i])
		}
	}
}

func TestLocateBlocksRejectsMultiChannel(t *testing.T) {
	sync := pulseTrain(100, []int{10})
	if _, err := LocateBlocks([][]float64{sync, sync}, 1, 1, 0.01, 1000); err == nil {
		t.Fatal("expected dimensionality error for multi-channel sync data")
	}
}

func TestSegmentByStimulation(t *testing.T) {
	raw := make([]float64, 100)
	for i := range raw {
		raw[i] = float64(i)
	}
	onsets := []int{20, 40, 60, 80, 100}

	chunks, err := SegmentByStimulation(raw, onsets, SegmentOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Pre-onset chunk dropped, empty tail after onset 100 filtered out.
	if len(chunks) != len(onsets)-1 {
		t.Fatalf("expected %d rows, got %d", len(onsets)-1, len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) != 20 {
			t.Errorf("row %d: expected 20 samples, got %d", i, len(chunk))
		}
		if chunk[0] != float64(onsets[i]) {
			t.Errorf("row %d: expected alignment at %d, got %g", i, onsets[i], chunk[0])
		}
	}
}

func TestSegmentByStimulationPreOnsetClamp(t *testing.T) {
	raw := make([]float64, 60)
	for i := range raw {
		raw[i] = float64(i)
	}

	chunks, err := SegmentByStimulation(raw, []int{5, 30}, SegmentOptions{PreOnsetSamples: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// First onset 5-10 clamps to 0, so the dropped pre-onset chunk is
	// empty and both stimulation chunks survive.
	if len(chunks) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(chunks))
	}
	if chunks[0][0] != 0 || chunks[1][0] != 20 {
		t.Errorf("expected chunks aligned at 0 and 20, got %g and %g", chunks[0][0], chunks[1][0])
	}
}

func TestSegmentByStimulationSkipEveryOther(t *testing.T) {
	raw := make([]float64, 100)
	chunks, err := SegmentByStimulation(raw, []int{10, 20, 30, 40}, SegmentOptions{SkipEveryOther: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Kept onsets 10 and 30: one chunk [10,30), one tail [30,100) trimmed
	// to the shortest.
	if len(chunks) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(chunks))
	}
	if len(chunks[0]) != 20 || len(chunks[1]) != 20 {
		t.Errorf("expected rows trimmed to 20 samples, got %d and %d", len(chunks[0]), len(chunks[1]))
	}
}

func TestSegmentByStimulationMinChunkLen(t *testing.T) {
	raw := make([]float64, 50)
	chunks, err := SegmentByStimulation(raw, []int{10, 12, 30}, SegmentOptions{MinChunkLen: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The 2-sample chunk [10,12) is filtered; survivors [12,30) and
	// [30,50) trim to 18 samples.
	if len(chunks) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(chunks))
	}
	if len(chunks[0]) != 18 {
		t.Errorf("expected 18-sample rows, got %d", len(chunks[0]))
	}
}

func TestAverageByAmplitudeSingle(t *testing.T) {
	chunks := [][]float64{{1, 2}, {3, 4}, {5, 6}}

	got, err := AverageByAmplitude(chunks, []float64{0.5}, 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected single averaged row, got %d", len(got))
	}
	want := []float64{3, 4}
	for j := range want {
		if math.Abs(got[0][j]-want[j]) > 1e-12 {
			t.Errorf("column %d: expected %g, got %g", j, want[j], got[0][j])
		}
	}
}

func TestAverageByAmplitudeInferred(t *testing.T) {
	chunks := [][]float64{{1}, {3}, {10}, {20}}

	got, err := AverageByAmplitude(chunks, []float64{0.2, 0.4}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 averaged rows, got %d", len(got))
	}
	if got[0][0] != 2 || got[1][0] != 15 {
		t.Errorf("expected block means 2 and 15, got %g and %g", got[0][0], got[1][0])
	}
}

func TestAverageByAmplitudeOverrunYieldsNaNRows(t *testing.T) {
	chunks := [][]float64{{1, 2}, {3, 4}}

	// 2 pulses per amplitude exhaust the matrix on the first amplitude;
	// the second gets no chunks and averages to NaN.
	got, err := AverageByAmplitude(chunks, []float64{0.2, 0.4}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0][0] != 2 || got[0][1] != 3 {
		t.Errorf("expected first row {2 3}, got %v", got[0])
	}
	if len(got[1]) != 2 || !math.IsNaN(got[1][0]) || !math.IsNaN(got[1][1]) {
		t.Errorf("expected full-width NaN row for the starved amplitude, got %v", got[1])
	}
}

func TestAverageByAmplitudeStrict(t *testing.T) {
	chunks := [][]float64{{1}, {2}, {3}}
	if _, err := AverageByAmplitudeStrict(chunks, []float64{0.2, 0.4}, 0); err == nil {
		t.Error("expected error for non-divisible row count")
	}
	if _, err := AverageByAmplitudeStrict(chunks, []float64{0.2, 0.4, 0.6}, 0); err != nil {
		t.Errorf("unexpected error for divisible rows: %v", err)
	}
}

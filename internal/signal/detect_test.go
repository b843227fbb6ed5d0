package signal

import (
	"errors"
	"math"
	"testing"
)

func TestBinarizeByMean(t *testing.T) {
	got := BinarizeByMean([]float64{0, 0, 10, 10})
	want := []int{0, 0, 1, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestDetectRisingEdges(t *testing.T) {
	//           0  1  2  3  4  5  6  7  8  9
	sig := []float64{0, 0, 1, 1, 0, 0, 1, 0, 1, 1}

	got := DetectRisingEdges(sig, 0)
	want := []int{2, 6, 8}
	if len(got) != len(want) {
		t.Fatalf("expected %d edges, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("edge %d: expected %d, got %d", i, want[i], got[i])
		}
	}

	if got := DetectRisingEdges(sig, 2); len(got) != 2 {
		t.Errorf("expected trim to 2 edges, got %v", got)
	}
	// Fewer edges than expected pass through unchanged.
	if got := DetectRisingEdges(sig, 10); len(got) != 3 {
		t.Errorf("expected 3 edges with oversized expectation, got %v", got)
	}
}

func TestClosestIndex(t *testing.T) {
	idx, err := ClosestIndex([]float64{1.0, 5.0, 10.0}, 4.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != 1 {
		t.Errorf("expected index 1, got %d", idx)
	}
}

func TestClosestIndexRejectsNaN(t *testing.T) {
	if _, err := ClosestIndex([]float64{1.0, math.NaN(), 5.0}, 2.0); err == nil {
		t.Error("expected error for NaN input")
	}
}

func TestClosestSmallerIndex(t *testing.T) {
	if idx := ClosestSmallerIndex([]float64{1.0, 3.0, 7.0}, 5.0); idx != 1 {
		t.Errorf("expected index 1, got %d", idx)
	}
	// Degenerate default: nothing smaller still yields 0.
	if idx := ClosestSmallerIndex([]float64{10.0, 20.0}, 5.0); idx != 0 {
		t.Errorf("expected degenerate index 0, got %d", idx)
	}
}

func TestClosestSmallerIndexStrict(t *testing.T) {
	idx, err := ClosestSmallerIndexStrict([]float64{1.0, 3.0, 7.0}, 5.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != 1 {
		t.Errorf("expected index 1, got %d", idx)
	}

	if _, err := ClosestSmallerIndexStrict([]float64{10.0, 20.0}, 5.0); !errors.Is(err, ErrNoSmallerValue) {
		t.Errorf("expected ErrNoSmallerValue, got %v", err)
	}
}

func TestRunningMean(t *testing.T) {
	sig := []float64{1, 2, 3, 4, 5}

	got := RunningMean(sig, 2)
	if len(got) != len(sig)-1 {
		t.Fatalf("expected length %d, got %d", len(sig)-1, len(got))
	}
	want := []float64{1.5, 2.5, 3.5, 4.5}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("sample %d: expected %g, got %g", i, want[i], got[i])
		}
	}

	whole := RunningMean(sig, len(sig))
	if len(whole) != 1 || math.Abs(whole[0]-3.0) > 1e-12 {
		t.Errorf("expected single whole-signal mean 3.0, got %v", whole)
	}

	if RunningMean(sig, 6) != nil {
		t.Error("expected nil for window larger than signal")
	}
}

func TestTrimToEqualLength(t *testing.T) {
	got := TrimToEqualLength([][]int{{1, 2, 3, 4}, {1, 2}, {1, 2, 3}})
	for i, s := range got {
		if len(s) != 2 {
			t.Errorf("sequence %d: expected length 2, got %d", i, len(s))
		}
	}
	if got[0][0] != 1 || got[0][1] != 2 {
		t.Errorf("sequence starts must be preserved, got %v", got[0])
	}
}

func TestLowPassConstantIsUnchanged(t *testing.T) {
	sig := make([]float64, 100)
	for i := range sig {
		sig[i] = 10
	}

	out := LowPass(sig, 6, 200)
	for i, v := range out {
		if math.Abs(v-10) > 1e-9 {
			t.Fatalf("sample %d: constant signal distorted to %g", i, v)
		}
	}
}

func TestLowPassBaselineStartHasNoEdgeTransient(t *testing.T) {
	const fs = 200.0
	// Starts exactly at the 10.0 baseline; an edge transient would push
	// the first filtered samples off it.
	sig := make([]float64, 500)
	for i := range sig {
		sig[i] = 10 + 8*math.Sin(2*math.Pi*float64(i)/50)
	}

	out := LowPass(sig, 6, fs)
	if math.Abs(out[0]-10) > 0.2 {
		t.Errorf("first sample drifted to %g, expected near the 10.0 baseline", out[0])
	}
	if math.Abs(out[len(out)-1]-sig[len(sig)-1]) > 1.0 {
		t.Errorf("last sample drifted to %g, raw value is %g", out[len(out)-1], sig[len(sig)-1])
	}
}

func TestLowPassPreservesSlowSine(t *testing.T) {
	const fs = 200.0
	sig := make([]float64, 400)
	for i := range sig {
		sig[i] = math.Sin(2 * math.Pi * 2 * float64(i) / fs)
	}

	out := LowPass(sig, 20, fs)
	if len(out) != len(sig) {
		t.Fatalf("expected length %d, got %d", len(sig), len(out))
	}
	// Zero-phase filtering should track a well-below-cutoff sine closely
	// away from the edges.
	for i := 50; i < len(sig)-50; i++ {
		if math.Abs(out[i]-sig[i]) > 0.05 {
			t.Fatalf("sample %d: filtered %g deviates from %g", i, out[i], sig[i])
		}
	}
}

package gait

import (
	"fmt"

	gaitsignal "github.com/gaitlab/neurogait/internal/signal"
)

// Marker jitter sits well above the stepping frequency of rodent and human
// gait, so a fixed low cutoff is enough to stabilize cycle detection.
const liftLandCutoffHz = 6.0

// CycleEvents holds the parallel event series for one limb. Lifts and lands
// alternate so that every lift precedes its land; Peaks[i] is the index of
// the swing apex between Lifts[i] and Lands[i].
type CycleEvents struct {
	Lifts []int
	Lands []int
	Peaks []int
}

// Cycles returns the number of complete lift/land cycles.
func (c CycleEvents) Cycles() int { return len(c.Lifts) }

// DetectStepCycles derives lift, land and swing-peak indices for a single
// limb trace. The raw trajectory is low-passed first (zero phase) to
// suppress marker jitter, then thresholded at its mean height: crossings up
// mark lifts, crossings back down mark lands, and the swing peak is the raw
// maximum between the two. Boundary cycles that start mid-swing (a land
// with no preceding lift) or end mid-swing (a lift with no following land)
// are dropped rather than guessed.
func DetectStepCycles(trace []float64, fs float64) CycleEvents {
	var events CycleEvents
	if len(trace) == 0 {
		return events
	}

	filtered := gaitsignal.LowPass(trace, liftLandCutoffHz, fs)

	mean := 0.0
	for _, v := range filtered {
		mean += v
	}
	mean /= float64(len(filtered))

	// Starting above the threshold means the trace begins mid-swing; no
	// lift is recorded until it first returns below, which drops that
	// boundary cycle.
	prev := filtered[0] > mean
	var lift int
	haveLift := false
	for i, v := range filtered {
		cur := v > mean
		switch {
		case cur && !prev:
			lift = i
			haveLift = true
		case !cur && prev && haveLift:
			land := i
			events.Lifts = append(events.Lifts, lift)
			events.Lands = append(events.Lands, land)
			events.Peaks = append(events.Peaks, peakBetween(trace, lift, land))
			haveLift = false
		}
		prev = cur
	}
	// A trailing lift without a land is discarded by construction.
	return events
}

// peakBetween returns the index of the raw maximum in [start, end).
func peakBetween(trace []float64, start, end int) int {
	peak := start
	for i := start + 1; i < end && i < len(trace); i++ {
		if trace[i] > trace[peak] {
			peak = i
		}
	}
	return peak
}

// ComputeCycleBounds detects step cycles for the left and right reference
// markers on the given axis. The two sides are detected independently: gait
// may be asymmetric, so no cross-limb synchronization is enforced and the
// left/right cycle counts are not guaranteed to match.
func ComputeCycleBounds(ts *TrajectorySet, leftMarker, rightMarker, axis string) (left, right CycleEvents, err error) {
	leftTrace, err := ts.Trajectory(leftMarker, axis)
	if err != nil {
		return left, right, fmt.Errorf("left reference marker: %w", err)
	}
	rightTrace, err := ts.Trajectory(rightMarker, axis)
	if err != nil {
		return left, right, fmt.Errorf("right reference marker: %w", err)
	}

	left = DetectStepCycles(leftTrace, ts.FS())
	right = DetectStepCycles(rightTrace, ts.FS())
	return left, right, nil
}

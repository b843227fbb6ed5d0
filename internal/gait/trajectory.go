// Package gait derives discrete gait-cycle events (foot lift, foot land and
// the swing peak between them) from motion-capture marker trajectories.
package gait

import (
	"fmt"
	"sort"
)

// Axis names used by marker trajectories.
const (
	AxisX = "x"
	AxisY = "y"
	AxisZ = "z"
)

// TrajectorySet holds the trajectories of one recorded run, organized as
// marker → axis → samples at a single sampling rate. Rows are strictly
// time-ordered; gap filling is the importer's concern.
type TrajectorySet struct {
	fs      float64
	markers []string
	data    map[string]map[string][]float64
}

// NewTrajectorySet creates an empty trajectory table for a recording
// sampled at fs Hz.
func NewTrajectorySet(fs float64) *TrajectorySet {
	return &TrajectorySet{
		fs:   fs,
		data: make(map[string]map[string][]float64),
	}
}

// FS returns the sampling rate in Hz.
func (t *TrajectorySet) FS() float64 { return t.fs }

// Markers returns the marker names in insertion order.
func (t *TrajectorySet) Markers() []string {
	out := make([]string, len(t.markers))
	copy(out, t.markers)
	return out
}

// Set stores the samples of one marker axis, replacing any previous data
// for that marker/axis pair.
func (t *TrajectorySet) Set(marker, axis string, samples []float64) {
	axes, ok := t.data[marker]
	if !ok {
		axes = make(map[string][]float64)
		t.data[marker] = axes
		t.markers = append(t.markers, marker)
	}
	axes[axis] = samples
}

// Trajectory returns the samples of one marker axis. An unknown marker is a
// validation error listing the available markers so the caller can
// self-correct.
func (t *TrajectorySet) Trajectory(marker, axis string) ([]float64, error) {
	axes, ok := t.data[marker]
	if !ok {
		return nil, &UnknownMarkerError{Marker: marker, Available: t.Markers()}
	}
	samples, ok := axes[axis]
	if !ok {
		available := make([]string, 0, len(axes))
		for a := range axes {
			available = append(available, a)
		}
		sort.Strings(available)
		return nil, fmt.Errorf("marker %q has no axis %q, available axes: %v", marker, axis, available)
	}
	return samples, nil
}

// Frame returns the 3D position of a marker at one sample index.
func (t *TrajectorySet) Frame(marker string, i int) ([3]float64, error) {
	var p [3]float64
	for d, axis := range []string{AxisX, AxisY, AxisZ} {
		samples, err := t.Trajectory(marker, axis)
		if err != nil {
			return p, err
		}
		if i < 0 || i >= len(samples) {
			return p, fmt.Errorf("frame %d out of range for marker %q axis %q (%d samples)", i, marker, axis, len(samples))
		}
		p[d] = samples[i]
	}
	return p, nil
}

// Len returns the number of frames of the first marker's first axis, or 0
// for an empty set.
func (t *TrajectorySet) Len() int {
	for _, m := range t.markers {
		for _, samples := range t.data[m] {
			return len(samples)
		}
	}
	return 0
}

// UnknownMarkerError reports a reference marker that is absent from the
// trajectory table.
type UnknownMarkerError struct {
	Marker    string
	Available []string
}

func (e *UnknownMarkerError) Error() string {
	return fmt.Sprintf("marker %q is not among the recorded markers, select one of: %v", e.Marker, e.Available)
}

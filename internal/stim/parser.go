// Package stim derives stimulation-onset timestamps from a sync channel,
// segments raw neural recordings into onset-aligned chunks and averages
// them into per-amplitude blocks.
package stim

import (
	"errors"
	"fmt"
	"math"

	gaitsignal "github.com/gaitlab/neurogait/internal/signal"
)

// RoundMode selects the sample-rounding rule of TimeToSample. T1 and T2
// reproduce the asymmetric rounding of the recording system's own
// time-to-sample conversion; existing datasets depend on it exactly.
type RoundMode int

const (
	// RoundNearest rounds to the nearest sample.
	RoundNearest RoundMode = iota
	// RoundT1 rounds a window start up to the next sample.
	RoundT1
	// RoundT2 rounds a window end down, stepping one sample back when the
	// product is exact so the end sample is not counted twice.
	RoundT2
)

// Block bounds one period of stimulation at a fixed amplitude. End is
// exclusive and always greater than Start.
type Block struct {
	Start int
	End   int
}

// TimeToSample converts a timestamp in seconds to a sample index at fs.
func TimeToSample(t, fs float64, mode RoundMode) int {
	sample := t * fs
	switch mode {
	case RoundT1:
		return int(math.Ceil(sample))
	case RoundT2:
		exact := math.Round(sample*1e9) / 1e9
		floored := math.Floor(sample)
		if exact == floored {
			floored--
		}
		return int(floored)
	default:
		return int(math.Round(sample))
	}
}

// DetectOnsets returns the sample indices of stimulation onsets on the sync
// channel, trimmed to expectedPulses when positive. Fewer detected onsets
// than expected pass through unchanged.
func DetectOnsets(sync []float64, expectedPulses int) []int {
	return gaitsignal.DetectRisingEdges(sync, expectedPulses)
}

// LocateBlocks derives the (start, end) sample bounds of each stimulation
// block from a recording where nAmplitudes amplitudes were tested with
// pulsesPerBlock pulses each. Block onset is every pulsesPerBlock-th pulse
// onset; block end is onset plus the stimulation duration converted with
// the T2 rounding rule.
//
// sync holds one slice per recorded sync channel. Multi-channel sync data
// is ambiguous: the caller must pick the stimulation channel first.
func LocateBlocks(sync [][]float64, nAmplitudes, pulsesPerBlock int, stimDuration, fs float64) ([]Block, error) {
	if len(sync) != 1 {
		return nil, fmt.Errorf("sync data has %d channels: channel selection is ambiguous, pick the stimulation channel before locating blocks", len(sync))
	}
	if nAmplitudes < 1 || pulsesPerBlock < 1 {
		return nil, fmt.Errorf("invalid block layout: %d amplitudes, %d pulses per block", nAmplitudes, pulsesPerBlock)
	}

	totalPulses := nAmplitudes * pulsesPerBlock
	onsets := DetectOnsets(sync[0], totalPulses)

	stimLen := TimeToSample(stimDuration, fs, RoundT2)

	var blocks []Block
	for i := 0; i < len(onsets); i += pulsesPerBlock {
		blocks = append(blocks, Block{Start: onsets[i], End: onsets[i] + stimLen})
	}
	return blocks, nil
}

// SegmentOptions modifies SegmentByStimulation.
type SegmentOptions struct {
	// PreOnsetSamples shifts every onset backward to include baseline
	// before the stimulation. The first shifted onset is clamped to 0.
	PreOnsetSamples int
	// SkipEveryOther keeps only every second onset, for paired-pulse
	// protocols where the intermediate pulse is not a chunk boundary.
	SkipEveryOther bool
	// MinChunkLen filters out chunks shorter than this many samples.
	// Values below 1 are treated as 1, which also discards the empty
	// tail chunk when the last onset falls on the end of the recording.
	MinChunkLen int
}

// SegmentByStimulation splits raw at the (adjusted) onset indices and
// stacks the resulting chunks into a matrix of equal-length rows aligned to
// stimulation onset. The chunk preceding the first onset is always
// discarded; surviving chunks are trimmed to the shortest survivor.
func SegmentByStimulation(raw []float64, onsets []int, opts SegmentOptions) ([][]float64, error) {
	if len(onsets) == 0 {
		return nil, errors.New("no stimulation onsets to segment by")
	}
	minLen := opts.MinChunkLen
	if minLen < 1 {
		minLen = 1
	}

	adjusted := make([]int, len(onsets))
	for i, idx := range onsets {
		adjusted[i] = idx - opts.PreOnsetSamples
	}
	if adjusted[0] < 0 {
		adjusted[0] = 0
	}

	if opts.SkipEveryOther {
		kept := adjusted[:0]
		for i := 0; i < len(adjusted); i += 2 {
			kept = append(kept, adjusted[i])
		}
		adjusted = kept
	}

	var chunks [][]float64
	for i, start := range adjusted {
		if start < 0 || start > len(raw) {
			return nil, fmt.Errorf("onset %d out of range for %d raw samples", start, len(raw))
		}
		end := len(raw)
		if i+1 < len(adjusted) {
			end = adjusted[i+1]
			if end < start {
				return nil, fmt.Errorf("onsets not strictly increasing at index %d", i)
			}
		}
		if end-start >= minLen {
			chunks = append(chunks, raw[start:end])
		}
	}
	if len(chunks) == 0 {
		return nil, errors.New("no chunks survive the minimum-length filter")
	}
	return gaitsignal.TrimToEqualLength(chunks), nil
}

// AverageByAmplitude averages contiguous equal-sized blocks of chunk rows
// in amplitude order. With a single tested amplitude the whole matrix is
// averaged regardless of pulsesPerAmplitude. When pulsesPerAmplitude is 0
// it is inferred as rows/len(testedAmplitudes); this inference silently
// mis-segments when amplitudes were tested an unequal number of times.
// A pulsesPerAmplitude that overruns the matrix yields NaN rows for the
// amplitudes left with no chunks. AverageByAmplitudeStrict validates
// divisibility instead.
func AverageByAmplitude(chunks [][]float64, testedAmplitudes []float64, pulsesPerAmplitude int) ([][]float64, error) {
	if len(chunks) == 0 {
		return nil, errors.New("empty chunk matrix")
	}
	if len(testedAmplitudes) == 0 {
		return nil, errors.New("no tested amplitudes")
	}
	if len(testedAmplitudes) == 1 {
		return [][]float64{averageRows(chunks, 0, len(chunks))}, nil
	}

	if pulsesPerAmplitude == 0 {
		pulsesPerAmplitude = len(chunks) / len(testedAmplitudes)
	}
	if pulsesPerAmplitude < 1 {
		return nil, fmt.Errorf("cannot infer pulses per amplitude: %d rows for %d amplitudes", len(chunks), len(testedAmplitudes))
	}

	out := make([][]float64, 0, len(testedAmplitudes))
	for i := range testedAmplitudes {
		start := i * pulsesPerAmplitude
		stop := (i + 1) * pulsesPerAmplitude
		if start > len(chunks) {
			start = len(chunks)
		}
		if stop > len(chunks) {
			stop = len(chunks)
		}
		out = append(out, averageRows(chunks, start, stop))
	}
	return out, nil
}

// AverageByAmplitudeStrict behaves like AverageByAmplitude but rejects row
// counts that do not divide evenly across the tested amplitudes.
func AverageByAmplitudeStrict(chunks [][]float64, testedAmplitudes []float64, pulsesPerAmplitude int) ([][]float64, error) {
	if len(testedAmplitudes) > 1 {
		if pulsesPerAmplitude == 0 && len(chunks)%len(testedAmplitudes) != 0 {
			return nil, fmt.Errorf("%d chunk rows do not divide evenly across %d amplitudes", len(chunks), len(testedAmplitudes))
		}
		if pulsesPerAmplitude > 0 && pulsesPerAmplitude*len(testedAmplitudes) != len(chunks) {
			return nil, fmt.Errorf("%d amplitudes x %d pulses do not match %d chunk rows", len(testedAmplitudes), pulsesPerAmplitude, len(chunks))
		}
	}
	return AverageByAmplitude(chunks, testedAmplitudes, pulsesPerAmplitude)
}

// averageRows returns the column-wise mean over rows [start, stop). An
// empty range yields a row of NaN, the mean of no samples, so an oversized
// pulsesPerAmplitude surfaces as NaN rows rather than shortened output.
func averageRows(rows [][]float64, start, stop int) []float64 {
	out := make([]float64, len(rows[0]))
	if start >= stop {
		for j := range out {
			out[j] = math.NaN()
		}
		return out
	}
	for _, row := range rows[start:stop] {
		for j, v := range row {
			out[j] += v
		}
	}
	n := float64(stop - start)
	for j := range out {
		out[j] /= n
	}
	return out
}

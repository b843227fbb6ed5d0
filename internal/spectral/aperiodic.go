package spectral

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	gaitsignal "github.com/gaitlab/neurogait/internal/signal"
)

// Fraction of flattened-spectrum mass kept when refitting the aperiodic
// component, matching the robust fit of the reference decomposition.
const robustPercentile = 0.025

// FreqRange restricts spectral computations to [Low, High] Hz.
type FreqRange struct {
	Low  float64
	High float64
}

// AperiodicFit models the smooth 1/f background of a power spectrum as
// log10(power) = offset - exponent*log10(freq) and returns the modeled
// log10 power at every input frequency. The fit is run twice: an initial
// least-squares pass, then a refit restricted to the points least elevated
// above the initial fit, so oscillatory peaks do not drag the background
// upward. Zero and negative frequencies are excluded from the fit but still
// receive a modeled value.
func AperiodicFit(freqs, power []float64) ([]float64, error) {
	if len(freqs) != len(power) {
		return nil, fmt.Errorf("frequency and power lengths differ: %d vs %d", len(freqs), len(power))
	}

	var logF, logP []float64
	for i, f := range freqs {
		if f <= 0 || power[i] <= 0 {
			continue
		}
		logF = append(logF, math.Log10(f))
		logP = append(logP, math.Log10(power[i]))
	}
	if len(logF) < 2 {
		return nil, errors.New("not enough positive-frequency points for an aperiodic fit")
	}

	offset, slope := stat.LinearRegression(logF, logP, nil, false)

	// Flatten against the initial fit; points well above it belong to
	// oscillatory peaks and are excluded from the refit.
	flat := make([]float64, len(logF))
	for i := range logF {
		flat[i] = logP[i] - (offset + slope*logF[i])
		if flat[i] < 0 {
			flat[i] = 0
		}
	}
	sorted := append([]float64(nil), flat...)
	sort.Float64s(sorted)
	thresh := stat.Quantile(robustPercentile, stat.Empirical, sorted, nil)

	var refitF, refitP []float64
	for i := range flat {
		if flat[i] <= thresh {
			refitF = append(refitF, logF[i])
			refitP = append(refitP, logP[i])
		}
	}
	if len(refitF) >= 2 {
		offset, slope = stat.LinearRegression(refitF, refitP, nil, false)
	}

	fit := make([]float64, len(freqs))
	for i, f := range freqs {
		if f <= 0 {
			fit[i] = offset
			continue
		}
		fit[i] = offset + slope*math.Log10(f)
	}
	return fit, nil
}

// PeriodicPSD isolates the oscillatory component of a power spectrum:
// log10 power minus the fitted aperiodic background, restricted to frange
// when given. Returns the restricted frequencies and the residual.
func PeriodicPSD(freqs, power []float64, frange *FreqRange) ([]float64, []float64, error) {
	subFreqs, subPower := restrict(freqs, power, frange)
	fit, err := AperiodicFit(subFreqs, subPower)
	if err != nil {
		return nil, nil, err
	}
	periodic := make([]float64, len(subPower))
	for i, p := range subPower {
		periodic[i] = safeLog10(p) - fit[i]
	}
	return subFreqs, periodic, nil
}

// FlattenedSpectrogram returns a spectrogram from which the aperiodic
// background has been removed. For performance the background is fitted
// once on the Welch-averaged spectrum, not per time slice, and subtracted
// uniformly from every column after restricting rows to frange via
// closest-smaller-index bounds. The time axis is in samples, one point per
// spectrogram column.
func FlattenedSpectrogram(raw []float64, fs float64, nperseg, noverlap int, frange FreqRange) (times, freqs []float64, matrix [][]float64, err error) {
	_, _, sxx, err := Spectrogram(raw, fs, nperseg, noverlap)
	if err != nil {
		return nil, nil, nil, err
	}
	psd, err := Welch(raw, fs, nperseg, noverlap)
	if err != nil {
		return nil, nil, nil, err
	}

	lower := gaitsignal.ClosestSmallerIndex(psd.Freqs, frange.Low)
	upper := gaitsignal.ClosestSmallerIndex(psd.Freqs, frange.High)
	if upper <= lower {
		return nil, nil, nil, fmt.Errorf("frequency range [%g, %g] selects no spectrogram rows", frange.Low, frange.High)
	}

	fit, err := AperiodicFit(psd.Freqs[lower:upper], psd.Power[lower:upper])
	if err != nil {
		return nil, nil, nil, err
	}

	nrows := upper - lower
	matrix = make([][]float64, nrows)
	for r := 0; r < nrows; r++ {
		src := sxx[lower+r]
		row := make([]float64, len(src))
		// The background is subtracted in reversed row order, matching
		// the orientation of existing derived datasets.
		ap := fit[nrows-1-r]
		for c, v := range src {
			row[c] = safeLog10(v) - ap
		}
		matrix[r] = row
	}

	cols := len(matrix[nrows-1])
	step := nperseg - noverlap
	times = linspace(0, float64(cols*step), cols)
	return times, psd.Freqs[lower:upper], matrix, nil
}

func restrict(freqs, power []float64, frange *FreqRange) ([]float64, []float64) {
	if frange == nil {
		return freqs, power
	}
	var outF, outP []float64
	for i, f := range freqs {
		if f >= frange.Low && f <= frange.High {
			outF = append(outF, f)
			outP = append(outP, power[i])
		}
	}
	return outF, outP
}

func safeLog10(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return math.Log10(v)
}

func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

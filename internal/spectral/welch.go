// Package spectral wraps power-spectral-density estimation, spectrogram
// generation and periodic/aperiodic decomposition into timepoint-aligned
// feature matrices.
package spectral

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/stat"
)

// PSD is a power spectral density estimate: Power[i] at Freqs[i] Hz.
type PSD struct {
	Freqs []float64
	Power []float64
}

// Welch estimates the power spectral density of sig sampled at fs using
// Welch's method: Hann-windowed segments of nperseg samples overlapping by
// noverlap, mean-detrended, averaged in the frequency domain. A signal
// shorter than nperseg is estimated from a single truncated segment.
func Welch(sig []float64, fs float64, nperseg, noverlap int) (PSD, error) {
	segments, err := segmentIndices(len(sig), &nperseg, &noverlap)
	if err != nil {
		return PSD{}, err
	}

	fft := fourier.NewFFT(nperseg)
	win := hannWindow(nperseg)
	nbins := nperseg/2 + 1

	power := make([]float64, nbins)
	scratch := make([]float64, nperseg)
	coeffs := make([]complex128, nbins)
	for _, start := range segments {
		periodogram(sig[start:start+nperseg], fs, fft, win, scratch, coeffs, power)
	}
	for i := range power {
		power[i] /= float64(len(segments))
	}

	return PSD{Freqs: binFrequencies(fft, fs, nbins), Power: power}, nil
}

// Spectrogram returns the short-time power spectral density of sig: one
// column per segment, one row per frequency bin, with times holding each
// segment's center in seconds.
func Spectrogram(sig []float64, fs float64, nperseg, noverlap int) (times, freqs []float64, power [][]float64, err error) {
	segments, err := segmentIndices(len(sig), &nperseg, &noverlap)
	if err != nil {
		return nil, nil, nil, err
	}

	fft := fourier.NewFFT(nperseg)
	win := hannWindow(nperseg)
	nbins := nperseg/2 + 1

	freqs = binFrequencies(fft, fs, nbins)
	power = make([][]float64, nbins)
	for i := range power {
		power[i] = make([]float64, len(segments))
	}

	times = make([]float64, len(segments))
	scratch := make([]float64, nperseg)
	coeffs := make([]complex128, nbins)
	column := make([]float64, nbins)
	for c, start := range segments {
		times[c] = (float64(start) + float64(nperseg)/2) / fs

		clear(column)
		periodogram(sig[start:start+nperseg], fs, fft, win, scratch, coeffs, column)
		for r := range column {
			power[r][c] = column[r]
		}
	}
	return times, freqs, power, nil
}

// ZScore standardizes v to zero mean and unit variance. A constant input
// returns all zeros.
func ZScore(v []float64) []float64 {
	mean, std := stat.MeanStdDev(v, nil)
	out := make([]float64, len(v))
	if std == 0 || math.IsNaN(std) {
		return out
	}
	for i, x := range v {
		out[i] = (x - mean) / std
	}
	return out
}

// segmentIndices resolves nperseg/noverlap defaults against the signal
// length and returns the start index of every full segment.
func segmentIndices(n int, nperseg, noverlap *int) ([]int, error) {
	if n == 0 {
		return nil, errors.New("empty signal")
	}
	if *nperseg <= 0 {
		*nperseg = 256
	}
	if *nperseg > n {
		*nperseg = n
	}
	if *noverlap < 0 || *noverlap >= *nperseg {
		*noverlap = *nperseg / 2
	}

	step := *nperseg - *noverlap
	var segments []int
	for start := 0; start+*nperseg <= n; start += step {
		segments = append(segments, start)
	}
	if len(segments) == 0 {
		segments = []int{0}
	}
	return segments, nil
}

// periodogram accumulates the density-scaled periodogram of one segment
// into power.
func periodogram(seg []float64, fs float64, fft *fourier.FFT, win []float64, scratch []float64, coeffs []complex128, power []float64) {
	mean := stat.Mean(seg, nil)
	var winSq float64
	for i := range seg {
		scratch[i] = (seg[i] - mean) * win[i]
		winSq += win[i] * win[i]
	}

	fft.Coefficients(coeffs, scratch)

	scale := 1 / (fs * winSq)
	for i, c := range coeffs {
		p := (real(c)*real(c) + imag(c)*imag(c)) * scale
		// One-sided spectrum: double everything except DC and Nyquist.
		if i != 0 && i != len(coeffs)-1 {
			p *= 2
		}
		power[i] += p
	}
}

func hannWindow(n int) []float64 {
	win := make([]float64, n)
	for i := range win {
		win[i] = 1
	}
	return window.Hann(win)
}

func binFrequencies(fft *fourier.FFT, fs float64, nbins int) []float64 {
	freqs := make([]float64, nbins)
	for i := range freqs {
		freqs[i] = fft.Freq(i) * fs
	}
	return freqs
}

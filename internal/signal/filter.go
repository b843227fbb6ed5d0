package signal

import "math"

// LowPass applies a second-order Butterworth low-pass filter forward and
// backward over the signal, giving a zero-phase response. Event indices
// derived from the filtered trace therefore line up with the raw trace.
// The signal is extended on both sides with odd-reflected samples and each
// pass starts in DC steady state, so the boundary samples carry no startup
// transient. A cutoff at or above the Nyquist frequency returns a copy of
// the input.
func LowPass(sig []float64, cutoffHz, fs float64) []float64 {
	if len(sig) == 0 {
		return nil
	}
	if cutoffHz <= 0 || cutoffHz >= fs/2 {
		out := make([]float64, len(sig))
		copy(out, sig)
		return out
	}

	b, a := butterworthLowPass(cutoffHz, fs)

	// Three times the section length per edge, as filtfilt pads.
	pad := 9
	if pad > len(sig)-1 {
		pad = len(sig) - 1
	}

	out := biquad(oddReflect(sig, pad), b, a)
	reverse(out)
	out = biquad(out, b, a)
	reverse(out)
	return out[pad : pad+len(sig)]
}

// oddReflect extends sig by pad samples on each side, point-reflected
// about the end values so the extension is continuous in value and slope.
func oddReflect(sig []float64, pad int) []float64 {
	n := len(sig)
	ext := make([]float64, n+2*pad)
	for i := 0; i < pad; i++ {
		ext[i] = 2*sig[0] - sig[pad-i]
		ext[pad+n+i] = 2*sig[n-1] - sig[n-2-i]
	}
	copy(ext[pad:], sig)
	return ext
}

// butterworthLowPass returns normalized biquad coefficients for a
// second-order Butterworth low-pass section via the bilinear transform.
func butterworthLowPass(cutoffHz, fs float64) (b, a [3]float64) {
	w0 := 2 * math.Pi * cutoffHz / fs
	cosw := math.Cos(w0)
	alpha := math.Sin(w0) / math.Sqrt2

	a0 := 1 + alpha
	b[0] = (1 - cosw) / 2 / a0
	b[1] = (1 - cosw) / a0
	b[2] = b[0]
	a[0] = 1
	a[1] = -2 * cosw / a0
	a[2] = (1 - alpha) / a0
	return b, a
}

// biquad runs a direct form II transposed filter pass. The delay line is
// initialized to the steady state for the first sample, so a constant
// signal passes through unchanged from sample zero.
func biquad(sig []float64, b, a [3]float64) []float64 {
	out := make([]float64, len(sig))
	h1 := (b[0] + b[1] + b[2]) / (1 + a[1] + a[2])
	z1 := (h1 - b[0]) * sig[0]
	z2 := (b[2] - a[2]*h1) * sig[0]
	for i, x := range sig {
		y := b[0]*x + z1
		z1 = b[1]*x + z2 - a[1]*y
		z2 = b[2]*x - a[2]*y
		out[i] = y
	}
	return out
}

func reverse(s []float64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

package pitch

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/notes"
)

const (
	// DefaultToleranceCents is how far a measurement may drift from the
	// target and still count as in tune.
	DefaultToleranceCents = 15.0

	MinFrequency = 20.0
	MaxFrequency = 5000.0

	minWindow = 2048
	maxWindow = 1 << 16

	// silenceRMS is the level below which a recording is treated as empty.
	silenceRMS = 1e-4
	// subharmonicRatio decides when a peak an octave down is the real fundamental.
	subharmonicRatio = 0.5
)

var ErrNoPitch = errors.New("no pitch detected")

// Hamming returns a Hamming window of length n.
func Hamming(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// MagnitudeSpectrum returns the magnitudes of the positive frequencies.
func MagnitudeSpectrum(spectrum []complex128) []float64 {
	half := len(spectrum) / 2
	mag := make([]float64, half)
	for i := 0; i < half; i++ {
		mag[i] = cmplx.Abs(spectrum[i])
	}
	return mag
}

// DetectFundamental estimates the fundamental frequency of a monophonic
// recording. The centre of the recording is windowed (up to 65536 samples),
// the strongest bin between MinFrequency and MaxFrequency is taken, checked
// for a stronger-than-expected sub-harmonic, and refined by parabolic
// interpolation of the log magnitudes.
func DetectFundamental(samples []float64, sampleRate int) (float64, error) {
	if sampleRate <= 0 {
		return 0, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	size := windowSize(len(samples))
	if size < minWindow {
		return 0, fmt.Errorf("%w: need at least %d samples, got %d", ErrNoPitch, minWindow, len(samples))
	}

	start := (len(samples) - size) / 2
	frame := make([]float64, size)
	copy(frame, samples[start:start+size])
	if rms(frame) < silenceRMS {
		return 0, fmt.Errorf("%w: recording is silent", ErrNoPitch)
	}

	window := Hamming(size)
	for i := range frame {
		frame[i] *= window[i]
	}
	mag := MagnitudeSpectrum(fft.FFTReal(frame))

	binHz := float64(sampleRate) / float64(size)
	lo := int(math.Ceil(MinFrequency / binHz))
	if lo < 1 {
		lo = 1
	}
	hi := int(math.Min(MaxFrequency, float64(sampleRate)/2) / binHz)
	if hi > len(mag)-2 {
		hi = len(mag) - 2
	}
	if hi <= lo {
		return 0, fmt.Errorf("%w: sample rate %d too low", ErrNoPitch, sampleRate)
	}

	peak := argmax(mag, lo, hi)
	if mag[peak] == 0 {
		return 0, ErrNoPitch
	}

	for {
		half := peak / 2
		if half < lo {
			break
		}
		sub := argmax(mag, max(lo, half-1), half+1)
		if mag[sub] < subharmonicRatio*mag[peak] || !isLocalMax(mag, sub) {
			break
		}
		peak = sub
	}

	return (float64(peak) + interpolate(mag, peak)) * binHz, nil
}

// Verification compares a detected pitch with the note it should sound.
type Verification struct {
	Note     notes.Note `json:"note"`
	Target   float64    `json:"target_frequency"`
	Detected float64    `json:"detected_frequency"`
	Cents    float64    `json:"cents"`
	InTune   bool       `json:"in_tune"`
}

// Verify reports the deviation in cents of detected from target.
// A non-positive tolerance means DefaultToleranceCents.
func Verify(note notes.Note, target, detected, toleranceCents float64) Verification {
	if toleranceCents <= 0 {
		toleranceCents = DefaultToleranceCents
	}
	c := Cents(target, detected)
	return Verification{
		Note:     note,
		Target:   target,
		Detected: math.Round(detected*100) / 100,
		Cents:    math.Round(c*10) / 10,
		InTune:   math.Abs(c) <= toleranceCents,
	}
}

// Cents is the interval from reference to f in hundredths of a semitone.
func Cents(reference, f float64) float64 {
	return 1200 * math.Log2(f/reference)
}

// Nearest returns the table note closest in pitch to f and the deviation
// in cents from it.
func Nearest(t *notes.Table, f float64) (notes.Note, float64, bool) {
	if !(f > 0) {
		return "", 0, false
	}
	var (
		best     notes.Note
		bestDiff = math.Inf(1)
	)
	for _, n := range t.Notes() {
		nf, _ := t.FrequencyOf(n)
		if d := math.Abs(Cents(nf, f)); d < bestDiff {
			best, bestDiff = n, d
		}
	}
	if best == "" {
		return "", 0, false
	}
	nf, _ := t.FrequencyOf(best)
	return best, Cents(nf, f), true
}

func windowSize(n int) int {
	size := 1
	for size*2 <= n && size*2 <= maxWindow {
		size *= 2
	}
	return size
}

func rms(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func argmax(x []float64, lo, hi int) int {
	best := lo
	for i := lo + 1; i <= hi; i++ {
		if x[i] > x[best] {
			best = i
		}
	}
	return best
}

func isLocalMax(x []float64, i int) bool {
	return i > 0 && i < len(x)-1 && x[i] >= x[i-1] && x[i] >= x[i+1]
}

// interpolate returns the fractional bin offset of the true peak near i.
func interpolate(mag []float64, i int) float64 {
	const eps = 1e-12
	a := math.Log(mag[i-1] + eps)
	b := math.Log(mag[i] + eps)
	c := math.Log(mag[i+1] + eps)
	denom := a - 2*b + c
	if denom == 0 {
		return 0
	}
	return 0.5 * (a - c) / denom
}

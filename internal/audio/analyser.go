package audio

import (
	"math"
	"sync"
	"time"
)

// Decibel range mapped onto byte magnitudes.
const (
	minDecibels = -100.0
	maxDecibels = -30.0
)

// Analyser keeps the most recent window of played samples and reports a
// smoothed magnitude spectrum of its lower bins. It implements Tap.
type Analyser struct {
	mu        sync.Mutex
	size      int
	smoothing float64
	ring      []float32
	pos       int
	window    []float64
	smoothed  []float64
	lastWrite time.Time
	idleAfter time.Duration
	now       func() time.Time
}

// NewAnalyser creates an analyser over fftSize samples with the given
// time smoothing in [0, 1).
func NewAnalyser(fftSize int, smoothing float64) *Analyser {
	if fftSize < 32 {
		fftSize = 512
	}
	smoothing = math.Max(0, math.Min(0.99, smoothing))

	window := make([]float64, fftSize)
	for n := range window {
		// Blackman
		x := float64(n) / float64(fftSize)
		window[n] = 0.42 - 0.5*math.Cos(2*math.Pi*x) + 0.08*math.Cos(4*math.Pi*x)
	}
	return &Analyser{
		size:      fftSize,
		smoothing: smoothing,
		ring:      make([]float32, fftSize),
		window:    window,
		smoothed:  make([]float64, fftSize/2),
		idleAfter: 150 * time.Millisecond,
		now:       time.Now,
	}
}

// Write implements Tap.
func (a *Analyser) Write(samples []float32, _ int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range samples {
		a.ring[a.pos] = s
		a.pos = (a.pos + 1) % a.size
	}
	a.lastWrite = a.now()
}

// Active reports whether samples arrived recently.
func (a *Analyser) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active()
}

// Reset silences the analysis window.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ring)
	clear(a.smoothed)
	a.lastWrite = time.Time{}
}

// ByteFrequencyData returns the first bins magnitudes scaled to 0-255.
func (a *Analyser) ByteFrequencyData(bins int) []uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()

	bins = max(0, min(bins, a.size/2))
	if !a.active() {
		clear(a.ring)
	}

	out := make([]uint8, bins)
	for k := 0; k < bins; k++ {
		var re, im float64
		for n := 0; n < a.size; n++ {
			x := float64(a.ring[(a.pos+n)%a.size]) * a.window[n]
			angle := 2 * math.Pi * float64(k) * float64(n) / float64(a.size)
			re += x * math.Cos(angle)
			im -= x * math.Sin(angle)
		}
		mag := math.Hypot(re, im) / float64(a.size)
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
		out[k] = toByte(a.smoothed[k])
	}
	return out
}

// LowBandLevel averages the first bins of the spectrum into [0, 1].
func (a *Analyser) LowBandLevel(bins int) float64 {
	data := a.ByteFrequencyData(bins)
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		sum += float64(v)
	}
	return sum / float64(len(data)) / 255
}

func (a *Analyser) active() bool {
	return !a.lastWrite.IsZero() && a.now().Sub(a.lastWrite) < a.idleAfter
}

func toByte(mag float64) uint8 {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	scaled := 255 * (db - minDecibels) / (maxDecibels - minDecibels)
	return uint8(math.Max(0, math.Min(255, scaled)))
}

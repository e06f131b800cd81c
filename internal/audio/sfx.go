package audio

import (
	"math"
	"sync/atomic"
)

// Effect names a feedback cue.
type Effect string

const (
	EffectNone      Effect = ""
	EffectCorrect   Effect = "correct"
	EffectIncorrect Effect = "incorrect"
	EffectStreak    Effect = "streak"
)

var streakNotes = []float64{523.25, 659.25, 783.99}

// SynthesizeEffect renders effect at sampleRate. EffectNone and unknown
// effects render nil.
func SynthesizeEffect(effect Effect, sampleRate int) *Buffer {
	if sampleRate <= 0 {
		sampleRate = SpeechSampleRate
	}
	switch effect {
	case EffectCorrect:
		return sweep(sampleRate, 0.3, 500, 1000, true, sine)
	case EffectIncorrect:
		return sweep(sampleRate, 0.2, 150, 100, false, sawtooth)
	case EffectStreak:
		return chord(sampleRate)
	}
	return nil
}

type waveform func(phase float64) float64

func sine(phase float64) float64 { return math.Sin(2 * math.Pi * phase) }

func sawtooth(phase float64) float64 { return 2*(phase-math.Floor(phase+0.5)) }

// sweep glides from f0 to f1 while the gain falls from 0.1 to 0.01.
func sweep(rate int, seconds, f0, f1 float64, expFreq bool, wave waveform) *Buffer {
	n := int(math.Round(seconds * float64(rate)))
	out := make([]float32, n)
	phase := 0.0
	for i := range out {
		t := float64(i) / float64(n)
		f := f0 + (f1-f0)*t
		if expFreq {
			f = f0 * math.Pow(f1/f0, t)
		}
		gain := 0.1 * math.Pow(0.01/0.1, t)
		out[i] = float32(gain * wave(phase))
		phase += f / float64(rate)
		phase -= math.Floor(phase)
	}
	return &Buffer{Samples: out, SampleRate: rate}
}

// chord staggers three rising notes by 0.1s, each 0.4s long.
func chord(rate int) *Buffer {
	const (
		stagger = 0.1
		length  = 0.4
		attack  = 0.05
	)
	total := int(math.Round((stagger*float64(len(streakNotes)-1) + length) * float64(rate)))
	out := make([]float32, total)
	for idx, freq := range streakNotes {
		start := int(math.Round(stagger * float64(idx) * float64(rate)))
		n := int(math.Round(length * float64(rate)))
		for i := 0; i < n && start+i < total; i++ {
			t := float64(i) / float64(rate)
			var gain float64
			if t < attack {
				gain = 0.1 * t / attack
			} else {
				gain = 0.1 * math.Pow(0.001/0.1, (t-attack)/(length-attack))
			}
			out[start+i] += float32(gain * math.Sin(2*math.Pi*freq*t))
		}
	}
	return &Buffer{Samples: out, SampleRate: rate}
}

// SFX plays feedback cues on an output.
type SFX struct {
	out     Output
	rate    int
	enabled atomic.Bool
}

// NewSFX creates a cue player. A nil output disables playback.
func NewSFX(out Output, sampleRate int, enabled bool) *SFX {
	s := &SFX{out: out, rate: sampleRate}
	s.enabled.Store(enabled)
	return s
}

// SetEnabled toggles cue playback.
func (s *SFX) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
}

// Enabled reports whether cues play.
func (s *SFX) Enabled() bool {
	return s.enabled.Load()
}

// Play renders effect without waiting for it to finish.
func (s *SFX) Play(effect Effect) {
	if s == nil || s.out == nil || !s.enabled.Load() {
		return
	}
	buf := SynthesizeEffect(effect, s.rate)
	if buf == nil {
		return
	}
	_, _ = s.out.Play(buf)
}

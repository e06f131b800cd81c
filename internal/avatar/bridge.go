// Package avatar turns playback loudness into a smoothed animation signal
package avatar

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Emotion is the avatar's expression
type Emotion string

const (
	EmotionNeutral  Emotion = "neutral"
	EmotionHappy    Emotion = "happy"
	EmotionSad      Emotion = "sad"
	EmotionThinking Emotion = "thinking"
)

// Level is the loudness source tapped into playback.
type Level interface {
	LowBandLevel(bins int) float64
	Active() bool
}

// Options tunes the animation signal
type Options struct {
	FPS     int
	Lerp    float64 // blend factor per frame
	Gain    float64
	Rest    float64 // mouth value in silence
	LowBins int
}

// DefaultOptions mirrors the desktop renderer's tuning
func DefaultOptions() Options {
	return Options{FPS: 30, Lerp: 0.45, Gain: 3.5, Rest: 0.05, LowBins: 20}
}

// Frame is one animation sample
type Frame struct {
	Mouth     float64 `json:"mouth"`
	Eyes      float64 `json:"eyes"`
	Volume    float64 `json:"volume"`
	Blink     bool    `json:"blink"`
	Speaking  bool    `json:"speaking"`
	Listening bool    `json:"listening"`
	Thinking  bool    `json:"thinking"`
	Emotion   Emotion `json:"emotion"`
}

const eyeRest = 1.5

// Bridge reads the analyser once per tick and interpolates the mouth and eye
// values toward targets derived from the low-band level.
type Bridge struct {
	mu    sync.RWMutex
	src   Level
	opts  Options
	frame Frame

	speaking bool
	blinkEnd time.Time
	now      func() time.Time
}

// NewBridge creates a bridge over src
func NewBridge(src Level, opts Options) *Bridge {
	def := DefaultOptions()
	if opts.FPS <= 0 {
		opts.FPS = def.FPS
	}
	if opts.Lerp <= 0 || opts.Lerp > 1 {
		opts.Lerp = def.Lerp
	}
	if opts.Gain <= 0 {
		opts.Gain = def.Gain
	}
	if opts.LowBins <= 0 {
		opts.LowBins = def.LowBins
	}
	return &Bridge{
		src:  src,
		opts: opts,
		frame: Frame{
			Mouth:   opts.Rest,
			Eyes:    eyeRest,
			Emotion: EmotionNeutral,
		},
		now: time.Now,
	}
}

// SetSpeaking marks whether speech playback owns the output. Sound effects
// never set it, so they do not move the mouth.
func (b *Bridge) SetSpeaking(speaking bool) {
	b.mu.Lock()
	b.speaking = speaking
	b.mu.Unlock()
}

// Speaking reports whether speech playback is marked active.
func (b *Bridge) Speaking() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.speaking
}

// SetListening toggles the listening pose while the microphone is open
func (b *Bridge) SetListening(listening bool) {
	b.mu.Lock()
	b.frame.Listening = listening
	if listening {
		b.frame.Thinking = false
	}
	b.mu.Unlock()
}

// SetThinking toggles the thinking pose while a request is in flight
func (b *Bridge) SetThinking(thinking bool) {
	b.mu.Lock()
	b.frame.Thinking = thinking
	if thinking {
		b.frame.Emotion = EmotionThinking
	} else if b.frame.Emotion == EmotionThinking {
		b.frame.Emotion = EmotionNeutral
	}
	b.mu.Unlock()
}

// SetEmotion sets the expression
func (b *Bridge) SetEmotion(e Emotion) {
	b.mu.Lock()
	b.frame.Emotion = e
	b.mu.Unlock()
}

// Blink closes the eyes for d
func (b *Bridge) Blink(d time.Duration) {
	b.mu.Lock()
	b.blinkEnd = b.now().Add(d)
	b.mu.Unlock()
}

// Frame returns the latest frame without advancing
func (b *Bridge) Frame() Frame {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frame
}

// Tick advances the animation by one frame
func (b *Bridge) Tick() Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	volume := 0.0
	speaking := b.speaking && b.src != nil && b.src.Active()
	if speaking {
		volume = b.src.LowBandLevel(b.opts.LowBins)
	}

	mouthTarget := volume*b.opts.Gain + b.opts.Rest
	eyeTarget := eyeRest + volume*5

	b.frame.Mouth = lerp(b.frame.Mouth, mouthTarget, b.opts.Lerp)
	b.frame.Eyes = lerp(b.frame.Eyes, eyeTarget, b.opts.Lerp-0.05)
	b.frame.Volume = volume
	b.frame.Speaking = speaking
	b.frame.Blink = b.now().Before(b.blinkEnd)
	return b.frame
}

// Run ticks at the configured rate until ctx is done, handing every frame to
// fn. It also schedules blinks every 3-7 seconds.
func (b *Bridge) Run(ctx context.Context, fn func(Frame)) {
	ticker := time.NewTicker(time.Second / time.Duration(b.opts.FPS))
	defer ticker.Stop()

	nextBlink := time.NewTimer(blinkInterval())
	defer nextBlink.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-nextBlink.C:
			b.Blink(120 * time.Millisecond)
			nextBlink.Reset(blinkInterval())
		case <-ticker.C:
			frame := b.Tick()
			if fn != nil {
				fn(frame)
			}
		}
	}
}

func blinkInterval() time.Duration {
	return 3*time.Second + time.Duration(rand.Int63n(int64(4*time.Second)))
}

func lerp(from, to, t float64) float64 {
	return from + (to-from)*t
}

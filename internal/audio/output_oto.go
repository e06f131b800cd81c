package audio

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process, so every OtoOutput view shares one.
type otoDevice struct {
	ctx    *oto.Context
	rate   int
	volume atomic.Uint64 // math.Float64bits
}

// OtoOutput plays buffers through the system speaker.
type OtoOutput struct {
	dev *otoDevice
	tap Tap
}

// NewOtoOutput opens the speaker at sampleRate. bufferSize is in bytes.
func NewOtoOutput(sampleRate, bufferSize int) (*OtoOutput, error) {
	if sampleRate <= 0 {
		sampleRate = SpeechSampleRate
	}
	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	}
	if bufferSize > 0 {
		// 2 bytes per mono sample
		opts.BufferSize = time.Duration(bufferSize/2) * time.Second / time.Duration(sampleRate)
	}

	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
	}
	<-ready

	dev := &otoDevice{ctx: ctx, rate: sampleRate}
	dev.volume.Store(math.Float64bits(1))
	return &OtoOutput{dev: dev}, nil
}

// WithTap returns a view of the same speaker that feeds tap while playing.
func (o *OtoOutput) WithTap(tap Tap) *OtoOutput {
	return &OtoOutput{dev: o.dev, tap: tap}
}

// Effects returns an untapped view of the same speaker, for short cues that
// should not move the avatar.
func (o *OtoOutput) Effects() *OtoOutput {
	return &OtoOutput{dev: o.dev}
}

// SetVolume sets the player volume in [0, 1] for all views.
func (o *OtoOutput) SetVolume(v float64) {
	o.dev.volume.Store(math.Float64bits(math.Max(0, math.Min(1, v))))
}

// SampleRate returns the speaker rate.
func (o *OtoOutput) SampleRate() int {
	return o.dev.rate
}

// Play implements Output.
func (o *OtoOutput) Play(buf *Buffer) (Playback, error) {
	if buf == nil || len(buf.Samples) == 0 {
		pb := newDonePlayback()
		pb.finish()
		return pb, nil
	}

	buf = Resample(buf, o.dev.rate)
	var src io.Reader = bytes.NewReader(EncodePCM16(buf.Samples))
	if o.tap != nil {
		src = &tapReader{inner: src, tap: o.tap, rate: o.dev.rate}
	}

	player := o.dev.ctx.NewPlayer(src)
	player.SetVolume(math.Float64frombits(o.dev.volume.Load()))
	player.Play()

	pb := &otoPlayback{player: player, done: make(chan struct{}), stop: make(chan struct{})}
	go pb.watch()
	return pb, nil
}

type otoPlayback struct {
	player   *oto.Player
	done     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func (p *otoPlayback) Done() <-chan struct{} { return p.done }

func (p *otoPlayback) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

func (p *otoPlayback) watch() {
	defer close(p.done)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for p.player.IsPlaying() {
		select {
		case <-p.stop:
			p.player.Pause()
			_ = p.player.Close()
			return
		case <-ticker.C:
		}
	}
	_ = p.player.Close()
}

// tapReader mirrors every chunk the player pulls into the analyser.
type tapReader struct {
	inner io.Reader
	tap   Tap
	rate  int
}

func (r *tapReader) Read(p []byte) (int, error) {
	n, err := r.inner.Read(p)
	if n > 1 {
		r.tap.Write(DecodePCM16(p[:n&^1], r.rate).Samples, r.rate)
	}
	return n, err
}

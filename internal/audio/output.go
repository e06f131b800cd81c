package audio

import (
	"sync"
	"time"
)

// Output renders mono buffers to a speaker.
type Output interface {
	Play(buf *Buffer) (Playback, error)
}

// Playback is one rendering started by an Output.
type Playback interface {
	// Done is closed when the buffer finished playing or was stopped.
	Done() <-chan struct{}
	// Stop halts the rendering. Safe to call more than once.
	Stop()
}

// Tap receives samples as they are handed to the speaker.
type Tap interface {
	Write(samples []float32, sampleRate int)
}

// DiscardOutput simulates playback without a sound device. Each playback
// lasts as long as its buffer would and is fed to the tap in real time.
type DiscardOutput struct {
	Tap Tap
	// Speed divides the simulated duration. Zero means real time.
	Speed float64
}

// Play implements Output.
func (o *DiscardOutput) Play(buf *Buffer) (Playback, error) {
	pb := newDonePlayback()
	if buf == nil || len(buf.Samples) == 0 || buf.SampleRate <= 0 {
		pb.finish()
		return pb, nil
	}

	go func() {
		defer pb.finish()

		const chunk = 20 * time.Millisecond
		per := buf.SampleRate * int(chunk/time.Millisecond) / 1000
		interval := chunk
		if o.Speed > 0 {
			interval = time.Duration(float64(chunk) / o.Speed)
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for pos := 0; pos < len(buf.Samples); pos += per {
			end := min(pos+per, len(buf.Samples))
			if o.Tap != nil {
				o.Tap.Write(buf.Samples[pos:end], buf.SampleRate)
			}
			select {
			case <-pb.stop:
				return
			case <-ticker.C:
			}
		}
	}()
	return pb, nil
}

type donePlayback struct {
	done     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	doneOnce sync.Once
}

func newDonePlayback() *donePlayback {
	return &donePlayback{done: make(chan struct{}), stop: make(chan struct{})}
}

func (p *donePlayback) Done() <-chan struct{} { return p.done }

func (p *donePlayback) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *donePlayback) finish() {
	p.doneOnce.Do(func() { close(p.done) })
}

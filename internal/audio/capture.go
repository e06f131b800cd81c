package audio

import (
	"encoding/base64"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Device acquires a microphone and streams signed 16-bit mono frames.
type Device interface {
	// Open starts capturing at sampleRate, calling onData from the driver
	// thread until the returned stream is closed.
	Open(sampleRate int, onData func(pcm []byte)) (Stream, error)
}

// Stream is an open microphone handle.
type Stream interface {
	Close() error
}

// Recording is a finished utterance.
type Recording struct {
	WAV      []byte
	Base64   string
	MIMEType string
	// Path is a locally playable copy of the recording. Empty when the
	// file could not be written.
	Path     string
	Duration time.Duration
}

// Result is delivered once per recording on the channel returned by Start.
type Result struct {
	Recording *Recording
	Err       error
}

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	SampleRate  int
	Dir         string
	MaxDuration time.Duration
}

// Recorder is the microphone capture unit. It holds the device only while a
// recording is active.
type Recorder struct {
	mu      sync.Mutex
	device  Device
	opts    RecorderOptions
	log     zerolog.Logger
	stream  Stream
	pcm     []byte
	level   float64
	started time.Time
	done    chan Result
	timer   *time.Timer
	closed  bool
}

// NewRecorder creates a recorder backed by device.
func NewRecorder(device Device, opts RecorderOptions, log zerolog.Logger) *Recorder {
	if opts.SampleRate <= 0 {
		opts.SampleRate = CaptureSampleRate
	}
	return &Recorder{
		device: device,
		opts:   opts,
		log:    log.With().Str("component", "recorder").Logger(),
	}
}

// Start acquires the microphone and begins accumulating audio. Calling Start
// while already recording returns the active recording's channel.
func (r *Recorder) Start() (<-chan Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRecorderClosed
	}
	if r.done != nil {
		return r.done, nil
	}

	r.pcm = r.pcm[:0]
	r.level = 0
	stream, err := r.device.Open(r.opts.SampleRate, r.onData)
	if err != nil {
		r.log.Warn().Err(err).Msg("microphone unavailable")
		return nil, err
	}

	r.stream = stream
	r.started = time.Now()
	r.done = make(chan Result, 1)
	if r.opts.MaxDuration > 0 {
		r.timer = time.AfterFunc(r.opts.MaxDuration, func() { r.Stop() })
	}

	r.log.Debug().Int("sample_rate", r.opts.SampleRate).Msg("recording started")
	return r.done, nil
}

// Recording reports whether a recording is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done != nil
}

// Level returns the RMS level of the most recent capture frame.
func (r *Recorder) Level() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.level
}

// Stop finalizes the active recording and releases the microphone. It
// returns false when nothing was recording.
func (r *Recorder) Stop() bool {
	r.mu.Lock()
	if r.done == nil {
		r.mu.Unlock()
		return false
	}

	done := r.done
	pcm := append([]byte(nil), r.pcm...)
	r.release()
	r.mu.Unlock()

	rec, err := r.finalize(pcm)
	done <- Result{Recording: rec, Err: err}
	close(done)
	return true
}

// Close releases any open device handle. An active recording completes with
// ErrRecorderClosed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if r.done != nil {
		done := r.done
		r.release()
		done <- Result{Err: ErrRecorderClosed}
		close(done)
	}
	return nil
}

// release must be called with r.mu held.
func (r *Recorder) release() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.stream != nil {
		if err := r.stream.Close(); err != nil {
			r.log.Warn().Err(err).Msg("failed to release microphone")
		}
		r.stream = nil
	}
	r.done = nil
	r.level = 0
}

func (r *Recorder) onData(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done == nil {
		return
	}
	r.pcm = append(r.pcm, frame...)
	r.level = rms(frame)
}

func (r *Recorder) finalize(pcm []byte) (*Recording, error) {
	if len(pcm) < 2 {
		return nil, ErrEmptyRecording
	}

	wav := EncodeWAV(pcm, r.opts.SampleRate, 1)
	rec := &Recording{
		WAV:      wav,
		Base64:   base64.StdEncoding.EncodeToString(wav),
		MIMEType: MIMEWAV,
		Duration: time.Duration(len(pcm)/2) * time.Second / time.Duration(r.opts.SampleRate),
	}

	if r.opts.Dir != "" {
		path, err := writeRecording(r.opts.Dir, wav)
		if err != nil {
			r.log.Warn().Err(err).Msg("failed to store recording")
		} else {
			rec.Path = path
		}
	}

	r.log.Debug().Dur("duration", rec.Duration).Str("path", rec.Path).Msg("recording finished")
	return rec, nil
}

func writeRecording(dir string, wav []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create recordings dir: %w", err)
	}
	name := fmt.Sprintf("rec_%s_%s.wav", time.Now().Format("20060102_150405"), uuid.NewString()[:8])
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, wav, 0644); err != nil {
		return "", fmt.Errorf("failed to write recording: %w", err)
	}
	return path, nil
}

func rms(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(uint16(frame[2*i])|uint16(frame[2*i+1])<<8)) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

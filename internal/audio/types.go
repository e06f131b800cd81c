// Package audio provides microphone capture, PCM decoding, playback and
// spectrum analysis for FluentFlow.
package audio

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrDeviceNotFound   = errors.New("audio device not found")
	ErrRecorderClosed   = errors.New("recorder closed")
	ErrInvalidFormat    = errors.New("invalid audio format")
	ErrEmptyRecording   = errors.New("recording is empty")
)

// Sample rates used across the pipeline.
const (
	// SpeechSampleRate is the rate of synthesized speech from the service.
	SpeechSampleRate = 24000
	// CaptureSampleRate is the default microphone rate.
	CaptureSampleRate = 16000
)

// MIMEWAV is the encoding of finished recordings.
const MIMEWAV = "audio/wav"

// Buffer is a mono float buffer with samples in [-1, 1].
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playing time of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

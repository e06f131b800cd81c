// Package tts provides speech synthesis providers and the ordered fallback
// pipeline used by the playback controller.
package tts

import (
	"context"
	"errors"
	"time"

	"github.com/patrickJVGH/FluentFlow/internal/audio"
)

// Common errors
var (
	ErrProviderUnavailable = errors.New("TTS provider unavailable")
	ErrTimeout             = errors.New("synthesis timeout")
	ErrEmptyText           = errors.New("text is empty")
	ErrEmptyAudio          = errors.New("provider returned no audio")
	ErrAllProvidersFailed  = errors.New("all TTS providers failed")
)

// Provider is the interface all TTS providers must implement
type Provider interface {
	// Name returns the provider identifier (e.g., "gemini", "local")
	Name() string

	// Available reports whether the provider can be used on this machine
	Available() bool

	// Synthesize converts text to a playable buffer
	Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error)
}

// SynthesizeRequest represents a synthesis request
type SynthesizeRequest struct {
	Text    string
	VoiceID string
}

// SynthesizeResponse represents a synthesis result
type SynthesizeResponse struct {
	Audio          *audio.Buffer
	Provider       string
	VoiceID        string
	ProcessingTime time.Duration
}

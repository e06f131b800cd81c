package tts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/patrickJVGH/FluentFlow/internal/audio"
)

// SpeechClient returns raw 16-bit PCM for text.
type SpeechClient interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// GeminiProvider synthesizes through the generative service's TTS model.
// The service answers with 24 kHz mono PCM.
type GeminiProvider struct {
	client SpeechClient
	voice  string
	logger zerolog.Logger
}

// NewGeminiProvider creates a provider backed by client.
func NewGeminiProvider(client SpeechClient, voice string, logger zerolog.Logger) *GeminiProvider {
	if voice == "" {
		voice = "Kore"
	}
	return &GeminiProvider{
		client: client,
		voice:  voice,
		logger: logger.With().Str("provider", "gemini-tts").Logger(),
	}
}

// Name returns the provider identifier
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Available reports whether a client is configured
func (p *GeminiProvider) Available() bool {
	return p.client != nil
}

// Synthesize requests speech for req.Text
func (p *GeminiProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	if !p.Available() {
		return nil, ErrProviderUnavailable
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	voice := req.VoiceID
	if voice == "" {
		voice = p.voice
	}

	start := time.Now()
	pcm, err := p.client.Synthesize(ctx, req.Text, voice)
	if err != nil {
		return nil, fmt.Errorf("gemini speech: %w", err)
	}
	if len(pcm) == 0 {
		return nil, ErrEmptyAudio
	}

	buf := audio.DecodePCM16(pcm, audio.SpeechSampleRate)
	elapsed := time.Since(start)

	p.logger.Debug().
		Int("text_len", len(req.Text)).
		Int("audio_bytes", len(pcm)).
		Dur("processing_time", elapsed).
		Msg("synthesis complete")

	return &SynthesizeResponse{
		Audio:          buf,
		Provider:       p.Name(),
		VoiceID:        voice,
		ProcessingTime: elapsed,
	}, nil
}

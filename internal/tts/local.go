package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/patrickJVGH/FluentFlow/internal/audio"
)

// LocalConfig holds offline synthesis settings
type LocalConfig struct {
	Voice string // espeak voice or macOS voice name
	Rate  int    // words per minute
}

// DefaultLocalConfig returns sensible defaults for the offline engine
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{Voice: "en-us", Rate: 160}
}

// runner executes an external command
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// LocalProvider synthesizes with the platform's offline engine: `say` on
// macOS and espeak-ng (or espeak) elsewhere. Output is rendered to a WAV file
// and decoded.
type LocalProvider struct {
	logger zerolog.Logger
	config LocalConfig
	goos   string
	look   func(string) (string, error)
	run    runner
}

// NewLocalProvider creates the offline provider
func NewLocalProvider(logger zerolog.Logger, config LocalConfig) *LocalProvider {
	def := DefaultLocalConfig()
	if config.Voice == "" {
		config.Voice = def.Voice
	}
	if config.Rate <= 0 {
		config.Rate = def.Rate
	}
	return &LocalProvider{
		logger: logger.With().Str("provider", "local-tts").Logger(),
		config: config,
		goos:   runtime.GOOS,
		look:   exec.LookPath,
		run:    execRunner,
	}
}

// Name returns the provider identifier
func (p *LocalProvider) Name() string {
	return "local"
}

// Available checks that a synthesis command exists
func (p *LocalProvider) Available() bool {
	return p.engine() != ""
}

func (p *LocalProvider) engine() string {
	candidates := []string{"espeak-ng", "espeak"}
	if p.goos == "darwin" {
		candidates = []string{"say"}
	}
	for _, c := range candidates {
		if _, err := p.look(c); err == nil {
			return c
		}
	}
	return ""
}

// Synthesize converts text to audio using the offline engine
func (p *LocalProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	engine := p.engine()
	if engine == "" {
		return nil, ErrProviderUnavailable
	}

	start := time.Now()
	voice := req.VoiceID
	if voice == "" {
		voice = p.config.Voice
	}

	tmpFile, err := os.CreateTemp("", "fluentflow-tts-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	args := p.args(engine, voice, tmpPath, req.Text)
	output, err := p.run(ctx, engine, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		}
		p.logger.Error().
			Err(err).
			Str("engine", engine).
			Str("output", string(output)).
			Msg("local TTS failed")
		return nil, fmt.Errorf("%s command failed: %w", engine, err)
	}

	wav, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}
	buf, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("decode %s output: %w", engine, err)
	}
	if len(buf.Samples) == 0 {
		return nil, ErrEmptyAudio
	}

	elapsed := time.Since(start)
	p.logger.Debug().
		Str("engine", engine).
		Str("voice", voice).
		Dur("processing_time", elapsed).
		Msg("local synthesis complete")

	return &SynthesizeResponse{
		Audio:          buf,
		Provider:       p.Name(),
		VoiceID:        voice,
		ProcessingTime: elapsed,
	}, nil
}

func (p *LocalProvider) args(engine, voice, out, text string) []string {
	rate := strconv.Itoa(p.config.Rate)
	if engine == "say" {
		args := []string{"-o", out, "--data-format=LEI16@22050", "-r", rate}
		// espeak voice codes mean nothing to say; keep its default voice
		if !strings.Contains(voice, "-") {
			args = append(args, "-v", voice)
		}
		return append(args, text)
	}
	return []string{"-v", voice, "-s", rate, "-w", out, text}
}

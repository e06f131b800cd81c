package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Step is one strategy in the fallback chain.
type Step struct {
	Provider Provider
	// Timeout bounds this step. Zero means only the caller's deadline applies.
	Timeout time.Duration
	// Cacheable marks results worth keeping in the playback cache.
	Cacheable bool
}

// Result is the first successful synthesis of the chain.
type Result struct {
	*SynthesizeResponse
	Step      int
	Cacheable bool
}

// Pipeline tries each step in order; the first success wins.
type Pipeline struct {
	steps      []Step
	logger     zerolog.Logger
	onFallback func(from string, err error)
	onAttempt  func(provider string, elapsed time.Duration, err error)
}

// NewPipeline creates a fallback chain from steps.
func NewPipeline(logger zerolog.Logger, steps ...Step) *Pipeline {
	return &Pipeline{
		steps:  steps,
		logger: logger.With().Str("component", "tts-pipeline").Logger(),
	}
}

// OnFallback registers a hook called whenever a step fails and the chain
// moves on. It runs synchronously.
func (p *Pipeline) OnFallback(fn func(from string, err error)) {
	p.onFallback = fn
}

// OnAttempt registers a hook called after each provider attempt.
func (p *Pipeline) OnAttempt(fn func(provider string, elapsed time.Duration, err error)) {
	p.onAttempt = fn
}

// Order returns the provider names in the order they are tried.
func (p *Pipeline) Order() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Provider.Name()
	}
	return names
}

// Budget returns the time the whole chain may take: the sum of the step
// timeouts. It is zero when any available step is unbounded.
func (p *Pipeline) Budget() time.Duration {
	var total time.Duration
	for _, s := range p.steps {
		if !s.Provider.Available() {
			continue
		}
		if s.Timeout <= 0 {
			return 0
		}
		total += s.Timeout
	}
	return total
}

// Synthesize walks the chain with each provider's default voice.
// Cancellation of ctx stops the walk at once.
func (p *Pipeline) Synthesize(ctx context.Context, text string) (*Result, error) {
	return p.Run(ctx, text, p.onFallback)
}

// Run is Synthesize with a per-call fallback hook in place of the one
// registered with OnFallback.
func (p *Pipeline) Run(ctx context.Context, text string, onFallback func(from string, err error)) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	var errs []error
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := step.Provider.Name()
		if !step.Provider.Available() {
			errs = append(errs, fmt.Errorf("%s: %w", name, ErrProviderUnavailable))
			continue
		}

		resp, err := p.attempt(ctx, step, text)
		if err == nil {
			return &Result{SynthesizeResponse: resp, Step: i, Cacheable: step.Cacheable}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		errs = append(errs, fmt.Errorf("%s: %w", name, err))
		p.logger.Warn().Err(err).Str("provider", name).Msg("synthesis failed, falling back")
		if onFallback != nil && i < len(p.steps)-1 {
			onFallback(name, err)
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}

func (p *Pipeline) attempt(ctx context.Context, step Step, text string) (*SynthesizeResponse, error) {
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := step.Provider.Synthesize(ctx, &SynthesizeRequest{Text: text})
	if err == nil && (resp == nil || resp.Audio == nil || len(resp.Audio.Samples) == 0) {
		err = ErrEmptyAudio
	}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s", ErrTimeout, step.Timeout)
	}
	if p.onAttempt != nil {
		p.onAttempt(step.Provider.Name(), time.Since(start), err)
	}
	return resp, err
}

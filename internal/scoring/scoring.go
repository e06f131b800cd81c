// Package scoring sends recorded attempts to the scoring service and turns
// the verdict into a result and a progress update.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/patrickJVGH/FluentFlow/internal/ai"
	"github.com/patrickJVGH/FluentFlow/internal/audio"
	"github.com/patrickJVGH/FluentFlow/internal/game"
)

// FailureFeedback is shown when the service could not score an attempt.
const FailureFeedback = "Erro ao processar áudio."

// Drill is the kind of scored exercise.
type Drill string

const (
	DrillCourse   Drill = "course"
	DrillPractice Drill = "practice"
	DrillWords    Drill = "words"
)

// Scorer scores an utterance against a target phrase.
type Scorer interface {
	ValidatePronunciation(ctx context.Context, utterance ai.Audio, target string) (*ai.PronunciationResult, error)
}

// Policy holds acceptance thresholds and rewards.
type Policy struct {
	Thresholds map[Drill]int
	// NearMiss is the lowest rejected word-drill score that gets the
	// "almost there" notice.
	NearMiss    int
	StreakBonus int
	Milestone   int
}

// DefaultPolicy returns the standard thresholds: 70 for phrases, 90 for
// isolated words.
func DefaultPolicy() Policy {
	return Policy{
		Thresholds: map[Drill]int{
			DrillCourse:   70,
			DrillPractice: 70,
			DrillWords:    90,
		},
		NearMiss:    70,
		StreakBonus: 5,
		Milestone:   3,
	}
}

// Threshold returns the passing score for drill.
func (p Policy) Threshold(drill Drill) int {
	if t, ok := p.Thresholds[drill]; ok {
		return t
	}
	return 70
}

// Apply overrides the service's verdict with the drill threshold.
func (p Policy) Apply(drill Drill, res ai.PronunciationResult) ai.PronunciationResult {
	threshold := p.Threshold(drill)
	res.IsCorrect = res.Score >= threshold
	if drill == DrillWords && !res.IsCorrect && res.Score >= p.NearMiss {
		res.Feedback = fmt.Sprintf("Quase lá! Mas para treino de palavras precisamos de %d%%. Você atingiu %d%%. Tente novamente.", threshold, res.Score)
	}
	return res
}

// FailureResult is the deterministic result of an attempt that could not
// be scored.
func FailureResult() ai.PronunciationResult {
	return ai.PronunciationResult{IsCorrect: false, Score: 0, Feedback: FailureFeedback}
}

// Outcome is everything a scored attempt changes.
type Outcome struct {
	Result    ai.PronunciationResult
	State     game.State
	Failed    bool // service unreachable, timed out or malformed
	Milestone bool
	Effect    audio.Effect
	Elapsed   time.Duration
}

// Pipeline is the pronunciation feedback pipeline.
type Pipeline struct {
	scorer  Scorer
	policy  Policy
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time
	observe func(drill Drill, elapsed time.Duration, o Outcome)
}

// NewPipeline creates a pipeline that bounds each call by timeout.
func NewPipeline(scorer Scorer, policy Policy, timeout time.Duration, logger zerolog.Logger) *Pipeline {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Pipeline{
		scorer:  scorer,
		policy:  policy,
		timeout: timeout,
		logger:  logger.With().Str("component", "scoring").Logger(),
		now:     time.Now,
	}
}

// Policy returns the active policy.
func (p *Pipeline) Policy() Policy {
	return p.policy
}

// OnEvaluated registers a hook called after every evaluation.
func (p *Pipeline) OnEvaluated(fn func(drill Drill, elapsed time.Duration, o Outcome)) {
	p.observe = fn
}

// Evaluate scores utterance against target and applies the verdict to
// state. It never returns an error: transport failures, timeouts and
// malformed replies become FailureResult and count as incorrect.
func (p *Pipeline) Evaluate(ctx context.Context, drill Drill, utterance ai.Audio, target string, state game.State) Outcome {
	start := p.now()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out := Outcome{}
	res, err := p.scorer.ValidatePronunciation(ctx, utterance, target)
	if err != nil || res == nil {
		if err == nil {
			err = ai.ErrMalformedResponse
		}
		ev := p.logger.Warn().Err(err).Str("drill", string(drill))
		if errors.Is(err, context.DeadlineExceeded) {
			ev = ev.Dur("timeout", p.timeout)
		}
		ev.Msg("scoring failed")
		out.Result = FailureResult()
		out.Failed = true
	} else {
		out.Result = p.policy.Apply(drill, *res)
	}

	if out.Result.IsCorrect {
		out.State = state.RecordCorrect(out.Result.Score, p.policy.StreakBonus, p.now())
		out.Milestone = p.policy.Milestone > 0 && out.State.Streak%p.policy.Milestone == 0
		out.Effect = audio.EffectCorrect
		if out.Milestone {
			out.Effect = audio.EffectStreak
		}
	} else {
		out.State = state.RecordIncorrect()
		out.Effect = audio.EffectIncorrect
	}
	out.Elapsed = p.now().Sub(start)

	p.logger.Debug().
		Str("drill", string(drill)).
		Int("score", out.Result.Score).
		Bool("correct", out.Result.IsCorrect).
		Int("streak", out.State.Streak).
		Dur("elapsed", out.Elapsed).
		Msg("attempt scored")

	if p.observe != nil {
		p.observe(drill, out.Elapsed, out)
	}
	return out
}

// Package app wires configuration, storage, audio and the session together
// for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/patrickJVGH/FluentFlow/internal/ai"
	"github.com/patrickJVGH/FluentFlow/internal/audio"
	"github.com/patrickJVGH/FluentFlow/internal/avatar"
	"github.com/patrickJVGH/FluentFlow/internal/batchcache"
	"github.com/patrickJVGH/FluentFlow/internal/bus"
	"github.com/patrickJVGH/FluentFlow/internal/config"
	"github.com/patrickJVGH/FluentFlow/internal/conversation"
	"github.com/patrickJVGH/FluentFlow/internal/logging"
	"github.com/patrickJVGH/FluentFlow/internal/metrics"
	"github.com/patrickJVGH/FluentFlow/internal/phrase"
	"github.com/patrickJVGH/FluentFlow/internal/playback"
	"github.com/patrickJVGH/FluentFlow/internal/profile"
	"github.com/patrickJVGH/FluentFlow/internal/scoring"
	"github.com/patrickJVGH/FluentFlow/internal/session"
	"github.com/patrickJVGH/FluentFlow/internal/storage"
	"github.com/patrickJVGH/FluentFlow/internal/tts"
)

// Options selects what New builds.
type Options struct {
	// Dir is the data directory holding config.yaml, the database, logs and
	// recordings. Empty means ~/.fluentflow.
	Dir string
	// LogLevel overrides the configured level when set.
	LogLevel string
	// Media builds the speech, microphone and session stack. Commands that
	// only touch profiles leave it off.
	Media bool
	// Headless replaces the speaker with a silent output.
	Headless bool
}

// App holds every long-lived component.
type App struct {
	Loader   *config.Loader
	Log      *logging.Logger
	Logger   zerolog.Logger
	Bus      *bus.EventBus
	Store    *storage.Store
	Profiles *profile.Service
	Catalog  *phrase.Catalog

	// Media stack, nil unless Options.Media.
	AI       *ai.Client
	Speech   *tts.Pipeline
	Analyser *audio.Analyser
	Avatar   *avatar.Bridge
	Playback *playback.Controller
	Recorder *audio.Recorder
	SFX      *audio.SFX
	Scoring  *scoring.Pipeline
	Tutor    *conversation.Tutor
	Cache    batchcache.Cache
	Session  *session.Controller

	mu      sync.RWMutex
	cfg     *config.Config
	speaker *audio.OtoOutput
	mic     *audio.MalgoDevice
}

// New loads configuration and builds the application.
func New(opts Options) (*App, error) {
	dir := opts.Dir
	if dir == "" {
		dir = config.DefaultDir()
	}

	loader, err := config.NewLoader(dir)
	if err != nil {
		return nil, fmt.Errorf("prepare config: %w", err)
	}
	envFiles, err := config.LoadEnv(config.EnvPaths(dir)...)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}

	lc := logging.DefaultConfig()
	lc.LogDir = filepath.Join(dir, "logs")
	lc.Level = logging.LogLevel(cfg.Logging.Level)
	lc.Console = cfg.Logging.Console
	syslog, err := logging.New(lc)
	if err != nil {
		return nil, err
	}
	// Component loggers defer to the global level so config reloads reach
	// loggers that were derived at startup.
	zerolog.SetGlobalLevel(logging.ParseLevel(logging.LogLevel(cfg.Logging.Level)))
	root := syslog.Zerolog().Level(zerolog.TraceLevel)

	a := &App{
		Loader:  loader,
		Log:     syslog,
		Logger:  root.With().Str("component", "app").Logger(),
		Bus:     bus.NewEventBus(),
		Catalog: phrase.Curated(),
		cfg:     cfg,
	}
	if len(envFiles) > 0 {
		syslog.Info("env", "Loaded environment files", map[string]interface{}{"files": envFiles})
	}
	metrics.Subscribe(a.Bus)

	a.Store, err = storage.Open(cfg.Storage.Path, root)
	if err != nil {
		syslog.Close()
		return nil, err
	}
	a.Profiles = profile.NewService(a.Store, root)

	if opts.Media {
		if err := a.buildMedia(cfg, root, opts.Headless); err != nil {
			a.Close()
			return nil, err
		}
	}

	syslog.Info("app", "FluentFlow ready", map[string]interface{}{
		"dir":   dir,
		"media": opts.Media,
		"db":    cfg.Storage.Path,
	})
	return a, nil
}

// Config returns the active configuration.
func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

func (a *App) buildMedia(cfg *config.Config, root zerolog.Logger, headless bool) error {
	a.AI = ai.NewClient(ai.Config{
		Endpoint: cfg.AI.Endpoint,
		APIKey:   cfg.AI.APIKey,
		Model:    cfg.AI.Model,
		TTSModel: cfg.AI.TTSModel,
		Voice:    cfg.AI.Voice,
	}, &http.Client{}, root)
	if !a.AI.Configured() {
		a.Logger.Warn().Msg("no API key configured; generation, scoring and cloud speech will fail over")
	}

	a.Speech = tts.NewPipeline(root, a.speechSteps(cfg, root)...)
	a.Speech.OnAttempt(metrics.ObserveSynthesis)

	a.Analyser = audio.NewAnalyser(cfg.Avatar.FFTSize, 0.8)
	a.Avatar = avatar.NewBridge(a.Analyser, avatar.Options{
		FPS:     cfg.Avatar.FPS,
		Lerp:    cfg.Avatar.LerpFactor,
		Gain:    cfg.Avatar.Gain,
		Rest:    cfg.Avatar.Rest,
		LowBins: cfg.Avatar.LowBins,
	})

	var speech, effects audio.Output
	if !headless {
		out, err := audio.NewOtoOutput(cfg.Audio.OutputSampleRate, cfg.Audio.BufferSize)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("no sound device; speech will be silent")
		} else {
			out.SetVolume(float64(cfg.Audio.OutputVolume) / 100)
			a.speaker = out
			speech, effects = out.WithTap(a.Analyser), out.Effects()
		}
	}
	if speech == nil {
		speech, effects = &audio.DiscardOutput{Tap: a.Analyser}, &audio.DiscardOutput{}
	}

	a.Playback = playback.NewController(a.Speech, speech, playback.Options{
		Timeout:      cfg.AI.SpeechTimeout,
		CacheEnabled: cfg.TTS.CacheEnabled,
	}, root)
	// Delivered synchronously so subscribers see playback transitions in
	// order. Every subscriber returns without touching the controller.
	a.Playback.OnStateChange(func(s playback.State) {
		a.Bus.PublishSync(bus.Event{Type: bus.EventPlaybackStateChanged, Data: map[string]any{"new_state": string(s)}})
	})
	a.Playback.OnFailure(func(text, notice string, err error) {
		a.Bus.Publish(bus.Event{Type: bus.EventSpeechFailed, Data: map[string]any{"text": text, "notice": notice, "error": err.Error()}})
	})
	a.Playback.OnOutcome(func(o playback.Outcome) {
		metrics.ObservePlayback(string(o.Status), string(o.Source))
	})

	a.mic = audio.NewMalgoDevice()
	a.Recorder = audio.NewRecorder(a.mic, audio.RecorderOptions{
		SampleRate:  cfg.Audio.CaptureSampleRate,
		Dir:         cfg.Audio.RecordingsDir,
		MaxDuration: cfg.Audio.MaxRecording,
	}, root)
	a.SFX = audio.NewSFX(effects, cfg.Audio.OutputSampleRate, cfg.UI.SFXEnabled)

	a.Scoring = scoring.NewPipeline(a.AI, policyFrom(cfg.Scoring), cfg.AI.ScoringTimeout, root)
	a.Scoring.OnEvaluated(func(d scoring.Drill, elapsed time.Duration, o scoring.Outcome) {
		metrics.ObserveScoring(string(d), elapsed, o.Result.IsCorrect, o.Failed)
	})
	a.Tutor = conversation.NewTutor(a.AI, &conversation.Log{}, cfg.AI.ConversationTimeout, root)

	cache, err := batchcache.New(cfg.Cache.Backend, cfg.Cache.RedisAddr, cfg.Cache.RedisDB, cfg.Cache.TTL)
	if err != nil {
		a.Logger.Warn().Err(err).Str("backend", cfg.Cache.Backend).Msg("batch cache unavailable, using memory")
		cache = batchcache.NewMemory(cfg.Cache.TTL)
	}
	a.Cache = cache

	sel, err := selectionFrom(cfg.Session)
	if err != nil {
		return err
	}
	a.Session = session.NewController(session.Deps{
		Catalog:   a.Catalog,
		Generator: boundedGenerator{gen: a.AI, timeout: cfg.AI.GenerationTimeout},
		Cache:     a.Cache,
		Scorer:    a.Scoring,
		Tutor:     a.Tutor,
		Recorder:  a.Recorder,
		Speech:    a.Playback,
		SFX:       a.SFX,
		Progress:  a.Profiles,
		Bus:       a.Bus,
	}, session.Options{
		BatchSize:   cfg.Session.BatchSize,
		LoadTimeout: cfg.Session.LoadTimeout,
		Selection:   sel,
	}, root)

	a.animateFromEvents()
	return nil
}

func (a *App) speechSteps(cfg *config.Config, root zerolog.Logger) []tts.Step {
	var steps []tts.Step
	for _, name := range cfg.TTS.Providers {
		switch name {
		case "gemini":
			steps = append(steps, tts.Step{
				Provider:  tts.NewGeminiProvider(a.AI, cfg.AI.Voice, root),
				Timeout:   cfg.AI.SpeechTimeout,
				Cacheable: true,
			})
		case "local":
			steps = append(steps, tts.Step{
				Provider: tts.NewLocalProvider(root, tts.LocalConfig{Voice: cfg.TTS.LocalVoice, Rate: cfg.TTS.LocalRate}),
				Timeout:  cfg.TTS.LocalTimeout,
			})
		default:
			a.Logger.Warn().Str("provider", name).Msg("unknown speech provider ignored")
		}
	}
	return steps
}

// animateFromEvents drives the avatar pose from session and playback events.
func (a *App) animateFromEvents() {
	a.Bus.Subscribe(bus.EventPlaybackStateChanged, func(e bus.Event) {
		a.Avatar.SetSpeaking(e.Data["new_state"] == string(playback.StatePlaying))
	})
	a.Bus.Subscribe(bus.EventRecordingStarted, func(bus.Event) { a.Avatar.SetListening(true) })
	a.Bus.Subscribe(bus.EventRecordingStopped, func(bus.Event) { a.Avatar.SetListening(false) })
	a.Bus.Subscribe(bus.EventSessionStateChanged, func(e bus.Event) {
		a.Avatar.SetThinking(e.Data["new_state"] == string(session.StateProcessing))
	})
	a.Bus.Subscribe(bus.EventScored, func(e bus.Event) {
		if correct, _ := e.Data["correct"].(bool); correct {
			a.Avatar.SetEmotion(avatar.EmotionHappy)
			return
		}
		a.Avatar.SetEmotion(avatar.EmotionSad)
	})
}

// WatchConfig applies edits to config.yaml while running. Volume, sound
// effects and log level change live; other settings need a restart.
func (a *App) WatchConfig() {
	a.Loader.Watch(func(cfg *config.Config, err error) {
		if err != nil {
			a.Logger.Warn().Err(err).Msg("config reload failed")
			return
		}
		a.Apply(cfg)
	})
}

// Apply switches to cfg, updating the settings that can change live.
func (a *App) Apply(cfg *config.Config) {
	a.mu.Lock()
	a.cfg = cfg
	speaker := a.speaker
	a.mu.Unlock()

	level := logging.LogLevel(cfg.Logging.Level)
	a.Log.SetLevel(level)
	zerolog.SetGlobalLevel(logging.ParseLevel(level))
	if speaker != nil {
		speaker.SetVolume(float64(cfg.Audio.OutputVolume) / 100)
	}
	if a.SFX != nil {
		a.SFX.SetEnabled(cfg.UI.SFXEnabled)
	}
	a.Logger.Info().
		Str("level", cfg.Logging.Level).
		Int("volume", cfg.Audio.OutputVolume).
		Bool("sfx", cfg.UI.SFXEnabled).
		Msg("configuration reloaded")
}

// Speak voices text once and waits for it to finish.
func (a *App) Speak(ctx context.Context, text string) (playback.Outcome, error) {
	if a.Playback == nil {
		return playback.Outcome{}, errors.New("media stack not built")
	}
	select {
	case out := <-a.Playback.Speak(text):
		if out.Status == playback.StatusFailed {
			return out, fmt.Errorf("%s: %w", playback.FailureNotice, out.Err)
		}
		return out, nil
	case <-ctx.Done():
		a.Playback.Stop()
		return playback.Outcome{}, ctx.Err()
	}
}

// Close releases every component.
func (a *App) Close() error {
	var errs []error
	if a.Session != nil {
		a.Session.Close()
	}
	if a.Playback != nil {
		a.Playback.Close()
	}
	if a.Recorder != nil {
		errs = append(errs, a.Recorder.Close())
	}
	if a.mic != nil {
		errs = append(errs, a.mic.Close())
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.Log != nil {
		errs = append(errs, a.Log.Close())
	}
	return errors.Join(errs...)
}

// boundedGenerator caps each generation call at its own deadline, inside
// the session's load timeout.
type boundedGenerator struct {
	gen     session.Generator
	timeout time.Duration
}

func (b boundedGenerator) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

func (b boundedGenerator) GeneratePhrases(ctx context.Context, topic string, difficulty phrase.Difficulty, count int) ([]phrase.Phrase, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()
	return b.gen.GeneratePhrases(ctx, topic, difficulty, count)
}

func (b boundedGenerator) GenerateWords(ctx context.Context, category string, count int) ([]phrase.Phrase, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()
	return b.gen.GenerateWords(ctx, category, count)
}

func policyFrom(c config.ScoringConfig) scoring.Policy {
	p := scoring.DefaultPolicy()
	set := func(d scoring.Drill, v int) {
		if v > 0 {
			p.Thresholds[d] = v
		}
	}
	set(scoring.DrillCourse, c.CourseThreshold)
	set(scoring.DrillPractice, c.PracticeThreshold)
	set(scoring.DrillWords, c.WordsThreshold)
	if c.NearMissScore > 0 {
		p.NearMiss = c.NearMissScore
	}
	if c.StreakBonus >= 0 {
		p.StreakBonus = c.StreakBonus
	}
	if c.StreakMilestone > 0 {
		p.Milestone = c.StreakMilestone
	}
	return p
}

func selectionFrom(c config.SessionConfig) (session.Selection, error) {
	sel := session.Selection{Topic: c.DefaultTopic}
	if c.DefaultMode != "" {
		k, err := session.ParseKind(c.DefaultMode)
		if err != nil {
			return sel, fmt.Errorf("session.default_mode: %w", err)
		}
		sel.Kind = k
	}
	if c.DefaultDifficulty != "" {
		d, err := phrase.ParseDifficulty(c.DefaultDifficulty)
		if err != nil {
			return sel, fmt.Errorf("session.default_difficulty: %w", err)
		}
		sel.Difficulty = d
	}
	return sel, nil
}

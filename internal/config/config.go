// Package config provides configuration management for FluentFlow
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	AI      AIConfig      `mapstructure:"ai"`
	Audio   AudioConfig   `mapstructure:"audio"`
	TTS     TTSConfig     `mapstructure:"tts"`
	Session SessionConfig `mapstructure:"session"`
	Scoring ScoringConfig `mapstructure:"scoring"`
	Storage StorageConfig `mapstructure:"storage"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Server  ServerConfig  `mapstructure:"server"`
	Avatar  AvatarConfig  `mapstructure:"avatar"`
	UI      UIConfig      `mapstructure:"ui"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// AIConfig configures the generative service client
type AIConfig struct {
	Endpoint            string        `mapstructure:"endpoint"`
	APIKey              string        `mapstructure:"api_key"`
	Model               string        `mapstructure:"model"`
	TTSModel            string        `mapstructure:"tts_model"`
	Voice               string        `mapstructure:"voice"`
	GenerationTimeout   time.Duration `mapstructure:"generation_timeout"`
	ScoringTimeout      time.Duration `mapstructure:"scoring_timeout"`
	ConversationTimeout time.Duration `mapstructure:"conversation_timeout"`
	SpeechTimeout       time.Duration `mapstructure:"speech_timeout"`
}

// AudioConfig configures capture and playback
type AudioConfig struct {
	CaptureSampleRate int           `mapstructure:"capture_sample_rate"`
	OutputSampleRate  int           `mapstructure:"output_sample_rate"`
	BufferSize        int           `mapstructure:"buffer_size"`
	OutputVolume      int           `mapstructure:"output_volume"` // 0-100
	RecordingsDir     string        `mapstructure:"recordings_dir"`
	MaxRecording      time.Duration `mapstructure:"max_recording"`
	RecordingMaxAge   time.Duration `mapstructure:"recording_max_age"`
}

// TTSConfig configures speech synthesis and its fallbacks
type TTSConfig struct {
	Providers    []string      `mapstructure:"providers"` // tried in order: gemini, local
	LocalVoice   string        `mapstructure:"local_voice"`
	LocalRate    int           `mapstructure:"local_rate"` // words per minute
	LocalTimeout time.Duration `mapstructure:"local_timeout"`
	CacheEnabled bool          `mapstructure:"cache_enabled"`
}

// SessionConfig configures batch loading
type SessionConfig struct {
	BatchSize         int           `mapstructure:"batch_size"`
	LoadTimeout       time.Duration `mapstructure:"load_timeout"`
	DefaultMode       string        `mapstructure:"default_mode"`
	DefaultTopic      string        `mapstructure:"default_topic"`
	DefaultDifficulty string        `mapstructure:"default_difficulty"`
}

// ScoringConfig configures acceptance thresholds and rewards
type ScoringConfig struct {
	CourseThreshold   int `mapstructure:"course_threshold"`
	PracticeThreshold int `mapstructure:"practice_threshold"`
	WordsThreshold    int `mapstructure:"words_threshold"`
	NearMissScore     int `mapstructure:"near_miss_score"`
	StreakBonus       int `mapstructure:"streak_bonus"`
	StreakMilestone   int `mapstructure:"streak_milestone"`
}

// StorageConfig configures persistence
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig configures the generated-batch cache
type CacheConfig struct {
	Backend   string        `mapstructure:"backend"` // memory or redis
	RedisAddr string        `mapstructure:"redis_addr"`
	RedisDB   int           `mapstructure:"redis_db"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// ServerConfig configures the avatar feed and metrics endpoint
type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	AvatarPath  string `mapstructure:"avatar_path"`
	MetricsPath string `mapstructure:"metrics_path"`
}

// AvatarConfig tunes the mouth animation signal
type AvatarConfig struct {
	FPS        int     `mapstructure:"fps"`
	LerpFactor float64 `mapstructure:"lerp_factor"`
	Gain       float64 `mapstructure:"gain"`
	Rest       float64 `mapstructure:"rest"`
	FFTSize    int     `mapstructure:"fft_size"`
	LowBins    int     `mapstructure:"low_bins"`
}

// UIConfig holds learner preferences
type UIConfig struct {
	SFXEnabled bool `mapstructure:"sfx_enabled"`
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// DefaultConfig returns sensible default configuration rooted at dir.
func DefaultConfig(dir string) *Config {
	return &Config{
		AI: AIConfig{
			Endpoint:            "https://generativelanguage.googleapis.com/v1beta",
			Model:               "gemini-3-flash-preview",
			TTSModel:            "gemini-2.5-flash-preview-tts",
			Voice:               "Kore",
			GenerationTimeout:   30 * time.Second,
			ScoringTimeout:      30 * time.Second,
			ConversationTimeout: 45 * time.Second,
			SpeechTimeout:       60 * time.Second,
		},
		Audio: AudioConfig{
			CaptureSampleRate: 16000,
			OutputSampleRate:  24000,
			BufferSize:        4800,
			OutputVolume:      100,
			RecordingsDir:     filepath.Join(dir, "recordings"),
			MaxRecording:      30 * time.Second,
			RecordingMaxAge:   7 * 24 * time.Hour,
		},
		TTS: TTSConfig{
			Providers:    []string{"gemini", "local"},
			LocalVoice:   "en-us",
			LocalRate:    160,
			LocalTimeout: 20 * time.Second,
			CacheEnabled: true,
		},
		Session: SessionConfig{
			BatchSize:         5,
			LoadTimeout:       40 * time.Second,
			DefaultMode:       "course",
			DefaultTopic:      "Introductions & Greetings",
			DefaultDifficulty: "easy",
		},
		Scoring: ScoringConfig{
			CourseThreshold:   70,
			PracticeThreshold: 70,
			WordsThreshold:    90,
			NearMissScore:     70,
			StreakBonus:       5,
			StreakMilestone:   3,
		},
		Storage: StorageConfig{
			Path: filepath.Join(dir, "fluentflow.db"),
		},
		Cache: CacheConfig{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
			TTL:       6 * time.Hour,
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:8765",
			AvatarPath:  "/ws/avatar",
			MetricsPath: "/metrics",
		},
		Avatar: AvatarConfig{
			FPS:        30,
			LerpFactor: 0.45,
			Gain:       3.5,
			Rest:       0.05,
			FFTSize:    512,
			LowBins:    20,
		},
		UI: UIConfig{
			SFXEnabled: true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: false,
		},
	}
}

// DefaultDir returns ~/.fluentflow, or .fluentflow when there is no home.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fluentflow"
	}
	return filepath.Join(home, ".fluentflow")
}

// Loader reads and writes config.yaml inside one directory.
type Loader struct {
	v   *viper.Viper
	dir string
	// external is the API key supplied from outside config.yaml
	external string
}

// NewLoader prepares a loader for dir, creating it when missing.
func NewLoader(dir string) (*Loader, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	// Environment variable overrides, e.g. FLUENTFLOW_AI_API_KEY
	v.SetEnvPrefix("FLUENTFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	apply(DefaultConfig(dir), v.SetDefault)
	return &Loader{v: v, dir: dir}, nil
}

// Path returns the config file location.
func (l *Loader) Path() string {
	return filepath.Join(l.dir, "config.yaml")
}

// Dir returns the data directory.
func (l *Loader) Dir() string {
	return l.dir
}

// Load reads configuration from file and environment. A missing file is
// created from the defaults.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		if err := l.v.SafeWriteConfigAs(l.Path()); err != nil {
			return nil, err
		}
	}
	return l.decode()
}

// Save writes cfg to config.yaml. An API key that came from the
// environment or the keychain is not written to the file.
func (l *Loader) Save(cfg *Config) error {
	c := *cfg
	if c.AI.APIKey != "" && c.AI.APIKey == l.external {
		c.AI.APIKey = ""
	}
	apply(&c, l.v.Set)
	return l.v.WriteConfigAs(l.Path())
}

// Watch calls fn with the reloaded configuration whenever the file changes.
func (l *Loader) Watch(fn func(*Config, error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		fn(l.decode())
	})
	l.v.WatchConfig()
}

func (l *Loader) decode() (*Config, error) {
	cfg := DefaultConfig(l.dir)
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	l.external = os.Getenv("FLUENTFLOW_AI_API_KEY")
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = firstEnv("GEMINI_API_KEY", "API_KEY")
		if cfg.AI.APIKey == "" {
			cfg.AI.APIKey = KeychainAPIKey()
		}
		l.external = cfg.AI.APIKey
	}
	return cfg, nil
}

// Load reads the configuration in the default directory.
func Load() (*Config, error) {
	l, err := NewLoader(DefaultDir())
	if err != nil {
		return nil, err
	}
	return l.Load()
}

// LoadEnv loads KEY=VALUE files into the process environment. Missing files
// are skipped and variables already set win.
func LoadEnv(paths ...string) ([]string, error) {
	var loaded []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return loaded, err
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}

// EnvPaths returns the .env files consulted at startup.
func EnvPaths(dir string) []string {
	return []string{filepath.Join(dir, ".env"), ".env"}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// apply feeds every leaf setting to set. Durations are written as strings so
// the YAML file stays readable.
func apply(c *Config, set func(key string, value any)) {
	set("ai.endpoint", c.AI.Endpoint)
	set("ai.api_key", c.AI.APIKey)
	set("ai.model", c.AI.Model)
	set("ai.tts_model", c.AI.TTSModel)
	set("ai.voice", c.AI.Voice)
	set("ai.generation_timeout", c.AI.GenerationTimeout.String())
	set("ai.scoring_timeout", c.AI.ScoringTimeout.String())
	set("ai.conversation_timeout", c.AI.ConversationTimeout.String())
	set("ai.speech_timeout", c.AI.SpeechTimeout.String())

	set("audio.capture_sample_rate", c.Audio.CaptureSampleRate)
	set("audio.output_sample_rate", c.Audio.OutputSampleRate)
	set("audio.buffer_size", c.Audio.BufferSize)
	set("audio.output_volume", c.Audio.OutputVolume)
	set("audio.recordings_dir", c.Audio.RecordingsDir)
	set("audio.max_recording", c.Audio.MaxRecording.String())
	set("audio.recording_max_age", c.Audio.RecordingMaxAge.String())

	set("tts.providers", c.TTS.Providers)
	set("tts.local_voice", c.TTS.LocalVoice)
	set("tts.local_rate", c.TTS.LocalRate)
	set("tts.local_timeout", c.TTS.LocalTimeout.String())
	set("tts.cache_enabled", c.TTS.CacheEnabled)

	set("session.batch_size", c.Session.BatchSize)
	set("session.load_timeout", c.Session.LoadTimeout.String())
	set("session.default_mode", c.Session.DefaultMode)
	set("session.default_topic", c.Session.DefaultTopic)
	set("session.default_difficulty", c.Session.DefaultDifficulty)

	set("scoring.course_threshold", c.Scoring.CourseThreshold)
	set("scoring.practice_threshold", c.Scoring.PracticeThreshold)
	set("scoring.words_threshold", c.Scoring.WordsThreshold)
	set("scoring.near_miss_score", c.Scoring.NearMissScore)
	set("scoring.streak_bonus", c.Scoring.StreakBonus)
	set("scoring.streak_milestone", c.Scoring.StreakMilestone)

	set("storage.path", c.Storage.Path)

	set("cache.backend", c.Cache.Backend)
	set("cache.redis_addr", c.Cache.RedisAddr)
	set("cache.redis_db", c.Cache.RedisDB)
	set("cache.ttl", c.Cache.TTL.String())

	set("server.addr", c.Server.Addr)
	set("server.avatar_path", c.Server.AvatarPath)
	set("server.metrics_path", c.Server.MetricsPath)

	set("avatar.fps", c.Avatar.FPS)
	set("avatar.lerp_factor", c.Avatar.LerpFactor)
	set("avatar.gain", c.Avatar.Gain)
	set("avatar.rest", c.Avatar.Rest)
	set("avatar.fft_size", c.Avatar.FFTSize)
	set("avatar.low_bins", c.Avatar.LowBins)

	set("ui.sfx_enabled", c.UI.SFXEnabled)

	set("logging.level", c.Logging.Level)
	set("logging.console", c.Logging.Console)
}

package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/patrickJVGH/FluentFlow/internal/audio"
	"github.com/patrickJVGH/FluentFlow/internal/avatar"
	"github.com/patrickJVGH/FluentFlow/internal/bus"
	"github.com/patrickJVGH/FluentFlow/internal/config"
	"github.com/patrickJVGH/FluentFlow/internal/phrase"
	"github.com/patrickJVGH/FluentFlow/internal/playback"
	"github.com/patrickJVGH/FluentFlow/internal/scoring"
	"github.com/patrickJVGH/FluentFlow/internal/session"
)

func TestMain(m *testing.M) {
	keyring.MockInit()
	os.Exit(m.Run())
}

func newApp(t *testing.T, media bool) *App {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "")
	a, err := New(Options{Dir: t.TempDir(), Media: media, Headless: true, LogLevel: "debug"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_ProfilesOnly(t *testing.T) {
	a := newApp(t, false)
	assert.Nil(t, a.Session)
	assert.FileExists(t, a.Loader.Path())
	assert.Equal(t, "debug", a.Config().Logging.Level)

	ctx := context.Background()
	p, err := a.Profiles.Create(ctx, "Ana", "teal")
	require.NoError(t, err)
	list, err := a.Profiles.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)
}

func TestNew_MediaStackHeadless(t *testing.T) {
	a := newApp(t, true)
	require.NotNil(t, a.Session)
	require.NotNil(t, a.Playback)
	assert.False(t, a.AI.Configured())
	assert.Equal(t, []string{"gemini", "local"}, a.Speech.Order())
	assert.Greater(t, a.Playback.Timeout(), a.Speech.Budget(), "chain deadline leaves room for every step")
	assert.Equal(t, session.StateIdle, a.Session.State())
}

func TestApp_AvatarFollowsEvents(t *testing.T) {
	a := newApp(t, true)

	a.Bus.PublishSync(bus.Event{Type: bus.EventRecordingStarted})
	assert.True(t, a.Avatar.Frame().Listening)
	a.Bus.PublishSync(bus.Event{Type: bus.EventRecordingStopped})
	assert.False(t, a.Avatar.Frame().Listening)

	a.Bus.PublishSync(bus.Event{Type: bus.EventSessionStateChanged, Data: map[string]any{"new_state": string(session.StateProcessing)}})
	assert.True(t, a.Avatar.Frame().Thinking)

	a.Bus.PublishSync(bus.Event{Type: bus.EventScored, Data: map[string]any{"correct": true}})
	assert.Equal(t, avatar.EmotionHappy, a.Avatar.Frame().Emotion)
	a.Bus.PublishSync(bus.Event{Type: bus.EventScored, Data: map[string]any{"correct": false}})
	assert.Equal(t, avatar.EmotionSad, a.Avatar.Frame().Emotion)
}

func TestApp_AvatarSpeakingTracksPlaybackInOrder(t *testing.T) {
	a := newApp(t, true)
	buf := &audio.Buffer{Samples: make([]float32, 2400), SampleRate: 24000}

	for i := 0; i < 3; i++ {
		ch := a.Playback.PlayBuffer(buf)
		assert.True(t, a.Avatar.Speaking())
		out := <-ch
		require.Equal(t, playback.StatusCompleted, out.Status)
		assert.False(t, a.Avatar.Speaking(), "idle transition reached the avatar before the outcome")
	}
}

func TestApp_ApplyTogglesEffects(t *testing.T) {
	a := newApp(t, true)
	require.True(t, a.SFX.Enabled())

	cfg := *a.Config()
	cfg.UI.SFXEnabled = false
	cfg.Logging.Level = "warn"
	a.Apply(&cfg)
	assert.False(t, a.SFX.Enabled())
	assert.Equal(t, "warn", a.Config().Logging.Level)
}

func TestApp_SpeakBlankTextFails(t *testing.T) {
	a := newApp(t, true)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := a.Speak(ctx, "   ")
	require.Error(t, err)
	assert.Equal(t, playback.StatusFailed, out.Status)
}

func TestPolicyFrom(t *testing.T) {
	p := policyFrom(config.ScoringConfig{CourseThreshold: 75, WordsThreshold: 95, NearMissScore: 60, StreakBonus: 0, StreakMilestone: 4})
	assert.Equal(t, 75, p.Threshold(scoring.DrillCourse))
	assert.Equal(t, 70, p.Threshold(scoring.DrillPractice))
	assert.Equal(t, 95, p.Threshold(scoring.DrillWords))
	assert.Equal(t, 60, p.NearMiss)
	assert.Equal(t, 0, p.StreakBonus)
	assert.Equal(t, 4, p.Milestone)
}

func TestSelectionFrom(t *testing.T) {
	sel, err := selectionFrom(config.SessionConfig{DefaultMode: "Practice", DefaultTopic: "Travel & Airport", DefaultDifficulty: "hard"})
	require.NoError(t, err)
	assert.Equal(t, session.Selection{Kind: session.KindPractice, Topic: "Travel & Airport", Difficulty: phrase.Hard}, sel)

	_, err = selectionFrom(config.SessionConfig{DefaultMode: "karaoke"})
	assert.ErrorIs(t, err, session.ErrUnknownMode)
}

func TestNew_ReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GEMINI_API_KEY", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FLUENTFLOW_AI_API_KEY=from-env-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("FLUENTFLOW_AI_API_KEY") })

	a, err := New(Options{Dir: dir})
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, "from-env-file", a.Config().AI.APIKey)
}

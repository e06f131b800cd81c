package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickJVGH/FluentFlow/internal/ai"
	"github.com/patrickJVGH/FluentFlow/internal/audio"
	"github.com/patrickJVGH/FluentFlow/internal/batchcache"
	"github.com/patrickJVGH/FluentFlow/internal/bus"
	"github.com/patrickJVGH/FluentFlow/internal/conversation"
	"github.com/patrickJVGH/FluentFlow/internal/game"
	"github.com/patrickJVGH/FluentFlow/internal/phrase"
	"github.com/patrickJVGH/FluentFlow/internal/playback"
	"github.com/patrickJVGH/FluentFlow/internal/scoring"
)

// --- fakes ---

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
	// gates holds a channel per topic; generation for that topic waits on it
	gates map[string]chan struct{}
	block bool
}

func (g *fakeGenerator) GeneratePhrases(ctx context.Context, topic string, d phrase.Difficulty, count int) ([]phrase.Phrase, error) {
	return g.generate(ctx, "gen", topic, count)
}

func (g *fakeGenerator) GenerateWords(ctx context.Context, category string, count int) ([]phrase.Phrase, error) {
	return g.generate(ctx, "word", category, count)
}

func (g *fakeGenerator) generate(ctx context.Context, prefix, topic string, count int) ([]phrase.Phrase, error) {
	g.mu.Lock()
	g.calls++
	call := g.calls
	gate := g.gates[topic]
	err, block := g.err, g.block
	g.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	items := make([]phrase.Phrase, count)
	for i := range items {
		items[i] = phrase.Phrase{
			ID:         fmt.Sprintf("%s_%d_%d", prefix, call, i),
			English:    fmt.Sprintf("%s %d", topic, i),
			Portuguese: "tradução",
			Difficulty: phrase.Easy,
		}
	}
	return items, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeScorer struct {
	mu    sync.Mutex
	score int
	err   error
	gate  chan struct{}
}

func (s *fakeScorer) ValidatePronunciation(ctx context.Context, _ ai.Audio, target string) (*ai.PronunciationResult, error) {
	s.mu.Lock()
	score, err, gate := s.score, s.err, s.gate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &ai.PronunciationResult{IsCorrect: true, Score: score, Feedback: "Bom trabalho!", Transcript: target}, nil
}

type fakeConverser struct{}

func (fakeConverser) ConverseTurn(_ context.Context, _ ai.Audio, _ []ai.ContextLine) (*ai.TurnReply, error) {
	return &ai.TurnReply{Transcription: "I goed there", Response: "Oh, you went there?", Translation: "Ah, você foi lá?", Feedback: "Use 'went'"}, nil
}

type gatedConverser struct {
	gate chan struct{}
}

func (g gatedConverser) ConverseTurn(ctx context.Context, a ai.Audio, history []ai.ContextLine) (*ai.TurnReply, error) {
	<-g.gate
	return fakeConverser{}.ConverseTurn(ctx, a, history)
}

// micDevice stands in for a microphone so a real audio.Recorder can run.
type micDevice struct {
	mu     sync.Mutex
	open   int
	closed int
}

type micStream struct{ dev *micDevice }

func (s micStream) Close() error {
	s.dev.mu.Lock()
	s.dev.closed++
	s.dev.mu.Unlock()
	return nil
}

func (d *micDevice) Open(_ int, _ func([]byte)) (audio.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open++
	return micStream{dev: d}, nil
}

func (d *micDevice) counts() (open, closed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open, d.closed
}

type fakeRecorder struct {
	mu        sync.Mutex
	ch        chan audio.Result
	recording bool
	startErr  error
}

func (r *fakeRecorder) Start() (<-chan audio.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return nil, r.startErr
	}
	r.ch = make(chan audio.Result, 1)
	r.recording = true
	return r.ch, nil
}

func (r *fakeRecorder) Stop() bool {
	return r.deliver(audio.Result{Recording: testRecording()})
}

func (r *fakeRecorder) deliver(res audio.Result) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return false
	}
	r.recording = false
	r.ch <- res
	close(r.ch)
	return true
}

func (r *fakeRecorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

type fakeSpeaker struct {
	mu     sync.Mutex
	spoken []string
	played []*audio.Buffer
	stops  int
	clears int
}

func (s *fakeSpeaker) Speak(text string) <-chan playback.Outcome {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
	return done(playback.Outcome{Text: text, Status: playback.StatusCompleted})
}

func (s *fakeSpeaker) PlayBuffer(buf *audio.Buffer) <-chan playback.Outcome {
	s.mu.Lock()
	s.played = append(s.played, buf)
	s.mu.Unlock()
	return done(playback.Outcome{Status: playback.StatusCompleted, Source: playback.SourceBuffer})
}

func (s *fakeSpeaker) Stop() {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
}

func (s *fakeSpeaker) ClearCache() {
	s.mu.Lock()
	s.clears++
	s.mu.Unlock()
}

func (s *fakeSpeaker) spokenTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

func (s *fakeSpeaker) clearCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}

type fakeSFX struct {
	mu      sync.Mutex
	effects []audio.Effect
}

func (f *fakeSFX) Play(e audio.Effect) {
	f.mu.Lock()
	f.effects = append(f.effects, e)
	f.mu.Unlock()
}

func (f *fakeSFX) last() audio.Effect {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.effects) == 0 {
		return audio.EffectNone
	}
	return f.effects[len(f.effects)-1]
}

type fakeStore struct {
	mu    sync.Mutex
	saved map[string]game.State
	saves int
}

func (s *fakeStore) SaveProgress(_ context.Context, userID string, st game.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = map[string]game.State{}
	}
	s.saved[userID] = st
	s.saves++
	return nil
}

func (s *fakeStore) get(userID string) (game.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.saved[userID]
	return st, ok
}

// --- harness ---

type harness struct {
	c        *Controller
	gen      *fakeGenerator
	scorer   *fakeScorer
	recorder *fakeRecorder
	speaker  *fakeSpeaker
	sfx      *fakeSFX
	store    *fakeStore
	cache    *batchcache.Memory
	bus      *bus.EventBus
}

func testCatalog(n int) *phrase.Catalog {
	items := make([]phrase.Phrase, n)
	for i := range items {
		items[i] = phrase.Phrase{ID: phrase.CourseID(i), English: fmt.Sprintf("Phrase %d", i), Portuguese: "Frase", Difficulty: phrase.Easy}
	}
	return phrase.NewCatalog(items)
}

func testRecording() *audio.Recording {
	pcm := audio.EncodePCM16([]float32{0.1, -0.1, 0.2, -0.2})
	return &audio.Recording{
		WAV:      audio.EncodeWAV(pcm, audio.CaptureSampleRate, 1),
		Base64:   "UklGRg==",
		MIMEType: audio.MIMEWAV,
		Duration: time.Second,
	}
}

func newHarness(t *testing.T, sel Selection) *harness {
	t.Helper()
	h := &harness{
		gen:      &fakeGenerator{gates: map[string]chan struct{}{}},
		scorer:   &fakeScorer{score: 95},
		recorder: &fakeRecorder{},
		speaker:  &fakeSpeaker{},
		sfx:      &fakeSFX{},
		store:    &fakeStore{},
		cache:    batchcache.NewMemory(0),
		bus:      bus.NewEventBus(),
	}
	tutor := conversation.NewTutor(fakeConverser{}, &conversation.Log{}, time.Second, zerolog.Nop())
	h.c = NewController(Deps{
		Catalog:   testCatalog(12),
		Generator: h.gen,
		Cache:     h.cache,
		Scorer:    scoring.NewPipeline(h.scorer, scoring.DefaultPolicy(), time.Second, zerolog.Nop()),
		Tutor:     tutor,
		Recorder:  h.recorder,
		Speech:    h.speaker,
		SFX:       h.sfx,
		Progress:  h.store,
		Bus:       h.bus,
	}, Options{
		BatchSize:   5,
		LoadTimeout: time.Second,
		Selection:   sel,
		Rand:        rand.New(rand.NewSource(1)),
	}, zerolog.Nop())
	t.Cleanup(h.c.Close)
	return h
}

func done(o playback.Outcome) <-chan playback.Outcome {
	ch := make(chan playback.Outcome, 1)
	ch <- o
	close(ch)
	return ch
}

func await(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("load did not resolve")
		return nil
	}
}

func waitState(t *testing.T, c *Controller, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == want }, 2*time.Second, 5*time.Millisecond, "want state %s, have %s", want, c.State())
}

func currentID(c *Controller) string {
	return c.Snapshot().Item.ID
}

// record runs one attempt through the microphone and waits for the result.
func (h *harness) record(t *testing.T, want State) {
	t.Helper()
	require.NoError(t, h.c.StartRecording())
	assert.Equal(t, StateRecording, h.c.State())
	require.True(t, h.c.StopRecording())
	waitState(t, h.c, want)
}

// --- tests ---

func TestController_CourseBatchWraps(t *testing.T) {
	h := newHarness(t, Selection{Kind: KindCourse})
	st := game.NewState()
	st.CourseProgressIndex = 10

	require.NoError(t, await(t, h.c.SetUser("user_1", st)))
	snap := h.c.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, 5, snap.Total)

	var got []string
	for {
		got = append(got, h.c.Snapshot().Item.ID)
		if h.c.Snapshot().Index == 4 {
			break
		}
		require.NoError(t, await(t, h.c.Next()))
	}
	assert.Equal(t, []string{"core-1k-0011", "core-1k-0012", "core-1k-0001", "core-1k-0002", "core-1k-0003"}, got)
	assert.Zero(t, h.gen.callCount())
}

func TestController_CourseExhaustedAdvancesCursor(t *testing.T) {
	h := newHarness(t, Selection{Kind: KindCourse})
	st := game.NewState()
	st.CourseProgressIndex = 10
	require.NoError(t, await(t, h.c.SetUser("user_1", st)))

	for i := 0; i < 4; i++ {
		require.NoError(t, await(t, h.c.Next()))
	}
	require.NoError(t, await(t, h.c.Next()))

	assert.Equal(t, 3, h.c.Game().CourseProgressIndex, "(10+5) mod 12")
	assert.Equal(t, "core-1k-0004", currentID(h.c))
	saved, ok := h.store.get("user_1")
	require.True(t, ok)
	assert.Equal(t, 3, saved.CourseProgressIndex)
}

func TestController_StaleLoadIsDiscarded(t *testing.T) {
	h := newHarness(t, Selection{Kind: KindCourse})
	require.NoError(t, await(t, h.c.Reload()))

	gate := make(chan struct{})
	h.gen.gates["Travel & Airport"] = gate

	first := h.c.Select(Selection{Kind: KindPractice, Topic: "Travel & Airport"})
	assert.Equal(t, StateLoading, h.c.State())
	second := h.c.Select(Selection{Kind: KindPractice, Topic: "Job Interview"})

	require.NoError(t, await(t, second))
	assert.Equal(t, "Job Interview 0", h.c.Snapshot().Item.English)

	close(gate)
	assert.ErrorIs(t, await(t, first), ErrSuperseded)
	assert.Equal(t, "Job Interview 0", h.c.Snapshot().Item.English)
	assert.Equal(t, StateReady, h.c.State())
}

func TestController_LoadTimeoutResolvesToError(t *testing.T) {
	h := newHarness(t, Selection{Kind: KindWords, Topic: "Food"})
	h.c.opts.LoadTimeout = 50 * time.Millisecond
	h.gen.block = true

	err := await(t, h.c.Reload())
	assert.ErrorIs(t, err, ErrLoadTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateError, h.c.State())
}

func TestController_GenerationFailureThenRetry(t *testing.T) {
	h := newHarness(t, Selection{Kind: KindPractice, Topic: "Job Interview"})
	h.gen.err = errors.New("503")

	assert.Error(t, await(t, h.c.Reload()))
	assert.Equal(t, StateError, h.c.State())
	assert.Error(t, h.c.Snapshot().Err)

	h.gen.mu.Lock()
	h.gen.err = nil
	h.gen.mu.Unlock()

	require.NoError(t, await(t, h.c.Retry()))
	assert.Equal(t, StateReady, h.c.State())
	assert.NoError(t, h.c.Snapshot().Err)
}

func TestController_SelectClearsAudioCache(t *testing.T) {
	h := newHarness(t, Selection{Kind: KindCourse})
	require.NoError(t, await(t, h.c.Reload()))
	before := h.speaker.clearCount()

	require.NoError(t, await(t, h.c.Select(Selection{Kind: KindPractice, Topic: phrase.MixTopic})))
	assert.Greater(t, h.speaker.clearCount(), before)
}

func TestController_BatchCacheServesSameSelection(t *testing.T) {
	h := newHarness(t, Selection{Kind: KindPractice, Topic: "Job Interview"})

	require.NoError(t, await(t, h.c.Reload()))
	firstID := currentID(h.c)
	require.NoError(t, await(t, h.c.Select(Selection{Kind: KindCourse})))
	require.NoError(t, await(t, h.c.Select(Selection{Kind: KindPractice, Topic: "Job Interview"})))

	assert.Equal(t, 1, h.gen.callCount())
	assert.Equal(t, firstID, currentID(h.c))

	// finishing the batch asks for fresh content
	for i := 0; i < 5; i++ {
		require.NoError(t, await(t, h.c.Next()))
	}
	assert.Equal(t, 2, h.gen.callCount())
	assert.NotEqual(t, firstID, currentID(h.c))
	assert.Equal(t, 2, h.c.Game().CurrentLevel)
}

func TestController_MixUsesCuratedPhrases(t *testing.T) {
	h := newHarness(t, Selection{Kind: KindPractice, Topic: phrase.MixTopic})
	require.NoError(t, await(t, h.c.Reload()))

	snap := h.c.Snapshot()
	assert.Equal(t, 5, snap.Total)
	assert.Contains(t, snap.Item.ID, "core-1k-")
	assert.Zero(t, h.gen.callCount())
}

func TestController_CorrectAttemptScoresAndSaves(t *testing.T) {
	h := newHarness(t, Selection{Kind: KindCourse})
	st := game.NewState()
	st.Streak = 2
	st.Score = 100
	require.NoError(t, await(t, h.c.SetUser("user_1", st)))

	h.record(t, StateFeedback)

	snap := h.c.Snapshot()
	require.NotNil(t, snap.Result)
	assert.True(t, snap.Result.IsCorrect)
	assert.Equal(t, 100+95+2*5, snap.Game.Score)
	assert.Equal(t, 3, snap.Game.Streak)
	assert.NotNil(t, snap.Recording)
	require.Eventually(t, func() bool { return h.sfx.last() == audio.EffectStreak }, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		saved, ok := h.store.get("user_1")
		return ok && saved.Score == 205
	}, time.Second, 5*time.Millisecond)
}

func TestController_WordsThresholdRejectsNearMiss(t *testing.T) {
	h := newHarness(t, Selection{Kind: KindWords, Topic: "Food"})
	h.scorer.score = 85
	st := game.NewState()
	st.Streak = 4
	st.Score = 300
	require.NoError(t, await(t, h.c.SetUser("user_1", st)))

	h.record(t, StateFeedback)

	snap := h.c.Snapshot()
	assert.False(t, snap.Result.IsCorrect)
	assert.Contains(t, snap.Result.Feedback, "Quase lá")
	assert.Equal(t, 0, snap.Game.Streak)
	assert.Equal(t, 300, snap.Game.Score)
	require.Eventually(t, func() bool { return h.sfx.last() == audio.EffectIncorrect }, time.Second, 5*time.Millisecond)
}

func TestController_ScoringFailureStillGivesFeedback(t *testing.T) {
	h := newHarness(t, Selection{Kind: KindCourse})
	h.scorer.err = errors.New("connection reset")
	require.NoError(t, await(t, h.c.Reload()))

	h.record(t, StateFeedback)
	snap := h.c.Snapshot()
	assert.Equal(t, 0, snap.Result.Score)
	assert.Equal(t, scoring.FailureFeedback, snap.Result.Feedback)

	require.NoError(t, await(t, h.c.Retry()))
	assert.Equal(t, StateReady, h.c.State())
	assert.Nil(t, h.c.Snapshot().Result)
}

func TestController_ModeSwitchDiscardsPendingScore(t *testing.T) {
	h := newHarness(t, Selection{Kind: KindCourse})
	h.scorer.gate = make(chan struct{})
	require.NoError(t, await(t, h.c.SetUser("user_1", game.NewState())))

	require.NoError(t, h.c.StartRecording())
	require.True(t, h.c.StopRecording())
	waitState(t, h.c, StateProcessing)

	require.NoError(t, await(t, h.c.Select(Selection{Kind: KindPractice, Topic: phrase.MixTopic})))
	close(h.scorer.gate)

	time.Sleep(50 * time.Millisecond)
	snap := h.c.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Nil(t, snap.Result)
	assert.Equal(t, 0, snap.Game.Score)
}

func TestController_NextWhileProcessingIsRejected(t *testing.T) {
	h := newHarness(t, Selection{Kind: KindCourse})
	h.scorer.gate = make(chan struct{})
	require.NoError(t, await(t, h.c.SetUser("user_1", game.NewState())))
	first := currentID(h.c)

	require.NoError(t, h.c.StartRecording())
	assert.ErrorIs(t, await(t, h.c.Next()), ErrBusy, "next while recording")
	require.True(t, h.c.StopRecording())
	waitState(t, h.c, StateProcessing)

	assert.ErrorIs(t, await(t, h.c.Next()), ErrBusy)
	assert.Equal(t, first, currentID(h.c))

	close(h.scorer.gate)
	waitState(t, h.c, StateFeedback)
	snap := h.c.Snapshot()
	assert.Equal(t, first, snap.Item.ID)
	assert.Equal(t, 0, snap.Index)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "Phrase 0", snap.Result.Transcript)

	require.NoError(t, await(t, h.c.Next()))
	assert.Equal(t, 1, h.c.Snapshot().Index)
}

func TestController_ModeSwitchReleasesMicrophone(t *testing.T) {
	h := newHarness(t, Selection{Kind: KindCourse})
	mic := &micDevice{}
	rec := audio.NewRecorder(mic, audio.RecorderOptions{Dir: t.TempDir()}, zerolog.Nop())
	h.c.deps.Recorder = rec
	require.NoError(t, await(t, h.c.Reload()))

	require.NoError(t, h.c.StartRecording())
	assert.Equal(t, StateRecording, h.c.State())

	require.NoError(t, await(t, h.c.Select(Selection{Kind: KindConversation})))
	assert.Equal(t, StateReady, h.c.State())
	assert.False(t, rec.Recording())
	open, closed := mic.counts()
	assert.Equal(t, 1, open)
	assert.Equal(t, 1, closed)

	// the discarded recording must not leave the controller stuck
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateReady, h.c.State())
	require.NoError(t, h.c.StartRecording())
	assert.Equal(t, StateRecording, h.c.State())
	assert.True(t, rec.Recording())
}

func TestController_StaleConversationTurnLeavesLogEmpty(t *testing.T) {
	h := newHarness(t, Selection{Kind: KindConversation})
	gate := make(chan struct{})
	h.c.deps.Tutor = conversation.NewTutor(gatedConverser{gate: gate}, &conversation.Log{}, time.Second, zerolog.Nop())
	require.NoError(t, await(t, h.c.Reload()))

	require.NoError(t, h.c.StartRecording())
	require.True(t, h.c.StopRecording())
	waitState(t, h.c, StateProcessing)

	require.NoError(t, await(t, h.c.Select(Selection{Kind: KindCourse})))
	close(gate)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, h.c.deps.Tutor.Log().Len())
	assert.Empty(t, h.speaker.spokenTexts())

	require.NoError(t, await(t, h.c.Select(Selection{Kind: KindConversation})))
	assert.Empty(t, h.c.Snapshot().Messages)
}

func TestController_PermissionDenied(t *testing.T) {
	h := newHarness(t, Selection{Kind: KindCourse})
	h.recorder.startErr = audio.ErrPermissionDenied
	require.NoError(t, await(t, h.c.Reload()))

	denied := make(chan struct{}, 1)
	h.bus.Subscribe(bus.EventPermissionDenied, func(bus.Event) { denied <- struct{}{} })

	err := h.c.StartRecording()
	assert.ErrorIs(t, err, audio.ErrPermissionDenied)
	assert.Equal(t, StateReady, h.c.State())
	select {
	case <-denied:
	case <-time.After(time.Second):
		t.Fatal("permission event not published")
	}
}

func TestController_EmptyRecordingReturnsToReady(t *testing.T) {
	h := newHarness(t, Selection{Kind: KindCourse})
	require.NoError(t, await(t, h.c.Reload()))

	require.NoError(t, h.c.StartRecording())
	require.NoError(t, h.c.StartRecording(), "duplicate start is a no-op")
	h.recorder.deliver(audio.Result{Err: audio.ErrEmptyRecording})

	waitState(t, h.c, StateReady)
	assert.ErrorIs(t, h.c.Snapshot().Err, audio.ErrEmptyRecording)
	assert.False(t, h.c.StopRecording())
}

func TestController_ConversationTurn(t *testing.T) {
	h := newHarness(t, Selection{Kind: KindConversation})
	require.NoError(t, await(t, h.c.Reload()))
	assert.Equal(t, StateReady, h.c.State())

	h.record(t, StateReady)
	require.Eventually(t, func() bool { return len(h.speaker.spokenTexts()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Oh, you went there?"}, h.speaker.spokenTexts())

	msgs := h.c.Snapshot().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "Use 'went'", msgs[0].Feedback)

	require.NoError(t, await(t, h.c.Select(Selection{Kind: KindCourse})))
	require.NoError(t, await(t, h.c.Select(Selection{Kind: KindConversation})))
	assert.Empty(t, h.c.Snapshot().Messages)
}

func TestController_SpeakAndReplay(t *testing.T) {
	h := newHarness(t, Selection{Kind: KindCourse})
	require.NoError(t, await(t, h.c.Reload()))

	out := <-h.c.SpeakCurrent()
	assert.Equal(t, "Phrase 0", out.Text)

	_, err := h.c.ReplayRecording()
	assert.ErrorIs(t, err, ErrNoRecording)

	h.record(t, StateFeedback)
	ch, err := h.c.ReplayRecording()
	require.NoError(t, err)
	assert.Equal(t, playback.SourceBuffer, (<-ch).Source)
	h.speaker.mu.Lock()
	require.Len(t, h.speaker.played, 1)
	assert.Len(t, h.speaker.played[0].Samples, 4)
	h.speaker.mu.Unlock()
}

func TestController_ResetProgress(t *testing.T) {
	h := newHarness(t, Selection{Kind: KindCourse})
	st := game.NewState()
	st.Score, st.Streak, st.CourseProgressIndex = 900, 7, 6
	require.NoError(t, await(t, h.c.SetUser("user_1", st)))

	require.NoError(t, await(t, h.c.ResetProgress()))
	assert.Equal(t, game.NewState(), h.c.Game())
	assert.Equal(t, "core-1k-0001", currentID(h.c))
	saved, _ := h.store.get("user_1")
	assert.Equal(t, 0, saved.Score)
}

func TestController_ClosedRejectsWork(t *testing.T) {
	h := newHarness(t, Selection{Kind: KindCourse})
	require.NoError(t, await(t, h.c.Reload()))
	h.c.Close()

	assert.ErrorIs(t, h.c.StartRecording(), ErrClosed)
	assert.ErrorIs(t, await(t, h.c.Next()), ErrClosed)
	assert.ErrorIs(t, await(t, h.c.Reload()), ErrClosed)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Words ")
	require.NoError(t, err)
	assert.Equal(t, KindWords, k)

	_, err = ParseKind("random")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

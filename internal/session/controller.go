// Package session runs the practice loop: it loads item batches for the
// selected mode, records attempts, scores them and keeps the learner's
// progress in step.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

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

var (
	ErrUnknownMode = errors.New("unknown mode")
	ErrSuperseded  = errors.New("superseded by a newer request")
	ErrLoadTimeout = errors.New("loading timed out")
	ErrNoItems     = errors.New("no items to practise")
	ErrNoRecording = errors.New("no recording to replay")
	ErrBusy        = errors.New("session is busy")
	ErrClosed      = errors.New("session closed")
)

// State of the session
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateFeedback   State = "feedback"
	StateError      State = "error"
)

// Generator produces new batches.
type Generator interface {
	GeneratePhrases(ctx context.Context, topic string, difficulty phrase.Difficulty, count int) ([]phrase.Phrase, error)
	GenerateWords(ctx context.Context, category string, count int) ([]phrase.Phrase, error)
}

// Evaluator scores an attempt and applies it to the progress.
type Evaluator interface {
	Evaluate(ctx context.Context, drill scoring.Drill, utterance ai.Audio, target string, state game.State) scoring.Outcome
}

// Tutor answers conversation turns. Commit writes a reply into the log.
type Tutor interface {
	Turn(ctx context.Context, utterance ai.Audio) (ai.TurnReply, bool)
	Commit(reply ai.TurnReply)
	Log() *conversation.Log
}

// Recorder is the microphone.
type Recorder interface {
	Start() (<-chan audio.Result, error)
	Stop() bool
	Recording() bool
}

// Speaker is the exclusive speech output.
type Speaker interface {
	Speak(text string) <-chan playback.Outcome
	PlayBuffer(buf *audio.Buffer) <-chan playback.Outcome
	Stop()
	ClearCache()
}

// EffectPlayer plays feedback cues.
type EffectPlayer interface {
	Play(effect audio.Effect)
}

// ProgressStore persists progress.
type ProgressStore interface {
	SaveProgress(ctx context.Context, userID string, st game.State) error
}

// Deps are the collaborators of a Controller. Generator, Cache, SFX,
// Progress and Bus may be nil.
type Deps struct {
	Catalog   *phrase.Catalog
	Generator Generator
	Cache     batchcache.Cache
	Scorer    Evaluator
	Tutor     Tutor
	Recorder  Recorder
	Speech    Speaker
	SFX       EffectPlayer
	Progress  ProgressStore
	Bus       *bus.EventBus
}

// Options configures a Controller.
type Options struct {
	BatchSize   int
	LoadTimeout time.Duration
	Selection   Selection
	Rand        *rand.Rand
}

// Snapshot is a consistent copy of the session for rendering.
type Snapshot struct {
	State     State
	Selection Selection
	Item      phrase.Phrase
	HasItem   bool
	Index     int
	Total     int
	Result    *ai.PronunciationResult
	Err       error
	Game      game.State
	UserID    string
	Messages  []conversation.Message
	Recording *audio.Recording
}

// Controller is the content session controller. Every load, recording and
// scoring call is tagged with the request token current when it started;
// a completion whose token is no longer current is discarded.
type Controller struct {
	deps   Deps
	opts   Options
	logger zerolog.Logger

	mu      sync.Mutex
	sel     Selection
	mode    Mode
	state   State
	token   uint64
	cancel  context.CancelFunc
	userID  string
	game    game.State
	result  *ai.PronunciationResult
	lastErr error
	lastRec *audio.Recording
	closed  bool

	onChange func(Snapshot)
}

// NewController creates an idle session. Call SetUser or Reload to load the
// first batch.
func NewController(deps Deps, opts Options, logger zerolog.Logger) *Controller {
	if deps.Catalog == nil {
		deps.Catalog = phrase.Curated()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 60 * time.Second
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Controller{
		deps:   deps,
		opts:   opts,
		logger: logger.With().Str("component", "session").Logger(),
		sel:    normalize(opts.Selection),
		state:  StateIdle,
		game:   game.NewState(),
	}
}

// OnChange registers fn to be called after every change, outside the
// controller's lock.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Snapshot returns the current session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Game returns the learner's progress.
func (c *Controller) Game() game.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.game
}

// SetUser switches the learner and reloads for their course position.
func (c *Controller) SetUser(userID string, st game.State) <-chan error {
	c.mu.Lock()
	c.userID = userID
	c.game = st
	ch := c.loadLocked(false)
	c.mu.Unlock()
	c.notify()
	return ch
}

// Select switches mode, topic or tier and loads a batch for it. Leaving
// conversation mode clears the dialogue log.
func (c *Controller) Select(sel Selection) <-chan error {
	sel = normalize(sel)

	c.mu.Lock()
	prev := c.sel
	c.sel = sel
	if prev.Kind != sel.Kind && c.deps.Tutor != nil {
		c.deps.Tutor.Log().Clear()
	}
	ch := c.loadLocked(false)
	c.mu.Unlock()

	if prev != sel {
		c.deps.Bus.Publish(bus.Event{
			Type: bus.EventSessionModeChanged,
			Data: map[string]any{"mode": string(sel.Kind), "topic": sel.Topic, "difficulty": string(sel.Difficulty)},
		})
	}
	c.notify()
	return ch
}

// Reload fetches the batch for the current selection again.
func (c *Controller) Reload() <-chan error {
	c.mu.Lock()
	ch := c.loadLocked(false)
	c.mu.Unlock()
	c.notify()
	return ch
}

// Next moves to the next item. After the last item of a batch it applies
// the batch reward (course cursor or practice level) and loads a new batch.
// It fails with ErrBusy while loading, recording or scoring.
func (c *Controller) Next() <-chan error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return resolved(ErrClosed)
	}
	switch c.state {
	case StateLoading, StateRecording, StateProcessing:
		c.mu.Unlock()
		return resolved(ErrBusy)
	}
	d, _, ok := drillOf(c.mode)
	if !ok || len(d.Items) == 0 {
		c.mu.Unlock()
		return resolved(ErrNoItems)
	}
	c.deps.Speech.Stop()
	c.result = nil
	c.lastRec = nil

	if !d.Last() {
		d.Index++
		c.setState(StateReady)
		c.mu.Unlock()
		c.notify()
		return resolved(nil)
	}

	save := false
	switch m := c.mode.(type) {
	case *Course:
		c.game = c.game.AdvanceCourse(len(m.Items), c.deps.Catalog.Len())
		save = true
	case *Practice:
		c.game = c.game.LevelUp()
		save = true
	}
	st, user := c.game, c.userID
	ch := c.loadLocked(true)
	c.mu.Unlock()

	if save {
		c.persist(user, st)
	}
	c.notify()
	return ch
}

// Retry clears the feedback so the same item can be attempted again. From
// the error state it reloads.
func (c *Controller) Retry() <-chan error {
	c.mu.Lock()
	switch c.state {
	case StateError, StateIdle:
		ch := c.loadLocked(false)
		c.mu.Unlock()
		c.notify()
		return ch
	case StateFeedback, StateReady:
		c.deps.Speech.Stop()
		c.result = nil
		c.lastRec = nil
		c.setState(StateReady)
		c.mu.Unlock()
		c.notify()
		return resolved(nil)
	}
	c.mu.Unlock()
	return resolved(ErrBusy)
}

// StartRecording opens the microphone for an attempt. It is a no-op while
// already recording. A denied microphone is reported and leaves the state
// unchanged.
func (c *Controller) StartRecording() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateRecording || c.deps.Recorder.Recording() {
		c.mu.Unlock()
		return nil
	}
	if c.state != StateReady && c.state != StateFeedback {
		c.mu.Unlock()
		return ErrBusy
	}

	c.deps.Speech.Stop()
	results, err := c.deps.Recorder.Start()
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()
		if errors.Is(err, audio.ErrPermissionDenied) {
			c.deps.Bus.Publish(bus.Event{Type: bus.EventPermissionDenied, Data: map[string]any{"error": err.Error()}})
		}
		c.logger.Warn().Err(err).Msg("recording not started")
		c.notify()
		return err
	}

	c.result = nil
	c.lastErr = nil
	c.setState(StateRecording)
	my := c.token
	c.mu.Unlock()

	c.deps.Bus.Publish(bus.Event{Type: bus.EventRecordingStarted})
	c.notify()
	go c.awaitRecording(my, results)
	return nil
}

// StopRecording finishes the active recording. It reports false when
// nothing was recording.
func (c *Controller) StopRecording() bool {
	return c.deps.Recorder.Stop()
}

// SpeakCurrent voices the current item.
func (c *Controller) SpeakCurrent() <-chan playback.Outcome {
	c.mu.Lock()
	d, _, _ := drillOf(c.mode)
	item, ok := d.Current()
	c.mu.Unlock()
	if !ok {
		ch := make(chan playback.Outcome, 1)
		ch <- playback.Outcome{Status: playback.StatusFailed, Err: ErrNoItems}
		close(ch)
		return ch
	}
	return c.deps.Speech.Speak(item.English)
}

// ReplayRecording plays the learner's last attempt.
func (c *Controller) ReplayRecording() (<-chan playback.Outcome, error) {
	c.mu.Lock()
	rec := c.lastRec
	c.mu.Unlock()
	if rec == nil {
		return nil, ErrNoRecording
	}

	wav := rec.WAV
	if len(wav) == 0 && rec.Path != "" {
		data, err := os.ReadFile(rec.Path)
		if err != nil {
			return nil, fmt.Errorf("read recording: %w", err)
		}
		wav = data
	}
	buf, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("decode recording: %w", err)
	}
	return c.deps.Speech.PlayBuffer(buf), nil
}

// ResetProgress restores the default progress, saves it and reloads.
func (c *Controller) ResetProgress() <-chan error {
	c.mu.Lock()
	c.game = game.NewState()
	st, user := c.game, c.userID
	ch := c.loadLocked(false)
	c.mu.Unlock()

	c.persist(user, st)
	c.notify()
	return ch
}

// Close cancels pending work and stops audio.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.token++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.setState(StateIdle)
	c.mu.Unlock()

	c.deps.Recorder.Stop()
	c.deps.Speech.Stop()
}

// loadLocked starts loading a batch for the current selection under a new
// token. fresh skips the batch cache. Must be called with c.mu held.
func (c *Controller) loadLocked(fresh bool) <-chan error {
	if c.closed {
		return resolved(ErrClosed)
	}
	c.token++
	my := c.token
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.state == StateRecording || c.deps.Recorder.Recording() {
		// The result reaches awaitRecording under the old token and is
		// dropped there. Recorder.Stop never calls back into the controller.
		c.deps.Recorder.Stop()
	}
	c.deps.Speech.Stop()
	c.deps.Speech.ClearCache()
	c.result = nil
	c.lastRec = nil
	c.lastErr = nil
	c.setState(StateLoading)

	sel, cursor := c.sel, c.game.CourseProgressIndex
	done := make(chan error, 1)

	// local sources commit without a round trip
	switch {
	case sel.Kind == KindCourse:
		c.commitLocked(sel, c.deps.Catalog.Batch(cursor, c.opts.BatchSize), cursor, nil)
		done <- c.lastErr
		close(done)
		return done
	case sel.Kind == KindConversation:
		c.commitLocked(sel, nil, cursor, nil)
		done <- nil
		close(done)
		return done
	case sel.Kind == KindPractice && sel.Topic == phrase.MixTopic:
		c.commitLocked(sel, c.deps.Catalog.Random(c.opts.BatchSize, c.opts.Rand), cursor, nil)
		done <- c.lastErr
		close(done)
		return done
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.LoadTimeout)
	c.cancel = cancel
	go func() {
		defer cancel()
		items, err := c.fetch(ctx, sel, fresh)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ErrLoadTimeout, err)
		}

		c.mu.Lock()
		if c.token != my {
			c.mu.Unlock()
			c.logger.Debug().Uint64("token", my).Msg("stale load discarded")
			done <- ErrSuperseded
			close(done)
			return
		}
		c.cancel = nil
		c.commitLocked(sel, items, cursor, err)
		err = c.lastErr
		c.mu.Unlock()

		c.notify()
		done <- err
		close(done)
	}()
	return done
}

// commitLocked installs a loaded batch or the load error.
func (c *Controller) commitLocked(sel Selection, items []phrase.Phrase, cursor int, err error) {
	if err == nil && sel.Kind != KindConversation && len(items) == 0 {
		err = ErrNoItems
	}
	if err != nil {
		c.lastErr = err
		c.setState(StateError)
		c.logger.Warn().Err(err).Str("mode", string(sel.Kind)).Str("topic", sel.Topic).Msg("load failed")
		return
	}

	var log *conversation.Log
	if c.deps.Tutor != nil {
		log = c.deps.Tutor.Log()
	}
	c.mode = newMode(sel, items, cursor, log)
	c.setState(StateReady)
	c.deps.Bus.Publish(bus.Event{
		Type: bus.EventItemsLoaded,
		Data: map[string]any{"mode": string(sel.Kind), "count": len(items)},
	})
}

// fetch returns a generated batch, from the cache unless fresh.
func (c *Controller) fetch(ctx context.Context, sel Selection, fresh bool) ([]phrase.Phrase, error) {
	if c.deps.Generator == nil {
		return nil, ai.ErrNoAPIKey
	}
	key := batchcache.Key(string(sel.Kind), sel.Topic, sel.Difficulty)
	if c.deps.Cache != nil {
		if fresh {
			if err := c.deps.Cache.Delete(ctx, key); err != nil {
				c.logger.Warn().Err(err).Str("key", key).Msg("batch cache delete failed")
			}
		} else if items, ok, err := c.deps.Cache.Get(ctx, key); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("batch cache read failed")
		} else if ok && len(items) > 0 {
			return items, nil
		}
	}

	var items []phrase.Phrase
	var err error
	if sel.Kind == KindWords {
		items, err = c.deps.Generator.GenerateWords(ctx, sel.Topic, c.opts.BatchSize)
	} else {
		items, err = c.deps.Generator.GeneratePhrases(ctx, sel.Topic, sel.Difficulty, c.opts.BatchSize)
	}
	if err != nil {
		return nil, err
	}
	if c.deps.Cache != nil && len(items) > 0 {
		if err := c.deps.Cache.Put(ctx, key, items); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("batch cache write failed")
		}
	}
	return items, nil
}

func (c *Controller) awaitRecording(my uint64, results <-chan audio.Result) {
	res, ok := <-results
	c.deps.Bus.Publish(bus.Event{Type: bus.EventRecordingStopped})

	c.mu.Lock()
	if c.token != my {
		c.mu.Unlock()
		return
	}
	if !ok || res.Err != nil || res.Recording == nil {
		err := res.Err
		if err == nil {
			err = audio.ErrEmptyRecording
		}
		c.lastErr = err
		c.setState(StateReady)
		c.mu.Unlock()
		c.logger.Warn().Err(err).Msg("recording failed")
		c.notify()
		return
	}

	rec := res.Recording
	c.lastRec = rec
	c.setState(StateProcessing)
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	mode := c.mode
	st := c.game
	c.mu.Unlock()
	c.notify()
	defer cancel()

	utterance := ai.Audio{Base64: rec.Base64, MIMEType: rec.MIMEType}
	if _, ok := mode.(*Conversation); ok {
		c.converse(ctx, my, utterance)
		return
	}

	d, kind, _ := drillOf(mode)
	item, _ := d.Current()
	out := c.deps.Scorer.Evaluate(ctx, kind, utterance, item.English, st)

	c.mu.Lock()
	if c.token != my {
		c.mu.Unlock()
		return
	}
	c.cancel = nil
	c.game = out.State
	result := out.Result
	c.result = &result
	c.setState(StateFeedback)
	user := c.userID
	c.mu.Unlock()

	if c.deps.SFX != nil {
		c.deps.SFX.Play(out.Effect)
	}
	c.deps.Bus.Publish(bus.Event{
		Type: bus.EventScored,
		Data: map[string]any{
			"mode":    string(mode.Kind()),
			"item":    item.ID,
			"score":   result.Score,
			"correct": result.IsCorrect,
			"streak":  out.State.Streak,
			"failed":  out.Failed,
		},
	})
	if out.Milestone {
		c.deps.Bus.Publish(bus.Event{Type: bus.EventStreakMilestone, Data: map[string]any{"streak": out.State.Streak}})
	}
	c.persist(user, out.State)
	c.notify()
}

func (c *Controller) converse(ctx context.Context, my uint64, utterance ai.Audio) {
	reply, ok := c.deps.Tutor.Turn(ctx, utterance)

	c.mu.Lock()
	if c.token != my {
		c.mu.Unlock()
		c.logger.Debug().Uint64("token", my).Msg("stale conversation turn discarded")
		return
	}
	c.cancel = nil
	// committed under c.mu so a mode switch cannot clear the log in between
	c.deps.Tutor.Commit(reply)
	c.setState(StateReady)
	c.mu.Unlock()

	c.deps.Bus.Publish(bus.Event{
		Type: bus.EventConversationTurn,
		Data: map[string]any{"transcription": reply.Transcription, "response": reply.Response, "ok": ok},
	})
	c.notify()
	if ok {
		c.deps.Speech.Speak(reply.Response)
	}
}

func (c *Controller) persist(userID string, st game.State) {
	if c.deps.Progress == nil || userID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.deps.Progress.SaveProgress(ctx, userID, st); err != nil {
		c.logger.Error().Err(err).Str("user", userID).Msg("failed to save progress")
		return
	}
	c.deps.Bus.Publish(bus.Event{
		Type: bus.EventProgressSaved,
		Data: map[string]any{"user": userID, "score": st.Score, "streak": st.Streak},
	})
}

// setState must be called with c.mu held.
func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	old := c.state
	c.state = s
	c.logger.Debug().Str("old", string(old)).Str("new", string(s)).Msg("session state changed")
	c.deps.Bus.Publish(bus.Event{
		Type: bus.EventSessionStateChanged,
		Data: map[string]any{"old_state": string(old), "new_state": string(s)},
	})
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		State:     c.state,
		Selection: c.sel,
		Result:    c.result,
		Err:       c.lastErr,
		Game:      c.game,
		UserID:    c.userID,
		Recording: c.lastRec,
	}
	if d, _, ok := drillOf(c.mode); ok {
		s.Item, s.HasItem = d.Current()
		s.Index = d.Index
		s.Total = len(d.Items)
	}
	if conv, ok := c.mode.(*Conversation); ok && conv.Log != nil {
		s.Messages = conv.Log.Messages()
	}
	return s
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

func normalize(sel Selection) Selection {
	if sel.Kind == "" {
		sel.Kind = KindCourse
	}
	if sel.Difficulty == "" {
		sel.Difficulty = phrase.Easy
	}
	if sel.Topic == "" {
		sel.Topic = phrase.Topics[0]
	}
	return sel
}

func resolved(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	close(ch)
	return ch
}

// Package playback owns the single audible speech channel. Every new request
// cancels whatever was requested or playing before it.
package playback

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/patrickJVGH/FluentFlow/internal/audio"
	"github.com/patrickJVGH/FluentFlow/internal/tts"
)

// FailureNotice is shown when no strategy could voice a text.
const FailureNotice = "Não foi possível reproduzir o áudio."

// ErrClosed is returned for requests after Close.
var ErrClosed = errors.New("playback controller closed")

// State of the controller
type State string

const (
	StateIdle        State = "idle"
	StateRequesting  State = "requesting"
	StateFallingBack State = "falling_back"
	StatePlaying     State = "playing"
)

// Status is how a request ended.
type Status string

const (
	StatusCompleted  Status = "completed"
	StatusSuperseded Status = "superseded" // stopped, or replaced by a newer request
	StatusFailed     Status = "failed"
)

// Source is where the played audio came from.
type Source string

const (
	SourceNone      Source = ""
	SourceCache     Source = "cache"
	SourceSynthesis Source = "synthesis"
	SourceBuffer    Source = "buffer"
)

// Outcome is delivered once per request.
type Outcome struct {
	Seq      uint64
	Text     string
	Status   Status
	Source   Source
	Provider string
	Err      error
	Elapsed  time.Duration
}

// Synthesizer is the ordered fallback chain.
type Synthesizer interface {
	Run(ctx context.Context, text string, onFallback func(from string, err error)) (*tts.Result, error)
}

// Options configures a Controller.
type Options struct {
	// Timeout bounds the whole synthesis chain of one request. It is raised
	// to cover the synthesizer's Budget, so a slow first strategy still
	// leaves room for the fallbacks.
	Timeout      time.Duration
	CacheEnabled bool
}

// chainGrace is added on top of a synthesizer budget.
const chainGrace = 2 * time.Second

// budgeted is implemented by synthesizers whose steps have their own
// deadlines, like tts.Pipeline.
type budgeted interface {
	Budget() time.Duration
}

// Controller is the speech playback controller. A request sequence number
// orders requests: a completion whose number is no longer current is
// discarded.
type Controller struct {
	synth  Synthesizer
	out    audio.Output
	opts   Options
	logger zerolog.Logger

	mu      sync.Mutex
	seq     uint64
	state   State
	cancel  context.CancelFunc
	current audio.Playback
	cache   map[string]*audio.Buffer
	closed  bool

	onState   func(State)
	onFailure func(text, notice string, err error)
	onOutcome func(Outcome)
}

// NewController creates a controller that synthesizes with synth and plays
// on out.
func NewController(synth Synthesizer, out audio.Output, opts Options, logger zerolog.Logger) *Controller {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if b, ok := synth.(budgeted); ok {
		if need := b.Budget(); need > 0 && opts.Timeout < need+chainGrace {
			opts.Timeout = need + chainGrace
		}
	}
	return &Controller{
		synth:  synth,
		out:    out,
		opts:   opts,
		logger: logger.With().Str("component", "playback").Logger(),
		state:  StateIdle,
		cache:  make(map[string]*audio.Buffer),
	}
}

// OnStateChange registers fn for state transitions. fn runs with the
// controller locked and must not call back into it.
func (c *Controller) OnStateChange(fn func(State)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// OnFailure registers fn for requests no strategy could voice.
func (c *Controller) OnFailure(fn func(text, notice string, err error)) {
	c.mu.Lock()
	c.onFailure = fn
	c.mu.Unlock()
}

// OnOutcome registers fn for every finished request.
func (c *Controller) OnOutcome(fn func(Outcome)) {
	c.mu.Lock()
	c.onOutcome = fn
	c.mu.Unlock()
}

// Timeout returns the effective deadline of one synthesis request.
func (c *Controller) Timeout() time.Duration {
	return c.opts.Timeout
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Seq returns the current request sequence number.
func (c *Controller) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// CacheLen returns the number of cached texts.
func (c *Controller) CacheLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Cached reports whether text has a cached buffer.
func (c *Controller) Cached(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.cache[text]
	return ok
}

// ClearCache drops every cached buffer.
func (c *Controller) ClearCache() {
	c.mu.Lock()
	n := len(c.cache)
	c.cache = make(map[string]*audio.Buffer)
	c.mu.Unlock()
	if n > 0 {
		c.logger.Debug().Int("entries", n).Msg("audio cache cleared")
	}
}

// Speak voices text, cancelling any previous request first. The returned
// channel receives exactly one Outcome and is then closed.
func (c *Controller) Speak(text string) <-chan Outcome {
	done := make(chan Outcome, 1)
	start := time.Now()

	c.mu.Lock()
	c.interrupt()
	my := c.seq
	if c.closed {
		c.mu.Unlock()
		c.finish(done, Outcome{Seq: my, Text: text, Status: StatusFailed, Err: ErrClosed})
		return done
	}
	if strings.TrimSpace(text) == "" {
		c.mu.Unlock()
		c.finish(done, Outcome{Seq: my, Text: text, Status: StatusFailed, Err: tts.ErrEmptyText})
		return done
	}

	if buf, ok := c.cache[text]; ok {
		err := c.startLocked(my, buf)
		c.mu.Unlock()
		if err != nil {
			c.fail(done, my, text, err, start)
			return done
		}
		c.await(done, my, Outcome{Seq: my, Text: text, Source: SourceCache}, start)
		return done
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.Timeout)
	c.cancel = cancel
	c.setState(StateRequesting)
	c.mu.Unlock()

	go func() {
		defer cancel()
		res, err := c.synth.Run(ctx, text, func(from string, err error) {
			c.mu.Lock()
			if c.seq == my {
				c.setState(StateFallingBack)
			}
			c.mu.Unlock()
		})

		c.mu.Lock()
		if c.seq != my {
			c.mu.Unlock()
			c.finish(done, Outcome{Seq: my, Text: text, Status: StatusSuperseded, Elapsed: time.Since(start)})
			return
		}
		c.cancel = nil
		if err != nil {
			c.setState(StateIdle)
			c.mu.Unlock()
			c.fail(done, my, text, err, start)
			return
		}

		if res.Cacheable && c.opts.CacheEnabled {
			c.cache[text] = res.Audio
		}
		err = c.startLocked(my, res.Audio)
		c.mu.Unlock()
		if err != nil {
			c.fail(done, my, text, err, start)
			return
		}
		c.await(done, my, Outcome{Seq: my, Text: text, Source: SourceSynthesis, Provider: res.Provider}, start)
	}()
	return done
}

// PlayBuffer plays buf on the exclusive channel, for example a learner's own
// recording.
func (c *Controller) PlayBuffer(buf *audio.Buffer) <-chan Outcome {
	done := make(chan Outcome, 1)
	start := time.Now()

	c.mu.Lock()
	c.interrupt()
	my := c.seq
	if c.closed {
		c.mu.Unlock()
		c.finish(done, Outcome{Seq: my, Status: StatusFailed, Err: ErrClosed})
		return done
	}
	err := c.startLocked(my, buf)
	c.mu.Unlock()

	if err != nil {
		c.finish(done, Outcome{Seq: my, Status: StatusFailed, Source: SourceBuffer, Err: err, Elapsed: time.Since(start)})
		return done
	}
	c.await(done, my, Outcome{Seq: my, Source: SourceBuffer}, start)
	return done
}

// Stop cancels any in-flight request and silences the output. Safe to call
// with nothing playing.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.interrupt()
	c.mu.Unlock()
}

// Close stops playback and rejects further requests.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.interrupt()
	c.mu.Unlock()
}

// interrupt advances the sequence, cancels the in-flight request and
// silences the current playback. Must be called with c.mu held.
func (c *Controller) interrupt() {
	c.seq++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.current != nil {
		c.current.Stop()
		c.current = nil
	}
	c.setState(StateIdle)
}

// startLocked must be called with c.mu held.
func (c *Controller) startLocked(my uint64, buf *audio.Buffer) error {
	if buf == nil || len(buf.Samples) == 0 {
		return audio.ErrEmptyRecording
	}
	pb, err := c.out.Play(buf)
	if err != nil {
		return err
	}
	c.current = pb
	c.setState(StatePlaying)
	c.logger.Debug().Uint64("seq", my).Dur("duration", buf.Duration()).Msg("playback started")
	return nil
}

// await waits for the active playback of request my to end.
func (c *Controller) await(done chan Outcome, my uint64, out Outcome, start time.Time) {
	c.mu.Lock()
	pb := c.current
	if c.seq != my || pb == nil {
		c.mu.Unlock()
		out.Status = StatusSuperseded
		out.Elapsed = time.Since(start)
		c.finish(done, out)
		return
	}
	c.mu.Unlock()

	go func() {
		<-pb.Done()
		c.mu.Lock()
		out.Status = StatusSuperseded
		if c.seq == my {
			c.current = nil
			c.setState(StateIdle)
			out.Status = StatusCompleted
		}
		c.mu.Unlock()
		out.Elapsed = time.Since(start)
		c.finish(done, out)
	}()
}

func (c *Controller) fail(done chan Outcome, my uint64, text string, err error, start time.Time) {
	c.logger.Warn().Err(err).Uint64("seq", my).Msg("speech failed")
	c.mu.Lock()
	fn := c.onFailure
	c.mu.Unlock()
	if fn != nil {
		fn(text, FailureNotice, err)
	}
	c.finish(done, Outcome{Seq: my, Text: text, Status: StatusFailed, Err: err, Elapsed: time.Since(start)})
}

func (c *Controller) finish(done chan Outcome, out Outcome) {
	c.mu.Lock()
	fn := c.onOutcome
	c.mu.Unlock()
	if fn != nil {
		fn(out)
	}
	done <- out
	close(done)
}

// setState must be called with c.mu held.
func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if c.onState != nil {
		c.onState(s)
	}
}

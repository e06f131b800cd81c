// Package conversation keeps the free-conversation log and runs tutor turns.
package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/patrickJVGH/FluentFlow/internal/ai"
)

// Role is who wrote a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one entry of the conversation log.
type Message struct {
	Role        Role   `json:"role"`
	Text        string `json:"text"`
	Translation string `json:"translation,omitempty"`
	Feedback    string `json:"feedback,omitempty"`
	Improvement string `json:"improvement,omitempty"`
}

// Log is an append-only message list.
type Log struct {
	mu       sync.RWMutex
	messages []Message
}

// Append adds messages at the end.
func (l *Log) Append(msgs ...Message) {
	l.mu.Lock()
	l.messages = append(l.messages, msgs...)
	l.mu.Unlock()
}

// Messages returns a copy of the log.
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Clear empties the log.
func (l *Log) Clear() {
	l.mu.Lock()
	l.messages = nil
	l.mu.Unlock()
}

// Context returns the last n messages as service context lines.
func (l *Log) Context(n int) []ai.ContextLine {
	l.mu.RLock()
	defer l.mu.RUnlock()
	msgs := l.messages
	if n >= 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]ai.ContextLine, len(msgs))
	for i, m := range msgs {
		sp := ai.SpeakerModel
		if m.Role == RoleUser {
			sp = ai.SpeakerUser
		}
		out[i] = ai.ContextLine{Speaker: sp, Text: m.Text}
	}
	return out
}

// Converser processes one spoken turn.
type Converser interface {
	ConverseTurn(ctx context.Context, utterance ai.Audio, history []ai.ContextLine) (*ai.TurnReply, error)
}

// ErrorReply is used when the service could not answer a turn.
func ErrorReply() ai.TurnReply {
	return ai.TurnReply{
		Transcription: "(Error)",
		Response:      "Connection error.",
		Translation:   "Erro de conexão.",
	}
}

// Tutor runs conversation turns against a log.
type Tutor struct {
	client  Converser
	log     *Log
	timeout time.Duration
	logger  zerolog.Logger
}

// NewTutor creates a tutor writing into log.
func NewTutor(client Converser, log *Log, timeout time.Duration, logger zerolog.Logger) *Tutor {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Tutor{
		client:  client,
		log:     log,
		timeout: timeout,
		logger:  logger.With().Str("component", "tutor").Logger(),
	}
}

// Log returns the tutor's message log.
func (t *Tutor) Log() *Log {
	return t.log
}

// Turn sends utterance with the recent context and returns the reply.
// Failures produce ErrorReply with ok false. The log is left untouched;
// the caller commits the reply once it knows the turn is still current.
func (t *Tutor) Turn(ctx context.Context, utterance ai.Audio) (reply ai.TurnReply, ok bool) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	res, err := t.client.ConverseTurn(ctx, utterance, t.log.Context(ai.ContextWindow))
	if err != nil || res == nil {
		t.logger.Warn().Err(err).Msg("conversation turn failed")
		return ErrorReply(), false
	}
	return *res, true
}

// Commit appends the user and model messages of reply. Error replies are
// committed too, so the learner sees what happened.
func (t *Tutor) Commit(reply ai.TurnReply) {
	t.log.Append(
		Message{Role: RoleUser, Text: reply.Transcription, Feedback: reply.Feedback, Improvement: reply.Improvement},
		Message{Role: RoleModel, Text: reply.Response, Translation: reply.Translation},
	)
}

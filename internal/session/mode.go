package session

import (
	"fmt"
	"strings"

	"github.com/patrickJVGH/FluentFlow/internal/conversation"
	"github.com/patrickJVGH/FluentFlow/internal/phrase"
	"github.com/patrickJVGH/FluentFlow/internal/scoring"
)

// Kind names a mode.
type Kind string

const (
	KindCourse       Kind = "course"
	KindPractice     Kind = "practice"
	KindWords        Kind = "words"
	KindConversation Kind = "conversation"
)

// Kinds lists the modes in menu order.
var Kinds = []Kind{KindCourse, KindPractice, KindWords, KindConversation}

// ParseKind accepts a mode name in any case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindCourse, KindPractice, KindWords, KindConversation:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Label is the menu title of the mode.
func (k Kind) Label() string {
	switch k {
	case KindCourse:
		return "Curso"
	case KindPractice:
		return "Prática Livre"
	case KindWords:
		return "Palavras Difíceis"
	case KindConversation:
		return "Conversação"
	}
	return string(k)
}

// Selection is what the learner picked: a mode plus the topic and tier
// used by generated drills.
type Selection struct {
	Kind       Kind
	Topic      string
	Difficulty phrase.Difficulty
}

// Mode is the active mode with the data only that mode needs.
type Mode interface {
	Kind() Kind
	isMode()
}

// Drill is the item batch and cursor shared by the scored modes.
type Drill struct {
	Items []phrase.Phrase
	Index int
}

// Current returns the item under the cursor.
func (d *Drill) Current() (phrase.Phrase, bool) {
	if d == nil || d.Index < 0 || d.Index >= len(d.Items) {
		return phrase.Phrase{}, false
	}
	return d.Items[d.Index], true
}

// Last reports whether the cursor is on the final item.
func (d *Drill) Last() bool {
	return d.Index >= len(d.Items)-1
}

// Course drills the curated list from Start.
type Course struct {
	Drill
	Start int
}

// Practice drills generated phrases on a topic, or curated phrases for the
// mix topic.
type Practice struct {
	Drill
	Topic      string
	Difficulty phrase.Difficulty
}

// Words drills generated hard-to-pronounce words.
type Words struct {
	Drill
	Category string
}

// Conversation is open dialogue with the tutor.
type Conversation struct {
	Log *conversation.Log
}

func (*Course) Kind() Kind       { return KindCourse }
func (*Practice) Kind() Kind     { return KindPractice }
func (*Words) Kind() Kind        { return KindWords }
func (*Conversation) Kind() Kind { return KindConversation }

func (*Course) isMode()       {}
func (*Practice) isMode()     {}
func (*Words) isMode()        {}
func (*Conversation) isMode() {}

// drillOf is the single dispatch point from a mode to its drill data and
// scoring rule. ok is false for modes without a batch.
func drillOf(m Mode) (d *Drill, kind scoring.Drill, ok bool) {
	switch m := m.(type) {
	case *Course:
		return &m.Drill, scoring.DrillCourse, true
	case *Practice:
		return &m.Drill, scoring.DrillPractice, true
	case *Words:
		return &m.Drill, scoring.DrillWords, true
	}
	return nil, "", false
}

func newMode(sel Selection, items []phrase.Phrase, cursor int, log *conversation.Log) Mode {
	switch sel.Kind {
	case KindCourse:
		return &Course{Drill: Drill{Items: items}, Start: cursor}
	case KindPractice:
		return &Practice{Drill: Drill{Items: items}, Topic: sel.Topic, Difficulty: sel.Difficulty}
	case KindWords:
		return &Words{Drill: Drill{Items: items}, Category: sel.Topic}
	}
	return &Conversation{Log: log}
}

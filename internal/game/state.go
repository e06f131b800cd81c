// Package game tracks a learner's score, streak, course cursor and daily history.
package game

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the calendar-day key of history entries.
const DateLayout = "2006-01-02"

// HistoryEntry is the cumulative score at the end of a practice day.
type HistoryEntry struct {
	Date  string `json:"date"`
	Score int    `json:"score"`
}

// State is the persisted progress of one user. Updates return a new value.
type State struct {
	Score               int            `json:"score"`
	Streak              int            `json:"streak"`
	CurrentLevel        int            `json:"currentLevel"`
	PhrasesCompleted    int            `json:"phrasesCompleted"`
	CourseProgressIndex int            `json:"courseProgressIndex"`
	History             []HistoryEntry `json:"history"`
}

// NewState returns the progress of a learner who has not started.
func NewState() State {
	return State{CurrentLevel: 1, History: []HistoryEntry{}}
}

// Decode merges a stored record over the defaults, so fields missing from
// older records keep their default value.
func Decode(data []byte) (State, error) {
	st := NewState()
	if err := json.Unmarshal(data, &st); err != nil {
		return NewState(), fmt.Errorf("decode progress: %w", err)
	}
	if st.CurrentLevel < 1 {
		st.CurrentLevel = 1
	}
	if st.History == nil {
		st.History = []HistoryEntry{}
	}
	return st, nil
}

// Encode serialises the state for storage.
func (s State) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// RecordCorrect awards serviceScore plus a bonus of bonusFactor points per
// step of the streak held before this answer, then extends the streak.
func (s State) RecordCorrect(serviceScore, bonusFactor int, now time.Time) State {
	next := s.clone()
	next.Score += serviceScore + s.Streak*bonusFactor
	next.Streak = s.Streak + 1
	next.PhrasesCompleted++
	next.History = amend(next.History, now.Format(DateLayout), next.Score)
	return next
}

// RecordIncorrect breaks the streak. The score is left untouched.
func (s State) RecordIncorrect() State {
	next := s.clone()
	next.Streak = 0
	return next
}

// AdvanceCourse moves the course cursor by n items, wrapping at total.
func (s State) AdvanceCourse(n, total int) State {
	next := s.clone()
	next.CourseProgressIndex += n
	if total > 0 {
		next.CourseProgressIndex %= total
	}
	return next
}

// LevelUp is applied when a generated practice batch is finished.
func (s State) LevelUp() State {
	next := s.clone()
	next.CurrentLevel++
	return next
}

// Recent returns the last n history entries. With no history it returns a
// single point labelled "Hoje" at the current score.
func (s State) Recent(n int) []HistoryEntry {
	if len(s.History) == 0 {
		return []HistoryEntry{{Date: "Hoje", Score: s.Score}}
	}
	h := s.History
	if n > 0 && len(h) > n {
		h = h[len(h)-n:]
	}
	out := make([]HistoryEntry, len(h))
	copy(out, h)
	return out
}

func (s State) clone() State {
	next := s
	next.History = make([]HistoryEntry, len(s.History))
	copy(next.History, s.History)
	return next
}

// amend updates the entry for date when it is the latest one and appends
// otherwise, keeping dates unique and in insertion order.
func amend(h []HistoryEntry, date string, score int) []HistoryEntry {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Date == date {
			h[i].Score = score
			return h
		}
	}
	return append(h, HistoryEntry{Date: date, Score: score})
}

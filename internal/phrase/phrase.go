// Package phrase holds practice items, the curated course and the topic list.
package phrase

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDifficulty is returned when a difficulty tier cannot be parsed.
var ErrUnknownDifficulty = errors.New("unknown difficulty")

// Difficulty is the tier of a practice item.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Difficulties lists the tiers in ascending order.
var Difficulties = []Difficulty{Easy, Medium, Hard}

// ParseDifficulty accepts a tier name in any case.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case Easy, Medium, Hard:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDifficulty, s)
}

// Label returns the Portuguese name shown to learners.
func (d Difficulty) Label() string {
	switch d {
	case Easy:
		return "Fácil"
	case Medium:
		return "Médio"
	case Hard:
		return "Difícil"
	}
	return string(d)
}

// Phrase is a single practice item. It is never mutated once built.
type Phrase struct {
	ID         string     `json:"id" yaml:"-"`
	English    string     `json:"english" yaml:"english"`
	Portuguese string     `json:"portuguese" yaml:"portuguese"`
	Difficulty Difficulty `json:"difficulty" yaml:"difficulty"`
	Category   string     `json:"category,omitempty" yaml:"category,omitempty"`
}

// Valid reports whether the phrase has the fields a drill needs.
func (p Phrase) Valid() bool {
	if strings.TrimSpace(p.English) == "" {
		return false
	}
	_, err := ParseDifficulty(string(p.Difficulty))
	return err == nil
}

// Package ai is the client for the generative service that produces
// practice content, scores pronunciation, runs conversation turns and
// synthesizes speech.
package ai

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNoAPIKey          = errors.New("generative service API key not configured")
	ErrNoCandidates      = errors.New("no candidates in response")
	ErrMalformedResponse = errors.New("malformed service response")
)

// APIError is a non-200 reply from the service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("generative service error (status %d): %s", e.StatusCode, e.Body)
}

// Audio is an inline utterance.
type Audio struct {
	Base64   string
	MIMEType string
}

// WordStatus classifies one word of an attempt.
type WordStatus string

const (
	WordCorrect          WordStatus = "correct"
	WordNeedsImprovement WordStatus = "needs_improvement"
	WordMissing          WordStatus = "missing"
)

// WordAnalysis is the per-word breakdown of a scored attempt.
type WordAnalysis struct {
	Word          string     `json:"word"`
	Status        WordStatus `json:"status"`
	PhoneticIssue string     `json:"phoneticIssue,omitempty"`
}

// PronunciationResult is the service's verdict on an attempt.
type PronunciationResult struct {
	IsCorrect  bool           `json:"isCorrect"`
	Score      int            `json:"score"`
	Feedback   string         `json:"feedback"`
	Words      []WordAnalysis `json:"words,omitempty"`
	Transcript string         `json:"transcript,omitempty"`
}

// Speaker tags a line of conversation context.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerModel Speaker = "model"
)

// ContextLine is one prior message sent as conversation context.
type ContextLine struct {
	Speaker Speaker
	Text    string
}

// TurnReply is the tutor's answer to one spoken turn.
type TurnReply struct {
	Transcription string
	Response      string
	Translation   string
	Feedback      string
	Improvement   string
}

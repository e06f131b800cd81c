package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/patrickJVGH/FluentFlow/internal/phrase"
)

const (
	// MaxErrorBodySize bounds how much of an error reply is read (1MB).
	MaxErrorBodySize = 1 * 1024 * 1024

	// DefaultEndpoint is the public REST root of the service.
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
)

// readLimitedBody reads up to maxBytes from r.
func readLimitedBody(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBytes))
}

// Config configures the client.
type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	TTSModel string
	Voice    string
}

// Client calls the generative service over REST. Callers bound each call
// with a context deadline.
type Client struct {
	config Config
	http   *http.Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewClient creates a client. A nil httpClient uses http.DefaultClient.
func NewClient(cfg Config, httpClient *http.Client, logger zerolog.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-3-flash-preview"
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = "gemini-2.5-flash-preview-tts"
	}
	if cfg.Voice == "" {
		cfg.Voice = "Kore"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		config: cfg,
		http:   httpClient,
		logger: logger.With().Str("component", "ai").Logger(),
		now:    time.Now,
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.config.APIKey != ""
}

// GeneratePhrases asks for count phrases about topic at the given difficulty.
func (c *Client) GeneratePhrases(ctx context.Context, topic string, difficulty phrase.Difficulty, count int) ([]phrase.Phrase, error) {
	return c.generateItems(ctx, phrasesPrompt(topic, string(difficulty), count), "gen")
}

// GenerateWords asks for count hard-to-pronounce words related to category.
func (c *Client) GenerateWords(ctx context.Context, category string, count int) ([]phrase.Phrase, error) {
	return c.generateItems(ctx, wordsPrompt(category, count), "word")
}

func (c *Client) generateItems(ctx context.Context, prompt, idPrefix string) ([]phrase.Phrase, error) {
	req := &generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   phraseListSchema,
		},
	}

	text, err := c.generateText(ctx, c.config.Model, req)
	if err != nil {
		return nil, err
	}

	var items []phrase.Phrase
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	stamp := c.now().UnixMilli()
	out := make([]phrase.Phrase, 0, len(items))
	for _, p := range items {
		if d, err := phrase.ParseDifficulty(string(p.Difficulty)); err == nil {
			p.Difficulty = d
		}
		if !p.Valid() {
			c.logger.Debug().Str("english", p.English).Msg("dropping invalid generated item")
			continue
		}
		p.ID = fmt.Sprintf("%s_%d_%d", idPrefix, stamp, len(out))
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no usable items", ErrMalformedResponse)
	}
	return out, nil
}

// ValidatePronunciation scores an utterance against target.
func (c *Client) ValidatePronunciation(ctx context.Context, utterance Audio, target string) (*PronunciationResult, error) {
	zero := 0.0
	req := &generateRequest{
		Contents: []content{{Parts: []part{
			{InlineData: &inlineData{MIMEType: utterance.MIMEType, Data: utterance.Base64}},
			{Text: targetPrompt(target)},
		}}},
		SystemInstruction: &content{Parts: []part{{Text: pronunciationSystemPrompt}}},
		GenerationConfig: &generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   validationSchema,
			Temperature:      &zero,
		},
	}

	text, err := c.generateText(ctx, c.config.Model, req)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Transcript *string        `json:"transcript"`
		IsCorrect  *bool          `json:"isCorrect"`
		Score      *float64       `json:"score"`
		Feedback   string         `json:"feedback"`
		Words      []WordAnalysis `json:"words"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if raw.Score == nil || raw.IsCorrect == nil {
		return nil, fmt.Errorf("%w: missing score or verdict", ErrMalformedResponse)
	}

	res := &PronunciationResult{
		IsCorrect: *raw.IsCorrect,
		Score:     clampScore(*raw.Score),
		Feedback:  raw.Feedback,
		Words:     raw.Words,
	}
	if raw.Transcript != nil {
		res.Transcript = *raw.Transcript
	}
	return res, nil
}

// ConverseTurn sends a spoken turn with the recent history as context.
// Missing reply fields are filled with neutral defaults.
func (c *Client) ConverseTurn(ctx context.Context, utterance Audio, history []ContextLine) (*TurnReply, error) {
	temp := 0.7
	req := &generateRequest{
		Contents: []content{{Parts: []part{
			{Text: conversationContext(history)},
			{InlineData: &inlineData{MIMEType: utterance.MIMEType, Data: utterance.Base64}},
		}}},
		SystemInstruction: &content{Parts: []part{{Text: conversationSystemPrompt}}},
		GenerationConfig: &generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   conversationSchema,
			Temperature:      &temp,
		},
	}

	text, err := c.generateText(ctx, c.config.Model, req)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Transcription      string `json:"transcription"`
		Response           string `json:"response"`
		ResponsePortuguese string `json:"responsePortuguese"`
		Feedback           string `json:"feedback"`
		Improvement        string `json:"improvement"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &TurnReply{
		Transcription: orDefault(raw.Transcription, "..."),
		Response:      orDefault(raw.Response, "I didn't hear you clearly."),
		Translation:   orDefault(raw.ResponsePortuguese, "Não ouvi bem."),
		Feedback:      raw.Feedback,
		Improvement:   raw.Improvement,
	}, nil
}

// Synthesize returns raw 16-bit PCM speech for text.
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = c.config.Voice
	}
	req := &generateRequest{
		Contents: []content{{Parts: []part{{Text: text}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoice{VoiceName: voice}},
			},
		},
	}

	resp, err := c.generate(ctx, c.config.TTSModel, req)
	if err != nil {
		return nil, err
	}
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.InlineData == nil || p.InlineData.Data == "" {
			continue
		}
		pcm, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: audio payload: %v", ErrMalformedResponse, err)
		}
		return pcm, nil
	}
	return nil, fmt.Errorf("%w: no audio in response", ErrMalformedResponse)
}

func (c *Client) generateText(ctx context.Context, model string, req *generateRequest) (string, error) {
	resp, err := c.generate(ctx, model, req)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: empty text", ErrMalformedResponse)
	}
	return sb.String(), nil
}

func (c *Client) generate(ctx context.Context, model string, req *generateRequest) (*generateResponse, error) {
	if c.config.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	start := time.Now()
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.config.Endpoint, "/"), model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// key in a header keeps it out of URL logs
	httpReq.Header.Set("x-goog-api-key", c.config.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrMalformedResponse, err)
	}
	if len(out.Candidates) == 0 {
		return nil, ErrNoCandidates
	}

	c.logger.Debug().
		Str("model", model).
		Int("prompt_tokens", out.UsageMetadata.PromptTokenCount).
		Int("completion_tokens", out.UsageMetadata.CandidatesTokenCount).
		Dur("duration", time.Since(start)).
		Msg("generateContent")
	return &out, nil
}

func clampScore(v float64) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return int(v + 0.5)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// Wire types

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature        *float64      `json:"temperature,omitempty"`
	ResponseMIMEType   string        `json:"responseMimeType,omitempty"`
	ResponseSchema     *schema       `json:"responseSchema,omitempty"`
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoice `json:"prebuiltVoiceConfig"`
}

type prebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
			Role  string `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

package ai

import (
	"fmt"
	"strings"
)

const conversationSystemPrompt = `ROLE: You are EVE, a sympathetic and expert English tutor.
OBJECTIVE: Engage in natural conversation while providing high-quality pedagogical feedback.

FOR EVERY USER INPUT:
1. Transcribe exactly what the user said.
2. Provide a conversational response in English (friendly, concise).
3. Provide a Portuguese translation of your response.
4. ANALYZE THE USER'S ENGLISH:
   - Identify grammar errors, unnatural phrasing, or vocabulary improvements.
   - Suggest a more "native-like" way to say what they intended.
   - Give a brief tip in Portuguese about their specific mistake.`

const pronunciationSystemPrompt = `ROLE: You are a strict English Pronunciation Coach.
OBJECTIVE: Compare the user's audio input with the target phrase.

CRITICAL RULES:
1. ZERO TOLERANCE FOR SILENCE: If the audio is silent, only noise, or just a cough/breath, YOU MUST return isCorrect: false, score: 0, and feedback: "Não ouvi sua voz. Por favor, fale mais alto ou verifique seu microfone."
2. NO HALLUCINATION: Do not try to "guess" words. If it's not recognizable English matching the target, score is 0.
3. SCORING:
   - 90-100: Very clear.
   - 70-89: Good, minor issues.
   - 40-69: Understandable but heavy errors.
   - 0-39: Incorrect or Unintelligible.
4. FEEDBACK: Give a short, helpful tip in Portuguese.`

// ContextWindow is how many prior messages accompany a conversation turn.
const ContextWindow = 5

func phrasesPrompt(topic, difficulty string, count int) string {
	return fmt.Sprintf("Generate %d English phrases about %s with %s difficulty. Include Portuguese translations.", count, topic, difficulty)
}

func wordsPrompt(category string, count int) string {
	return fmt.Sprintf("Generate %d common English words related to %s that are usually hard to pronounce. Include translations.", count, category)
}

func targetPrompt(target string) string {
	return fmt.Sprintf("Target phrase: %q. Be extremely strict about silence and noise.", target)
}

// conversationContext renders the last ContextWindow lines with speaker
// prefixes.
func conversationContext(history []ContextLine) string {
	if len(history) > ContextWindow {
		history = history[len(history)-ContextWindow:]
	}
	lines := make([]string, len(history))
	for i, h := range history {
		who := "EVE"
		if h.Speaker == SpeakerUser {
			who = "User"
		}
		lines[i] = who + ": " + h.Text
	}
	return "CONTEXT:\n" + strings.Join(lines, "\n") + "\n\nUSER AUDIO INPUT IS BELOW."
}

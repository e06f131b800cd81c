package phrase

// MixTopic selects a random sample of the curated course instead of
// generated content.
const MixTopic = "Mix (Frases do Curso)"

// Topics are the conversation themes offered for generated practice.
var Topics = []string{
	"Introductions & Greetings",
	"Ordering Coffee & Food",
	"Travel & Airport",
	"Hotel & Accommodation",
	"Shopping & Fashion",
	"Job Interview",
	"Remote Work & Zoom Meetings",
	"Medical & Health",
	"Love & Relationships",
	"Arguments & Debates",
	"Movies, Music & Culture",
	"Slang & Casual Speech",
	"Academic & Formal English",
	"Tech & Programming",
	"Phonetic Challenges (TH, R, L)",
}

// IsTopic reports whether name is a known topic or the mix selector.
func IsTopic(name string) bool {
	if name == MixTopic {
		return true
	}
	for _, t := range Topics {
		if t == name {
			return true
		}
	}
	return false
}

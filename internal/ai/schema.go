package ai

// Response schemas in the service's OpenAPI subset.

type schema struct {
	Type       string             `json:"type"`
	Properties map[string]*schema `json:"properties,omitempty"`
	Items      *schema            `json:"items,omitempty"`
	Enum       []string           `json:"enum,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

func str() *schema { return &schema{Type: "STRING"} }

var conversationSchema = &schema{
	Type: "OBJECT",
	Properties: map[string]*schema{
		"transcription":      str(),
		"response":           str(),
		"responsePortuguese": str(),
		"feedback":           str(),
		"improvement":        str(),
	},
	Required: []string{"transcription", "response", "responsePortuguese"},
}

var validationSchema = &schema{
	Type: "OBJECT",
	Properties: map[string]*schema{
		"transcript": str(),
		"isCorrect":  {Type: "BOOLEAN"},
		"score":      {Type: "INTEGER"},
		"feedback":   str(),
		"words": {
			Type: "ARRAY",
			Items: &schema{
				Type: "OBJECT",
				Properties: map[string]*schema{
					"word":          str(),
					"status":        {Type: "STRING", Enum: []string{"correct", "needs_improvement", "missing"}},
					"phoneticIssue": str(),
				},
				Required: []string{"word", "status"},
			},
		},
	},
	Required: []string{"transcript", "isCorrect", "score", "feedback", "words"},
}

var phraseListSchema = &schema{
	Type: "ARRAY",
	Items: &schema{
		Type: "OBJECT",
		Properties: map[string]*schema{
			"english":    str(),
			"portuguese": str(),
			"difficulty": {Type: "STRING", Enum: []string{"easy", "medium", "hard"}},
			"category":   str(),
		},
		Required: []string{"english", "portuguese", "difficulty"},
	},
}

package extract

import (
	"fmt"
	"strings"
)

const SystemPrompt = `You extract study material from textbook passages for spaced-repetition flashcards. You only ever answer with JSON.`

const ExtractionPrompt = `Extract the knowledge points from the passage below. Return a JSON array. Each object must have these fields:

- "text": the knowledge point, quoted or lightly condensed from the passage (string, 3-500 chars)
- "kind": one of "definition", "fact", "theorem", "process", "example", "concept"
- "confidence": how clearly the passage states this point, 0.0 to 1.0 (float)
- "entities": key terms the point is about, copied exactly as written in the passage (list of strings, max 5)

Rules:
- Only extract what the passage actually states - no outside knowledge
- One point per distinct idea; do not repeat a point in different words
- A definition should read "<term> is <definition>" so the term can be asked about
- Prefer self-contained statements that make sense without the surrounding text
- Return at most %d points
- Return an empty array [] if the passage has nothing worth studying

Respond with ONLY the JSON array, no other text.`

// BuildSegmentPrompt creates the full prompt for one segment, including
// chapter context.
func BuildSegmentPrompt(chapterID string, maxPoints int, entities []string, text string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(ExtractionPrompt, maxPoints))
	sb.WriteString("\n\n---\n")
	if chapterID != "" {
		sb.WriteString(fmt.Sprintf("Chapter: %s\n", chapterID))
	}
	if len(entities) > 0 {
		sb.WriteString("Known terms: ")
		sb.WriteString(strings.Join(entities, ", "))
		sb.WriteString("\n")
	}
	sb.WriteString("---\n")
	sb.WriteString(text)
	return sb.String()
}

package engine

import (
	"encoding/json"
	"errors"
	"strings"

	"fableweaver/server/internal/interfaces"
)

// ErrMalformedPayload indicates the model's final output could not be
// parsed as a story payload.
var ErrMalformedPayload = errors.New("malformed story payload")

const imagePromptKey = `"image_prompt"`

// StreamAccumulator collects streamed tokens and watches for the
// image_prompt field so scene generation can start before the full
// payload has arrived. The early trigger fires at most once per turn.
type StreamAccumulator struct {
	buf         strings.Builder
	promptFired bool
	scanFrom    int
}

func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{}
}

// Feed appends a token to the buffer and reports whether a complete
// image prompt value became available with this token. Once the prompt
// has fired, Feed never reports again for this accumulator.
func (a *StreamAccumulator) Feed(token string) (string, bool) {
	a.buf.WriteString(token)
	if a.promptFired {
		return "", false
	}
	prompt, ok := a.tryExtractPrompt()
	if !ok {
		return "", false
	}
	a.promptFired = true
	return prompt, true
}

// PromptFired reports whether the early image trigger has already fired.
func (a *StreamAccumulator) PromptFired() bool {
	return a.promptFired
}

// tryExtractPrompt scans for the image_prompt key followed by a fully
// terminated JSON string value. The scan resumes from where the key was
// last found to avoid rescanning the whole buffer on every token.
func (a *StreamAccumulator) tryExtractPrompt() (string, bool) {
	s := a.buf.String()
	idx := strings.Index(s[a.scanFrom:], imagePromptKey)
	if idx < 0 {
		// Keep scanFrom just behind the tail so a key split across
		// tokens is still found on the next feed.
		if back := len(s) - len(imagePromptKey); back > a.scanFrom {
			a.scanFrom = back
		}
		return "", false
	}
	keyAt := a.scanFrom + idx
	rest := s[keyAt+len(imagePromptKey):]

	// Skip whitespace and the colon, then find the opening quote.
	i := 0
	for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t' || rest[i] == '\n' || rest[i] == '\r' || rest[i] == ':') {
		i++
	}
	if i >= len(rest) || rest[i] != '"' {
		return "", false
	}
	// Walk to the closing quote, honoring backslash escapes.
	j := i + 1
	for j < len(rest) {
		switch rest[j] {
		case '\\':
			j += 2
			continue
		case '"':
			raw := rest[i : j+1]
			var prompt string
			if err := json.Unmarshal([]byte(raw), &prompt); err != nil {
				return "", false
			}
			if strings.TrimSpace(prompt) == "" {
				return "", false
			}
			return prompt, true
		}
		j++
	}
	return "", false
}

// Final parses the accumulated buffer as a StoryPayload. Markdown code
// fences around the JSON are stripped before parsing. Missing choices
// and characters_in_scene fields default to empty slices.
func (a *StreamAccumulator) Final() (*interfaces.StoryPayload, error) {
	raw := stripFences(a.buf.String())
	var payload interfaces.StoryPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, ErrMalformedPayload
	}
	if payload.Narration == "" {
		return nil, ErrMalformedPayload
	}
	if payload.Choices == nil {
		payload.Choices = []string{}
	}
	if payload.CharactersInScene == nil {
		payload.CharactersInScene = []string{}
	}
	return &payload, nil
}

// Raw returns the accumulated text as received.
func (a *StreamAccumulator) Raw() string {
	return a.buf.String()
}

// stripFences removes a surrounding markdown code fence, with or
// without a language tag, from a JSON blob.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		head := strings.TrimSpace(s[:nl])
		if head == "" || head == "json" || head == "JSON" {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

package engine

import (
	"strings"
	"testing"
)

// feedAll streams s into the accumulator in chunks of n bytes and
// returns the first early prompt if one fired.
func feedAll(a *StreamAccumulator, s string, n int) (string, bool) {
	var prompt string
	var fired bool
	for i := 0; i < len(s); i += n {
		end := i + n
		if end > len(s) {
			end = len(s)
		}
		if p, ok := a.Feed(s[i:end]); ok {
			if fired {
				panic("early prompt fired twice")
			}
			prompt, fired = p, true
		}
	}
	return prompt, fired
}

// TestEarlyPromptSingleFire verifies the image prompt is detected as
// soon as its value terminates, and never fires a second time.
func TestEarlyPromptSingleFire(t *testing.T) {
	payload := `{"image_prompt": "a ruined tower at dusk", "narration": "You climb.", "choices": ["Up", "Down"], "characters_in_scene": ["Rook"]}`
	for _, chunk := range []int{1, 3, 7, len(payload)} {
		a := NewStreamAccumulator()
		prompt, ok := feedAll(a, payload, chunk)
		if !ok {
			t.Fatalf("chunk=%d: early prompt never fired", chunk)
		}
		if prompt != "a ruined tower at dusk" {
			t.Errorf("chunk=%d: prompt = %q", chunk, prompt)
		}
		if !a.PromptFired() {
			t.Errorf("chunk=%d: PromptFired() = false after fire", chunk)
		}
	}
}

// TestEarlyPromptEscapedQuotes verifies escape sequences inside the
// prompt value do not terminate the scan early.
func TestEarlyPromptEscapedQuotes(t *testing.T) {
	payload := `{"image_prompt": "the \"Black Gate\" at dawn", "narration": "x"}`
	a := NewStreamAccumulator()
	prompt, ok := feedAll(a, payload, 2)
	if !ok {
		t.Fatal("early prompt never fired")
	}
	if prompt != `the "Black Gate" at dawn` {
		t.Errorf("prompt = %q", prompt)
	}
}

// TestEarlyPromptAbsent verifies no trigger fires when the field is
// missing or empty.
func TestEarlyPromptAbsent(t *testing.T) {
	for _, payload := range []string{
		`{"narration": "Nothing changes.", "choices": []}`,
		`{"image_prompt": "", "narration": "Nothing changes."}`,
		`{"image_prompt": "   ", "narration": "Nothing changes."}`,
	} {
		a := NewStreamAccumulator()
		if p, ok := feedAll(a, payload, 4); ok {
			t.Errorf("payload %q: unexpected early prompt %q", payload, p)
		}
	}
}

// TestFinalDefaults verifies missing list fields come back as empty
// slices rather than nil.
func TestFinalDefaults(t *testing.T) {
	a := NewStreamAccumulator()
	a.Feed(`{"narration": "The road ends here."}`)
	payload, err := a.Final()
	if err != nil {
		t.Fatalf("Final: %v", err)
	}
	if payload.Narration != "The road ends here." {
		t.Errorf("Narration = %q", payload.Narration)
	}
	if payload.Choices == nil || len(payload.Choices) != 0 {
		t.Errorf("Choices = %#v, want empty slice", payload.Choices)
	}
	if payload.CharactersInScene == nil || len(payload.CharactersInScene) != 0 {
		t.Errorf("CharactersInScene = %#v, want empty slice", payload.CharactersInScene)
	}
}

// TestFinalStripsFences verifies markdown code fences around the JSON
// are tolerated.
func TestFinalStripsFences(t *testing.T) {
	for _, raw := range []string{
		"```json\n{\"narration\": \"Fenced.\", \"choices\": [\"Go\"]}\n```",
		"```\n{\"narration\": \"Fenced.\", \"choices\": [\"Go\"]}\n```",
	} {
		a := NewStreamAccumulator()
		a.Feed(raw)
		payload, err := a.Final()
		if err != nil {
			t.Fatalf("Final(%q): %v", raw, err)
		}
		if payload.Narration != "Fenced." {
			t.Errorf("Narration = %q", payload.Narration)
		}
		if len(payload.Choices) != 1 || payload.Choices[0] != "Go" {
			t.Errorf("Choices = %#v", payload.Choices)
		}
	}
}

// TestFinalMalformed verifies garbage and empty narration are rejected
// with the sentinel error.
func TestFinalMalformed(t *testing.T) {
	for _, raw := range []string{
		"not json at all",
		`{"choices": ["A"]}`,
		`{"narration": ""}`,
	} {
		a := NewStreamAccumulator()
		a.Feed(raw)
		if _, err := a.Final(); err == nil {
			t.Errorf("Final(%q): expected error", raw)
		} else if !strings.Contains(err.Error(), "malformed") {
			t.Errorf("Final(%q): err = %v", raw, err)
		}
	}
}

package generators

import (
	"context"
	"errors"
	"testing"

	"fableweaver/server/internal/interfaces"
)

// fakeEditor fails a fixed number of times before succeeding, and
// records the inputs of every call.
type fakeEditor struct {
	failures int
	calls    int
	inputs   [][]interfaces.ImageInput
	result   []byte
}

func (f *fakeEditor) EditImage(_ context.Context, images []interfaces.ImageInput, _ string) ([]byte, error) {
	f.calls++
	copied := make([]interfaces.ImageInput, len(images))
	copy(copied, images)
	f.inputs = append(f.inputs, copied)
	if f.calls <= f.failures {
		return nil, errors.New("upstream unavailable")
	}
	return f.result, nil
}

func testLibrary() *PortraitLibrary {
	return &PortraitLibrary{
		portraits: map[string]interfaces.ImageInput{
			"Rook": {Name: "portrait_Rook", Data: []byte("rook-png"), MIME: "image/png"},
			"Mira": {Name: "portrait_Mira", Data: []byte("mira-png"), MIME: "image/png"},
		},
		descriptions: map[string]string{},
	}
}

// TestRetrySucceedsAfterFailures verifies two failures followed by a
// success still yield an image, on the third attempt.
func TestRetrySucceedsAfterFailures(t *testing.T) {
	editor := &fakeEditor{failures: 2, result: []byte("scene")}
	p := NewPipeline(editor, testLibrary(), "", 3, 0)

	data, err := p.GenerateScene(context.Background(), "a camp at night", []string{"Rook"}, nil)
	if err != nil {
		t.Fatalf("GenerateScene: %v", err)
	}
	if string(data) != "scene" {
		t.Errorf("data = %q", data)
	}
	if editor.calls != 3 {
		t.Errorf("calls = %d, want 3", editor.calls)
	}
}

// TestRetryExhausted verifies all attempts failing surfaces an error
// and that exactly maxAttempts calls were made.
func TestRetryExhausted(t *testing.T) {
	editor := &fakeEditor{failures: 10}
	p := NewPipeline(editor, testLibrary(), "", 3, 0)

	_, err := p.GenerateScene(context.Background(), "a camp at night", []string{"Rook"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if editor.calls != 3 {
		t.Errorf("calls = %d, want 3", editor.calls)
	}
}

// TestFirstSceneRequiresPortraits verifies a first scene with no
// matching portraits fails fast without calling the editor.
func TestFirstSceneRequiresPortraits(t *testing.T) {
	editor := &fakeEditor{}
	p := NewPipeline(editor, testLibrary(), "", 3, 0)

	_, err := p.GenerateScene(context.Background(), "an empty hall", []string{"Unknown"}, nil)
	if !errors.Is(err, ErrNoBaseImage) {
		t.Fatalf("err = %v, want ErrNoBaseImage", err)
	}
	if editor.calls != 0 {
		t.Errorf("calls = %d, want 0", editor.calls)
	}
}

// TestLaterSceneReferenceFirst verifies the previous scene leads the
// input list with portraits following.
func TestLaterSceneReferenceFirst(t *testing.T) {
	editor := &fakeEditor{result: []byte("next")}
	p := NewPipeline(editor, testLibrary(), "", 3, 0)

	_, err := p.GenerateScene(context.Background(), "the gates open", []string{"Mira", "Rook"}, []byte("prev-scene"))
	if err != nil {
		t.Fatalf("GenerateScene: %v", err)
	}
	inputs := editor.inputs[0]
	if len(inputs) != 3 {
		t.Fatalf("len(inputs) = %d, want 3", len(inputs))
	}
	if inputs[0].Name != "previous_scene" || string(inputs[0].Data) != "prev-scene" {
		t.Errorf("inputs[0] = %+v, want previous scene first", inputs[0])
	}
	if inputs[1].Name != "portrait_Mira" || inputs[2].Name != "portrait_Rook" {
		t.Errorf("portrait order = %s, %s", inputs[1].Name, inputs[2].Name)
	}
}

// TestCancelledContextAborts verifies cancellation stops the retry loop
// without further attempts.
func TestCancelledContextAborts(t *testing.T) {
	editor := &fakeEditor{failures: 10}
	p := NewPipeline(editor, testLibrary(), "", 3, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.GenerateScene(ctx, "a camp at night", []string{"Rook"}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if editor.calls != 0 {
		t.Errorf("calls = %d, want 0", editor.calls)
	}
}

// TestStyleGuidePrefix verifies the style guide is prepended to the
// prompt sent to the editor.
func TestStyleGuidePrefix(t *testing.T) {
	var gotPrompt string
	editor := &promptCapturingEditor{onCall: func(p string) { gotPrompt = p }}
	p := NewPipeline(editor, testLibrary(), "oil painting style", 1, 0)

	if _, err := p.GenerateScene(context.Background(), "a bridge", []string{"Rook"}, nil); err != nil {
		t.Fatalf("GenerateScene: %v", err)
	}
	want := "oil painting style\n\na bridge"
	if gotPrompt != want {
		t.Errorf("prompt = %q, want %q", gotPrompt, want)
	}
}

// TestScenePromptIncludesCharacterDescriptions verifies the configured
// descriptions of everyone in scene are appended to the prompt, with
// undescribed characters skipped.
func TestScenePromptIncludesCharacterDescriptions(t *testing.T) {
	var gotPrompt string
	editor := &promptCapturingEditor{onCall: func(p string) { gotPrompt = p }}
	lib := testLibrary()
	lib.descriptions["Rook"] = "a scarred swordsman in gray"
	p := NewPipeline(editor, lib, "", 1, 0)

	if _, err := p.GenerateScene(context.Background(), "a bridge", []string{"Rook", "Mira"}, nil); err != nil {
		t.Fatalf("GenerateScene: %v", err)
	}
	want := "a bridge\n\nCharacters to include:\nRook: a scarred swordsman in gray"
	if gotPrompt != want {
		t.Errorf("prompt = %q, want %q", gotPrompt, want)
	}
}

type promptCapturingEditor struct {
	onCall func(prompt string)
}

func (e *promptCapturingEditor) EditImage(_ context.Context, _ []interfaces.ImageInput, prompt string) ([]byte, error) {
	e.onCall(prompt)
	return []byte("ok"), nil
}

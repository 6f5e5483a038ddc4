package generators

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"fableweaver/server/internal/interfaces"
)

// ErrNoBaseImage indicates a scene could not be generated because no
// reference image was available: no previous scene and no portraits
// for any character in the scene.
var ErrNoBaseImage = errors.New("no reference image available for scene generation")

// Pipeline turns scene prompts into images, chaining each generated
// scene as the reference for the next so the visual style stays
// consistent across a session.
type Pipeline struct {
	editor      interfaces.ImageEditor
	portraits   *PortraitLibrary
	styleGuide  string
	maxAttempts int
	retryDelay  time.Duration
}

func NewPipeline(editor interfaces.ImageEditor, portraits *PortraitLibrary, styleGuide string, maxAttempts int, retryDelay time.Duration) *Pipeline {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Pipeline{
		editor:      editor,
		portraits:   portraits,
		styleGuide:  styleGuide,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
	}
}

// GenerateInitial produces the pre-story establishing image shown
// during theme selection. It edits the given base reference with the
// configured prompt.
func (p *Pipeline) GenerateInitial(ctx context.Context, prompt string, baseRef []byte) ([]byte, error) {
	if len(baseRef) == 0 {
		return nil, ErrNoBaseImage
	}
	inputs := []interfaces.ImageInput{{Name: "base", Data: baseRef, MIME: "image/png"}}
	return p.editWithRetry(ctx, inputs, p.stylePrompt(prompt))
}

// GenerateScene produces the image for one story turn. The first scene
// of a session (reference == nil) is composed from character portraits
// alone and fails fast when none of the characters in scene have one.
// Later scenes use the previous scene as the primary reference with
// portraits as auxiliary inputs.
func (p *Pipeline) GenerateScene(ctx context.Context, prompt string, characters []string, reference []byte) ([]byte, error) {
	portraitInputs := p.portraits.ForCharacters(characters)

	var inputs []interfaces.ImageInput
	if len(reference) == 0 {
		if len(portraitInputs) == 0 {
			return nil, ErrNoBaseImage
		}
		inputs = portraitInputs
	} else {
		inputs = make([]interfaces.ImageInput, 0, len(portraitInputs)+1)
		inputs = append(inputs, interfaces.ImageInput{Name: "previous_scene", Data: reference, MIME: "image/png"})
		inputs = append(inputs, portraitInputs...)
	}

	return p.editWithRetry(ctx, inputs, p.scenePrompt(prompt, characters))
}

func (p *Pipeline) stylePrompt(prompt string) string {
	if p.styleGuide == "" {
		return prompt
	}
	return p.styleGuide + "\n\n" + prompt
}

// scenePrompt layers the style guide and the in-scene character
// descriptions around the model's scene prompt, so the editor keeps
// faces consistent with the portraits.
func (p *Pipeline) scenePrompt(prompt string, characters []string) string {
	out := p.stylePrompt(prompt)
	if descs := p.portraits.DescriptionsFor(characters); len(descs) > 0 {
		out += "\n\nCharacters to include:\n" + strings.Join(descs, "\n")
	}
	return out
}

// editWithRetry attempts the edit up to maxAttempts times with a fixed
// delay between attempts. Context cancellation aborts immediately.
func (p *Pipeline) editWithRetry(ctx context.Context, inputs []interfaces.ImageInput, prompt string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := p.editor.EditImage(ctx, inputs, prompt)
		if err == nil {
			return data, nil
		}
		lastErr = err
		log.Printf("[ImagePipeline] attempt %d/%d failed: %v", attempt, p.maxAttempts, err)
		if attempt < p.maxAttempts && p.retryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.retryDelay):
			}
		}
	}
	return nil, fmt.Errorf("image generation failed after %d attempts: %w", p.maxAttempts, lastErr)
}

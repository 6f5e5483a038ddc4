package interfaces

import (
	"context"

	"fableweaver/server/internal/game"
)

// ChatMessage is one role-tagged entry in the session's message history
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StoryPayload is the structured turn output the storyteller is contracted
// to produce as a single JSON object at stream end.
type StoryPayload struct {
	Narration         string   `json:"narration"`
	Choices           []string `json:"choices"`
	ImagePrompt       string   `json:"image_prompt"`
	CharactersInScene []string `json:"characters_in_scene"`
}

// TokenStream yields narrative text tokens until io.EOF. Tool-call side
// effects against the game context happen inside Recv, between tokens.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// NarrativeEngine produces one turn's token stream from the message history
// and the directive for this turn. The game context is mutated in place by
// storyteller tool calls while the stream is consumed.
type NarrativeEngine interface {
	StreamTurn(ctx context.Context, gameCtx *game.Context, history []ChatMessage, directive string) (TokenStream, error)
}

// ImageInput is one named image handed to the image service
type ImageInput struct {
	Name string
	Data []byte
	MIME string
}

// ImageEditor performs a single- or multi-reference image edit and returns
// the resulting PNG bytes.
type ImageEditor interface {
	EditImage(ctx context.Context, inputs []ImageInput, prompt string) ([]byte, error)
}

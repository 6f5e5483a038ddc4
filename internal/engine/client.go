package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"fableweaver/server/internal/config"
	"fableweaver/server/internal/game"
	"fableweaver/server/internal/interfaces"
)

const maxToolRounds = 6

// Client drives story turns against an OpenAI-compatible chat endpoint.
// Each turn streams content tokens to the caller while resolving any
// objective tool calls the model makes along the way.
type Client struct {
	api          *openai.Client
	model        string
	maxTokens    int
	temperature  float32
	systemPrompt string
}

func NewClient(cfg config.OpenAIConfig, systemPrompt string) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:          openai.NewClientWithConfig(clientCfg),
		model:        cfg.ChatModel,
		maxTokens:    cfg.MaxTokens,
		temperature:  float32(cfg.Temperature),
		systemPrompt: systemPrompt,
	}
}

// StreamTurn opens a streaming completion for one story turn. The
// returned stream yields content tokens; tool calls are executed
// against gameCtx transparently between streaming rounds.
func (c *Client) StreamTurn(ctx context.Context, gameCtx *game.Context, history []interfaces.ChatMessage, directive string) (interfaces.TokenStream, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: c.systemPrompt,
	})
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if directive != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: directive,
		})
	}

	ts := &turnStream{
		client:   c,
		ctx:      ctx,
		gameCtx:  gameCtx,
		messages: messages,
	}
	if err := ts.openStream(); err != nil {
		return nil, err
	}
	return ts, nil
}

// turnStream is a single turn's token source. It owns the underlying
// completion stream and reopens it after each tool round.
type turnStream struct {
	client   *Client
	ctx      context.Context
	gameCtx  *game.Context
	messages []openai.ChatCompletionMessage

	stream    *openai.ChatCompletionStream
	toolCalls []openai.ToolCall
	content   string
	rounds    int
}

func (t *turnStream) openStream() error {
	req := openai.ChatCompletionRequest{
		Model:       t.client.model,
		Messages:    t.messages,
		MaxTokens:   t.client.maxTokens,
		Temperature: t.client.temperature,
		Tools:       objectiveTools(),
		Stream:      true,
	}
	stream, err := t.client.api.CreateChatCompletionStream(t.ctx, req)
	if err != nil {
		return fmt.Errorf("failed to open completion stream: %w", err)
	}
	t.stream = stream
	t.toolCalls = nil
	t.content = ""
	return nil
}

// Recv returns the next content token. It returns io.EOF when the turn
// is complete. Tool-call rounds are resolved internally; callers only
// ever see narration payload tokens.
func (t *turnStream) Recv() (string, error) {
	for {
		resp, err := t.stream.Recv()
		if errors.Is(err, io.EOF) {
			done, rerr := t.finishRound()
			if rerr != nil {
				return "", rerr
			}
			if done {
				return "", io.EOF
			}
			continue
		}
		if err != nil {
			return "", fmt.Errorf("stream receive failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta
		if len(delta.ToolCalls) > 0 {
			t.mergeToolCalls(delta.ToolCalls)
		}
		if delta.Content != "" {
			t.content += delta.Content
			return delta.Content, nil
		}
	}
}

// finishRound handles end-of-stream. When the model stopped to call
// tools, it executes them, extends the transcript, and reopens the
// stream; it reports done=true once a round ends with no tool calls.
func (t *turnStream) finishRound() (bool, error) {
	t.stream.Close()
	if len(t.toolCalls) == 0 {
		return true, nil
	}
	t.rounds++
	if t.rounds > maxToolRounds {
		return false, fmt.Errorf("model exceeded %d tool rounds without producing a story payload", maxToolRounds)
	}

	t.messages = append(t.messages, openai.ChatCompletionMessage{
		Role:      openai.ChatMessageRoleAssistant,
		Content:   t.content,
		ToolCalls: t.toolCalls,
	})
	for _, call := range t.toolCalls {
		result := dispatchTool(t.gameCtx, call.Function.Name, call.Function.Arguments)
		log.Printf("[Engine] tool %s -> %s", call.Function.Name, result)
		t.messages = append(t.messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    result,
			ToolCallID: call.ID,
		})
	}
	return false, t.openStream()
}

// mergeToolCalls folds streamed tool-call fragments into complete
// calls. Fragments carry an index; arguments arrive as concatenated
// string pieces.
func (t *turnStream) mergeToolCalls(deltas []openai.ToolCall) {
	for _, d := range deltas {
		if d.Index == nil {
			continue
		}
		idx := *d.Index
		for len(t.toolCalls) <= idx {
			t.toolCalls = append(t.toolCalls, openai.ToolCall{Type: openai.ToolTypeFunction})
		}
		call := &t.toolCalls[idx]
		if d.ID != "" {
			call.ID = d.ID
		}
		if d.Function.Name != "" {
			call.Function.Name = d.Function.Name
		}
		call.Function.Arguments += d.Function.Arguments
	}
}

func (t *turnStream) Close() error {
	if t.stream != nil {
		t.stream.Close()
	}
	return nil
}

package interfaces

import "context"

// Conn is the duplex text channel to one client. Implementations must be
// safe for concurrent SendText calls, since background image tasks deliver
// frames independently of the turn that triggered them.
type Conn interface {
	// IsConnected reports whether the channel is still usable
	IsConnected() bool
	// SendText writes one text frame
	SendText(data []byte) error
	// ReceiveText blocks until the next text frame arrives, the context is
	// cancelled, or the peer disconnects
	ReceiveText(ctx context.Context) ([]byte, error)
	// Close tears the channel down
	Close() error
}

// Server to client frame types
const (
	MsgText       = "text"
	MsgNarration  = "narration_block"
	MsgChoices    = "choices"
	MsgObjectives = "objectives"
	MsgImage      = "image"
	MsgError      = "error"
	MsgGameEnd    = "game_end"
)

// Frame is one server-to-client message
type Frame struct {
	Type    string      `json:"type"`
	Content interface{} `json:"content,omitempty"`
	Message string      `json:"message,omitempty"`
	TurnID  *int        `json:"turn_id,omitempty"`
}

// ClientInput is one client-to-server message
type ClientInput struct {
	Choice string `json:"choice"`
	TurnID *int   `json:"turn_id"`
}

func turnID(id int) *int { return &id }

// TextFrame carries one raw narrative token for low-latency display
func TextFrame(token string) Frame {
	return Frame{Type: MsgText, Content: token}
}

// NarrationFrame carries the turn's full narration
func NarrationFrame(content string, turn int) Frame {
	return Frame{Type: MsgNarration, Content: content, TurnID: turnID(turn)}
}

// ChoicesFrame carries the turn's player choices
func ChoicesFrame(choices []string, turn int) Frame {
	return Frame{Type: MsgChoices, Content: choices, TurnID: turnID(turn)}
}

// ObjectivesFrame carries the objectives snapshot; content is the
// serialized objective list
func ObjectivesFrame(objectives interface{}, turn int) Frame {
	return Frame{Type: MsgObjectives, Content: objectives, TurnID: turnID(turn)}
}

// ImageFrame carries a base64-encoded scene image
func ImageFrame(b64 string, turn int) Frame {
	return Frame{Type: MsgImage, Content: b64, TurnID: turnID(turn)}
}

// ErrorFrame reports a per-turn failure
func ErrorFrame(content string, turn int) Frame {
	return Frame{Type: MsgError, Content: content, TurnID: turnID(turn)}
}

// GameEndFrame announces that the session has concluded
func GameEndFrame(message string) Frame {
	return Frame{Type: MsgGameEnd, Message: message}
}

package gateway

import (
	"encoding/json"
	"time"

	"github.com/attunelabs/attune/pkg/models"
)

// Inbound frame types.
const (
	frameChatMessage = "chat_message"
	frameJoinRoom    = "join_room"
	frameTyping      = "typing"
	framePing        = "ping"
)

// Outbound frame types.
const (
	frameUserJoined  = "user_joined"
	frameUserLeft    = "user_left"
	framePong        = "pong"
	frameChatHistory = "chat_history"
	frameError       = "error"
	frameAgentReply  = "agent_reply"
)

// inboundFrame is one message from a client. Payload fields beyond Type are
// validated per frame type before dispatch.
type inboundFrame struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id,omitempty"`
	Content string `json:"content,omitempty"`

	// Private marks a chat message as a direct conversation with the agent
	// rather than a room broadcast.
	Private bool `json:"private,omitempty"`

	// Password accompanies join_room frames. Rooms are open in this
	// deployment so it is accepted and ignored.
	Password string `json:"password,omitempty"`

	// IsTyping carries the typing indicator state for typing frames.
	IsTyping bool `json:"is_typing,omitempty"`
}

// outboundFrame is one message to a client.
type outboundFrame struct {
	Type      string    `json:"type"`
	RoomID    string    `json:"room_id,omitempty"`
	UserID    int64     `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// History carries prior room messages for chat_history frames.
	History []*models.RoomMessage `json:"history,omitempty"`

	// IsTyping mirrors the indicator state for typing frames.
	IsTyping bool `json:"is_typing,omitempty"`

	// ToolsUsed and Provider annotate agent replies.
	ToolsUsed []string `json:"tools_used,omitempty"`
	Provider  string   `json:"provider,omitempty"`

	// Error carries the failure description for error frames.
	Error string `json:"message,omitempty"`
}

func errorFrame(message string) outboundFrame {
	return outboundFrame{Type: frameError, Error: message, Timestamp: time.Now().UTC()}
}

func marshalFrame(frame outboundFrame) []byte {
	data, err := json.Marshal(frame)
	if err != nil {
		// The frame types only hold marshalable fields.
		return []byte(`{"type":"error","message":"internal encoding failure"}`)
	}
	return data
}

// Package models defines the shared data types exchanged between the agent
// runtime, the tool layer, the memory manager, and the transport.
package models

import (
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// MessageType assigns a message to a memory bucket.
type MessageType string

const (
	// TypeAI marks a message belonging to the user's private AI conversation.
	TypeAI MessageType = "ai"
	// TypeGeneral marks a message from the shared general chat.
	TypeGeneral MessageType = "general"
)

// Message is a single conversational message. Timestamps marshal as RFC 3339
// strings so encrypted memory blobs stay readable across versions.
type Message struct {
	Role      Role        `json:"role"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type,omitempty"`
	Timestamp time.Time   `json:"timestamp"`

	UserID     int64  `json:"user_id,omitempty"`
	RoomID     string `json:"room_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// NewMessage builds a message with the timestamp filled in.
func NewMessage(role Role, content string, msgType MessageType) Message {
	return Message{
		Role:      role,
		Content:   content,
		Type:      msgType,
		Timestamp: time.Now().UTC(),
	}
}

// RoomMessage is a persisted message in a shared room.
type RoomMessage struct {
	ID        int64     `json:"id"`
	RoomID    string    `json:"room_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

package gateway

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Inbound frames are schema-validated before dispatch so malformed client
// input is rejected at the boundary with a precise error.
type wsSchemaRegistry struct {
	once    sync.Once
	initErr error
	frame   *jsonschema.Schema
	types   map[string]*jsonschema.Schema
}

var wsSchemas wsSchemaRegistry

func initWSSchemas() error {
	wsSchemas.once.Do(func() {
		frame, err := jsonschema.CompileString("ws_frame", wsFrameSchema)
		if err != nil {
			wsSchemas.initErr = err
			return
		}
		wsSchemas.frame = frame

		types := map[string]string{
			frameChatMessage: wsChatMessageSchema,
			frameJoinRoom:    wsJoinRoomSchema,
			frameTyping:      wsTypingSchema,
			framePing:        wsPingSchema,
		}
		wsSchemas.types = make(map[string]*jsonschema.Schema, len(types))
		for name, schema := range types {
			compiled, err := jsonschema.CompileString("ws_"+name, schema)
			if err != nil {
				wsSchemas.initErr = err
				return
			}
			wsSchemas.types[name] = compiled
		}
	})
	return wsSchemas.initErr
}

// validateInbound parses and validates one raw client frame.
func validateInbound(raw []byte) (*inboundFrame, error) {
	if err := initWSSchemas(); err != nil {
		return nil, err
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("frame is not valid JSON: %w", err)
	}
	if err := wsSchemas.frame.Validate(payload); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}

	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, err
	}
	schema, ok := wsSchemas.types[frame.Type]
	if !ok {
		return nil, fmt.Errorf("unknown frame type %q", frame.Type)
	}
	if err := schema.Validate(payload); err != nil {
		return nil, fmt.Errorf("invalid %s frame: %w", frame.Type, err)
	}
	return &frame, nil
}

const wsFrameSchema = `{
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": { "type": "string", "minLength": 1 }
  },
  "additionalProperties": true
}`

const wsChatMessageSchema = `{
  "type": "object",
  "required": ["type", "content"],
  "properties": {
    "type": { "const": "chat_message" },
    "content": { "type": "string", "minLength": 1, "maxLength": 8000 },
    "room_id": { "type": "string" },
    "private": { "type": "boolean" }
  },
  "additionalProperties": false
}`

const wsJoinRoomSchema = `{
  "type": "object",
  "required": ["type", "room_id"],
  "properties": {
    "type": { "const": "join_room" },
    "room_id": { "type": "string", "minLength": 1, "maxLength": 128 },
    "password": { "type": "string" }
  },
  "additionalProperties": false
}`

const wsTypingSchema = `{
  "type": "object",
  "required": ["type", "is_typing"],
  "properties": {
    "type": { "const": "typing" },
    "room_id": { "type": "string", "minLength": 1 },
    "is_typing": { "type": "boolean" }
  },
  "additionalProperties": false
}`

const wsPingSchema = `{
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": { "const": "ping" }
  },
  "additionalProperties": false
}`

package model

import "encoding/json"

// Realtime event names, shared by both directions of the socket.
const (
	EventChatHistory    = "chat history"
	EventChatMessage    = "chat message"
	EventJoinChannel    = "join channel"
	EventMessageEdited  = "message edited"
	EventMessageDeleted = "message deleted"
	EventOnlineUsers    = "online users"
	EventPing           = "ping"
	EventPong           = "pong"
)

type WSEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

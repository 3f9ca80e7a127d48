package models

// Client-to-server event types for the WebSocket protocol.
const (
	EventAuthenticate = "authenticate"
	EventJoinRoom     = "join_room"
	EventChatMessage  = "chat_message"
	EventLeaveRoom    = "leave_room"
)

// Server-to-client event types.
const (
	EventAuthenticated = "authenticated"
	EventAuthError     = "auth_error"
	EventError         = "error"
	EventChatHistory   = "chat_history"
	EventMessage       = "message"
)

// ClientEvent is a frame sent by a connected client.
type ClientEvent struct {
	Type   string `json:"type"`
	Token  string `json:"token,omitempty"`
	RoomID string `json:"room_id,omitempty"`
	Text   string `json:"text,omitempty"`
}

// ServerEvent is a frame sent to a connected client.
type ServerEvent struct {
	Type     string        `json:"type"`
	RoomID   string        `json:"room_id,omitempty"`
	MovieID  int           `json:"movie_id,omitempty"`
	Message  *ChatMessage  `json:"message,omitempty"`
	Messages []ChatMessage `json:"messages,omitempty"`
	Error    string        `json:"error,omitempty"`
}

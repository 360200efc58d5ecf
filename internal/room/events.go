package room

import (
	"time"

	"github.com/slichti/studio-platform-dev-sub010/internal/domain"
)

// Event types on the wire. Server-to-client events are flat JSON objects
// with a discriminating "type" field; clients send message/typing/ping.
const (
	EventHistory    = "history"
	EventUserList   = "user_list"
	EventUserJoined = "user_joined"
	EventUserLeft   = "user_left"
	EventMessage    = "message"
	EventTyping     = "typing"
	EventPong       = "pong"
)

type HistoryEvent struct {
	Type     string               `json:"type"`
	Messages []domain.ChatMessage `json:"messages"`
}

type UserListEvent struct {
	Type  string        `json:"type"`
	Users []domain.User `json:"users"`
}

// PresenceEvent is sent for both user_joined and user_left.
type PresenceEvent struct {
	Type      string    `json:"type"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Timestamp time.Time `json:"timestamp"`
}

type MessageEvent struct {
	Type string `json:"type"`
	domain.ChatMessage
}

type TypingEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type PongEvent struct {
	Type string `json:"type"`
}

// clientFrame is the inbound shape; unknown fields are ignored.
type clientFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

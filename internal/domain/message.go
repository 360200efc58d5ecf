package domain

import "time"

// ChatMessage is immutable once created; the id and timestamp are always
// assigned server-side, client-supplied values are never trusted.
type ChatMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

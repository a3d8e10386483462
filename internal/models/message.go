package models

import "time"

// ChatMessage is one persisted chat entry, ordered by CreatedAt within a room.
type ChatMessage struct {
	Room      string    `json:"-"`
	User      string    `json:"user"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

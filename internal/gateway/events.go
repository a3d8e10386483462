package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope for every message the server sends, whether
// broadcast to a room or delivered privately to one connection.
type Event struct {
	ID        string          `json:"id"`
	Room      string          `json:"room,omitempty"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// EventType represents the type of an outbound event.
type EventType string

const (
	EventTypeChatHistory        EventType = "chatHistory"
	EventTypeChatMessage        EventType = "chatMessage"
	EventTypeUserList           EventType = "userList"
	EventTypeNotification       EventType = "notification"
	EventTypeTyping             EventType = "typing"
	EventTypeStartQuiz          EventType = "startQuiz"
	EventTypeNextQuestion       EventType = "nextQuestion"
	EventTypeEndQuiz            EventType = "endQuiz"
	EventTypeStartCorrection    EventType = "startCorrection"
	EventTypeNextCorrection     EventType = "nextCorrection"
	EventTypePreviousCorrection EventType = "previousCorrection"
	EventTypeShowScores         EventType = "showScores"
	EventTypeQuizRanking        EventType = "quizRanking"
	EventTypeRoomClosed         EventType = "roomClosed"
	EventTypeErrorMessage       EventType = "errorMessage"
	EventTypeAdminPrivileges    EventType = "adminPrivileges"
)

// NewEvent builds an envelope around a payload.
func NewEvent(room string, t EventType, payload any) (*Event, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", t, err)
		}
		data = b
	}
	return &Event{
		ID:        uuid.New().String(),
		Room:      room,
		Type:      t,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

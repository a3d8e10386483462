package gateway

import (
	"encoding/json"
	"fmt"
)

// ClientEvent is the tagged envelope every inbound message must fit. It is
// parsed and validated here, at the boundary, before anything reaches room
// state; malformed payloads are rejected with a private error.
type ClientEvent struct {
	Type ClientEventType `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ClientEventType represents the type of an inbound event.
type ClientEventType string

const (
	ClientEventJoinRoom           ClientEventType = "joinRoom"
	ClientEventSendMessage        ClientEventType = "sendMessage"
	ClientEventTyping             ClientEventType = "typing"
	ClientEventStartQuiz          ClientEventType = "startQuiz"
	ClientEventSubmitAnswer       ClientEventType = "submitAnswer"
	ClientEventStartCorrection    ClientEventType = "startCorrection"
	ClientEventNextCorrection     ClientEventType = "nextCorrection"
	ClientEventPreviousCorrection ClientEventType = "previousCorrection"
	ClientEventEndCorrection      ClientEventType = "endCorrection"
	ClientEventCloseRoom          ClientEventType = "closeRoom"
)

// JoinRoomPayload asks to join (or, for an admin, implicitly create) a room.
type JoinRoomPayload struct {
	Room     string `json:"room"`
	Password string `json:"password"`
}

// SendMessagePayload is one chat line.
type SendMessagePayload struct {
	Room    string `json:"room"`
	Message string `json:"message"`
}

// ClientTypingPayload signals the sender is typing.
type ClientTypingPayload struct {
	Room string `json:"room"`
}

// SubmitAnswerPayload records an answer for the live question. AnswerIndex
// nil encodes "no answer".
type SubmitAnswerPayload struct {
	QIndex      int  `json:"qIndex"`
	AnswerIndex *int `json:"answerIndex"`
}

// CloseRoomPayload asks the admin's room to be closed.
type CloseRoomPayload struct {
	Room string `json:"room"`
}

// ParseClientEvent decodes a raw frame into its envelope and typed payload.
// Event types without a payload return a nil payload.
func ParseClientEvent(data []byte) (ClientEvent, any, error) {
	var evt ClientEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return ClientEvent{}, nil, fmt.Errorf("malformed event: %w", err)
	}

	switch evt.Type {
	case ClientEventJoinRoom:
		var p JoinRoomPayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			return evt, nil, fmt.Errorf("malformed joinRoom payload: %w", err)
		}
		return evt, p, nil

	case ClientEventSendMessage:
		var p SendMessagePayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			return evt, nil, fmt.Errorf("malformed sendMessage payload: %w", err)
		}
		return evt, p, nil

	case ClientEventTyping:
		var p ClientTypingPayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			return evt, nil, fmt.Errorf("malformed typing payload: %w", err)
		}
		return evt, p, nil

	case ClientEventSubmitAnswer:
		var p SubmitAnswerPayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			return evt, nil, fmt.Errorf("malformed submitAnswer payload: %w", err)
		}
		return evt, p, nil

	case ClientEventCloseRoom:
		var p CloseRoomPayload
		if len(evt.Data) > 0 {
			if err := json.Unmarshal(evt.Data, &p); err != nil {
				return evt, nil, fmt.Errorf("malformed closeRoom payload: %w", err)
			}
		}
		return evt, p, nil

	case ClientEventStartQuiz, ClientEventStartCorrection, ClientEventNextCorrection,
		ClientEventPreviousCorrection, ClientEventEndCorrection:
		return evt, nil, nil

	default:
		return evt, nil, fmt.Errorf("unknown event type %q", evt.Type)
	}
}

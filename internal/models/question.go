package models

import "github.com/google/uuid"

// MediaType defines the kind of media attached to a question.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeAudio MediaType = "audio"
	MediaTypeVideo MediaType = "video"
)

// Media is a single media attachment on a question.
type Media struct {
	Type MediaType `json:"type"`
	URL  string    `json:"url"`
}

// Question is one multiple-choice quiz question. CorrectIndex points into
// Answers.
type Question struct {
	ID           uuid.UUID `json:"id"`
	Text         string    `json:"text"`
	Answers      []string  `json:"answers"`
	CorrectIndex int       `json:"correct_index"`
	Media        []Media   `json:"media,omitempty"`
}

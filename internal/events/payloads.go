package events

import (
	"time"

	"github.com/quizroom/quizroom/internal/models"
	"github.com/quizroom/quizroom/internal/quiz"
)

// Outbound payload types shared between the quiz core and the gateway.

// NotificationPayload carries a plain room-wide notice.
type NotificationPayload struct {
	Text string `json:"text"`
}

// ErrorPayload is delivered privately to the acting connection.
type ErrorPayload struct {
	Text string `json:"text"`
}

// TypingPayload names the user currently typing.
type TypingPayload struct {
	Username string `json:"username"`
}

// ChatMessagePayload is one chat line fanned out to the room.
type ChatMessagePayload struct {
	User      string    `json:"user"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatHistoryPayload is the room's persisted chat log, creation-time ordered,
// sent privately to a joining connection.
type ChatHistoryPayload struct {
	Messages []models.ChatMessage `json:"messages"`
}

// UserListPayload is the full authoritative member list. Membership changes
// always re-broadcast this whole, never a diff.
type UserListPayload struct {
	Users []models.Participant `json:"users"`
}

// StartQuizPayload announces a running quiz: the full question set plus the
// wall-clock deadline of the live question. Late joiners receive the same
// shape with the remaining time folded into EndTime.
type StartQuizPayload struct {
	Questions []models.Question `json:"questions"`
	EndTime   time.Time         `json:"endTime"`
}

// NextQuestionPayload moves clients to the next question.
type NextQuestionPayload struct {
	Index       int               `json:"index"`
	Question    models.Question   `json:"question"`
	UserAnswers map[string][]*int `json:"userAnswers"`
	EndTime     time.Time         `json:"endTime"`
}

// StartCorrectionPayload opens the admin-stepped walkthrough with the full
// question set and every recorded answer.
type StartCorrectionPayload struct {
	Questions   []models.Question `json:"questions"`
	UserAnswers map[string][]*int `json:"userAnswers"`
}

// CorrectionStepPayload is one step of the walkthrough: the question under
// review plus the complete per-participant answer map so clients render
// correctness.
type CorrectionStepPayload struct {
	Index       int               `json:"index"`
	Question    models.Question   `json:"question"`
	UserAnswers map[string][]*int `json:"userAnswers"`
}

// ShowScoresPayload carries the finalized per-participant scores.
type ShowScoresPayload struct {
	Scores map[string]int `json:"scores"`
}

// QuizRankingPayload is the final ranking, score descending, ties in join
// order.
type QuizRankingPayload struct {
	Ranking []quiz.RankEntry `json:"ranking"`
}

// RoomClosedPayload tells members the admin closed the room.
type RoomClosedPayload struct {
	Text string `json:"text"`
}

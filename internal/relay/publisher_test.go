package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventSubjectPerRoomAndEvent(t *testing.T) {
	assert.Equal(t, "quizroom.events.r1.chatMessage",
		eventSubject("quizroom.events", "r1", "chatMessage"))
}

func TestEventSubjectSanitizesRoomNames(t *testing.T) {
	tests := []struct {
		name string
		room string
		want string
	}{
		{name: "spaces", room: "friday quiz", want: "quizroom.events.friday_quiz.startQuiz"},
		{name: "dots", room: "team.alpha", want: "quizroom.events.team_alpha.startQuiz"},
		{name: "wildcards", room: "a*b>c", want: "quizroom.events.a_b_c.startQuiz"},
		{name: "already safe", room: "Room-42_x", want: "quizroom.events.Room-42_x.startQuiz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, eventSubject("quizroom.events", tt.room, "startQuiz"))
		})
	}
}

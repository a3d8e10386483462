package gateway_test

import (
	"testing"

	"github.com/quizroom/quizroom/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientEvent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		check   func(t *testing.T, payload any)
	}{
		{
			name: "joinRoom",
			raw:  `{"type":"joinRoom","data":{"room":"r1","password":"p"}}`,
			check: func(t *testing.T, payload any) {
				p, ok := payload.(gateway.JoinRoomPayload)
				require.True(t, ok)
				assert.Equal(t, "r1", p.Room)
				assert.Equal(t, "p", p.Password)
			},
		},
		{
			name: "submitAnswer with answer",
			raw:  `{"type":"submitAnswer","data":{"qIndex":2,"answerIndex":1}}`,
			check: func(t *testing.T, payload any) {
				p, ok := payload.(gateway.SubmitAnswerPayload)
				require.True(t, ok)
				assert.Equal(t, 2, p.QIndex)
				require.NotNil(t, p.AnswerIndex)
				assert.Equal(t, 1, *p.AnswerIndex)
			},
		},
		{
			name: "submitAnswer with null answer",
			raw:  `{"type":"submitAnswer","data":{"qIndex":0,"answerIndex":null}}`,
			check: func(t *testing.T, payload any) {
				p, ok := payload.(gateway.SubmitAnswerPayload)
				require.True(t, ok)
				assert.Nil(t, p.AnswerIndex)
			},
		},
		{
			name: "startQuiz has no payload",
			raw:  `{"type":"startQuiz"}`,
			check: func(t *testing.T, payload any) {
				assert.Nil(t, payload)
			},
		},
		{
			name: "closeRoom without payload",
			raw:  `{"type":"closeRoom"}`,
			check: func(t *testing.T, payload any) {
				p, ok := payload.(gateway.CloseRoomPayload)
				require.True(t, ok)
				assert.Empty(t, p.Room)
			},
		},
		{
			name:    "malformed frame",
			raw:     `{"type":`,
			wantErr: true,
		},
		{
			name:    "unknown type",
			raw:     `{"type":"launchMissiles","data":{}}`,
			wantErr: true,
		},
		{
			name:    "malformed payload",
			raw:     `{"type":"joinRoom","data":"not-an-object"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, payload, err := gateway.ParseClientEvent([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, payload)
		})
	}
}

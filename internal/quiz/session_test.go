package quiz_test

import (
	"testing"
	"time"

	"github.com/quizroom/quizroom/internal/models"
	"github.com/quizroom/quizroom/internal/quiz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(i int) *int { return &i }

func testQuestions(n int) []models.Question {
	out := make([]models.Question, n)
	for i := range out {
		out[i] = models.Question{
			Text:         "question",
			Answers:      []string{"a", "b", "c", "d"},
			CorrectIndex: i % 4,
		}
	}
	return out
}

func TestSessionStart(t *testing.T) {
	now := time.Now()
	s := quiz.NewSession("r1", testQuestions(3), now, 15*time.Second)

	assert.Equal(t, quiz.StateInProgress, s.State())
	assert.Equal(t, 0, s.CurrentIndex())
	assert.Equal(t, now.Add(15*time.Second), s.Deadline())
	assert.True(t, s.Active())
}

func TestSessionSubmitFirstWriteWins(t *testing.T) {
	s := quiz.NewSession("r1", testQuestions(2), time.Now(), time.Second)

	require.NoError(t, s.Submit("alice", 0, intp(1)))

	err := s.Submit("alice", 0, intp(2))
	require.ErrorIs(t, err, quiz.ErrDuplicateAnswer)

	answers := s.Answers()
	require.NotNil(t, answers["alice"][0])
	assert.Equal(t, 1, *answers["alice"][0])
}

func TestSessionSubmitExplicitNilIsRecorded(t *testing.T) {
	s := quiz.NewSession("r1", testQuestions(2), time.Now(), time.Second)

	require.NoError(t, s.Submit("alice", 0, nil))

	// A recorded "no answer" blocks later writes just like a real answer.
	err := s.Submit("alice", 0, intp(3))
	require.ErrorIs(t, err, quiz.ErrDuplicateAnswer)
	assert.Nil(t, s.Answers()["alice"][0])
}

func TestSessionSubmitValidation(t *testing.T) {
	s := quiz.NewSession("r1", testQuestions(3), time.Now(), time.Second)

	tests := []struct {
		name    string
		qIndex  int
		answer  *int
		wantErr error
	}{
		{name: "wrong question index", qIndex: 1, answer: intp(0), wantErr: quiz.ErrInvalidIndex},
		{name: "negative question index", qIndex: -1, answer: intp(0), wantErr: quiz.ErrInvalidIndex},
		{name: "answer out of range", qIndex: 0, answer: intp(4), wantErr: quiz.ErrInvalidIndex},
		{name: "negative answer", qIndex: 0, answer: intp(-1), wantErr: quiz.ErrInvalidIndex},
		{name: "valid answer", qIndex: 0, answer: intp(3), wantErr: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Submit("bob", tt.qIndex, tt.answer)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSessionSubmitAfterEnd(t *testing.T) {
	s := quiz.NewSession("r1", testQuestions(1), time.Now(), time.Second)
	s.Advance([]string{"alice"}, time.Now(), time.Second)

	err := s.Submit("alice", 0, intp(0))
	assert.ErrorIs(t, err, quiz.ErrNotRunning)
}

func TestSessionAdvanceBackfillsMissingAnswers(t *testing.T) {
	now := time.Now()
	s := quiz.NewSession("r1", testQuestions(3), now, 10*time.Second)

	require.NoError(t, s.Submit("alice", 0, intp(0)))

	res := s.Advance([]string{"alice", "bob"}, now, 10*time.Second)
	require.False(t, res.Ended)
	assert.Equal(t, 1, res.Index)
	assert.Equal(t, now.Add(10*time.Second), res.Deadline)

	answers := s.Answers()
	require.Len(t, answers["bob"], 3)
	assert.Nil(t, answers["bob"][0])

	// The back-filled slot is immutable too.
	err := s.Submit("bob", 1, intp(2))
	require.NoError(t, err)
	assert.ErrorIs(t, s.Submit("bob", 1, intp(3)), quiz.ErrDuplicateAnswer)
}

func TestSessionScoring(t *testing.T) {
	questions := []models.Question{
		{Text: "q0", Answers: []string{"a", "b"}, CorrectIndex: 0},
		{Text: "q1", Answers: []string{"a", "b"}, CorrectIndex: 1},
	}
	now := time.Now()
	s := quiz.NewSession("r1", questions, now, time.Second)
	members := []string{"alice", "bob"}

	require.NoError(t, s.Submit("alice", 0, intp(0))) // correct
	require.NoError(t, s.Submit("bob", 0, intp(1)))   // wrong
	s.Advance(members, now, time.Second)

	require.NoError(t, s.Submit("alice", 1, intp(1))) // correct
	// bob times out on q1: back-filled nil never counts
	res := s.Advance(members, now, time.Second)
	require.True(t, res.Ended)
	assert.Equal(t, quiz.StateEnded, s.State())

	scores := s.Scores()
	assert.Equal(t, 2, scores["alice"])
	assert.Equal(t, 0, scores["bob"])
}

func TestSessionRankingTiesPreserveJoinOrder(t *testing.T) {
	questions := []models.Question{
		{Text: "q0", Answers: []string{"a", "b"}, CorrectIndex: 0},
	}
	now := time.Now()
	s := quiz.NewSession("r1", questions, now, time.Second)
	members := []string{"carol", "alice", "bob"}

	require.NoError(t, s.Submit("carol", 0, intp(1))) // wrong
	require.NoError(t, s.Submit("alice", 0, intp(0))) // correct
	require.NoError(t, s.Submit("bob", 0, intp(0)))   // correct
	res := s.Advance(members, now, time.Second)
	require.True(t, res.Ended)

	ranking := s.Ranking(members)
	require.Len(t, ranking, 3)
	// alice and bob tie on score; alice joined first
	assert.Equal(t, quiz.RankEntry{Rank: 1, User: "alice", Score: 1}, ranking[0])
	assert.Equal(t, quiz.RankEntry{Rank: 2, User: "bob", Score: 1}, ranking[1])
	assert.Equal(t, quiz.RankEntry{Rank: 3, User: "carol", Score: 0}, ranking[2])
}

func TestSessionRankingDepartedMemberSortsAfterStayers(t *testing.T) {
	questions := []models.Question{
		{Text: "q0", Answers: []string{"a", "b"}, CorrectIndex: 0},
	}
	now := time.Now()
	s := quiz.NewSession("r1", questions, now, time.Second)

	require.NoError(t, s.Submit("alice", 0, intp(0))) // correct
	require.NoError(t, s.Submit("bob", 0, intp(1)))   // wrong
	require.NoError(t, s.Submit("carol", 0, intp(1))) // wrong, leaves before the end
	res := s.Advance([]string{"alice", "bob"}, now, time.Second)
	require.True(t, res.Ended)

	// carol still holds a score but is gone from the join order; on the tie
	// with bob she ranks behind him
	ranking := s.Ranking([]string{"alice", "bob"})
	require.Len(t, ranking, 3)
	assert.Equal(t, quiz.RankEntry{Rank: 1, User: "alice", Score: 1}, ranking[0])
	assert.Equal(t, quiz.RankEntry{Rank: 2, User: "bob", Score: 0}, ranking[1])
	assert.Equal(t, quiz.RankEntry{Rank: 3, User: "carol", Score: 0}, ranking[2])
}

func endedSession(t *testing.T, n int) *quiz.Session {
	t.Helper()
	now := time.Now()
	s := quiz.NewSession("r1", testQuestions(n), now, time.Second)
	for i := 0; i < n; i++ {
		s.Advance([]string{"alice"}, now, time.Second)
	}
	require.Equal(t, quiz.StateEnded, s.State())
	return s
}

func TestCorrectionRequiresEndedQuiz(t *testing.T) {
	s := quiz.NewSession("r1", testQuestions(2), time.Now(), time.Second)
	assert.ErrorIs(t, s.StartCorrection(), quiz.ErrAlreadyRunning)
}

func TestCorrectionWalkthrough(t *testing.T) {
	s := endedSession(t, 3)

	require.NoError(t, s.StartCorrection())
	assert.Equal(t, quiz.StateCorrection, s.State())
	assert.Equal(t, 0, s.CorrectionIndex())
	assert.True(t, s.Active())

	// previous at the first question is a reported no-op
	assert.ErrorIs(t, s.CorrectionPrevious(), quiz.ErrAtBoundary)
	assert.Equal(t, 0, s.CorrectionIndex())

	done, err := s.CorrectionNext()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 1, s.CorrectionIndex())

	require.NoError(t, s.CorrectionPrevious())
	assert.Equal(t, 0, s.CorrectionIndex())

	for i := 0; i < 2; i++ {
		done, err = s.CorrectionNext()
		require.NoError(t, err)
		assert.False(t, done)
	}

	// stepping past the last question ends the walkthrough
	done, err = s.CorrectionNext()
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, quiz.StateCorrectionEnded, s.State())
	assert.False(t, s.Active())

	_, err = s.CorrectionNext()
	assert.ErrorIs(t, err, quiz.ErrNotRunning)
}

func TestCorrectionRestartAfterEnd(t *testing.T) {
	s := endedSession(t, 2)

	require.NoError(t, s.StartCorrection())
	require.NoError(t, s.EndCorrection())
	assert.Equal(t, quiz.StateCorrectionEnded, s.State())

	// A finished walkthrough may be replayed.
	require.NoError(t, s.StartCorrection())
	assert.Equal(t, 0, s.CorrectionIndex())
}

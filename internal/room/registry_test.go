package room_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quizroom/quizroom/internal/models"
	"github.com/quizroom/quizroom/internal/quiz"
	"github.com/quizroom/quizroom/internal/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreateAndGet(t *testing.T) {
	reg := room.NewRegistry()

	rm, err := reg.Create("r1", nil, "alice")
	require.NoError(t, err)
	require.NotNil(t, rm)
	assert.Equal(t, "r1", rm.Name())
	assert.Equal(t, "alice", rm.Admin())

	got, ok := reg.Get("r1")
	require.True(t, ok)
	assert.Same(t, rm, got)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryCreateDuplicate(t *testing.T) {
	reg := room.NewRegistry()

	_, err := reg.Create("r1", nil, "alice")
	require.NoError(t, err)

	_, err = reg.Create("r1", nil, "bob")
	assert.ErrorIs(t, err, room.ErrRoomExists)
}

func TestRegistryRemove(t *testing.T) {
	reg := room.NewRegistry()
	_, err := reg.Create("r1", nil, "alice")
	require.NoError(t, err)

	reg.Remove("r1")
	_, ok := reg.Get("r1")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())

	// removing twice is harmless
	reg.Remove("r1")
}

func TestRoomPassword(t *testing.T) {
	hash, err := room.HashPassword("secret")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	reg := room.NewRegistry()
	rm, err := reg.Create("r1", hash, "alice")
	require.NoError(t, err)

	assert.NoError(t, rm.CheckPassword("secret"))
	assert.ErrorIs(t, rm.CheckPassword("wrong"), room.ErrBadPassword)
	assert.ErrorIs(t, rm.CheckPassword(""), room.ErrBadPassword)
}

func TestRoomWithoutPasswordIsOpen(t *testing.T) {
	hash, err := room.HashPassword("")
	require.NoError(t, err)
	assert.Empty(t, hash)

	reg := room.NewRegistry()
	rm, err := reg.Create("r1", hash, "alice")
	require.NoError(t, err)

	assert.NoError(t, rm.CheckPassword(""))
	assert.NoError(t, rm.CheckPassword("anything"))
}

func TestRoomJoinLeave(t *testing.T) {
	reg := room.NewRegistry()
	rm, err := reg.Create("r1", nil, "alice")
	require.NoError(t, err)

	assert.False(t, rm.Join("alice"))
	assert.False(t, rm.Join("bob"))
	assert.True(t, rm.IsMember("alice"))
	assert.Equal(t, []string{"alice", "bob"}, rm.MemberNames())

	// rejoining while already a member is idempotent
	assert.True(t, rm.Join("alice"))
	assert.Equal(t, []string{"alice", "bob"}, rm.MemberNames())

	assert.False(t, rm.Leave("alice"))
	assert.False(t, rm.IsMember("alice"))
	assert.True(t, rm.Leave("bob"))
}

func TestRoomParticipantsUseDefaultAvatar(t *testing.T) {
	reg := room.NewRegistry()
	rm, err := reg.Create("r1", nil, "alice")
	require.NoError(t, err)

	rm.Join("alice")
	rm.Join("bob")
	rm.SetAvatar("bob", "avatars/avatar7.svg")

	participants := rm.Participants()
	require.Len(t, participants, 2)
	assert.Equal(t, models.Participant{Username: "alice", Avatar: models.DefaultAvatar}, participants[0])
	assert.Equal(t, models.Participant{Username: "bob", Avatar: "avatars/avatar7.svg"}, participants[1])
}

func TestRoomInstallSession(t *testing.T) {
	reg := room.NewRegistry()
	rm, err := reg.Create("r1", nil, "alice")
	require.NoError(t, err)
	rm.Join("alice")

	questions := []models.Question{{Text: "q", Answers: []string{"a", "b"}, CorrectIndex: 0}}
	first := quiz.NewSession("r1", questions, time.Now(), time.Second)
	require.NoError(t, rm.InstallSession(first))

	// a running session blocks a restart
	second := quiz.NewSession("r1", questions, time.Now(), time.Second)
	assert.ErrorIs(t, rm.InstallSession(second), quiz.ErrAlreadyRunning)

	// once ended, the session may be replaced
	adv, ok := rm.AdvanceQuiz(first.ID, time.Now(), time.Second)
	require.True(t, ok)
	require.True(t, adv.Result.Ended)
	assert.NoError(t, rm.InstallSession(second))
}

func TestRoomWithSessionRequiresSession(t *testing.T) {
	reg := room.NewRegistry()
	rm, err := reg.Create("r1", nil, "alice")
	require.NoError(t, err)

	err = rm.WithSession(func(s *quiz.Session) error { return nil })
	assert.ErrorIs(t, err, quiz.ErrNotRunning)
}

func TestRoomAdvanceQuizIgnoresStaleSession(t *testing.T) {
	reg := room.NewRegistry()
	rm, err := reg.Create("r1", nil, "alice")
	require.NoError(t, err)
	rm.Join("alice")

	questions := []models.Question{{Text: "q", Answers: []string{"a", "b"}, CorrectIndex: 0}}
	sess := quiz.NewSession("r1", questions, time.Now(), time.Second)
	require.NoError(t, rm.InstallSession(sess))

	// a fire carrying another session's identity has no effect
	_, ok := rm.AdvanceQuiz(uuid.New(), time.Now(), time.Second)
	assert.False(t, ok)
	assert.Equal(t, quiz.StateInProgress, sess.State())
}

func TestRoomQuizSnapshot(t *testing.T) {
	reg := room.NewRegistry()
	rm, err := reg.Create("r1", nil, "alice")
	require.NoError(t, err)
	rm.Join("alice")

	_, _, live := rm.QuizSnapshot()
	assert.False(t, live)

	now := time.Now()
	questions := []models.Question{{Text: "q", Answers: []string{"a", "b"}, CorrectIndex: 0}}
	sess := quiz.NewSession("r1", questions, now, 10*time.Second)
	require.NoError(t, rm.InstallSession(sess))

	got, deadline, live := rm.QuizSnapshot()
	require.True(t, live)
	assert.Equal(t, questions, got)
	assert.Equal(t, now.Add(10*time.Second), deadline)
}

package room

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quizroom/quizroom/internal/models"
	"github.com/quizroom/quizroom/internal/quiz"
	"golang.org/x/crypto/bcrypt"
)

// Room is one password-gated group with at most one quiz session. Name,
// password hash and admin are fixed at creation; membership and the session
// are guarded by the room's own mutex, so independent rooms progress in
// parallel while all handlers and timer callbacks touching one room are
// serialized.
type Room struct {
	name         string
	passwordHash []byte
	admin        string

	mu       sync.Mutex
	order    []string // usernames in first-join order
	members  map[string]struct{}
	avatars  map[string]string
	session  *quiz.Session
}

func newRoom(name string, passwordHash []byte, admin string) *Room {
	return &Room{
		name:         name,
		passwordHash: passwordHash,
		admin:        admin,
		members:      make(map[string]struct{}),
		avatars:      make(map[string]string),
	}
}

// Name returns the room's unique name.
func (r *Room) Name() string { return r.name }

// Admin returns the username recorded as admin at creation.
func (r *Room) Admin() string { return r.admin }

// IsAdmin reports whether username is the room's admin.
func (r *Room) IsAdmin(username string) bool { return r.admin == username }

// CheckPassword verifies the supplied password against the stored hash with
// a constant-time comparison. Rooms created without a password accept any.
func (r *Room) CheckPassword(password string) error {
	if len(r.passwordHash) == 0 {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(r.passwordHash, []byte(password)); err != nil {
		return ErrBadPassword
	}
	return nil
}

// Join adds the participant to the member set. Joining while already a
// member is allowed and idempotent; rejoined reports that case so callers
// can skip duplicate notifications.
func (r *Room) Join(username string) (rejoined bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[username]; ok {
		return true
	}
	r.members[username] = struct{}{}
	r.order = append(r.order, username)
	return false
}

// Leave removes the participant. empty reports whether the member set is now
// empty, in which case the caller cascades to room and session deletion.
func (r *Room) Leave(username string) (empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[username]; !ok {
		return len(r.members) == 0
	}
	delete(r.members, username)
	delete(r.avatars, username)
	for i, name := range r.order {
		if name == username {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return len(r.members) == 0
}

// IsMember reports whether username is currently in the room.
func (r *Room) IsMember(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[username]
	return ok
}

// SetAvatar records the lazily resolved avatar for a member.
func (r *Room) SetAvatar(username, avatar string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[username]; ok {
		r.avatars[username] = avatar
	}
}

// Participants returns the full authoritative member list in join order.
// Membership updates always broadcast this list whole, never a delta.
func (r *Room) Participants() []models.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Participant, 0, len(r.order))
	for _, username := range r.order {
		avatar := r.avatars[username]
		if avatar == "" {
			avatar = models.DefaultAvatar
		}
		out = append(out, models.Participant{Username: username, Avatar: avatar})
	}
	return out
}

// MemberNames returns the usernames in join order.
func (r *Room) MemberNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// InstallSession attaches a freshly started session, replacing a finished
// one. It fails with quiz.ErrAlreadyRunning while a session is mid-quiz or
// mid-correction. Callers cancel the room's timer before installing.
func (r *Room) InstallSession(s *quiz.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != nil && r.session.Active() {
		return quiz.ErrAlreadyRunning
	}
	r.session = s
	return nil
}

// WithSession runs fn on the room's session under the room lock. It returns
// quiz.ErrNotRunning when no session exists.
func (r *Room) WithSession(fn func(s *quiz.Session) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil {
		return quiz.ErrNotRunning
	}
	return fn(r.session)
}

// QuizAdvance bundles everything the caller broadcasts after a timer-driven
// advance.
type QuizAdvance struct {
	Result   quiz.AdvanceResult
	Question models.Question   // next question, when the quiz continues
	Answers  map[string][]*int // recorded answers so far
	Scores   map[string]int    // final scores, when the quiz ended
	Ranking  []quiz.RankEntry  // final ranking, when the quiz ended
}

// AdvanceQuiz performs the timer-driven advance for the identified session.
// It reports ok=false when the session is gone, was replaced, or is no
// longer in progress, so a stale timer fire has no effect.
func (r *Room) AdvanceQuiz(sessionID uuid.UUID, now time.Time, perQuestion time.Duration) (QuizAdvance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.session
	if s == nil || s.ID != sessionID || s.State() != quiz.StateInProgress {
		return QuizAdvance{}, false
	}

	res := s.Advance(r.order, now, perQuestion)
	adv := QuizAdvance{Result: res, Answers: s.Answers()}
	if res.Ended {
		adv.Scores = s.Scores()
		adv.Ranking = s.Ranking(r.order)
	} else {
		adv.Question = s.Questions[res.Index]
	}
	return adv, true
}

// QuizSnapshot returns the live question set and deadline for late joiners.
// live is false when no question is currently running.
func (r *Room) QuizSnapshot() (questions []models.Question, deadline time.Time, live bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil || r.session.State() != quiz.StateInProgress {
		return nil, time.Time{}, false
	}
	return r.session.Questions, r.session.Deadline(), true
}

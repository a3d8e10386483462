package quiz

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/quizroom/quizroom/internal/models"
)

// State defines the lifecycle state of a quiz session.
type State string

const (
	StateInProgress      State = "IN_PROGRESS"
	StateEnded           State = "ENDED"
	StateCorrection      State = "CORRECTION_IN_PROGRESS"
	StateCorrectionEnded State = "CORRECTION_ENDED"
)

// RankEntry is one row of the final ranking.
type RankEntry struct {
	Rank  int    `json:"rank"`
	User  string `json:"user"`
	Score int    `json:"score"`
}

// answerSheet tracks one participant's answers. recorded distinguishes an
// explicit "no answer" (nil, written once) from a slot that was never written.
type answerSheet struct {
	answers  []*int
	recorded []bool
}

// Session is the state machine for one quiz bound to a room. It is not safe
// for concurrent use; callers serialize access through the owning room's lock.
type Session struct {
	ID        uuid.UUID
	Room      string
	Questions []models.Question

	sheets     map[string]*answerSheet
	scores     map[string]int
	state      State
	current    int
	deadline   time.Time
	correction int
}

// NewSession starts a session at question zero with the first deadline set to
// now plus the per-question duration.
func NewSession(room string, questions []models.Question, now time.Time, perQuestion time.Duration) *Session {
	return &Session{
		ID:        uuid.New(),
		Room:      room,
		Questions: questions,
		sheets:    make(map[string]*answerSheet),
		scores:    make(map[string]int),
		state:     StateInProgress,
		current:   0,
		deadline:  now.Add(perQuestion),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// CurrentIndex returns the index of the live question.
func (s *Session) CurrentIndex() int { return s.current }

// Deadline returns the server-side deadline of the live question.
func (s *Session) Deadline() time.Time { return s.deadline }

// CorrectionIndex returns the index the correction walkthrough is showing.
func (s *Session) CorrectionIndex() int { return s.correction }

// Active reports whether the session is mid-quiz or mid-correction. A new
// session may only replace this one once Active is false.
func (s *Session) Active() bool {
	return s.state == StateInProgress || s.state == StateCorrection
}

func (s *Session) sheet(username string) *answerSheet {
	sh, ok := s.sheets[username]
	if !ok {
		sh = &answerSheet{
			answers:  make([]*int, len(s.Questions)),
			recorded: make([]bool, len(s.Questions)),
		}
		s.sheets[username] = sh
	}
	return sh
}

// Submit records an answer for the live question. First write wins: a slot
// already recorded, including an explicit nil ("no answer"), is never
// overwritten and yields ErrDuplicateAnswer. answer may be nil; a non-nil
// answer outside the question's option range yields ErrInvalidIndex.
func (s *Session) Submit(username string, qIndex int, answer *int) error {
	if s.state != StateInProgress {
		return ErrNotRunning
	}
	if qIndex != s.current {
		return ErrInvalidIndex
	}
	if answer != nil && (*answer < 0 || *answer >= len(s.Questions[qIndex].Answers)) {
		return ErrInvalidIndex
	}

	sh := s.sheet(username)
	if sh.recorded[qIndex] {
		return ErrDuplicateAnswer
	}
	sh.answers[qIndex] = answer
	sh.recorded[qIndex] = true
	return nil
}

// AdvanceResult describes the outcome of a timer-driven advance.
type AdvanceResult struct {
	Ended    bool
	Index    int
	Deadline time.Time
}

// Advance moves the session past the live question: every listed member
// without a recorded answer is back-filled with nil, then the index moves
// forward. Past the last question the session ends and scores are finalized;
// otherwise a fresh deadline is set.
func (s *Session) Advance(members []string, now time.Time, perQuestion time.Duration) AdvanceResult {
	if s.state != StateInProgress {
		return AdvanceResult{Ended: s.state != StateInProgress}
	}

	for _, username := range members {
		sh := s.sheet(username)
		if !sh.recorded[s.current] {
			sh.answers[s.current] = nil
			sh.recorded[s.current] = true
		}
	}

	s.current++
	if s.current >= len(s.Questions) {
		s.state = StateEnded
		s.deadline = time.Time{}
		s.finalizeScores()
		return AdvanceResult{Ended: true}
	}

	s.deadline = now.Add(perQuestion)
	return AdvanceResult{Index: s.current, Deadline: s.deadline}
}

// finalizeScores computes exact-match scores for every sheet. A nil answer
// never counts as correct.
func (s *Session) finalizeScores() {
	for username, sh := range s.sheets {
		score := 0
		for i, ans := range sh.answers {
			if ans != nil && *ans == s.Questions[i].CorrectIndex {
				score++
			}
		}
		s.scores[username] = score
	}
}

// Scores returns a copy of the finalized per-participant scores.
func (s *Session) Scores() map[string]int {
	out := make(map[string]int, len(s.scores))
	for username, score := range s.scores {
		out[username] = score
	}
	return out
}

// Answers returns a copy of the per-participant answer lists, nil marking
// slots with no answer.
func (s *Session) Answers() map[string][]*int {
	out := make(map[string][]*int, len(s.sheets))
	for username, sh := range s.sheets {
		answers := make([]*int, len(sh.answers))
		copy(answers, sh.answers)
		out[username] = answers
	}
	return out
}

// Ranking sorts participants by score descending, ties broken by join order,
// and assigns ranks starting at 1. joinOrder carries the room's members in
// the order they first joined. Scored participants who left the room are no
// longer in joinOrder; they sort after current members on equal score, by
// name among themselves, so a departure never pushes someone above a stayer.
func (s *Session) Ranking(joinOrder []string) []RankEntry {
	pos := make(map[string]int, len(joinOrder))
	for i, username := range joinOrder {
		pos[username] = i
	}

	users := make([]string, 0, len(s.scores))
	for username := range s.scores {
		users = append(users, username)
	}
	sort.Slice(users, func(i, j int) bool {
		if s.scores[users[i]] != s.scores[users[j]] {
			return s.scores[users[i]] > s.scores[users[j]]
		}
		pi, iPresent := pos[users[i]]
		pj, jPresent := pos[users[j]]
		if iPresent != jPresent {
			return iPresent
		}
		if !iPresent {
			return users[i] < users[j]
		}
		return pi < pj
	})

	ranking := make([]RankEntry, len(users))
	for i, username := range users {
		ranking[i] = RankEntry{Rank: i + 1, User: username, Score: s.scores[username]}
	}
	return ranking
}

// StartCorrection begins the admin-stepped walkthrough. Scores were already
// finalized when the quiz ended; correction is a read-only replay.
func (s *Session) StartCorrection() error {
	if s.state == StateInProgress || s.state == StateCorrection {
		return ErrAlreadyRunning
	}
	if s.state != StateEnded && s.state != StateCorrectionEnded {
		return ErrNotEnded
	}
	s.state = StateCorrection
	s.correction = 0
	return nil
}

// CorrectionNext steps the walkthrough forward. Stepping past the last
// question ends the correction and reports done.
func (s *Session) CorrectionNext() (done bool, err error) {
	if s.state != StateCorrection {
		return false, ErrNotRunning
	}
	if s.correction+1 >= len(s.Questions) {
		s.state = StateCorrectionEnded
		return true, nil
	}
	s.correction++
	return false, nil
}

// CorrectionPrevious steps the walkthrough backward. At the first question it
// is a no-op reported as ErrAtBoundary.
func (s *Session) CorrectionPrevious() error {
	if s.state != StateCorrection {
		return ErrNotRunning
	}
	if s.correction == 0 {
		return ErrAtBoundary
	}
	s.correction--
	return nil
}

// EndCorrection ends the walkthrough early.
func (s *Session) EndCorrection() error {
	if s.state != StateCorrection {
		return ErrNotRunning
	}
	s.state = StateCorrectionEnded
	return nil
}

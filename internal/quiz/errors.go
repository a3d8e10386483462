package quiz

import "errors"

var (
	// ErrAlreadyRunning is returned when a session is started while another
	// session for the room is still in progress or mid-correction.
	ErrAlreadyRunning = errors.New("quiz already running")

	// ErrNotRunning is returned when an operation requires a live question
	// and none is active.
	ErrNotRunning = errors.New("quiz not running")

	// ErrDuplicateAnswer is returned when an answer slot was already written.
	ErrDuplicateAnswer = errors.New("answer already submitted")

	// ErrInvalidIndex is returned for question or answer indices outside the
	// current session's bounds.
	ErrInvalidIndex = errors.New("invalid index")

	// ErrAtBoundary is returned when the correction walkthrough is stepped
	// backwards past the first question.
	ErrAtBoundary = errors.New("already at first question")

	// ErrNotEnded is returned when correction is started before the quiz
	// reached its end.
	ErrNotEnded = errors.New("quiz not ended")
)

package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quizroom/quizroom/internal/events"
	"github.com/quizroom/quizroom/internal/models"
	"github.com/quizroom/quizroom/internal/quiz"
	"github.com/quizroom/quizroom/internal/room"
	"github.com/rs/zerolog/log"
)

// QuestionBank defines what the coordinator needs from the question store.
type QuestionBank interface {
	SampleRandom(ctx context.Context, n int) ([]models.Question, error)
}

// ChatStore defines what the coordinator needs from chat persistence.
type ChatStore interface {
	Append(ctx context.Context, msg models.ChatMessage) error
	History(ctx context.Context, room string) ([]models.ChatMessage, error)
}

// AvatarSource defines what the coordinator needs from the identity store.
type AvatarSource interface {
	Avatar(ctx context.Context, username string) (string, error)
}

// EventRelay mirrors room broadcasts to an external stream. Optional;
// failures never affect the room.
type EventRelay interface {
	Publish(ctx context.Context, roomName string, eventType string, data []byte) error
}

// Broadcaster is the pub/sub surface the coordinator drives. Implemented by
// ConnectionManager in production and faked in tests.
type Broadcaster interface {
	Subscribe(roomName string, conn *Connection)
	Unsubscribe(conn *Connection) (string, bool)
	RoomOf(conn *Connection) (string, bool)
	DropRoom(roomName string)
	Broadcast(roomName string, event *Event)
	BroadcastExcept(roomName string, event *Event, except *Connection)
	SendTo(conn *Connection, event *Event)
}

// Config holds the coordinator's tunables. QuestionDuration was observed as
// both 10s and 15s in deployments; it is a named setting, never hard-coded.
type Config struct {
	QuestionDuration    time.Duration
	QuestionCount       int
	CollaboratorTimeout time.Duration
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		QuestionDuration:    15 * time.Second,
		QuestionCount:       10,
		CollaboratorTimeout: 5 * time.Second,
	}
}

const (
	minQuestionCount = 10
	maxQuestionCount = 30
)

// Coordinator validates inbound client events against room and quiz state,
// applies them, and fans the results out. All state mutation for one room
// happens under that room's lock; timer callbacks follow the same
// discipline.
type Coordinator struct {
	registry  *room.Registry
	bank      QuestionBank
	chat      ChatStore
	avatars   AvatarSource
	relay     EventRelay
	scheduler *quiz.Scheduler
	b         Broadcaster
	cfg       Config
}

// NewCoordinator wires the coordinator. relay may be nil.
func NewCoordinator(registry *room.Registry, bank QuestionBank, chat ChatStore, avatars AvatarSource, scheduler *quiz.Scheduler, b Broadcaster, relay EventRelay, cfg Config) *Coordinator {
	if cfg.QuestionDuration <= 0 {
		cfg.QuestionDuration = DefaultConfig().QuestionDuration
	}
	if cfg.QuestionCount < minQuestionCount {
		cfg.QuestionCount = minQuestionCount
	}
	if cfg.QuestionCount > maxQuestionCount {
		cfg.QuestionCount = maxQuestionCount
	}
	if cfg.CollaboratorTimeout <= 0 {
		cfg.CollaboratorTimeout = DefaultConfig().CollaboratorTimeout
	}
	return &Coordinator{
		registry:  registry,
		bank:      bank,
		chat:      chat,
		avatars:   avatars,
		relay:     relay,
		scheduler: scheduler,
		b:         b,
		cfg:       cfg,
	}
}

// HandleEvent parses and dispatches one inbound frame. Panics inside a
// handler are recovered here and surfaced as a generic private error; they
// are never fatal to the room.
func (c *Coordinator) HandleEvent(conn *Connection, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("connection_id", conn.ID).
				Str("username", conn.Identity.Username).
				Msg("recovered panic in event handler")
			c.sendError(conn, "internal server error")
		}
	}()

	evt, payload, err := ParseClientEvent(data)
	if err != nil {
		log.Debug().Err(err).Str("connection_id", conn.ID).Msg("rejected inbound event")
		c.sendError(conn, "malformed event")
		return
	}

	switch evt.Type {
	case ClientEventJoinRoom:
		c.handleJoinRoom(conn, payload.(JoinRoomPayload))
	case ClientEventSendMessage:
		c.handleSendMessage(conn, payload.(SendMessagePayload))
	case ClientEventTyping:
		c.handleTyping(conn, payload.(ClientTypingPayload))
	case ClientEventStartQuiz:
		c.handleStartQuiz(conn)
	case ClientEventSubmitAnswer:
		c.handleSubmitAnswer(conn, payload.(SubmitAnswerPayload))
	case ClientEventStartCorrection:
		c.handleStartCorrection(conn)
	case ClientEventNextCorrection:
		c.handleNextCorrection(conn)
	case ClientEventPreviousCorrection:
		c.handlePreviousCorrection(conn)
	case ClientEventEndCorrection:
		c.handleEndCorrection(conn)
	case ClientEventCloseRoom:
		c.handleCloseRoom(conn, payload.(CloseRoomPayload))
	}
}

// HandleDisconnect treats a dropped connection as leaving its current room.
func (c *Coordinator) HandleDisconnect(conn *Connection) {
	roomName, ok := c.b.Unsubscribe(conn)
	if !ok {
		return
	}
	c.leaveRoom(roomName, conn.Identity.Username)
}

// handleJoinRoom joins an existing room after password verification, or
// implicitly creates it when the caller holds the admin role.
func (c *Coordinator) handleJoinRoom(conn *Connection, p JoinRoomPayload) {
	if p.Room == "" {
		c.sendError(conn, "room name required")
		return
	}
	username := conn.Identity.Username

	rm, ok := c.registry.Get(p.Room)
	if ok {
		if err := rm.CheckPassword(p.Password); err != nil {
			c.sendError(conn, errorText(err))
			return
		}
	} else {
		if conn.Identity.Role != models.RoleAdmin {
			c.sendError(conn, "room does not exist, only an admin can create it")
			return
		}
		hash, err := room.HashPassword(p.Password)
		if err != nil {
			log.Error().Err(err).Str("room", p.Room).Msg("failed to hash room password")
			c.sendError(conn, "internal server error")
			return
		}
		rm, err = c.registry.Create(p.Room, hash, username)
		if errors.Is(err, room.ErrRoomExists) {
			// Lost a creation race; join the winner instead.
			rm, ok = c.registry.Get(p.Room)
			if !ok {
				c.sendError(conn, errorText(room.ErrRoomNotFound))
				return
			}
			if err := rm.CheckPassword(p.Password); err != nil {
				c.sendError(conn, errorText(err))
				return
			}
		} else if err != nil {
			c.sendError(conn, "internal server error")
			return
		}
	}

	// Moving between rooms leaves the old one first.
	if prev, ok := c.b.RoomOf(conn); ok && prev != p.Room {
		c.b.Unsubscribe(conn)
		c.leaveRoom(prev, username)
	}

	rejoined := rm.Join(username)
	c.b.Subscribe(p.Room, conn)

	// The avatar lookup suspends; the room may be deleted meanwhile.
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CollaboratorTimeout)
	avatar, err := c.avatars.Avatar(ctx, username)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("username", username).Msg("avatar lookup failed, using default")
		avatar = models.DefaultAvatar
	}
	if current, ok := c.registry.Get(p.Room); !ok || current != rm {
		c.b.Unsubscribe(conn)
		c.sendError(conn, errorText(room.ErrRoomNotFound))
		return
	}
	rm.SetAvatar(username, avatar)

	c.sendChatHistory(conn, p.Room)

	if !rejoined {
		c.broadcast(p.Room, EventTypeNotification,
			events.NotificationPayload{Text: fmt.Sprintf("%s joined the room", username)})
	}
	c.broadcastUserList(rm)

	// A late joiner mid-quiz gets the live question set with the remaining
	// time folded into the deadline.
	if questions, deadline, live := rm.QuizSnapshot(); live {
		c.send(conn, EventTypeStartQuiz, events.StartQuizPayload{Questions: questions, EndTime: deadline})
	}

	if rm.IsAdmin(username) {
		c.send(conn, EventTypeAdminPrivileges, nil)
	}
}

func (c *Coordinator) handleSendMessage(conn *Connection, p SendMessagePayload) {
	if p.Room == "" || p.Message == "" {
		return
	}
	roomName, ok := c.b.RoomOf(conn)
	if !ok || roomName != p.Room {
		c.sendError(conn, errorText(room.ErrRoomNotFound))
		return
	}

	msg := models.ChatMessage{
		Room:      p.Room,
		User:      conn.Identity.Username,
		Message:   p.Message,
		CreatedAt: c.scheduler.Clock().Now().UTC(),
	}

	// Durability degrades gracefully: a failed append is logged and the
	// broadcast still goes out.
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CollaboratorTimeout)
	if err := c.chat.Append(ctx, msg); err != nil {
		log.Error().Err(err).Str("room", p.Room).Msg("failed to persist chat message")
	}
	cancel()

	c.broadcast(p.Room, EventTypeChatMessage, events.ChatMessagePayload{
		User:      msg.User,
		Message:   msg.Message,
		CreatedAt: msg.CreatedAt,
	})
}

func (c *Coordinator) handleTyping(conn *Connection, p ClientTypingPayload) {
	roomName, ok := c.b.RoomOf(conn)
	if !ok || roomName != p.Room {
		return
	}
	evt, err := NewEvent(p.Room, EventTypeTyping, events.TypingPayload{Username: conn.Identity.Username})
	if err != nil {
		log.Error().Err(err).Msg("failed to build typing event")
		return
	}
	// Typing goes to everyone but the sender.
	c.b.BroadcastExcept(p.Room, evt, conn)
}

func (c *Coordinator) handleStartQuiz(conn *Connection) {
	rm, roomName, ok := c.currentRoom(conn)
	if !ok {
		return
	}
	if !rm.IsAdmin(conn.Identity.Username) {
		c.sendError(conn, errorText(room.ErrForbidden))
		return
	}

	// Sampling suspends; re-validate the room before installing anything.
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CollaboratorTimeout)
	questions, err := c.bank.SampleRandom(ctx, c.cfg.QuestionCount)
	cancel()
	if err != nil {
		log.Error().Err(err).Str("room", roomName).Msg("failed to sample questions")
		c.sendError(conn, "failed to load questions")
		return
	}
	if len(questions) == 0 {
		c.sendError(conn, "question bank is empty")
		return
	}
	if current, ok := c.registry.Get(roomName); !ok || current != rm {
		c.sendError(conn, errorText(room.ErrRoomNotFound))
		return
	}

	sess := quiz.NewSession(roomName, questions, c.scheduler.Clock().Now(), c.cfg.QuestionDuration)
	if err := rm.InstallSession(sess); err != nil {
		c.sendError(conn, errorText(err))
		return
	}

	// The install succeeding means no session is active, so any outstanding
	// timer is a leftover of a dead one. Clearing it here keeps the
	// one-timer-per-room invariant; the scheduler then only lets this
	// session's own reschedules touch the slot.
	c.scheduler.Cancel(roomName)
	c.scheduleAdvance(roomName, sess.ID)

	log.Info().
		Str("room", roomName).
		Int("questions", len(questions)).
		Dur("per_question", c.cfg.QuestionDuration).
		Msg("quiz started")

	c.broadcast(roomName, EventTypeStartQuiz, events.StartQuizPayload{
		Questions: sess.Questions,
		EndTime:   sess.Deadline(),
	})
}

func (c *Coordinator) scheduleAdvance(roomName string, sessionID uuid.UUID) {
	c.scheduler.Schedule(roomName, sessionID, c.cfg.QuestionDuration, func() {
		c.handleQuestionTimeout(roomName, sessionID)
	})
}

// handleQuestionTimeout is the timer-driven advance. The session generation
// is re-checked under the room lock, so a fire that raced room deletion or a
// session restart has no observable effect.
func (c *Coordinator) handleQuestionTimeout(roomName string, sessionID uuid.UUID) {
	rm, ok := c.registry.Get(roomName)
	if !ok {
		return
	}

	now := c.scheduler.Clock().Now()
	adv, ok := rm.AdvanceQuiz(sessionID, now, c.cfg.QuestionDuration)
	if !ok {
		return
	}

	if !adv.Result.Ended {
		c.broadcast(roomName, EventTypeNextQuestion, events.NextQuestionPayload{
			Index:       adv.Result.Index,
			Question:    adv.Question,
			UserAnswers: adv.Answers,
			EndTime:     adv.Result.Deadline,
		})
		// Chain bounded by the remaining question count.
		c.scheduleAdvance(roomName, sessionID)
		return
	}

	log.Info().Str("room", roomName).Msg("quiz ended")
	c.broadcast(roomName, EventTypeEndQuiz, nil)
	c.broadcast(roomName, EventTypeShowScores, events.ShowScoresPayload{Scores: adv.Scores})
	c.broadcast(roomName, EventTypeQuizRanking, events.QuizRankingPayload{Ranking: adv.Ranking})
}

func (c *Coordinator) handleSubmitAnswer(conn *Connection, p SubmitAnswerPayload) {
	rm, _, ok := c.currentRoom(conn)
	if !ok {
		return
	}
	err := rm.WithSession(func(s *quiz.Session) error {
		return s.Submit(conn.Identity.Username, p.QIndex, p.AnswerIndex)
	})
	if err != nil {
		// Rejections stay private; the room never sees them.
		c.sendError(conn, errorText(err))
	}
}

func (c *Coordinator) handleStartCorrection(conn *Connection) {
	rm, roomName, ok := c.currentRoom(conn)
	if !ok {
		return
	}
	if !rm.IsAdmin(conn.Identity.Username) {
		c.sendError(conn, errorText(room.ErrForbidden))
		return
	}

	var payload events.StartCorrectionPayload
	err := rm.WithSession(func(s *quiz.Session) error {
		if err := s.StartCorrection(); err != nil {
			return err
		}
		payload = events.StartCorrectionPayload{
			Questions:   s.Questions,
			UserAnswers: s.Answers(),
		}
		return nil
	})
	if err != nil {
		c.sendError(conn, errorText(err))
		return
	}
	c.broadcast(roomName, EventTypeStartCorrection, payload)
}

func (c *Coordinator) handleNextCorrection(conn *Connection) {
	rm, roomName, ok := c.currentRoom(conn)
	if !ok {
		return
	}
	if !rm.IsAdmin(conn.Identity.Username) {
		c.sendError(conn, errorText(room.ErrForbidden))
		return
	}

	joinOrder := rm.MemberNames()
	var (
		step    events.CorrectionStepPayload
		scores  map[string]int
		ranking []quiz.RankEntry
		done    bool
	)
	err := rm.WithSession(func(s *quiz.Session) error {
		var err error
		done, err = s.CorrectionNext()
		if err != nil {
			return err
		}
		if done {
			scores = s.Scores()
			ranking = s.Ranking(joinOrder)
			return nil
		}
		step = events.CorrectionStepPayload{
			Index:       s.CorrectionIndex(),
			Question:    s.Questions[s.CorrectionIndex()],
			UserAnswers: s.Answers(),
		}
		return nil
	})
	if err != nil {
		c.sendError(conn, errorText(err))
		return
	}

	if done {
		// Scores were finalized at quiz end; the walkthrough closing just
		// re-broadcasts them.
		c.broadcast(roomName, EventTypeShowScores, events.ShowScoresPayload{Scores: scores})
		c.broadcast(roomName, EventTypeQuizRanking, events.QuizRankingPayload{Ranking: ranking})
		return
	}
	c.broadcast(roomName, EventTypeNextCorrection, step)
}

func (c *Coordinator) handlePreviousCorrection(conn *Connection) {
	rm, roomName, ok := c.currentRoom(conn)
	if !ok {
		return
	}
	if !rm.IsAdmin(conn.Identity.Username) {
		c.sendError(conn, errorText(room.ErrForbidden))
		return
	}

	var step events.CorrectionStepPayload
	err := rm.WithSession(func(s *quiz.Session) error {
		if err := s.CorrectionPrevious(); err != nil {
			return err
		}
		step = events.CorrectionStepPayload{
			Index:       s.CorrectionIndex(),
			Question:    s.Questions[s.CorrectionIndex()],
			UserAnswers: s.Answers(),
		}
		return nil
	})
	if err != nil {
		c.sendError(conn, errorText(err))
		return
	}
	c.broadcast(roomName, EventTypePreviousCorrection, step)
}

func (c *Coordinator) handleEndCorrection(conn *Connection) {
	rm, roomName, ok := c.currentRoom(conn)
	if !ok {
		return
	}
	if !rm.IsAdmin(conn.Identity.Username) {
		c.sendError(conn, errorText(room.ErrForbidden))
		return
	}

	joinOrder := rm.MemberNames()
	var (
		scores  map[string]int
		ranking []quiz.RankEntry
	)
	err := rm.WithSession(func(s *quiz.Session) error {
		if err := s.EndCorrection(); err != nil {
			return err
		}
		scores = s.Scores()
		ranking = s.Ranking(joinOrder)
		return nil
	})
	if err != nil {
		c.sendError(conn, errorText(err))
		return
	}
	c.broadcast(roomName, EventTypeShowScores, events.ShowScoresPayload{Scores: scores})
	c.broadcast(roomName, EventTypeQuizRanking, events.QuizRankingPayload{Ranking: ranking})
}

func (c *Coordinator) handleCloseRoom(conn *Connection, p CloseRoomPayload) {
	roomName := p.Room
	if roomName == "" {
		if current, ok := c.b.RoomOf(conn); ok {
			roomName = current
		}
	}
	rm, ok := c.registry.Get(roomName)
	if !ok {
		c.sendError(conn, errorText(room.ErrRoomNotFound))
		return
	}
	if !rm.IsAdmin(conn.Identity.Username) {
		c.sendError(conn, errorText(room.ErrForbidden))
		return
	}

	c.broadcast(roomName, EventTypeRoomClosed,
		events.RoomClosedPayload{Text: "the room was closed by the admin"})

	// Cancel before removal so no stale timer fires against deleted state.
	c.scheduler.Cancel(roomName)
	c.registry.Remove(roomName)
	c.b.DropRoom(roomName)

	log.Info().Str("room", roomName).Str("admin", conn.Identity.Username).Msg("room closed")
}

// leaveRoom removes the member and cascades to room and session deletion
// when the member set empties.
func (c *Coordinator) leaveRoom(roomName, username string) {
	rm, ok := c.registry.Get(roomName)
	if !ok {
		return
	}
	empty := rm.Leave(username)
	if empty {
		c.scheduler.Cancel(roomName)
		c.registry.Remove(roomName)
		c.b.DropRoom(roomName)
		return
	}

	c.broadcast(roomName, EventTypeNotification,
		events.NotificationPayload{Text: fmt.Sprintf("%s left the room", username)})
	c.broadcastUserList(rm)
}

func (c *Coordinator) currentRoom(conn *Connection) (*room.Room, string, bool) {
	roomName, ok := c.b.RoomOf(conn)
	if !ok {
		c.sendError(conn, errorText(room.ErrRoomNotFound))
		return nil, "", false
	}
	rm, ok := c.registry.Get(roomName)
	if !ok {
		c.sendError(conn, errorText(room.ErrRoomNotFound))
		return nil, "", false
	}
	return rm, roomName, true
}

func (c *Coordinator) sendChatHistory(conn *Connection, roomName string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CollaboratorTimeout)
	history, err := c.chat.History(ctx, roomName)
	cancel()
	if err != nil {
		log.Error().Err(err).Str("room", roomName).Msg("failed to load chat history")
		history = nil
	}
	c.send(conn, EventTypeChatHistory, events.ChatHistoryPayload{Messages: history})
}

func (c *Coordinator) broadcastUserList(rm *room.Room) {
	c.broadcast(rm.Name(), EventTypeUserList, events.UserListPayload{Users: rm.Participants()})
}

// broadcast fans an event out to the room and mirrors it to the relay when
// one is configured.
func (c *Coordinator) broadcast(roomName string, t EventType, payload any) {
	evt, err := NewEvent(roomName, t, payload)
	if err != nil {
		log.Error().Err(err).Str("room", roomName).Msg("failed to build event")
		return
	}
	c.b.Broadcast(roomName, evt)

	if c.relay != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CollaboratorTimeout)
			defer cancel()
			if err := c.relay.Publish(ctx, roomName, string(t), evt.Data); err != nil {
				log.Warn().Err(err).Str("room", roomName).Str("event_type", string(t)).Msg("relay publish failed")
			}
		}()
	}
}

func (c *Coordinator) send(conn *Connection, t EventType, payload any) {
	evt, err := NewEvent("", t, payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to build private event")
		return
	}
	c.b.SendTo(conn, evt)
}

func (c *Coordinator) sendError(conn *Connection, text string) {
	c.send(conn, EventTypeErrorMessage, events.ErrorPayload{Text: text})
}

// errorText maps the recoverable error taxonomy onto client-facing text.
func errorText(err error) string {
	switch {
	case errors.Is(err, room.ErrBadPassword):
		return "wrong password"
	case errors.Is(err, room.ErrForbidden):
		return "admin privileges required"
	case errors.Is(err, room.ErrRoomNotFound):
		return "room not found"
	case errors.Is(err, room.ErrRoomExists):
		return "room already exists"
	case errors.Is(err, quiz.ErrAlreadyRunning):
		return "a quiz is already running"
	case errors.Is(err, quiz.ErrNotRunning):
		return "no quiz is running"
	case errors.Is(err, quiz.ErrNotEnded):
		return "the quiz has not ended yet"
	case errors.Is(err, quiz.ErrDuplicateAnswer):
		return "answer already submitted"
	case errors.Is(err, quiz.ErrInvalidIndex):
		return "invalid question or answer index"
	case errors.Is(err, quiz.ErrAtBoundary):
		return "already at the first question"
	default:
		return "internal server error"
	}
}

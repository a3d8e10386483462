package quiz

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Scheduler owns the per-room question timers. At most one timer exists per
// room at any instant: scheduling for a room that already has a timer
// replaces it, and every operation that removes or reinstalls a session
// cancels through here first.
type Scheduler struct {
	clock clockwork.Clock

	mu     sync.Mutex
	timers map[string]*roomTimer
}

type roomTimer struct {
	owner  uuid.UUID
	timer  clockwork.Timer
	cancel chan struct{}
}

// NewScheduler creates a scheduler on the given clock. Production uses
// clockwork.NewRealClock(); tests use a fake clock.
func NewScheduler(clock clockwork.Clock) *Scheduler {
	return &Scheduler{
		clock:  clock,
		timers: make(map[string]*roomTimer),
	}
}

// Clock returns the scheduler's clock so callers compute deadlines from the
// same time source.
func (s *Scheduler) Clock() clockwork.Clock { return s.clock }

// Schedule arms a one-shot timer for the room. The owner is the session the
// timer fires for: an outstanding timer is replaced only when it belongs to
// the same session, so a schedule that lost a race with a room recreation
// can never displace the new session's timer. Callers arming a timer for a
// fresh session Cancel first. fire runs on its own goroutine when the timer
// expires; callers re-validate session state under the room lock inside
// fire, so a fire that raced a cancellation has no effect.
func (s *Scheduler) Schedule(room string, owner uuid.UUID, d time.Duration, fire func()) {
	rt := &roomTimer{
		owner:  owner,
		timer:  s.clock.NewTimer(d),
		cancel: make(chan struct{}),
	}

	s.mu.Lock()
	if existing, ok := s.timers[room]; ok {
		if existing.owner != owner {
			s.mu.Unlock()
			stopAndDrainTimer(rt.timer)
			log.Debug().Str("room", room).Msg("refused to displace another session's timer")
			return
		}
		stopAndDrainTimer(existing.timer)
		close(existing.cancel)
		log.Debug().Str("room", room).Msg("replaced existing question timer")
	}
	s.timers[room] = rt
	s.mu.Unlock()

	go func() {
		select {
		case <-rt.timer.Chan():
			s.remove(room, rt)
			fire()
		case <-rt.cancel:
		}
	}()

	log.Debug().Str("room", room).Dur("duration", d).Msg("scheduled question timer")
}

// Cancel stops and removes the room's outstanding timer, if any.
func (s *Scheduler) Cancel(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rt, ok := s.timers[room]; ok {
		stopAndDrainTimer(rt.timer)
		close(rt.cancel)
		delete(s.timers, room)
		log.Debug().Str("room", room).Msg("cancelled question timer")
	}
}

// remove clears the entry after a fire, unless a newer timer already replaced
// this one.
func (s *Scheduler) remove(room string, rt *roomTimer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.timers[room]; ok && current == rt {
		delete(s.timers, room)
	}
}

// Pending reports whether the room has an outstanding timer.
func (s *Scheduler) Pending(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[room]
	return ok
}

// stopAndDrainTimer safely stops a timer and drains its channel to prevent
// goroutine leaks. This follows the pattern recommended in the
// time.Timer.Stop() documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

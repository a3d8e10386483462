package quiz_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/quizroom/quizroom/internal/quiz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerFires(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := quiz.NewScheduler(clock)

	fired := make(chan struct{})
	s.Schedule("r1", uuid.New(), 10*time.Second, func() { close(fired) })
	require.True(t, s.Pending("r1"))

	clock.Advance(10 * time.Second)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	assert.Eventually(t, func() bool { return !s.Pending("r1") }, time.Second, 10*time.Millisecond)
}

func TestSchedulerCancelPreventsFire(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := quiz.NewScheduler(clock)

	var fired atomic.Int32
	s.Schedule("r1", uuid.New(), 10*time.Second, func() { fired.Add(1) })
	s.Cancel("r1")
	require.False(t, s.Pending("r1"))

	clock.Advance(time.Minute)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestSchedulerReplaceKeepsSingleTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := quiz.NewScheduler(clock)
	owner := uuid.New()

	var first, second atomic.Int32
	s.Schedule("r1", owner, 10*time.Second, func() { first.Add(1) })
	s.Schedule("r1", owner, 20*time.Second, func() { second.Add(1) })

	// The first timer was replaced; even its original deadline passing must
	// not fire it.
	clock.Advance(10 * time.Second)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), first.Load())
	assert.Equal(t, int32(0), second.Load())

	clock.Advance(10 * time.Second)
	assert.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), first.Load())
}

func TestSchedulerScheduleCannotDisplaceOtherSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := quiz.NewScheduler(clock)

	var live, stale atomic.Int32
	s.Schedule("r1", uuid.New(), 10*time.Second, func() { live.Add(1) })

	// A schedule carrying another session's identity leaves the armed timer
	// untouched.
	s.Schedule("r1", uuid.New(), time.Hour, func() { stale.Add(1) })
	require.True(t, s.Pending("r1"))

	clock.Advance(10 * time.Second)
	assert.Eventually(t, func() bool { return live.Load() == 1 }, time.Second, 10*time.Millisecond)

	clock.Advance(time.Hour)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), stale.Load())
}

func TestSchedulerRoomsAreIndependent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := quiz.NewScheduler(clock)

	var r1, r2 atomic.Int32
	s.Schedule("r1", uuid.New(), 10*time.Second, func() { r1.Add(1) })
	s.Schedule("r2", uuid.New(), 10*time.Second, func() { r2.Add(1) })
	s.Cancel("r1")

	clock.Advance(10 * time.Second)
	assert.Eventually(t, func() bool { return r2.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), r1.Load())
}

func TestSchedulerCancelIsIdempotent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := quiz.NewScheduler(clock)

	s.Cancel("unknown")
	s.Schedule("r1", uuid.New(), time.Second, func() {})
	s.Cancel("r1")
	s.Cancel("r1")
	assert.False(t, s.Pending("r1"))
}

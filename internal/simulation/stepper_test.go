package simulation

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// eventRecorder collects emitted events for later inspection.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func newTestStepper(taskCount int) (*Stepper, *eventRecorder) {
	s := NewStepper(zap.NewNop(), func() int { return taskCount })
	s.speed = time.Millisecond
	rec := &eventRecorder{}
	s.OnEvent(rec.record)
	return s, rec
}

func waitForState(t *testing.T, s *Stepper, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Status().State == want
	}, 5*time.Second, time.Millisecond)
}

func TestSpeedValidation(t *testing.T) {
	assert.True(t, SpeedFast.Valid())
	assert.True(t, SpeedDebug.Valid())
	assert.False(t, Speed(3*time.Second).Valid())

	speed, err := ParseSpeed("slow")
	require.NoError(t, err)
	assert.Equal(t, SpeedSlow, speed)

	_, err = ParseSpeed("warp")
	assert.Error(t, err)
}

func TestRunCompletesAtBound(t *testing.T) {
	s, rec := newTestStepper(3)

	require.NoError(t, s.Start())
	waitForState(t, s, StateStopped)

	status := s.Status()
	assert.Equal(t, 15, status.CurrentStep)
	assert.Equal(t, 15, status.Bound)

	joined := strings.Join(status.Log, "\n")
	assert.Contains(t, joined, "Simulation run started")
	assert.Contains(t, joined, "Executing step 1")
	assert.Contains(t, joined, "Executing step 15")
	assert.Contains(t, joined, "Simulation run complete")

	// The final event reports the terminal state with the counter preserved.
	events := rec.snapshot()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, StateStopped, last.State)
	assert.Equal(t, 15, last.Step)
}

func TestStartWhileRunningFails(t *testing.T) {
	s, _ := newTestStepper(100)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Error(t, s.Start())
}

func TestPausePreservesCounterAndResumeContinues(t *testing.T) {
	s, _ := newTestStepper(100)
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool {
		return s.Status().CurrentStep >= 3
	}, 5*time.Second, time.Millisecond)

	require.NoError(t, s.Pause())
	paused := s.Status()
	assert.Equal(t, StatePaused, paused.State)
	assert.GreaterOrEqual(t, paused.CurrentStep, 3)

	// No tick may fire while paused.
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, paused.CurrentStep, s.Status().CurrentStep)

	// Resuming keeps the counter and the log.
	require.NoError(t, s.Start())
	require.Eventually(t, func() bool {
		return s.Status().CurrentStep > paused.CurrentStep
	}, 5*time.Second, time.Millisecond)

	s.Stop()
	joined := strings.Join(s.Status().Log, "\n")
	assert.Contains(t, joined, "Simulation run paused")
	assert.Contains(t, joined, "Simulation run resumed")
}

func TestPauseRequiresRunning(t *testing.T) {
	s, _ := newTestStepper(3)
	assert.Error(t, s.Pause())

	require.NoError(t, s.Start())
	waitForState(t, s, StateStopped)
	assert.Error(t, s.Pause())
}

func TestStopResetsCounter(t *testing.T) {
	s, _ := newTestStepper(100)
	require.NoError(t, s.Start())
	require.Eventually(t, func() bool {
		return s.Status().CurrentStep >= 1
	}, 5*time.Second, time.Millisecond)

	s.Stop()
	status := s.Status()
	assert.Equal(t, StateStopped, status.State)
	assert.Equal(t, 0, status.CurrentStep)
	assert.Contains(t, strings.Join(status.Log, "\n"), "Simulation run stopped")
}

func TestStartAfterStopResetsLog(t *testing.T) {
	s, _ := newTestStepper(2)
	require.NoError(t, s.Start())
	waitForState(t, s, StateStopped)
	firstRun := s.Status().Log

	require.NoError(t, s.Start())
	waitForState(t, s, StateStopped)

	// The log belongs to the new run only.
	joined := strings.Join(s.Status().Log, "\n")
	assert.Equal(t, 1, strings.Count(joined, "Simulation run complete"))
	assert.NotEmpty(t, firstRun)
}

func TestResetClearsEverything(t *testing.T) {
	s, _ := newTestStepper(2)
	require.NoError(t, s.Start())
	waitForState(t, s, StateStopped)

	require.NoError(t, s.Reset())
	status := s.Status()
	assert.Equal(t, StateIdle, status.State)
	assert.Equal(t, 0, status.CurrentStep)
	assert.Empty(t, status.Log)
}

func TestResetRejectedWhileRunning(t *testing.T) {
	s, _ := newTestStepper(100)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Error(t, s.Reset())
}

func TestSetSpeedRejectedWhileRunning(t *testing.T) {
	s, _ := newTestStepper(100)
	require.NoError(t, s.SetSpeed(SpeedFast))

	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Error(t, s.SetSpeed(SpeedSlow))
}

func TestZeroTasksCompletesOnFirstTick(t *testing.T) {
	s, _ := newTestStepper(0)
	require.NoError(t, s.Start())
	waitForState(t, s, StateStopped)
	assert.Equal(t, 1, s.Status().CurrentStep)
	assert.Contains(t, strings.Join(s.Status().Log, "\n"), "Simulation run complete")
}

func TestLogLinesCarryTimestamps(t *testing.T) {
	s, _ := newTestStepper(1)
	require.NoError(t, s.Start())
	waitForState(t, s, StateStopped)

	for _, line := range s.Status().Log {
		assert.Regexp(t, `^\[\d{2}:\d{2}:\d{2}\] `, line)
	}
}

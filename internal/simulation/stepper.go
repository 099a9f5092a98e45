package simulation

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

// stepsPerTask bounds a run at len(taskConfigs) × stepsPerTask steps.
const stepsPerTask = 5

// Speed is one of the enumerated run cadences.
type Speed time.Duration

const (
	SpeedFast   Speed = Speed(500 * time.Millisecond)
	SpeedNormal Speed = Speed(time.Second)
	SpeedSlow   Speed = Speed(2 * time.Second)
	SpeedDebug  Speed = Speed(5 * time.Second)
)

func (s Speed) Valid() bool {
	switch s {
	case SpeedFast, SpeedNormal, SpeedSlow, SpeedDebug:
		return true
	}
	return false
}

// ParseSpeed maps a client-facing cadence name to its interval.
func ParseSpeed(name string) (Speed, error) {
	switch name {
	case "fast":
		return SpeedFast, nil
	case "normal":
		return SpeedNormal, nil
	case "slow":
		return SpeedSlow, nil
	case "debug":
		return SpeedDebug, nil
	}
	return 0, fmt.Errorf("unknown simulation speed %q", name)
}

// Event describes one observable stepper transition or tick.
type Event struct {
	State     State     `json:"state"`
	Step      int       `json:"step"`
	Bound     int       `json:"bound"`
	Line      string    `json:"line,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Status is a point-in-time snapshot of the stepper.
type Status struct {
	State       State    `json:"state"`
	CurrentStep int      `json:"current_step"`
	Bound       int      `json:"bound"`
	Speed       Speed    `json:"speed"`
	Log         []string `json:"log"`
}

// Stepper walks a derived step count over the current project on a fixed
// interval:
//
//	Idle → Running ⇄ Paused → Stopped
//
// Completion is an implicit terminal reached from Running when the step
// counter hits the bound; it lands in Stopped with the counter preserved.
// The timer is cancelled on every exit from Running so no tick can fire into
// a stale run.
type Stepper struct {
	logger    *zap.Logger
	taskCount func() int
	onEvent   func(Event)

	mu          sync.RWMutex
	state       State
	currentStep int
	log         []string
	speed       time.Duration
	done        chan struct{}
}

// NewStepper builds an idle stepper. taskCount reports the current number of
// task configs in the aggregate; it is consulted at Start and on every tick
// so the bound tracks the live project.
func NewStepper(logger *zap.Logger, taskCount func() int) *Stepper {
	return &Stepper{
		logger:    logger,
		taskCount: taskCount,
		state:     StateIdle,
		speed:     time.Duration(SpeedNormal),
		log:       make([]string, 0),
	}
}

// OnEvent registers a callback invoked after every state change and tick.
// Must be set before Start.
func (s *Stepper) OnEvent(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvent = fn
}

// SetSpeed changes the tick cadence. Rejected while running, matching the
// control panel which locks the selector during a run.
func (s *Stepper) SetSpeed(speed Speed) error {
	if !speed.Valid() {
		return fmt.Errorf("invalid simulation speed: %v", time.Duration(speed))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		return fmt.Errorf("cannot change speed while running")
	}
	s.speed = time.Duration(speed)
	return nil
}

func (s *Stepper) bound() int {
	return s.taskCount() * stepsPerTask
}

// Start begins or resumes a run. From Idle or Stopped the step counter and
// log are reset; from Paused the run resumes where it left off.
func (s *Stepper) Start() error {
	s.mu.Lock()

	switch s.state {
	case StateRunning:
		s.mu.Unlock()
		return fmt.Errorf("simulation already running")
	case StateIdle, StateStopped:
		s.currentStep = 0
		s.log = make([]string, 0)
		s.appendLogLocked("Simulation run started")
	case StatePaused:
		s.appendLogLocked("Simulation run resumed")
	}

	s.state = StateRunning
	done := make(chan struct{})
	s.done = done
	interval := s.speed
	event := s.snapshotEventLocked("")
	s.mu.Unlock()

	s.logger.Info("Simulation started",
		zap.Int("step", event.Step),
		zap.Int("bound", event.Bound),
		zap.Duration("interval", interval))
	s.emit(event)

	go s.runLoop(interval, done)
	return nil
}

// Pause suspends a run, keeping the step counter.
func (s *Stepper) Pause() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return fmt.Errorf("cannot pause: simulation not running (current: %s)", s.state)
	}
	s.state = StatePaused
	s.cancelTimerLocked()
	s.appendLogLocked("Simulation run paused")
	event := s.snapshotEventLocked("")
	s.mu.Unlock()

	s.logger.Info("Simulation paused", zap.Int("step", event.Step))
	s.emit(event)
	return nil
}

// Stop ends a run from any state and resets the step counter.
func (s *Stepper) Stop() {
	s.mu.Lock()
	s.cancelTimerLocked()
	s.state = StateStopped
	s.currentStep = 0
	s.appendLogLocked("Simulation run stopped")
	event := s.snapshotEventLocked("")
	s.mu.Unlock()

	s.logger.Info("Simulation stopped")
	s.emit(event)
}

// Reset returns the stepper to Idle and clears the log. Rejected while
// running; stop first.
func (s *Stepper) Reset() error {
	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		return fmt.Errorf("cannot reset while running")
	}
	s.state = StateIdle
	s.currentStep = 0
	s.log = make([]string, 0)
	event := s.snapshotEventLocked("")
	s.mu.Unlock()

	s.emit(event)
	return nil
}

func (s *Stepper) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		State:       s.state,
		CurrentStep: s.currentStep,
		Bound:       s.bound(),
		Speed:       Speed(s.speed),
		Log:         append([]string(nil), s.log...),
	}
}

func (s *Stepper) runLoop(interval time.Duration, done chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !s.step() {
				return
			}
		}
	}
}

// step advances the counter by one tick. Returns false when the run is over
// and the loop must exit.
func (s *Stepper) step() bool {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return false
	}

	s.currentStep++
	line := fmt.Sprintf("Executing step %d", s.currentStep)
	s.appendLogLocked(line)

	if s.currentStep >= s.bound() {
		s.cancelTimerLocked()
		s.state = StateStopped
		s.appendLogLocked("Simulation run complete")
		event := s.snapshotEventLocked(line)
		s.mu.Unlock()

		s.logger.Info("Simulation completed", zap.Int("steps", event.Step))
		s.emit(event)
		return false
	}

	event := s.snapshotEventLocked(line)
	s.mu.Unlock()

	s.emit(event)
	return true
}

// cancelTimerLocked tears down the active run loop, if any. Callers hold s.mu.
func (s *Stepper) cancelTimerLocked() {
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
}

func (s *Stepper) appendLogLocked(message string) {
	s.log = append(s.log, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), message))
}

func (s *Stepper) snapshotEventLocked(line string) Event {
	return Event{
		State:     s.state,
		Step:      s.currentStep,
		Bound:     s.bound(),
		Line:      line,
		Timestamp: time.Now(),
	}
}

func (s *Stepper) emit(event Event) {
	if s.onEvent != nil {
		s.onEvent(event)
	}
}

// Package idle manages the avatar's idle/active state machine. The
// presentation layer queries it to decide whether idle-motion loops may play.
package idle

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is one of the three mutually exclusive machine states.
type State string

const (
	StateIdle          State = "idle"
	StateActive        State = "active"
	StateTransitioning State = "transitioning"
)

// Config holds the machine's timer durations.
type Config struct {
	// IdleTimeout is how long without activity before leaving active.
	IdleTimeout time.Duration
	// TransitionDuration is how long the transitioning state lasts.
	TransitionDuration time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:        30 * time.Second,
		TransitionDuration: 800 * time.Millisecond,
	}
}

// Callbacks fire exactly once per edge crossed. A state re-entered without a
// transition fires nothing.
type Callbacks struct {
	OnIdleStart       func()
	OnIdleEnd         func()
	OnTransitionStart func()
	OnTransitionEnd   func()
}

// Manager is the timer-driven state machine. Initial state is idle.
type Manager struct {
	mu     sync.Mutex
	cfg    Config
	state  State
	target State // where the current transition lands

	transitionTimer *time.Timer
	idleTimer       *time.Timer

	cb      Callbacks
	logger  zerolog.Logger
	stopped bool
}

// NewManager creates a Manager in the idle state.
func NewManager(cfg Config, logger zerolog.Logger) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultConfig().IdleTimeout
	}
	if cfg.TransitionDuration <= 0 {
		cfg.TransitionDuration = DefaultConfig().TransitionDuration
	}

	return &Manager{
		cfg:    cfg,
		state:  StateIdle,
		logger: logger.With().Str("component", "idle-manager").Logger(),
	}
}

// SetCallbacks registers the edge callbacks. Call before the first
// SignalActivity.
func (m *Manager) SetCallbacks(cb Callbacks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cb = cb
}

// SignalActivity reports conversational activity. From idle it begins the
// transition toward active; while active it only resets the no-activity
// timer; while transitioning it restarts the transition timer.
func (m *Manager) SignalActivity() {
	m.mu.Lock()

	if m.stopped {
		m.mu.Unlock()
		return
	}

	var fire []func()
	switch m.state {
	case StateIdle:
		fire = m.beginTransitionLocked(StateActive)
	case StateActive:
		m.resetIdleTimerLocked()
	case StateTransitioning:
		m.target = StateActive
		m.restartTransitionTimerLocked()
	}
	m.mu.Unlock()

	invoke(fire)
}

// IsIdle reports whether the machine is idle.
func (m *Manager) IsIdle() bool { return m.current() == StateIdle }

// IsActive reports whether the machine is active.
func (m *Manager) IsActive() bool { return m.current() == StateActive }

// IsTransitioning reports whether the machine is mid-transition.
func (m *Manager) IsTransitioning() bool { return m.current() == StateTransitioning }

// State returns the current state.
func (m *Manager) State() State { return m.current() }

// Stop cancels all timers. The machine stays in its current state and
// ignores further signals.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	if m.transitionTimer != nil {
		m.transitionTimer.Stop()
	}
	if m.idleTimer != nil {
		m.idleTimer.Stop()
	}
}

func (m *Manager) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// beginTransitionLocked moves into transitioning toward target and returns
// the callbacks to fire once the caller releases the lock.
func (m *Manager) beginTransitionLocked(target State) []func() {
	var fire []func()

	if m.state == StateIdle && m.cb.OnIdleEnd != nil {
		fire = append(fire, m.cb.OnIdleEnd)
	}

	m.state = StateTransitioning
	m.target = target
	if m.cb.OnTransitionStart != nil {
		fire = append(fire, m.cb.OnTransitionStart)
	}

	if m.idleTimer != nil {
		m.idleTimer.Stop()
	}
	m.restartTransitionTimerLocked()

	m.logger.Debug().Str("target", string(target)).Msg("Transition started")
	return fire
}

func (m *Manager) restartTransitionTimerLocked() {
	if m.transitionTimer != nil {
		m.transitionTimer.Stop()
	}
	m.transitionTimer = time.AfterFunc(m.cfg.TransitionDuration, m.completeTransition)
}

func (m *Manager) resetIdleTimerLocked() {
	if m.idleTimer != nil {
		m.idleTimer.Stop()
	}
	m.idleTimer = time.AfterFunc(m.cfg.IdleTimeout, m.idleTimeout)
}

// completeTransition fires when the transition timer expires.
func (m *Manager) completeTransition() {
	m.mu.Lock()

	if m.stopped || m.state != StateTransitioning {
		m.mu.Unlock()
		return
	}

	m.state = m.target
	var fire []func()
	if m.cb.OnTransitionEnd != nil {
		fire = append(fire, m.cb.OnTransitionEnd)
	}

	switch m.state {
	case StateActive:
		m.resetIdleTimerLocked()
	case StateIdle:
		if m.cb.OnIdleStart != nil {
			fire = append(fire, m.cb.OnIdleStart)
		}
	}

	m.logger.Debug().Str("state", string(m.state)).Msg("Transition complete")
	m.mu.Unlock()

	invoke(fire)
}

// idleTimeout fires when the no-activity timer expires while active.
func (m *Manager) idleTimeout() {
	m.mu.Lock()

	if m.stopped || m.state != StateActive {
		m.mu.Unlock()
		return
	}

	fire := m.beginTransitionLocked(StateIdle)
	m.mu.Unlock()

	invoke(fire)
}

func invoke(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

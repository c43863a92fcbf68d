package executor

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// State is one of the protocol executor's discrete run states (spec §4.2.3).
// 执行器的离散运行状态。
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateSuccess State = "success"
	StateFailed  State = "failed"
	StateStopped State = "stopped"
)

// validTransitions mirrors the teacher's StateMachine table, generalized
// to the executor's idle -> running <-> paused -> terminal state chart.
var validTransitions = map[State]map[State]bool{
	StateIdle: {
		StateRunning: true,
	},
	StateRunning: {
		StatePaused:  true,
		StateSuccess: true,
		StateFailed:  true,
		StateStopped: true,
	},
	StatePaused: {
		StateRunning: true,
		StateStopped: true,
	},
	StateSuccess: {},
	StateFailed:  {},
	StateStopped: {},
}

// StateMachine is a thread-safe transition guard for one protocol run.
type StateMachine struct {
	mu     sync.RWMutex
	state  State
	logger *zap.Logger
}

// NewStateMachine starts in StateIdle.
func NewStateMachine(logger *zap.Logger) *StateMachine {
	return &StateMachine{state: StateIdle, logger: logger}
}

func (sm *StateMachine) State() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state
}

// Transition moves to `to`, returning an error if the transition is not
// in validTransitions.
func (sm *StateMachine) Transition(to State) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	allowed, ok := validTransitions[sm.state]
	if !ok || !allowed[to] {
		err := fmt.Errorf("invalid executor state transition: %s -> %s", sm.state, to)
		if sm.logger != nil {
			sm.logger.Error("state machine violation", zap.Error(err))
		}
		return err
	}
	from := sm.state
	sm.state = to
	if sm.logger != nil {
		sm.logger.Debug("executor state transition", zap.String("from", string(from)), zap.String("to", string(to)))
	}
	return nil
}

// IsTerminal reports whether the state machine is in an absorbing state.
func (sm *StateMachine) IsTerminal() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	switch sm.state {
	case StateSuccess, StateFailed, StateStopped:
		return true
	}
	return false
}

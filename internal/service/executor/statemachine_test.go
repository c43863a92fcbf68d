package executor

import "testing"

func TestStateMachine_HappyPath(t *testing.T) {
	sm := NewStateMachine(nil)
	if sm.State() != StateIdle {
		t.Fatalf("initial state = %s, want idle", sm.State())
	}
	if err := sm.Transition(StateRunning); err != nil {
		t.Fatalf("idle->running: %v", err)
	}
	if err := sm.Transition(StateSuccess); err != nil {
		t.Fatalf("running->success: %v", err)
	}
	if !sm.IsTerminal() {
		t.Fatal("success should be terminal")
	}
}

func TestStateMachine_PauseResume(t *testing.T) {
	sm := NewStateMachine(nil)
	_ = sm.Transition(StateRunning)
	if err := sm.Transition(StatePaused); err != nil {
		t.Fatalf("running->paused: %v", err)
	}
	if sm.IsTerminal() {
		t.Fatal("paused must not be terminal")
	}
	if err := sm.Transition(StateRunning); err != nil {
		t.Fatalf("paused->running: %v", err)
	}
}

func TestStateMachine_RejectsInvalidTransition(t *testing.T) {
	sm := NewStateMachine(nil)
	if err := sm.Transition(StateSuccess); err == nil {
		t.Fatal("idle->success should be rejected")
	}
	if sm.State() != StateIdle {
		t.Fatalf("state = %s, want unchanged idle after rejected transition", sm.State())
	}
}

func TestStateMachine_TerminalStatesHaveNoExit(t *testing.T) {
	for _, terminal := range []State{StateSuccess, StateFailed, StateStopped} {
		sm := NewStateMachine(nil)
		_ = sm.Transition(StateRunning)
		if err := sm.Transition(terminal); err != nil {
			t.Fatalf("running->%s: %v", terminal, err)
		}
		if err := sm.Transition(StateRunning); err == nil {
			t.Fatalf("%s->running should be rejected, terminal states are absorbing", terminal)
		}
	}
}

func TestStateMachine_PausedCanStop(t *testing.T) {
	sm := NewStateMachine(nil)
	_ = sm.Transition(StateRunning)
	_ = sm.Transition(StatePaused)
	if err := sm.Transition(StateStopped); err != nil {
		t.Fatalf("paused->stopped: %v", err)
	}
}

package stt

import (
	"testing"
)

func TestTaskLifecycle_InitialState(t *testing.T) {
	life := newTaskLifecycle()

	if life.State() != taskOpen {
		t.Errorf("expected taskOpen, got %v", life.State())
	}
	if err := life.EmitPartial(); err != nil {
		t.Errorf("expected partials allowed while open, got %v", err)
	}
}

func TestTaskLifecycle_PartialsWhileOpen(t *testing.T) {
	life := newTaskLifecycle()

	for i := 0; i < 5; i++ {
		if err := life.EmitPartial(); err != nil {
			t.Errorf("partial %d: unexpected error: %v", i, err)
		}
	}
	if life.State() != taskOpen {
		t.Errorf("expected taskOpen after partials, got %v", life.State())
	}
}

func TestTaskLifecycle_FinalOnlyOnce(t *testing.T) {
	life := newTaskLifecycle()

	if err := life.EmitFinal(); err != nil {
		t.Errorf("first final: unexpected error: %v", err)
	}
	if err := life.EmitFinal(); err != errFinalAlreadyEmitted {
		t.Errorf("second final: expected errFinalAlreadyEmitted, got %v", err)
	}
	if life.State() != taskFinalEmitted {
		t.Errorf("expected taskFinalEmitted, got %v", life.State())
	}
}

func TestTaskLifecycle_NoPartialAfterFinal(t *testing.T) {
	life := newTaskLifecycle()

	if err := life.EmitFinal(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := life.EmitPartial(); err != errTaskTerminal {
		t.Errorf("expected errTaskTerminal, got %v", err)
	}
}

func TestTaskLifecycle_FailOnce(t *testing.T) {
	life := newTaskLifecycle()

	if !life.Fail() {
		t.Error("expected first Fail to return true")
	}
	if life.Fail() {
		t.Error("expected second Fail to return false")
	}
	if life.State() != taskFailed {
		t.Errorf("expected taskFailed, got %v", life.State())
	}
}

func TestTaskLifecycle_NoFailAfterFinal(t *testing.T) {
	life := newTaskLifecycle()

	if err := life.EmitFinal(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if life.Fail() {
		t.Error("expected Fail to be rejected after final")
	}
	if life.State() != taskFinalEmitted {
		t.Errorf("expected taskFinalEmitted to stick, got %v", life.State())
	}
}

func TestTaskLifecycle_CloseIdempotent(t *testing.T) {
	life := newTaskLifecycle()

	life.Close()
	life.Close()
	life.Close()

	if life.State() != taskClosed {
		t.Errorf("expected taskClosed, got %v", life.State())
	}
	if err := life.EmitFinal(); err != errTaskTerminal {
		t.Errorf("expected errTaskTerminal after close, got %v", err)
	}
	if life.Fail() {
		t.Error("expected Fail rejected after close")
	}
}

func TestTaskLifecycle_ClosePreservesTerminalState(t *testing.T) {
	life := newTaskLifecycle()

	if err := life.EmitFinal(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	life.Close()

	if life.State() != taskFinalEmitted {
		t.Errorf("expected taskFinalEmitted preserved, got %v", life.State())
	}
}

func TestTaskState_String(t *testing.T) {
	tests := []struct {
		state    taskState
		expected string
	}{
		{taskOpen, "OPEN"},
		{taskFinalEmitted, "FINAL_EMITTED"},
		{taskFailed, "FAILED"},
		{taskClosed, "CLOSED"},
		{taskState(99), "UNKNOWN(99)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("taskState(%d).String() = %v, want %v", tt.state, got, tt.expected)
		}
	}
}

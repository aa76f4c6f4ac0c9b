package stt

import (
	"errors"
	"fmt"
	"sync"
)

// taskState is the lifecycle state of one underlying recognition task.
type taskState int

const (
	// taskOpen - task is active, partials may be emitted.
	taskOpen taskState = iota
	// taskFinalEmitted - the final transcript was delivered.
	taskFinalEmitted
	// taskFailed - the task terminated with an error.
	taskFailed
	// taskClosed - the task was stopped or rotated away.
	taskClosed
)

func (s taskState) String() string {
	switch s {
	case taskOpen:
		return "OPEN"
	case taskFinalEmitted:
		return "FINAL_EMITTED"
	case taskFailed:
		return "FAILED"
	case taskClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

func (s taskState) isTerminal() bool { return s != taskOpen }

var (
	errTaskTerminal        = errors.New("task already terminated")
	errFinalAlreadyEmitted = errors.New("final already emitted for this task")
)

// taskLifecycle enforces the exactly-one-terminal-event contract for a
// single recognition task. The engine callback API permits multiple
// terminal invocations; this gate drops everything after the first.
//
// Transitions:
//
//	OPEN → FINAL_EMITTED   (EmitFinal, once)
//	OPEN → FAILED          (Fail, once)
//	any  → CLOSED          (Close, idempotent)
type taskLifecycle struct {
	mu    sync.Mutex
	state taskState
}

func newTaskLifecycle() *taskLifecycle {
	return &taskLifecycle{state: taskOpen}
}

// EmitPartial reports whether a partial may be delivered now.
func (l *taskLifecycle) EmitPartial() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != taskOpen {
		return errTaskTerminal
	}
	return nil
}

// EmitFinal transitions to FINAL_EMITTED; only the first call succeeds.
func (l *taskLifecycle) EmitFinal() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case taskOpen:
		l.state = taskFinalEmitted
		return nil
	case taskFinalEmitted:
		return errFinalAlreadyEmitted
	default:
		return errTaskTerminal
	}
}

// Fail transitions to FAILED. Returns false if the task already
// reached a terminal state, in which case the error must be dropped.
func (l *taskLifecycle) Fail() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.isTerminal() {
		return false
	}
	l.state = taskFailed
	return true
}

// Close marks the task closed. Idempotent, callable from any state.
func (l *taskLifecycle) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.state.isTerminal() {
		l.state = taskClosed
	}
}

// State returns the current state.
func (l *taskLifecycle) State() taskState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}
